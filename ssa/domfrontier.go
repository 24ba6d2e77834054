package ssa

// DominanceFrontier holds, for every block of a region, the set of blocks
// where its dominance ends: Y is in the frontier of B when B dominates some
// predecessor of Y but does not strictly dominate Y itself. Frontiers drive
// phi placement during SSA reconstruction.
type DominanceFrontier struct {
	dfs map[*basicBlock]map[*basicBlock]struct{}
}

// NewDominanceFrontier computes the dominance frontier of every reachable
// block using the given dominator tree.
func NewDominanceFrontier(t *DominatorTree) *DominanceFrontier {
	if t.post {
		panic("BUG: dominance frontier requires a forward dominator tree")
	}
	f := &DominanceFrontier{dfs: map[*basicBlock]map[*basicBlock]struct{}{}}

	// For each join point, walk up the idom chain from every predecessor
	// until the join's immediate dominator. Everything on the way has the
	// join in its frontier.
	t.Postorder(func(bb BasicBlock) {
		blk := bb.(*basicBlock)
		if len(blk.preds) < 2 {
			return
		}
		id := t.getNode(blk)
		idom := t.nodes[id].idom
		if idom == domNodeNone {
			panic("BUG: join point without an immediate dominator: " + blk.Name())
		}
		idomBlk := t.nodes[idom].blk
		for i := range blk.preds {
			p := blk.preds[i].blk
			for p != idomBlk {
				pID := t.getNode(p)
				if pID == domNodeNone {
					break
				}
				f.add(p, blk)
				pIDom := t.nodes[pID].idom
				if pIDom == domNodeNone {
					break
				}
				p = t.nodes[pIDom].blk
			}
		}
	})
	return f
}

func (f *DominanceFrontier) add(blk, frontier *basicBlock) {
	set, ok := f.dfs[blk]
	if !ok {
		set = map[*basicBlock]struct{}{}
		f.dfs[blk] = set
	}
	set[frontier] = struct{}{}
}

// Of returns the dominance frontier of blk, or nil when it is empty.
func (f *DominanceFrontier) Of(blk BasicBlock) []BasicBlock {
	return blockSetSorted(f.dfs[blk.(*basicBlock)])
}

// Contains returns true if frontier is in the dominance frontier of blk.
func (f *DominanceFrontier) Contains(blk, frontier BasicBlock) bool {
	set, ok := f.dfs[blk.(*basicBlock)]
	if !ok {
		return false
	}
	_, ok = set[frontier.(*basicBlock)]
	return ok
}

// Iterate computes the iterated dominance frontier DF+ of a single block.
func (f *DominanceFrontier) Iterate(blk BasicBlock) []BasicBlock {
	return f.IterateAll([]BasicBlock{blk})
}

// IterateAll computes the iterated dominance frontier of a set of blocks:
// the union of frontiers of the set, then of that result, until fixpoint.
// This is the set of blocks that need a phi parameter for a value assigned
// in every block of the input set.
func (f *DominanceFrontier) IterateAll(blocks []BasicBlock) []BasicBlock {
	idf := map[*basicBlock]struct{}{}
	var queue []*basicBlock

	visit := func(blk *basicBlock) {
		for frontier := range f.dfs[blk] {
			if _, seen := idf[frontier]; seen {
				continue
			}
			idf[frontier] = struct{}{}
			queue = append(queue, frontier)
		}
	}

	for _, blk := range blocks {
		visit(blk.(*basicBlock))
	}
	for len(queue) > 0 {
		blk := queue[0]
		queue = queue[1:]
		visit(blk)
	}
	return blockSetSorted(idf)
}

// blockSetSorted flattens a block set into a slice ordered by block ID, so
// callers iterate deterministically.
func blockSetSorted(set map[*basicBlock]struct{}) []BasicBlock {
	if len(set) == 0 {
		return nil
	}
	ret := make([]BasicBlock, 0, len(set))
	for blk := range set {
		ret = append(ret, blk)
	}
	for i := 1; i < len(ret); i++ {
		for j := i; j > 0 && ret[j-1].(*basicBlock).id > ret[j].(*basicBlock).id; j-- {
			ret[j-1], ret[j] = ret[j], ret[j-1]
		}
	}
	return ret
}
