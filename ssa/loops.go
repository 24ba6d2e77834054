package ssa

// Loop is one natural loop: a header block dominating a set of body blocks,
// with at least one back edge from the body to the header. Loops nest;
// parent is the innermost enclosing loop, or nil for a top level loop.
type Loop struct {
	header *basicBlock
	parent *Loop
}

// Header returns the loop header block.
func (l *Loop) Header() BasicBlock { return l.header }

// Parent returns the innermost enclosing loop, or nil.
func (l *Loop) Parent() *Loop { return l.parent }

// LoopInfo holds the natural loops of one region, derived from its forward
// dominator tree. The liveness analysis consults it to find loop-exiting
// edges, which carry the next-use distance penalty.
type LoopInfo struct {
	loops  []*Loop
	loopOf map[*basicBlock]*Loop
}

// NewLoopInfo discovers the natural loops of the tree's region. Headers are
// found as targets of back edges, walking the dominator tree in postorder so
// inner loops are discovered before the loops enclosing them.
func NewLoopInfo(t *DominatorTree) *LoopInfo {
	if t.post {
		panic("BUG: loop analysis requires a forward dominator tree")
	}
	li := &LoopInfo{loopOf: map[*basicBlock]*Loop{}}

	t.Postorder(func(bb BasicBlock) {
		header := bb.(*basicBlock)
		var latches []*basicBlock
		for i := range header.preds {
			pred := header.preds[i].blk
			if t.getNode(pred) != domNodeNone && t.dominatesBlocks(header, pred) {
				latches = append(latches, pred)
			}
		}
		if len(latches) == 0 {
			return
		}

		loop := &Loop{header: header}
		li.loops = append(li.loops, loop)

		// Walk the reversed CFG from the latches back to the header. Blocks
		// already claimed by an inner loop are folded in by reparenting the
		// inner loop's outermost ancestor and continuing from its header.
		work := append([]*basicBlock(nil), latches...)
		for len(work) > 0 {
			blk := work[len(work)-1]
			work = work[:len(work)-1]
			if blk == header {
				continue
			}
			if sub := li.loopOf[blk]; sub != nil {
				for sub.parent != nil {
					sub = sub.parent
				}
				if sub == loop {
					continue
				}
				sub.parent = loop
				for i := range sub.header.preds {
					work = append(work, sub.header.preds[i].blk)
				}
				continue
			}
			li.loopOf[blk] = loop
			for i := range blk.preds {
				work = append(work, blk.preds[i].blk)
			}
		}
		if li.loopOf[header] == nil {
			li.loopOf[header] = loop
		}
	})
	return li
}

// InnermostLoopOf returns the innermost loop containing blk, or nil.
func (li *LoopInfo) InnermostLoopOf(blk BasicBlock) *Loop {
	return li.loopOf[blk.(*basicBlock)]
}

// Contains returns true if blk belongs to l or one of its subloops.
func (li *LoopInfo) Contains(l *Loop, blk BasicBlock) bool {
	for cur := li.loopOf[blk.(*basicBlock)]; cur != nil; cur = cur.parent {
		if cur == l {
			return true
		}
	}
	return false
}

// LoopDepthOf returns the loop nesting depth of blk, 0 outside any loop.
func (li *LoopInfo) LoopDepthOf(blk BasicBlock) (depth int) {
	for cur := li.loopOf[blk.(*basicBlock)]; cur != nil; cur = cur.parent {
		depth++
	}
	return
}

// IsBackEdge returns true if the edge from -> to re-enters the loop headed
// by to.
func (li *LoopInfo) IsBackEdge(from, to BasicBlock) bool {
	l := li.loopOf[to.(*basicBlock)]
	return l != nil && l.header == to.(*basicBlock) && li.Contains(l, from)
}

// IsLoopExitEdge returns true if the edge from -> to leaves a loop: some
// loop contains from but not to. A subloop of a loop contains a subset of
// its blocks, so checking the innermost loop of from suffices.
func (li *LoopInfo) IsLoopExitEdge(from, to BasicBlock) bool {
	l := li.loopOf[from.(*basicBlock)]
	return l != nil && !li.Contains(l, to)
}

// Loops returns the discovered loops, innermost first.
func (li *LoopInfo) Loops() []*Loop { return li.loops }
