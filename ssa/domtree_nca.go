package ssa

// This file implements construction and incremental maintenance of dominator
// trees with the Semi-NCA algorithm:
//
//	Linear-Time Algorithms for Dominators and Related Problems
//	Loukas Georgiadis, Princeton University, November 2005, pp. 21-23
//
// Semi-NCA runs in O(n^2) worst case but is usually faster than simple
// Lengauer-Tarjan in practice. Incremental edge insertions and deletions use
// the Depth Based Search algorithm:
//
//	An Experimental Study of Dynamic Dominators
//	Loukas Georgiadis, et al., April 12 2016, pp. 5-7, 9-10

// sncaInfo is the per-node working state. num, parent, semi and label are
// 1-based DFS numbers; idom is a block, where nil means the node hangs off
// the tree root or the virtual root.
type sncaInfo struct {
	num, parent, semi, label uint32
	idom                     *basicBlock
	reverseChildren          []uint32
}

// semiNCA carries the transient state of one construction or repair run. The
// node infos live in a dense slice indexed like the tree arena.
type semiNCA struct {
	t *DominatorTree
	// numToNode is 1-based: numToNode[num] is the block with DFS number num,
	// where nil is the virtual root.
	numToNode []*basicBlock
	infos     []sncaInfo
}

func newSemiNCA(t *DominatorTree) *semiNCA {
	return &semiNCA{
		t:         t,
		numToNode: make([]*basicBlock, 1, 64),
		infos:     make([]sncaInfo, int(t.b.nextBlockID)+1),
	}
}

func (s *semiNCA) clear() {
	s.numToNode = s.numToNode[:1]
	for i := range s.infos {
		s.infos[i] = sncaInfo{}
	}
}

func (s *semiNCA) info(blk *basicBlock) *sncaInfo {
	return &s.infos[s.t.nodeID(blk)]
}

func alwaysDescend(_, _ *basicBlock) bool { return true }

// children returns the nodes to descend into from blk. With reverse unset
// that is the walk-forward direction of the tree (CFG successors for
// dominance, predecessors for post-dominance); with reverse set it is the
// opposite. Raw CFG successors are visited in reverse program order.
func (s *semiNCA) children(blk *basicBlock, reverse bool) []*basicBlock {
	if inversed := reverse != s.t.post; inversed {
		ret := make([]*basicBlock, len(blk.preds))
		for i := range blk.preds {
			ret[i] = blk.preds[i].blk
		}
		return ret
	}
	ret := make([]*basicBlock, len(blk.success))
	for i := range blk.success {
		ret[i] = blk.success[len(blk.success)-1-i]
	}
	return ret
}

// runDFS numbers the nodes reachable from v, skipping edges rejected by
// condition, and collects the reverse children used by the semidominator
// step. It returns the last assigned DFS number.
func (s *semiNCA) runDFS(v *basicBlock, lastNum uint32, condition func(from, to *basicBlock) bool,
	attachToNum uint32, succOrder map[*basicBlock]int, reverse bool) uint32 {
	if v == nil {
		panic("BUG: expected valid root node for search")
	}
	type workItem struct {
		blk       *basicBlock
		parentNum uint32
	}
	worklist := []workItem{{v, attachToNum}}
	s.info(v).parent = attachToNum

	for len(worklist) > 0 {
		item := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		blkInfo := s.info(item.blk)
		blkInfo.reverseChildren = append(blkInfo.reverseChildren, item.parentNum)

		// Visited nodes always have positive DFS numbers.
		if blkInfo.num != 0 {
			continue
		}
		blkInfo.parent = item.parentNum
		lastNum++
		blkInfo.num, blkInfo.semi, blkInfo.label = lastNum, lastNum, lastNum
		s.numToNode = append(s.numToNode, item.blk)

		successors := s.children(item.blk, reverse)
		if succOrder != nil && len(successors) > 1 {
			sortBlocksBy(successors, succOrder)
		}
		for _, succ := range successors {
			if condition(item.blk, succ) {
				worklist = append(worklist, workItem{succ, lastNum})
			}
		}
	}
	return lastNum
}

func sortBlocksBy(blks []*basicBlock, order map[*basicBlock]int) {
	// Insertion sort keeps this allocation free; the slices are tiny.
	for i := 1; i < len(blks); i++ {
		for j := i; j > 0 && order[blks[j-1]] > order[blks[j]]; j-- {
			blks[j-1], blks[j] = blks[j], blks[j-1]
		}
	}
}

// eval returns v if v was linked after lastLinked, otherwise the label of the
// ancestor with the minimal semidominator on the virtual forest path from v.
// Path compression keeps the amortized cost near-linear.
func (s *semiNCA) eval(v, lastLinked uint32, evalStack *[]*sncaInfo) uint32 {
	infoAt := func(num uint32) *sncaInfo { return &s.infos[s.t.nodeID(s.numToNode[num])] }

	vInfo := infoAt(v)
	if vInfo.parent < lastLinked {
		return vInfo.label
	}

	// Store ancestors except the last (root of a virtual tree) into a stack.
	stack := (*evalStack)[:0]
	for {
		parent := infoAt(vInfo.parent)
		stack = append(stack, vInfo)
		vInfo = parent
		if vInfo.parent < lastLinked {
			break
		}
	}

	// Path compression. Point each vertex's parent to the root and update its
	// label if any of its ancestors' label has a smaller semi.
	pInfo := vInfo
	pLabelInfo := infoAt(pInfo.label)
	for len(stack) > 0 {
		vInfo = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		vInfo.parent = pInfo.parent
		vLabelInfo := infoAt(vInfo.label)
		if pLabelInfo.semi < vLabelInfo.semi {
			vInfo.label = pInfo.label
		} else {
			pLabelInfo = vLabelInfo
		}
		pInfo = vInfo
	}
	*evalStack = stack
	return vInfo.label
}

// run computes semidominators and immediate dominators for the nodes
// numbered by previous runDFS calls.
func (s *semiNCA) run() {
	nextNum := len(s.numToNode)
	infoAt := func(num int) *sncaInfo { return &s.infos[s.t.nodeID(s.numToNode[num])] }

	// Initialize idoms to spanning tree parents.
	for i := 1; i < nextNum; i++ {
		vInfo := infoAt(i)
		if p := vInfo.parent; p != 0 {
			vInfo.idom = s.numToNode[p]
		} else {
			vInfo.idom = nil
		}
	}

	// Step 1: Calculate the semi-dominators of all vertices.
	evalStack := make([]*sncaInfo, 0, 32)
	for i := nextNum - 1; i >= 2; i-- {
		wInfo := infoAt(i)
		wInfo.semi = wInfo.parent
		for _, n := range wInfo.reverseChildren {
			if n == 0 {
				continue
			}
			semiU := infoAt(int(s.eval(n, uint32(i)+1, &evalStack))).semi
			if semiU < wInfo.semi {
				wInfo.semi = semiU
			}
		}
	}

	// Step 2: Explicitly define the immediate dominator of each vertex.
	//
	//	IDom[i] = NCA(SDom[i], SpanningTreeParent(i))
	//
	// Note that the parents were stored in the idoms and later got
	// invalidated during path compression in eval.
	for i := 2; i < nextNum; i++ {
		wInfo := infoAt(i)
		sDomNum := wInfo.semi
		candidate := wInfo.idom
		for s.info(candidate).num > sDomNum {
			candidate = s.info(candidate).idom
		}
		wInfo.idom = candidate
	}
}

// addVirtualRoot installs the virtual exit node every post-dominator tree is
// rooted at.
func (s *semiNCA) addVirtualRoot() {
	if !s.t.post {
		panic("BUG: virtual roots only exist in post-dominator trees")
	}
	if len(s.numToNode) != 1 {
		panic("BUG: semiNCA must be freshly constructed")
	}
	info := &s.infos[0]
	info.num, info.semi, info.label = 1, 1, 1
	s.numToNode = append(s.numToNode, nil)
}

func hasForwardSuccessors(blk *basicBlock) bool {
	return len(blk.success) != 0
}

// findRoots picks the CFG nodes the tree is grown from. For dominance that
// is the region entry. For post-dominance the trivial roots are the blocks
// without successors; blocks in infinite loops contribute non-trivial roots
// chosen as the furthest point reachable inside the loop, and roots that are
// reverse-reachable from other roots are dropped again.
func (s *semiNCA) findRoots() []*basicBlock {
	t := s.t
	if !t.post {
		return []*basicBlock{t.region.entry()}
	}

	snca := newSemiNCA(t)
	snca.addVirtualRoot()
	num := uint32(1)

	var roots []*basicBlock

	// Step 1: find all the trivial roots that definitely remain tree roots.
	total := 0
	for _, n := range t.region.blocks {
		if n.invalid {
			continue
		}
		total++
		if !hasForwardSuccessors(n) {
			roots = append(roots, n)
			// Run DFS not to walk this part of CFG later.
			num = snca.runDFS(n, num, alwaysDescend, 1, nil, false)
		}
	}

	// Step 2: find all non-trivial root candidates, i.e. CFG nodes that are
	// reverse-unreachable and were not visited by previous DFS walks. These
	// are the nodes inside infinite loops.
	hasNonTrivialRoots := total+1 != int(num)
	if hasNonTrivialRoots {
		// succOrder is the order of blocks in the region. It makes the choice
		// of the furthest away node immune to successor swaps. Initialized
		// lazily only when reverse-unreachable nodes exist.
		var succOrder map[*basicBlock]int
		initSuccOrder := func() map[*basicBlock]int {
			if succOrder != nil {
				return succOrder
			}
			succOrder = map[*basicBlock]int{}
			for _, n := range t.region.blocks {
				if !n.invalid && snca.info(n).num == 0 {
					for _, succ := range n.success {
						succOrder[succ] = 0
					}
				}
			}
			for i, n := range t.region.blocks {
				if _, ok := succOrder[n]; ok {
					succOrder[n] = i + 1
				}
			}
			return succOrder
		}

		for _, n := range t.region.blocks {
			if n.invalid || snca.info(n).num != 0 {
				continue
			}
			// Find the furthest away we can get by following successors, then
			// follow them in reverse. This gives a reasonable answer for the
			// post-dominance inside any infinite loop: we are guaranteed to
			// get to the farthest point along some path.
			newNum := snca.runDFS(n, num, alwaysDescend, num, initSuccOrder(), true)
			furthestAway := snca.numToNode[newNum]
			roots = append(roots, furthestAway)
			// Throw away the forward walk numbering before renumbering the
			// discovered component from its root.
			for i := newNum; i > num; i-- {
				blk := snca.numToNode[i]
				snca.infos[t.nodeID(blk)] = sncaInfo{}
				snca.numToNode = snca.numToNode[:len(snca.numToNode)-1]
			}
			num = snca.runDFS(furthestAway, num, alwaysDescend, 1, nil, false)
		}
	}

	if total+1 != int(num) {
		panic("BUG: not all CFG nodes were visited while finding roots")
	}

	// Step 3: if we found some non-trivial roots, make them non-redundant.
	if hasNonTrivialRoots {
		roots = s.removeRedundantRoots(roots)
	}
	return roots
}

// removeRedundantRoots drops non-trivial roots that are reverse-reachable
// from other roots, so the root set matches a from-scratch construction.
func (s *semiNCA) removeRedundantRoots(roots []*basicBlock) []*basicBlock {
	snca := newSemiNCA(s.t)
	for i := 0; i < len(roots); {
		root := roots[i]
		// Trivial roots are never redundant.
		if !hasForwardSuccessors(root) {
			i++
			continue
		}
		snca.clear()
		// Do a forward walk looking for the other roots.
		num := snca.runDFS(root, 0, alwaysDescend, 0, nil, true)
		removed := false
		for x := uint32(2); x <= num; x++ {
			n := snca.numToNode[x]
			for _, other := range roots {
				if other == n {
					// The current root is reverse-reachable from another one.
					roots[i] = roots[len(roots)-1]
					roots = roots[:len(roots)-1]
					removed = true
					break
				}
			}
			if removed {
				break
			}
		}
		if !removed {
			i++
		}
	}
	return roots
}

// doFullDFSWalk numbers every node reachable from the tree roots.
func (s *semiNCA) doFullDFSWalk(condition func(from, to *basicBlock) bool) {
	t := s.t
	if !t.post {
		if len(t.roots) != 1 {
			panic("BUG: dominators should have a single root")
		}
		s.runDFS(t.roots[0], 0, condition, 0, nil, false)
		return
	}
	s.addVirtualRoot()
	num := uint32(1)
	for _, root := range t.roots {
		num = s.runDFS(root, num, condition, 1, nil, false)
	}
}

// nodeForBlock returns the tree node for blk, creating it (and the nodes of
// its idom chain) from the computed idoms if needed. A nil blk resolves to
// the virtual root or the tree root.
func (s *semiNCA) nodeForBlock(blk *basicBlock) domNodeID {
	t := s.t
	if blk == nil {
		if id := t.getNode(nil); id != domNodeNone {
			return id
		}
		return t.root
	}
	if id := t.getNode(blk); id != domNodeNone {
		return id
	}
	idomNode := s.nodeForBlock(s.info(blk).idom)
	return t.createNode(blk, idomNode)
}

// attachNewSubtree creates tree nodes for every numbered block and hangs the
// subtree under attachTo.
func (s *semiNCA) attachNewSubtree(attachTo domNodeID) {
	t := s.t
	s.info(s.numToNode[1]).idom = t.nodes[attachTo].blk
	for _, w := range s.numToNode[1:] {
		if t.getNode(w) != domNodeNone {
			continue
		}
		idomNode := s.nodeForBlock(s.info(w).idom)
		t.createNode(w, idomNode)
	}
}

// reattachExistingSubtree rewires the idoms of already present nodes to the
// freshly computed ones, hanging the subtree root under attachTo.
func (s *semiNCA) reattachExistingSubtree(attachTo domNodeID) {
	t := s.t
	s.info(s.numToNode[1]).idom = t.nodes[attachTo].blk
	for _, n := range s.numToNode[1:] {
		id := t.getNode(n)
		idom := t.getNode(s.info(n).idom)
		if id == domNodeNone || idom == domNodeNone {
			panic("BUG: reattaching a subtree with absent nodes")
		}
		t.setIDom(id, idom)
	}
}

// hasProperSupport checks if the node is reachable from a predecessor that it
// does not dominate, as defined on page 3 and explained on page 7 of the
// dynamic dominators paper.
func (s *semiNCA) hasProperSupport(id domNodeID) bool {
	t := s.t
	blk := t.nodes[id].blk
	if blk == nil {
		return false
	}
	for _, pred := range t.cfgPreds(blk) {
		predID := t.getNode(pred)
		if predID == domNodeNone {
			continue
		}
		if support := t.findNCD(predID, id); support != id {
			return true
		}
	}
	return false
}

// insertEdge updates the tree after an edge insertion. For post-dominator
// trees from/to are in walk direction, i.e. the reversed CFG edge.
func (s *semiNCA) insertEdge(from, to *basicBlock) {
	t := s.t
	if t.post {
		from, to = to, from
	}
	fromID := t.getNode(from)
	if fromID == domNodeNone {
		// Ignore edges from unreachable nodes for (forward) dominators.
		if !t.post {
			return
		}
		// The unreachable node becomes a new root.
		fromID = t.createNode(from, t.root)
		t.roots = append(t.roots, from)
	}

	t.markInvalid()

	toID := t.getNode(to)
	if toID == domNodeNone {
		s.insertUnreachable(fromID, to)
	} else {
		s.insertReachable(fromID, toID)
	}
}

// insertUnreachable connects a previously unreachable subtree.
func (s *semiNCA) insertUnreachable(fromID domNodeID, to *basicBlock) {
	t := s.t
	// Discover the nodes that became reachable with the insertion, and
	// collect the discovered edges into already reachable nodes.
	type connectingEdge struct {
		from *basicBlock
		to   domNodeID
	}
	var discovered []connectingEdge

	snca := newSemiNCA(t)
	snca.runDFS(to, 0, func(from, to *basicBlock) bool {
		toID := t.getNode(to)
		if toID == domNodeNone {
			return true
		}
		discovered = append(discovered, connectingEdge{from, toID})
		return false
	}, 0, nil, false)
	snca.run()
	snca.attachNewSubtree(fromID)

	for _, e := range discovered {
		s.insertReachable(t.getNode(e.from), e.to)
	}
}

// insertReachable repairs the tree after inserting an edge between two
// reachable nodes, using depth based search with a bucket queue.
func (s *semiNCA) insertReachable(fromID, toID domNodeID) {
	t := s.t
	if t.post && s.updateRootsBeforeInsertion(toID) {
		return
	}

	var ncdID domNodeID
	if t.nodes[fromID].blk != nil && t.nodes[toID].blk != nil {
		ncdID = t.findNCD(fromID, toID)
	} else {
		ncdID = t.getNode(nil)
	}
	if ncdID == domNodeNone {
		panic("BUG: no common dominator for a reachable insertion")
	}
	if ncdID == toID {
		return
	}

	// Based on Lemma 2.5, after the insertion of (from, to), v is affected
	// iff depth(ncd)+1 < depth(v) and a path P from to to v exists where
	// every w on P satisfies depth(v) <= depth(w). This reduces to a widest
	// path problem solvable by a modified Dijkstra with a bucket queue,
	// named depth based search in the paper.
	//
	// to is on the path, so depth(ncd)+1 < depth(v) <= depth(to). Nothing is
	// affected if this does not hold.
	ncdLevel := t.nodes[ncdID].level
	if ncdLevel+1 >= t.nodes[toID].level {
		return
	}

	var bucket bucketQueue
	visited := map[domNodeID]bool{toID: true}
	var affected []domNodeID
	var unaffectedOnCurrentLevel []domNodeID
	bucket.push(toID, t.nodes[toID].level)

	for {
		id, ok := bucket.pop()
		if !ok {
			break
		}
		affected = append(affected, id)
		currentLevel := t.nodes[id].level
		node := id

		for {
			// Unlike regular Dijkstra, an inner loop expands more vertices:
			// the first iteration is for the affected vertex popped from the
			// bucket, the rest are for vertices in unaffectedOnCurrentLevel,
			// which may eventually expand to affected vertices.
			//
			// Invariant: there is an optimal path from to to node with the
			// minimum depth being currentLevel.
			for _, succ := range t.cfgSuccs(t.nodes[node].blk) {
				succID := t.getNode(succ)
				if succID == domNodeNone {
					panic("BUG: unreachable successor found during reachable insertion")
				}
				succLevel := t.nodes[succID].level
				// If depth(ncd)+1 < depth(succ) does not hold, succ is
				// unaffected and no affected vertex can be reached through
				// it. The first visit has the optimal path, so stop on
				// revisits too.
				if succLevel <= ncdLevel+1 || visited[succID] {
					continue
				}
				visited[succID] = true
				if succLevel > currentLevel {
					unaffectedOnCurrentLevel = append(unaffectedOnCurrentLevel, succID)
				} else {
					bucket.push(succID, succLevel)
				}
			}
			if len(unaffectedOnCurrentLevel) == 0 {
				break
			}
			node = unaffectedOnCurrentLevel[len(unaffectedOnCurrentLevel)-1]
			unaffectedOnCurrentLevel = unaffectedOnCurrentLevel[:len(unaffectedOnCurrentLevel)-1]
		}
	}

	for _, id := range affected {
		t.setIDom(id, ncdID)
	}
	if t.post {
		s.updateRootsAfterUpdate()
	}
}

// deleteEdge updates the tree after an edge deletion. For post-dominator
// trees from/to are in walk direction, i.e. the reversed CFG edge.
func (s *semiNCA) deleteEdge(from, to *basicBlock) {
	t := s.t
	if t.post {
		from, to = to, from
	}
	fromID := t.getNode(from)
	if fromID == domNodeNone {
		// Deletion in an unreachable subtree.
		return
	}
	toID := t.getNode(to)
	if toID == domNodeNone {
		// Already unreachable, there is no edge to delete.
		return
	}

	ncdID := t.findNCD(fromID, toID)
	// If to dominates from, nothing changes.
	if ncdID == toID {
		return
	}

	t.markInvalid()
	toIDom := t.nodes[toID].idom
	// to remains reachable after deletion (based on the caption under figure
	// 4 of the dynamic dominators paper).
	if fromID != toIDom || s.hasProperSupport(toID) {
		s.deleteReachable(fromID, toID)
	} else {
		s.deleteUnreachable(toID)
	}
	if t.post {
		s.updateRootsAfterUpdate()
	}
}

// deleteReachable handles deletions that leave the destination reachable by
// rebuilding the subtree under the NCD (lemma 2.6).
func (s *semiNCA) deleteReachable(fromID, toID domNodeID) {
	t := s.t
	// Find the top of the subtree that needs to be rebuilt.
	toIDomID := t.findNCD(fromID, toID)
	if toIDomID == domNodeNone {
		panic("BUG: no common dominator for a reachable deletion")
	}
	prevIDomSubtree := t.nodes[toIDomID].idom
	if prevIDomSubtree == domNodeNone {
		// Top of the subtree to rebuild is the root, rebuild from scratch.
		t.recompute()
		return
	}

	// Only visit nodes in the subtree starting at the NCD.
	level := t.nodes[toIDomID].level
	descendBelow := func(_, to *basicBlock) bool {
		id := t.getNode(to)
		return id != domNodeNone && t.nodes[id].level > level
	}

	snca := newSemiNCA(t)
	snca.runDFS(t.nodes[toIDomID].blk, 0, descendBelow, 0, nil, false)
	snca.run()
	snca.reattachExistingSubtree(prevIDomSubtree)
}

// deleteUnreachable handles deletions that make the destination unreachable
// (lemma 2.7): the subtree is erased and the remaining affected part is
// rebuilt.
func (s *semiNCA) deleteUnreachable(toID domNodeID) {
	t := s.t
	if t.post {
		// The deletion makes a region reverse-unreachable and creates a new
		// root. Simulate that by inserting an edge from the virtual root.
		t.roots = append(t.roots, t.nodes[toID].blk)
		s.insertReachable(t.root, toID)
		return
	}

	var affectedQueue []domNodeID
	level := t.nodes[toID].level

	// Traverse the destination's descendants with greater level and collect
	// the boundary nodes.
	descendAndCollect := func(_, to *basicBlock) bool {
		id := t.getNode(to)
		if id == domNodeNone {
			return false
		}
		if t.nodes[id].level > level {
			return true
		}
		for _, a := range affectedQueue {
			if a == id {
				return false
			}
		}
		affectedQueue = append(affectedQueue, id)
		return false
	}

	snca := newSemiNCA(t)
	toBlk := t.nodes[toID].blk
	lastDFSNum := snca.runDFS(toBlk, 0, descendAndCollect, 0, nil, false)

	// Identify the top of the subtree to rebuild by finding the NCD of all
	// the affected nodes.
	minID := toID
	for _, id := range affectedQueue {
		ncd := t.findNCD(id, toID)
		if ncd == domNodeNone {
			panic("BUG: no common dominator for an affected node")
		}
		if ncd != id && t.nodes[ncd].level < t.nodes[minID].level {
			minID = ncd
		}
	}

	// Root reached, rebuild the whole tree from scratch.
	if t.nodes[minID].idom == domNodeNone {
		t.recompute()
		return
	}

	// Erase the unreachable subtree in reverse preorder to process all
	// children before deleting their parent.
	for i := lastDFSNum; i >= 1; i-- {
		t.eraseNodeByID(t.getNode(snca.numToNode[i]))
	}

	// The affected subtree starts at the destination, no extra work to do.
	if minID == toID {
		return
	}

	minLevel := t.nodes[minID].level
	prevIDom := t.nodes[minID].idom
	snca.clear()

	// Rebuild the part of the affected subtree that remains.
	descendBelow := func(_, to *basicBlock) bool {
		id := t.getNode(to)
		return id != domNodeNone && t.nodes[id].level > minLevel
	}
	snca.runDFS(t.nodes[minID].blk, 0, descendBelow, 0, nil, false)
	snca.run()
	snca.reattachExistingSubtree(prevIDom)
}

// updateRootsBeforeInsertion rebuilds the whole tree when an insertion makes
// an existing post-dominator root reverse-reachable, which removes it from
// the root set.
func (s *semiNCA) updateRootsBeforeInsertion(toID domNodeID) bool {
	t := s.t
	// A node not attached to the virtual root cannot be a root.
	if t.nodes[toID].idom != t.root || t.nodes[t.root].blk != nil {
		return false
	}
	toBlk := t.nodes[toID].blk
	isRoot := false
	for _, r := range t.roots {
		if r == toBlk {
			isRoot = true
			break
		}
	}
	if !isRoot {
		return false
	}
	t.recompute()
	return true
}

// updateRootsAfterUpdate recomputes the root set after an update and
// rebuilds the tree when it changed. The incremental algorithm can make a
// different implicit decision about which node of an infinite loop becomes a
// root than a from-scratch construction would.
func (s *semiNCA) updateRootsAfterUpdate() {
	t := s.t
	hasNonTrivial := false
	for _, r := range t.roots {
		if r != nil && hasForwardSuccessors(r) {
			hasNonTrivial = true
			break
		}
	}
	if !hasNonTrivial {
		return
	}
	fresh := newSemiNCA(t).findRoots()
	if !sameBlockSet(t.roots, fresh) {
		t.recompute()
	}
}

func sameBlockSet(a, b []*basicBlock) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[*basicBlock]bool, len(a))
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		if !set[n] {
			return false
		}
	}
	return true
}

// bucketQueue pops the deepest node first. The slices involved are small, so
// a linear scan beats a heap here.
type bucketQueue struct {
	items  []domNodeID
	levels []uint32
}

func (q *bucketQueue) push(id domNodeID, level uint32) {
	q.items = append(q.items, id)
	q.levels = append(q.levels, level)
}

func (q *bucketQueue) pop() (domNodeID, bool) {
	if len(q.items) == 0 {
		return domNodeNone, false
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.levels[i] > q.levels[best] {
			best = i
		}
	}
	id := q.items[best]
	last := len(q.items) - 1
	q.items[best], q.levels[best] = q.items[last], q.levels[last]
	q.items, q.levels = q.items[:last], q.levels[:last]
	return id, true
}
