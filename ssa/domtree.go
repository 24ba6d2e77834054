package ssa

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrEmptyRegion is returned when a dominance structure is requested for a
// region with no blocks.
var ErrEmptyRegion = errors.New("region has no blocks")

// maxSlowQueries is the number of tree-walking dominance queries tolerated on
// an invalidated tree before the DFS numbers are eagerly recomputed.
const maxSlowQueries = 32

// domNodeID is the index of a node in the DominatorTree arena. Index 0 is the
// virtual root, block b lives at index b.id+1.
type domNodeID = int32

const domNodeNone domNodeID = -1

type domTreeNode struct {
	present  bool
	blk      *basicBlock // nil for the virtual root
	idom     domNodeID
	children []domNodeID
	level    uint32
	dfsIn    uint32
	dfsOut   uint32
}

// DominatorTree holds the dominance relation of the blocks of a single
// region, either forward dominance or post-dominance. Nodes live in a dense
// arena indexed by block ID, so lookups are O(1) and the tree holds no cyclic
// pointers.
type DominatorTree struct {
	b      *builder
	region *Region
	post   bool

	// roots are the CFG nodes the tree is grown from: the region entry for
	// forward dominance, the exits (including infinite loop picks) for
	// post-dominance. A nil entry stands for the virtual root.
	roots []*basicBlock

	nodes   []domTreeNode
	root    domNodeID
	hasRoot bool

	// valid is true while the dfsIn/dfsOut numbers reflect the tree shape.
	valid       bool
	slowQueries int
}

// VerificationLevel selects how much of the tree structure Verify checks.
type VerificationLevel byte

const (
	// VerificationLevelFast checks the DFS numbers and levels against a
	// freshly constructed tree.
	VerificationLevelFast VerificationLevel = iota
	// VerificationLevelBasic additionally checks the parent property.
	VerificationLevelBasic
	// VerificationLevelFull additionally checks the sibling property.
	VerificationLevelFull
)

// NewDominatorTree computes the dominator tree of the given region.
func NewDominatorTree(b Builder, r *Region) (*DominatorTree, error) {
	return newDomTree(b.(*builder), r, false)
}

// NewPostDominatorTree computes the post-dominator tree of the given region.
// The tree root is a virtual exit node represented by a nil block, which
// post-dominates all real exits including those of infinite loops.
func NewPostDominatorTree(b Builder, r *Region) (*DominatorTree, error) {
	return newDomTree(b.(*builder), r, true)
}

func newDomTree(b *builder, r *Region, post bool) (*DominatorTree, error) {
	if r.Empty() {
		return nil, errors.Wrapf(ErrEmptyRegion, "cannot compute %s", treeKind(post))
	}
	t := &DominatorTree{b: b, region: r, post: post}
	t.recompute()
	return t, nil
}

func treeKind(post bool) string {
	if post {
		return "post-dominator tree"
	}
	return "dominator tree"
}

// IsPostDominator returns true if this is a post-dominance tree.
func (t *DominatorTree) IsPostDominator() bool { return t.post }

// Region returns the region this tree was computed for.
func (t *DominatorTree) Region() *Region { return t.region }

func (t *DominatorTree) nodeID(blk *basicBlock) domNodeID {
	if blk == nil {
		return 0
	}
	return domNodeID(blk.id) + 1
}

func (t *DominatorTree) node(id domNodeID) *domTreeNode {
	if id == domNodeNone {
		panic("BUG: dereferencing an absent dominator tree node")
	}
	if int(id) >= len(t.nodes) {
		t.nodes = append(t.nodes, make([]domTreeNode, int(id)+1-len(t.nodes))...)
	}
	return &t.nodes[id]
}

func (t *DominatorTree) getNode(blk *basicBlock) domNodeID {
	id := t.nodeID(blk)
	if int(id) >= len(t.nodes) || !t.nodes[id].present {
		return domNodeNone
	}
	return id
}

// createNode adds a node for blk (nil for the virtual root) under idom, which
// may be domNodeNone for the tree root.
func (t *DominatorTree) createNode(blk *basicBlock, idom domNodeID) domNodeID {
	id := t.nodeID(blk)
	n := t.node(id)
	if n.present {
		panic("BUG: dominator tree node created twice for " + blkName(blk))
	}
	n.present = true
	n.blk = blk
	n.idom = idom
	n.children = n.children[:0]
	if idom != domNodeNone {
		parent := t.node(idom)
		parent.children = append(parent.children, id)
		n.level = parent.level + 1
	} else {
		n.level = 0
	}
	return id
}

func blkName(blk *basicBlock) string {
	if blk == nil {
		return "<virtual>"
	}
	return blk.Name()
}

// markInvalid flags the DFS numbers as stale. Queries fall back to walking
// the tree until updateDFSNumbers runs.
func (t *DominatorTree) markInvalid() {
	t.valid = false
}

// reset drops all nodes but keeps the arena storage.
func (t *DominatorTree) reset() {
	for i := range t.nodes {
		t.nodes[i] = domTreeNode{children: t.nodes[i].children[:0]}
	}
	t.roots = t.roots[:0]
	t.root, t.hasRoot = domNodeNone, false
	t.valid = false
	t.slowQueries = 0
}

// len returns the number of present nodes.
func (t *DominatorTree) len() (n int) {
	for i := range t.nodes {
		if t.nodes[i].present {
			n++
		}
	}
	return
}

// IsReachable returns true if blk has a node in the tree, i.e. it is
// reachable from the tree roots.
func (t *DominatorTree) IsReachable(blk BasicBlock) bool {
	return t.getNode(blk.(*basicBlock)) != domNodeNone
}

// ImmediateDominator returns the immediate dominator of blk, or nil when blk
// is a tree root, unreachable, or immediately dominated by the virtual root.
func (t *DominatorTree) ImmediateDominator(blk BasicBlock) BasicBlock {
	id := t.getNode(blk.(*basicBlock))
	if id == domNodeNone {
		return nil
	}
	idom := t.nodes[id].idom
	if idom == domNodeNone || t.nodes[idom].blk == nil {
		return nil
	}
	return t.nodes[idom].blk
}

// Level returns the depth of blk in the tree, with the root at level 0.
func (t *DominatorTree) Level(blk BasicBlock) uint32 {
	id := t.getNode(blk.(*basicBlock))
	if id == domNodeNone {
		panic("BUG: level of an unreachable block " + blk.Name())
	}
	return t.nodes[id].level
}

// Dominates returns true if a dominates b. A block dominates itself. An
// unreachable b is dominated by everything, while an unreachable a dominates
// nothing but unreachable blocks.
func (t *DominatorTree) Dominates(a, b BasicBlock) bool {
	return t.dominatesBlocks(a.(*basicBlock), b.(*basicBlock))
}

// ProperlyDominates returns true if a dominates b and a != b.
func (t *DominatorTree) ProperlyDominates(a, b BasicBlock) bool {
	if a == b {
		return false
	}
	return t.dominatesBlocks(a.(*basicBlock), b.(*basicBlock))
}

func (t *DominatorTree) dominatesBlocks(a, b *basicBlock) bool {
	if a == b {
		return true
	}
	bID := t.getNode(b)
	if bID == domNodeNone {
		return true
	}
	aID := t.getNode(a)
	if aID == domNodeNone {
		return false
	}
	return t.dominatesNodes(aID, bID)
}

func (t *DominatorTree) dominatesNodes(a, b domNodeID) bool {
	if a == b {
		return true
	}
	an, bn := &t.nodes[a], &t.nodes[b]
	if bn.idom == a {
		return true
	}
	if an.idom == b {
		return false
	}
	if an.level >= bn.level {
		return false
	}
	if t.valid {
		return an.dfsIn <= bn.dfsIn && bn.dfsOut <= an.dfsOut
	}

	// Walk b up to a's level. Count the slow queries so a frequently queried
	// stale tree renumbers itself.
	t.slowQueries++
	if t.slowQueries > maxSlowQueries {
		t.updateDFSNumbers()
		return an.dfsIn <= bn.dfsIn && bn.dfsOut <= an.dfsOut
	}
	cur := b
	for t.nodes[cur].level > an.level {
		cur = t.nodes[cur].idom
	}
	return cur == a
}

// DominatesPoint returns true if the definition of v is available at point p:
// either the block defining v strictly dominates p's block, or both are in
// the same block and v's definition comes first. Block parameters precede all
// instruction points of their block.
func (t *DominatorTree) DominatesPoint(b Builder, v Value, p ProgramPoint) bool {
	defBlk := b.DefBlock(v)
	if defBlk == nil {
		return false
	}
	db, pb := defBlk.(*basicBlock), p.block()
	if db != pb {
		return t.dominatesBlocks(db, pb)
	}
	defInstr := b.InstructionOfValue(v)
	if defInstr == nil {
		// Block params are defined at the start of the block.
		return p.kind != pointBlockStart
	}
	switch p.kind {
	case pointBlockStart:
		return false
	case pointBlockEnd:
		return true
	}
	if p.instr == defInstr {
		return p.kind == pointAfterInstr
	}
	for cur := defInstr.next; cur != nil; cur = cur.next {
		if cur == p.instr {
			return true
		}
	}
	return false
}

// FindNearestCommonDominator returns the closest block dominating both a and
// b, or nil when the only common dominator is the virtual root of a
// post-dominance tree.
func (t *DominatorTree) FindNearestCommonDominator(a, b BasicBlock) BasicBlock {
	id := t.findNCD(t.getNode(a.(*basicBlock)), t.getNode(b.(*basicBlock)))
	if id == domNodeNone {
		return nil
	}
	if blk := t.nodes[id].blk; blk != nil {
		return blk
	}
	return nil
}

func (t *DominatorTree) findNCD(a, b domNodeID) domNodeID {
	if a == domNodeNone || b == domNodeNone {
		return domNodeNone
	}
	for t.nodes[a].level > t.nodes[b].level {
		a = t.nodes[a].idom
		if a == domNodeNone {
			return domNodeNone
		}
	}
	for t.nodes[b].level > t.nodes[a].level {
		b = t.nodes[b].idom
		if b == domNodeNone {
			return domNodeNone
		}
	}
	for a != b {
		a, b = t.nodes[a].idom, t.nodes[b].idom
		if a == domNodeNone || b == domNodeNone {
			return domNodeNone
		}
	}
	return a
}

// Descendants returns blk and every block dominated by it, in preorder.
func (t *DominatorTree) Descendants(blk BasicBlock) (ret []BasicBlock) {
	id := t.getNode(blk.(*basicBlock))
	if id == domNodeNone {
		return nil
	}
	stack := []domNodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b := t.nodes[n].blk; b != nil {
			ret = append(ret, b)
		}
		for i := len(t.nodes[n].children) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[n].children[i])
		}
	}
	return
}

// Preorder invokes fn for each reachable block in tree preorder. The virtual
// root of a post-dominance tree is skipped.
func (t *DominatorTree) Preorder(fn func(blk BasicBlock)) {
	if !t.hasRoot {
		return
	}
	stack := []domNodeID{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b := t.nodes[n].blk; b != nil {
			fn(b)
		}
		for i := len(t.nodes[n].children) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[n].children[i])
		}
	}
}

// Postorder invokes fn for each reachable block in tree postorder, children
// before their parents.
func (t *DominatorTree) Postorder(fn func(blk BasicBlock)) {
	if !t.hasRoot {
		return
	}
	type frame struct {
		id   domNodeID
		next int
	}
	stack := []frame{{id: t.root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := &t.nodes[top.id]
		if top.next < len(n.children) {
			child := n.children[top.next]
			top.next++
			stack = append(stack, frame{id: child})
			continue
		}
		if n.blk != nil {
			fn(n.blk)
		}
		stack = stack[:len(stack)-1]
	}
}

// updateDFSNumbers assigns preorder in/out intervals so dominance queries
// become two integer comparisons.
func (t *DominatorTree) updateDFSNumbers() {
	if !t.hasRoot {
		return
	}
	type frame struct {
		id   domNodeID
		next int
	}
	var num uint32
	stack := []frame{{id: t.root}}
	t.nodes[t.root].dfsIn = num
	num++
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := &t.nodes[top.id]
		if top.next < len(n.children) {
			child := n.children[top.next]
			top.next++
			t.nodes[child].dfsIn = num
			num++
			stack = append(stack, frame{id: child})
			continue
		}
		n.dfsOut = num
		num++
		stack = stack[:len(stack)-1]
	}
	t.valid = true
	t.slowQueries = 0
}

// setIDom reparents the node and fixes up the levels of its subtree.
func (t *DominatorTree) setIDom(id, newIDom domNodeID) {
	n := &t.nodes[id]
	if n.idom == newIDom {
		return
	}
	if n.idom != domNodeNone {
		old := &t.nodes[n.idom]
		for i, c := range old.children {
			if c == id {
				old.children = append(old.children[:i], old.children[i+1:]...)
				break
			}
		}
	}
	n.idom = newIDom
	parent := &t.nodes[newIDom]
	parent.children = append(parent.children, id)
	t.updateLevels(id)
	t.markInvalid()
}

func (t *DominatorTree) updateLevels(id domNodeID) {
	stack := []domNodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.nodes[n]
		if node.idom != domNodeNone {
			node.level = t.nodes[node.idom].level + 1
		} else {
			node.level = 0
		}
		stack = append(stack, node.children...)
	}
}

// ChangeImmediateDominator makes newIDom the immediate dominator of blk. The
// caller is responsible for the CFG actually justifying the new relation.
func (t *DominatorTree) ChangeImmediateDominator(blk, newIDom BasicBlock) {
	id := t.getNode(blk.(*basicBlock))
	idom := t.getNode(newIDom.(*basicBlock))
	if id == domNodeNone || idom == domNodeNone {
		panic("BUG: ChangeImmediateDominator on an unreachable block")
	}
	t.setIDom(id, idom)
}

// AddNewBlock adds a node for a block freshly inserted into the CFG whose
// only predecessor is domBB, in O(1).
func (t *DominatorTree) AddNewBlock(blk, domBB BasicBlock) {
	idom := t.getNode(domBB.(*basicBlock))
	if idom == domNodeNone {
		panic("BUG: AddNewBlock under an unreachable block " + domBB.Name())
	}
	t.createNode(blk.(*basicBlock), idom)
	t.markInvalid()
}

// SplitBlock updates the tree after newBB was inserted on the edges into its
// single successor: every former predecessor of the successor now branches to
// newBB, and newBB jumps to the successor.
func (t *DominatorTree) SplitBlock(newBB BasicBlock) {
	blk := newBB.(*basicBlock)
	if len(blk.success) != 1 {
		panic("BUG: SplitBlock expects a single successor")
	}
	succ := blk.success[0]

	// The new node sits at the NCD of its reachable predecessors.
	idom := domNodeNone
	for i := range blk.preds {
		p := t.getNode(blk.preds[i].blk)
		if p == domNodeNone {
			continue
		}
		if idom == domNodeNone {
			idom = p
		} else {
			idom = t.findNCD(idom, p)
		}
	}
	if idom == domNodeNone {
		panic("BUG: SplitBlock with no reachable predecessors")
	}
	t.createNode(blk, idom)
	if len(succ.preds) == 1 && succ.preds[0].blk == blk {
		t.setIDom(t.getNode(succ), t.getNode(blk))
	}
	t.markInvalid()
}

// EraseNode removes the node of blk. The node must be a leaf.
func (t *DominatorTree) EraseNode(blk BasicBlock) {
	id := t.getNode(blk.(*basicBlock))
	if id == domNodeNone {
		panic("BUG: erasing an unreachable block " + blk.Name())
	}
	t.eraseNodeByID(id)
}

func (t *DominatorTree) eraseNodeByID(id domNodeID) {
	n := &t.nodes[id]
	if len(n.children) != 0 {
		panic("BUG: erasing a dominator tree node with children")
	}
	if n.idom != domNodeNone {
		parent := &t.nodes[n.idom]
		for i, c := range parent.children {
			if c == id {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
	blk := n.blk
	*n = domTreeNode{children: n.children[:0]}
	for i, r := range t.roots {
		if r == blk {
			t.roots = append(t.roots[:i], t.roots[i+1:]...)
			break
		}
	}
	t.markInvalid()
}

// CFGUpdateKind tells whether a CFG update inserted or deleted an edge.
type CFGUpdateKind byte

const (
	CFGUpdateInsert CFGUpdateKind = iota
	CFGUpdateDelete
)

// CFGUpdate describes one already-applied CFG edge mutation.
type CFGUpdate struct {
	Kind     CFGUpdateKind
	From, To BasicBlock
}

// InsertEdge updates the tree after the CFG edge from -> to was added.
func (t *DominatorTree) InsertEdge(from, to BasicBlock) {
	snca := newSemiNCA(t)
	snca.insertEdge(from.(*basicBlock), to.(*basicBlock))
}

// DeleteEdge updates the tree after the CFG edge from -> to was removed.
func (t *DominatorTree) DeleteEdge(from, to BasicBlock) {
	snca := newSemiNCA(t)
	snca.deleteEdge(from.(*basicBlock), to.(*basicBlock))
}

// ApplyUpdates applies a batch of CFG edge updates. Large batches relative to
// the tree size trigger a full recomputation instead, which is cheaper than
// an update-by-update repair.
func (t *DominatorTree) ApplyUpdates(updates []CFGUpdate) {
	switch n := len(updates); {
	case n == 0:
		return
	case n == 1:
		t.applyUpdate(updates[0])
		return
	}
	size := t.len()
	if size <= 100 {
		if len(updates) > size {
			t.recompute()
			return
		}
	} else if len(updates) > size/40 {
		t.recompute()
		return
	}
	for _, u := range updates {
		t.applyUpdate(u)
	}
}

func (t *DominatorTree) applyUpdate(u CFGUpdate) {
	switch u.Kind {
	case CFGUpdateInsert:
		t.InsertEdge(u.From, u.To)
	case CFGUpdateDelete:
		t.DeleteEdge(u.From, u.To)
	default:
		panic("BUG: unknown CFG update kind")
	}
}

// Verify checks the tree against a freshly constructed one, to the depth
// requested by the level.
func (t *DominatorTree) Verify(level VerificationLevel) error {
	fresh, err := newDomTree(t.b, t.region, t.post)
	if err != nil {
		return err
	}
	if err := t.compareWith(fresh); err != nil {
		return err
	}
	if level >= VerificationLevelBasic {
		if err := t.verifyParentProperty(); err != nil {
			return err
		}
	}
	if level >= VerificationLevelFull {
		if err := t.verifySiblingProperty(); err != nil {
			return err
		}
	}
	return nil
}

func (t *DominatorTree) compareWith(fresh *DominatorTree) error {
	max := len(t.nodes)
	if len(fresh.nodes) > max {
		max = len(fresh.nodes)
	}
	for i := 0; i < max; i++ {
		var a, b *domTreeNode
		if i < len(t.nodes) {
			a = &t.nodes[i]
		}
		if i < len(fresh.nodes) {
			b = &fresh.nodes[i]
		}
		aPresent := a != nil && a.present
		bPresent := b != nil && b.present
		if aPresent != bPresent {
			return errors.Errorf("%s: node %d reachability differs from a fresh tree", treeKind(t.post), i)
		}
		if !aPresent {
			continue
		}
		if a.idom != b.idom {
			return errors.Errorf("%s: node %s has idom %d, fresh tree has %d",
				treeKind(t.post), blkName(a.blk), a.idom, b.idom)
		}
		if a.level != b.level {
			return errors.Errorf("%s: node %s has level %d, fresh tree has %d",
				treeKind(t.post), blkName(a.blk), a.level, b.level)
		}
	}
	if t.valid {
		if err := t.verifyDFSNumbers(); err != nil {
			return err
		}
	}
	return nil
}

// verifyDFSNumbers checks that the in/out intervals are properly nested and
// sized, so interval containment agrees with tree ancestry.
func (t *DominatorTree) verifyDFSNumbers() error {
	for id := range t.nodes {
		n := &t.nodes[id]
		if !n.present {
			continue
		}
		if n.dfsIn >= n.dfsOut {
			return errors.Errorf("node %s has an empty DFS interval", blkName(n.blk))
		}
		children := append([]domNodeID(nil), n.children...)
		sort.Slice(children, func(i, j int) bool {
			return t.nodes[children[i]].dfsIn < t.nodes[children[j]].dfsIn
		})
		lo := n.dfsIn
		for _, c := range children {
			cn := &t.nodes[c]
			if cn.dfsIn <= lo {
				return errors.Errorf("node %s has overlapping child DFS intervals", blkName(n.blk))
			}
			if cn.dfsOut >= n.dfsOut {
				return errors.Errorf("node %s escapes the DFS interval of its parent %s",
					blkName(cn.blk), blkName(n.blk))
			}
			lo = cn.dfsOut
		}
	}
	return nil
}

// verifyParentProperty checks that removing a node's immediate dominator from
// the CFG makes the node unreachable from the roots.
func (t *DominatorTree) verifyParentProperty() error {
	for id := range t.nodes {
		n := &t.nodes[id]
		if !n.present || n.idom == domNodeNone {
			continue
		}
		skip := t.nodes[n.idom].blk
		if skip == nil {
			continue
		}
		reached := t.cfgReachableSkipping(skip)
		for _, d := range t.descendantIDs(domNodeID(id)) {
			if blk := t.nodes[d].blk; blk != nil && reached[blk] {
				return errors.Errorf("parent property violated: %s is reachable without its idom %s",
					blkName(blk), blkName(skip))
			}
		}
	}
	return nil
}

// verifySiblingProperty checks that no node's subtree becomes unreachable
// when a sibling subtree root is removed from the CFG.
func (t *DominatorTree) verifySiblingProperty() error {
	for id := range t.nodes {
		n := &t.nodes[id]
		if !n.present {
			continue
		}
		for _, skipID := range n.children {
			skip := t.nodes[skipID].blk
			if skip == nil {
				continue
			}
			reached := t.cfgReachableSkipping(skip)
			for _, sibling := range n.children {
				if sibling == skipID {
					continue
				}
				for _, d := range t.descendantIDs(sibling) {
					if blk := t.nodes[d].blk; blk != nil && !reached[blk] {
						return errors.Errorf("sibling property violated: %s is dominated by its sibling %s",
							blkName(blk), blkName(skip))
					}
				}
			}
		}
	}
	return nil
}

func (t *DominatorTree) descendantIDs(id domNodeID) (ret []domNodeID) {
	stack := []domNodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ret = append(ret, n)
		stack = append(stack, t.nodes[n].children...)
	}
	return
}

// cfgReachableSkipping walks the CFG from the tree roots, never entering
// skip, and returns the set of visited blocks.
func (t *DominatorTree) cfgReachableSkipping(skip *basicBlock) map[*basicBlock]bool {
	reached := map[*basicBlock]bool{}
	var stack []*basicBlock
	for _, r := range t.roots {
		if r != nil && r != skip {
			stack = append(stack, r)
			reached[r] = true
		}
	}
	for len(stack) > 0 {
		blk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range t.cfgSuccs(blk) {
			if succ == skip || reached[succ] {
				continue
			}
			reached[succ] = true
			stack = append(stack, succ)
		}
	}
	return reached
}

// cfgSuccs returns the walk-forward neighbors for this tree's direction:
// successors for dominance, predecessors for post-dominance.
func (t *DominatorTree) cfgSuccs(blk *basicBlock) []*basicBlock {
	if t.post {
		ret := make([]*basicBlock, len(blk.preds))
		for i := range blk.preds {
			ret[i] = blk.preds[i].blk
		}
		return ret
	}
	return blk.success
}

// cfgPreds is the inverse of cfgSuccs.
func (t *DominatorTree) cfgPreds(blk *basicBlock) []*basicBlock {
	if t.post {
		return blk.success
	}
	ret := make([]*basicBlock, len(blk.preds))
	for i := range blk.preds {
		ret[i] = blk.preds[i].blk
	}
	return ret
}

// recompute rebuilds the whole tree from the CFG.
func (t *DominatorTree) recompute() {
	t.reset()
	snca := newSemiNCA(t)
	t.roots = snca.findRoots()
	snca.doFullDFSWalk(alwaysDescend)
	snca.run()

	if len(t.roots) == 0 {
		return
	}
	var rootBlk *basicBlock
	if !t.post {
		rootBlk = t.roots[0]
	}
	t.root = t.createNode(rootBlk, domNodeNone)
	t.hasRoot = true
	snca.attachNewSubtree(t.root)
	t.updateDFSNumbers()
}

// String renders the tree for debugging.
func (t *DominatorTree) String() string {
	var str strings.Builder
	str.WriteString(treeKind(t.post))
	str.WriteByte('\n')
	if !t.hasRoot {
		return str.String()
	}
	var walk func(id domNodeID, depth int)
	walk = func(id domNodeID, depth int) {
		n := &t.nodes[id]
		fmt.Fprintf(&str, "%s%s {level=%d}\n", strings.Repeat("  ", depth), blkName(n.blk), n.level)
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)
	return str.String()
}
