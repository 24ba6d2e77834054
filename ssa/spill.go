package ssa

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Placement says where a spill or reload is to be materialized: either at an
// existing program point, or inside the block created by splitting a CFG
// edge. Split placements refer to a SplitInfo by index since the block does
// not exist until the transform runs.
type Placement struct {
	point ProgramPoint
	split int
}

// PlaceAt returns a placement at an existing program point.
func PlaceAt(p ProgramPoint) Placement {
	return Placement{point: p, split: -1}
}

// PlaceOnSplit returns a placement inside the i-th edge split of the
// analysis, before the split block's terminator.
func PlaceOnSplit(i int) Placement {
	return Placement{split: i}
}

func (p Placement) String() string {
	if p.split >= 0 {
		return fmt.Sprintf("split(%d)", p.split)
	}
	return p.point.String()
}

// SplitInfo is one CFG edge to split. Split is nil until the transform
// materializes the block.
type SplitInfo struct {
	Edge  CFGEdge
	Split *basicBlock
}

// SpillInfo is one spill of Value to materialize at Placement.
type SpillInfo struct {
	Value     Value
	Placement Placement
}

// ReloadInfo is one reload of Value to materialize at Placement.
type ReloadInfo struct {
	Value     Value
	Placement Placement
}

// SpillAnalysis is the placement plan the spill transform executes: which
// edges to split, which values to spill where, and where copies of them are
// reloaded. A register allocator builds it from the next-use distances; the
// transform itself does not choose placements, it only realizes them and
// repairs the SSA form afterwards.
type SpillAnalysis struct {
	splits  []SplitInfo
	spilled map[Value]struct{}
	spills  []SpillInfo
	reloads []ReloadInfo
}

// NewSpillAnalysis returns an empty placement plan.
func NewSpillAnalysis() *SpillAnalysis {
	return &SpillAnalysis{spilled: map[Value]struct{}{}}
}

// AddSplit schedules the edge from -> to for splitting and returns the index
// to refer to it in split placements.
func (sa *SpillAnalysis) AddSplit(from, to BasicBlock) int {
	sa.splits = append(sa.splits, SplitInfo{
		Edge: CFGEdge{From: from.(*basicBlock), To: to.(*basicBlock)},
	})
	return len(sa.splits) - 1
}

// AddSpill schedules v to be spilled at p.
func (sa *SpillAnalysis) AddSpill(v Value, p Placement) {
	sa.spilled[v] = struct{}{}
	sa.spills = append(sa.spills, SpillInfo{Value: v, Placement: p})
}

// AddReload schedules a fresh copy of v to be reloaded at p.
func (sa *SpillAnalysis) AddReload(v Value, p Placement) {
	sa.spilled[v] = struct{}{}
	sa.reloads = append(sa.reloads, ReloadInfo{Value: v, Placement: p})
}

// Spilled returns true if v is spilled somewhere in this plan.
func (sa *SpillAnalysis) Spilled(v Value) bool {
	_, ok := sa.spilled[v]
	return ok
}

// Splits returns the scheduled edge splits, with Split filled in after the
// transform ran.
func (sa *SpillAnalysis) Splits() []SplitInfo { return sa.splits }

// Spills returns the scheduled spills.
func (sa *SpillAnalysis) Spills() []SpillInfo { return sa.spills }

// Reloads returns the scheduled reloads.
func (sa *SpillAnalysis) Reloads() []ReloadInfo { return sa.reloads }

// SpillLowering lowers the surviving pseudo instructions to real code, in
// place, once the transform has decided which ones to keep.
type SpillLowering interface {
	// LowerSpill rewrites a Spill pseudo instruction.
	LowerSpill(b Builder, spill *Instruction) error
	// LowerReload rewrites a Reload pseudo instruction, keeping its result
	// value.
	LowerReload(b Builder, reload *Instruction) error
}

// StackSlotLowering lowers spills to stores and reloads to loads through a
// base pointer, assigning each spilled value a fixed 8 byte slot.
type StackSlotLowering struct {
	base  Value
	slots map[Value]uint32
	next  uint32
}

// NewStackSlotLowering returns a lowering storing spilled values at
// base+slot, where base is a pointer typed value available in the whole
// function, e.g. a dedicated parameter.
func NewStackSlotLowering(base Value) *StackSlotLowering {
	return &StackSlotLowering{base: base, slots: map[Value]uint32{}}
}

func (l *StackSlotLowering) slot(v Value) uint32 {
	if off, ok := l.slots[v]; ok {
		return off
	}
	off := l.next
	l.next += 8
	l.slots[v] = off
	return off
}

// LowerSpill implements SpillLowering.
func (l *StackSlotLowering) LowerSpill(_ Builder, spill *Instruction) error {
	v := spill.v
	spill.AsStore(v, l.base, l.slot(v))
	return nil
}

// LowerReload implements SpillLowering.
func (l *StackSlotLowering) LowerReload(_ Builder, reload *Instruction) error {
	v := reload.v
	reload.AsLoad(l.base, l.slot(v), v.Type())
	return nil
}

// TransformSpills realizes the placement plan on the body of fn:
//
//  1. the scheduled CFG edges are split,
//  2. spill and reload pseudo instructions are inserted at their placements,
//  3. uses of spilled values reached by a reload are rewritten to the
//     reloaded copy, inserting block parameters where copies from different
//     paths meet, so the function is in SSA form again afterwards,
//  4. reloads whose copy is never used are removed, and spills that no
//     surviving reload can observe are removed with them; the survivors are
//     handed to the lowering.
//
// It returns whether the function was modified. A nil logger disables
// logging.
func TransformSpills(b Builder, fn *Function, analysis *SpillAnalysis, lowering SpillLowering, log *zap.Logger) (bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if fn.Declaration() {
		return false, errors.Errorf("cannot transform declaration %s", fn.Name())
	}
	bl := b.(*builder)

	if err := splitScheduledEdges(bl, analysis); err != nil {
		return false, err
	}

	spillInstrs, reloadInstrs, err := materialize(bl, analysis)
	if err != nil {
		return false, err
	}
	log.Debug("materialized spill plan",
		zap.String("function", fn.Name()),
		zap.Int("splits", len(analysis.splits)),
		zap.Int("spills", len(spillInstrs)),
		zap.Int("reloads", len(reloadInstrs)))

	rw := &spillRewriter{
		b:            bl,
		spilled:      analysis.spilled,
		usedReloads:  map[*Instruction]struct{}{},
		phiParams:    map[*basicBlock]map[Value]Value{},
		trees:        map[*Region]*DominatorTree{},
		phisInserted: 0,
	}
	leftover, err := rw.rewriteRegion(fn.Body())
	if err != nil {
		return false, err
	}
	if len(leftover) > 0 {
		for v := range leftover {
			return false, errors.Errorf("use of v%d is not dominated by its definition", v.id())
		}
	}

	survivors := pruneDeadSpills(rw, spillInstrs, reloadInstrs)
	log.Debug("pruned spill plan",
		zap.String("function", fn.Name()),
		zap.Int("phis", rw.phisInserted),
		zap.Int("surviving", survivors))

	for _, instr := range spillInstrs {
		if instr == nil {
			continue
		}
		if err := lowering.LowerSpill(b, instr); err != nil {
			return false, errors.Wrap(err, "lowering spill")
		}
	}
	for _, instr := range reloadInstrs {
		if instr == nil {
			continue
		}
		if err := lowering.LowerReload(b, instr); err != nil {
			return false, errors.Wrap(err, "lowering reload")
		}
	}

	changed := len(analysis.splits) > 0 || survivors > 0 || rw.phisInserted > 0
	return changed, nil
}

// splitScheduledEdges creates one block on every scheduled edge. The branch
// of the predecessor is retargeted to the new block, and the forwarded args
// move onto the unconditional jump the new block ends with, so the target's
// parameters keep their inputs.
func splitScheduledEdges(b *builder, analysis *SpillAnalysis) error {
	for i := range analysis.splits {
		sp := &analysis.splits[i]
		from, to := sp.Edge.From, sp.Edge.To

		var branch *Instruction
		for j := range to.preds {
			if to.preds[j].blk == from {
				branch = to.preds[j].branch
				break
			}
		}
		if branch == nil {
			return errors.Errorf("cannot split %s: no branch between the blocks", sp.Edge)
		}

		split := b.allocateBasicBlockIn(from.region)
		args := branch.vs

		to.removePred(branch)
		branch.setBranchTarget(split)
		branch.vs = nil
		split.preds = append(split.preds, basicBlockPredecessorInfo{blk: from, branch: branch})
		from.success = append(from.success, split)

		jump := b.AllocateInstruction()
		jump.AsJump(args, to)
		split.insertInstruction(jump)
		to.preds = append(to.preds, basicBlockPredecessorInfo{blk: split, branch: jump})
		split.success = append(split.success, to)

		sp.Split = split
	}
	return nil
}

// materialize inserts the pseudo instructions of the plan, returning them in
// plan order.
func materialize(b *builder, analysis *SpillAnalysis) (spills, reloads []*Instruction, err error) {
	spills = make([]*Instruction, len(analysis.spills))
	for i := range analysis.spills {
		info := &analysis.spills[i]
		instr := b.AllocateInstruction()
		instr.AsSpill(info.Value)
		if err = placeInstruction(b, analysis, instr, info.Placement); err != nil {
			return
		}
		spills[i] = instr
	}
	reloads = make([]*Instruction, len(analysis.reloads))
	for i := range analysis.reloads {
		info := &analysis.reloads[i]
		instr := b.AllocateInstruction()
		instr.AsReload(info.Value)
		if err = placeInstruction(b, analysis, instr, info.Placement); err != nil {
			return
		}
		b.assignResults(instr)
		reloads[i] = instr
	}
	return
}

func placeInstruction(b *builder, analysis *SpillAnalysis, instr *Instruction, p Placement) error {
	if p.split >= 0 {
		if p.split >= len(analysis.splits) || analysis.splits[p.split].Split == nil {
			return errors.Errorf("placement refers to split %d which does not exist", p.split)
		}
		blk := analysis.splits[p.split].Split
		blk.insertInstructionBefore(instr, blk.currentInstr)
		return nil
	}
	switch p.point.kind {
	case pointBeforeInstr:
		p.point.instr.parent.insertInstructionBefore(instr, p.point.instr)
	case pointAfterInstr:
		p.point.instr.parent.insertInstructionAfter(instr, p.point.instr)
	case pointBlockStart:
		blk := p.point.blk
		if blk.rootInstr == nil {
			blk.insertInstruction(instr)
		} else {
			blk.insertInstructionBefore(instr, blk.rootInstr)
		}
	case pointBlockEnd:
		blk := p.point.blk
		if blk.currentInstr == nil {
			blk.insertInstruction(instr)
		} else {
			// Before the terminator, so control still reaches it.
			blk.insertInstructionBefore(instr, blk.currentInstr)
		}
	default:
		return errors.New("placement has no position")
	}
	return nil
}

// spillRewriter repairs the SSA form after reloads were inserted: every use
// of a spilled value reached by a reloaded copy must refer to the copy. It
// walks each region's dominator tree bottom up carrying, per value, the use
// sites not yet covered by a definition. A reload covers the pending uses of
// its value below it; the original definition, or a block parameter standing
// for the value, covers the rest.
type spillRewriter struct {
	b       *builder
	spilled map[Value]struct{}

	// usedReloads are the reloads whose copy rewrote at least one use.
	usedReloads map[*Instruction]struct{}
	// phiParams maps, per block, a spilled value to the parameter inserted
	// to merge its copies.
	phiParams    map[*basicBlock]map[Value]Value
	trees        map[*Region]*DominatorTree
	phisInserted int
}

// pendingUses maps a spilled value to the operand slots awaiting the
// definition that covers them.
type pendingUses map[Value][]*Value

func mergePending(dst, src pendingUses) pendingUses {
	if dst == nil {
		return src
	}
	for v, slots := range src {
		dst[v] = append(dst[v], slots...)
	}
	return dst
}

func (rw *spillRewriter) treeOf(r *Region) (*DominatorTree, error) {
	if t, ok := rw.trees[r]; ok {
		return t, nil
	}
	t, err := NewDominatorTree(rw.b, r)
	if err != nil {
		return nil, errors.Wrapf(err, "building dominator tree of %s", r.Name())
	}
	rw.trees[r] = t
	return t, nil
}

// rewriteRegion rewrites all blocks of r and the regions nested in them,
// returning the uses still pending at the region's entry.
func (rw *spillRewriter) rewriteRegion(r *Region) (pendingUses, error) {
	if r == nil || r.Empty() {
		return nil, nil
	}
	if err := rw.insertRequiredPhis(r); err != nil {
		return nil, err
	}
	t, err := rw.treeOf(r)
	if err != nil {
		return nil, err
	}

	// Postorder over the dominator tree: every block is scanned after all
	// the blocks it dominates, so their pending uses flow to it.
	pendingOf := map[*basicBlock]pendingUses{}
	var entryPending pendingUses
	var walkErr error
	t.Postorder(func(bb BasicBlock) {
		if walkErr != nil {
			return
		}
		blk := bb.(*basicBlock)
		pending := pendingOf[blk]
		if pending == nil {
			pending = pendingUses{}
		}
		pending, err := rw.scanBlock(blk, pending)
		if err != nil {
			walkErr = err
			return
		}
		idom := t.ImmediateDominator(bb)
		if idom == nil {
			entryPending = pending
			return
		}
		parent := idom.(*basicBlock)
		pendingOf[parent] = mergePending(pendingOf[parent], pending)
	})
	return entryPending, walkErr
}

// insertRequiredPhis adds a block parameter for every spilled value at each
// block of the iterated dominance frontier of the value's definition and
// reload blocks in r. Copies of the value reaching such a block on different
// paths merge there. The predecessors forward the original value for now;
// the rewrite pass replaces those args with whatever copy reaches each
// predecessor.
func (rw *spillRewriter) insertRequiredPhis(r *Region) error {
	byValue := map[Value][]BasicBlock{}
	for _, blk := range r.blocks {
		if blk.invalid {
			continue
		}
		for instr := blk.rootInstr; instr != nil; instr = instr.next {
			if instr.opcode == OpcodeReload {
				byValue[instr.v] = append(byValue[instr.v], blk)
			}
		}
	}
	if len(byValue) == 0 {
		return nil
	}
	t, err := rw.treeOf(r)
	if err != nil {
		return err
	}
	frontier := NewDominanceFrontier(t)

	for _, v := range sortedValueKeys(byValue) {
		set := byValue[v]
		if defBlk := rw.b.DefBlock(v); defBlk != nil && defBlk.(*basicBlock).region == r {
			set = append(set, defBlk)
		}
		for _, pb := range frontier.IterateAll(set) {
			blk := pb.(*basicBlock)
			if _, ok := rw.phiParams[blk][v]; ok {
				continue
			}
			param := blk.AddParam(rw.b, v.Type())
			for j := range blk.preds {
				br := blk.preds[j].branch
				br.vs = append(br.vs, v)
			}
			params := rw.phiParams[blk]
			if params == nil {
				params = map[Value]Value{}
				rw.phiParams[blk] = params
			}
			params[v] = param
			rw.phisInserted++
		}
	}
	return nil
}

// scanBlock scans blk backward. pending holds the uses of spilled values
// collected from the blocks blk dominates; uses found in blk join them, and
// each definition encountered on the way up covers the pending uses of its
// value.
func (rw *spillRewriter) scanBlock(blk *basicBlock, pending pendingUses) (pendingUses, error) {
	for instr := blk.currentInstr; instr != nil; instr = instr.prev {
		if instr.opcode == OpcodeReload {
			v := instr.v
			if slots := pending[v]; len(slots) > 0 {
				res := instr.rValue
				for _, slot := range slots {
					*slot = res
				}
				delete(pending, v)
				rw.usedReloads[instr] = struct{}{}
			}
			// The reload itself keeps reading the original value.
			continue
		}
		for _, nested := range instr.regions {
			nestedPending, err := rw.rewriteRegion(nested)
			if err != nil {
				return nil, err
			}
			pending = mergePending(pending, nestedPending)
		}
		for _, res := range instrResults(instr) {
			delete(pending, res)
		}
		instr.forEachOperand(func(slot *Value) {
			if _, ok := rw.spilled[*slot]; ok {
				pending[*slot] = append(pending[*slot], slot)
			}
		})
	}

	// A parameter merging copies of a spilled value covers its pending uses
	// with the merged copy.
	for orig, param := range rw.phiParams[blk] {
		if slots := pending[orig]; len(slots) > 0 {
			for _, slot := range slots {
				*slot = param
			}
			delete(pending, orig)
		}
	}
	for i := range blk.params {
		delete(pending, blk.params[i].value)
	}
	return pending, nil
}

// pruneDeadSpills removes reloads whose copy never rewrote a use, then
// spills no surviving reload of the same value can come after. Returns the
// number of surviving pseudo instructions. Entries of the slices are nilled
// out as their instructions are removed.
func pruneDeadSpills(rw *spillRewriter, spillInstrs, reloadInstrs []*Instruction) int {
	for i, instr := range reloadInstrs {
		if instr == nil {
			continue
		}
		if _, used := rw.usedReloads[instr]; !used {
			instr.parent.removeInstruction(instr)
			reloadInstrs[i] = nil
		}
	}

	for i, spill := range spillInstrs {
		if spill == nil {
			continue
		}
		keep := false
		for _, reload := range reloadInstrs {
			if reload == nil || reload.v != spill.v {
				continue
			}
			if rw.mayObserve(spill, reload) {
				keep = true
				break
			}
		}
		if !keep {
			spill.parent.removeInstruction(spill)
			spillInstrs[i] = nil
		}
	}

	survivors := 0
	for _, instr := range spillInstrs {
		if instr != nil {
			survivors++
		}
	}
	for _, instr := range reloadInstrs {
		if instr != nil {
			survivors++
		}
	}
	return survivors
}

// mayObserve returns true unless the reload provably executes before the
// spill ever does: in the same block ahead of it, or in a block the spill's
// block does not dominate within the same region. Instructions in different
// regions are kept conservatively.
func (rw *spillRewriter) mayObserve(spill, reload *Instruction) bool {
	if spill.parent == reload.parent {
		for cur := spill.next; cur != nil; cur = cur.next {
			if cur == reload {
				return true
			}
		}
		return false
	}
	if spill.parent.region != reload.parent.region {
		return true
	}
	t, err := rw.treeOf(spill.parent.region)
	if err != nil {
		return true
	}
	return t.dominatesBlocks(spill.parent, reload.parent)
}

func sortedValueKeys(m map[Value][]BasicBlock) []Value {
	keys := make([]Value, 0, len(m))
	for v := range m {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id() < keys[j].id() })
	return keys
}
