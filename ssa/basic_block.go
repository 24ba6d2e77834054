package ssa

import (
	"fmt"
	"strings"
)

// BasicBlock represents the Basic Block of an SSA function.
// In traditional SSA terminology, the block "params" here are called phi values,
// and there does not exist "params". However, for simplicity, we handle them as parameters to a BB.
type BasicBlock interface {
	fmt.Stringer

	// Name returns the unique string ID of this block, e.g. blk0, blk1, ...
	Name() string

	// AddParam adds the parameter to the block whose type specified by `t`,
	// and returns the Value defined by it.
	AddParam(b Builder, t Type) Value

	// Params returns the number of parameters to this block.
	Params() int

	// Param returns the Value which corresponds to the i-th parameter of this block.
	Param(i int) Value

	// Root returns the root instruction of this block.
	Root() *Instruction

	// Tail returns the last instruction of this block, normally a terminator.
	Tail() *Instruction

	// EntryBlock returns true if this block is the entry block of its region.
	EntryBlock() bool

	// Seal declares that all the predecessors of this block are known.
	Seal()

	// Preds returns the predecessor blocks in the same region.
	Preds() []BasicBlock

	// Succs returns the successor blocks in the same region.
	Succs() []BasicBlock
}

type (
	// basicBlock is a basic block in a SSA-transformed function.
	basicBlock struct {
		id                      basicBlockID
		rootInstr, currentInstr *Instruction
		params                  []blockParam
		preds                   []basicBlockPredecessorInfo
		success                 []*basicBlock
		// region is the region this block belongs to.
		region *Region
		// sealed is true if this is sealed (all the predecessors are known).
		sealed bool
		// invalid is true if this block is erased from the region.
		invalid bool
	}
	basicBlockID uint32
)

// blockParam represents a parameter to a basicBlock. The value is the phi
// definition merged from the forwarded branch args of the predecessors.
type blockParam struct {
	value Value
	typ   Type
	// n is the index of this blockParam in the bb.
	n int
}

func (p *blockParam) String() string {
	return fmt.Sprintf("v%d:%s", valueID(p.value), p.typ)
}

type basicBlockPredecessorInfo struct {
	blk *basicBlock
	// branch is the instruction in blk which transfers control to this block
	// and holds the forwarded arguments.
	branch *Instruction
}

// Name implements BasicBlock.
func (bb *basicBlock) Name() string {
	return fmt.Sprintf("blk%d", bb.id)
}

// AddParam implements BasicBlock.
func (bb *basicBlock) AddParam(b Builder, typ Type) Value {
	paramValue := b.AllocateValue(typ)
	n := len(bb.params)
	bb.params = append(bb.params, blockParam{typ: typ, n: n, value: paramValue})
	b.(*builder).defineBlockParam(paramValue, bb)
	return paramValue
}

// Params implements BasicBlock.
func (bb *basicBlock) Params() int {
	return len(bb.params)
}

// Param implements BasicBlock.
func (bb *basicBlock) Param(i int) Value {
	return bb.params[i].value
}

// paramIndex returns the index of the param defining v, or -1.
func (bb *basicBlock) paramIndex(v Value) int {
	for i := range bb.params {
		if bb.params[i].value == v {
			return i
		}
	}
	return -1
}

// removeParam drops the i-th parameter. The forwarded args of the
// predecessors must be adjusted by the caller.
func (bb *basicBlock) removeParam(i int) {
	bb.params = append(bb.params[:i], bb.params[i+1:]...)
	for n := i; n < len(bb.params); n++ {
		bb.params[n].n = n
	}
}

// insertInstruction appends next to the tail of this block.
func (bb *basicBlock) insertInstruction(next *Instruction) {
	current := bb.currentInstr
	if current != nil {
		current.next = next
		next.prev = current
	} else {
		bb.rootInstr = next
	}
	bb.currentInstr = next
	next.parent = bb
}

// insertInstructionBefore places instr immediately before pos in this block.
func (bb *basicBlock) insertInstructionBefore(instr, pos *Instruction) {
	if pos.parent != bb {
		panic("BUG: insertion position is not in this block")
	}
	prev := pos.prev
	instr.prev, instr.next = prev, pos
	pos.prev = instr
	if prev != nil {
		prev.next = instr
	} else {
		bb.rootInstr = instr
	}
	instr.parent = bb
}

// insertInstructionAfter places instr immediately after pos in this block.
func (bb *basicBlock) insertInstructionAfter(instr, pos *Instruction) {
	if pos.parent != bb {
		panic("BUG: insertion position is not in this block")
	}
	next := pos.next
	instr.prev, instr.next = pos, next
	pos.next = instr
	if next != nil {
		next.prev = instr
	} else {
		bb.currentInstr = instr
	}
	instr.parent = bb
}

// removeInstruction unlinks instr from this block.
func (bb *basicBlock) removeInstruction(instr *Instruction) {
	if instr.parent != bb {
		panic("BUG: removing an instruction that is not in this block")
	}
	prev, next := instr.prev, instr.next
	if prev != nil {
		prev.next = next
	} else {
		bb.rootInstr = next
	}
	if next != nil {
		next.prev = prev
	} else {
		bb.currentInstr = prev
	}
	instr.prev, instr.next, instr.parent = nil, nil, nil
}

// Root implements BasicBlock.
func (bb *basicBlock) Root() *Instruction {
	return bb.rootInstr
}

// Tail implements BasicBlock.
func (bb *basicBlock) Tail() *Instruction {
	return bb.currentInstr
}

// EntryBlock implements BasicBlock.
func (bb *basicBlock) EntryBlock() bool {
	return bb.region != nil && bb.region.entry() == bb
}

// Preds implements BasicBlock.
func (bb *basicBlock) Preds() []BasicBlock {
	ret := make([]BasicBlock, len(bb.preds))
	for i := range bb.preds {
		ret[i] = bb.preds[i].blk
	}
	return ret
}

// Succs implements BasicBlock.
func (bb *basicBlock) Succs() []BasicBlock {
	ret := make([]BasicBlock, len(bb.success))
	for i := range bb.success {
		ret[i] = bb.success[i]
	}
	return ret
}

// addPred appends blk as a predecessor reached via branch.
func (bb *basicBlock) addPred(blk *basicBlock, branch *Instruction) {
	if bb.sealed {
		panic("BUG: trying to add predecessor to a sealed block: " + bb.Name())
	}
	bb.preds = append(bb.preds, basicBlockPredecessorInfo{blk: blk, branch: branch})
	blk.success = append(blk.success, bb)
}

// removePred drops the predecessor record whose branch is the given
// instruction, and the matching successor record on the other side.
func (bb *basicBlock) removePred(branch *Instruction) {
	for i := range bb.preds {
		if bb.preds[i].branch == branch {
			pred := bb.preds[i].blk
			bb.preds = append(bb.preds[:i], bb.preds[i+1:]...)
			for j := range pred.success {
				if pred.success[j] == bb {
					pred.success = append(pred.success[:j], pred.success[j+1:]...)
					break
				}
			}
			return
		}
	}
	panic("BUG: removePred: branch is not a predecessor of " + bb.Name())
}

// Seal implements BasicBlock.
func (bb *basicBlock) Seal() {
	bb.sealed = true
}

func (bb *basicBlock) reset() {
	bb.params = bb.params[:0]
	bb.rootInstr, bb.currentInstr = nil, nil
	bb.preds = bb.preds[:0]
	bb.success = bb.success[:0]
	bb.region = nil
	bb.sealed = false
	bb.invalid = false
}

// String implements fmt.Stringer. Only used for debugging.
func (bb *basicBlock) String() string {
	ps := make([]string, len(bb.params))
	for i := range bb.params {
		ps[i] = bb.params[i].String()
	}

	if len(bb.preds) > 0 {
		preds := make([]string, len(bb.preds))
		for i, pred := range bb.preds {
			preds[i] = fmt.Sprintf("blk%d", pred.blk.id)
		}
		return fmt.Sprintf("blk%d: (%s) <-- (%s)",
			bb.id, strings.Join(ps, ", "), strings.Join(preds, ","))
	}
	return fmt.Sprintf("blk%d: (%s)", bb.id, strings.Join(ps, ", "))
}
