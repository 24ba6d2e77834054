package ssa

import "fmt"

type programPointKind byte

const (
	pointInvalid programPointKind = iota
	pointBeforeInstr
	pointAfterInstr
	pointBlockStart
	pointBlockEnd
)

// ProgramPoint identifies a position in a function where dataflow state can be
// anchored: before or after an instruction, or at the start or end of a block.
// The start of a block covers its parameter definitions. ProgramPoint is
// comparable and can be used as a map key.
type ProgramPoint struct {
	kind  programPointKind
	instr *Instruction
	blk   *basicBlock
}

// Before returns the point immediately preceding the instruction.
func Before(i *Instruction) ProgramPoint {
	return ProgramPoint{kind: pointBeforeInstr, instr: i}
}

// After returns the point immediately following the instruction.
func After(i *Instruction) ProgramPoint {
	return ProgramPoint{kind: pointAfterInstr, instr: i}
}

// StartOf returns the point at the start of the block, before its first
// instruction but covering its parameter definitions.
func StartOf(bb BasicBlock) ProgramPoint {
	return ProgramPoint{kind: pointBlockStart, blk: bb.(*basicBlock)}
}

// EndOf returns the point at the end of the block, after its terminator.
func EndOf(bb BasicBlock) ProgramPoint {
	return ProgramPoint{kind: pointBlockEnd, blk: bb.(*basicBlock)}
}

// Valid returns true if this point refers to a position in a function.
func (p ProgramPoint) Valid() bool {
	return p.kind != pointInvalid
}

// Instr returns the anchor instruction, nil for block points.
func (p ProgramPoint) Instr() *Instruction {
	return p.instr
}

// block returns the block this point lives in.
func (p ProgramPoint) block() *basicBlock {
	if p.instr != nil {
		return p.instr.parent
	}
	return p.blk
}

// String implements fmt.Stringer.
func (p ProgramPoint) String() string {
	switch p.kind {
	case pointBeforeInstr:
		return fmt.Sprintf("before(%s@%s)", p.instr.opcode, p.instr.parent.Name())
	case pointAfterInstr:
		return fmt.Sprintf("after(%s@%s)", p.instr.opcode, p.instr.parent.Name())
	case pointBlockStart:
		return "start(" + p.blk.Name() + ")"
	case pointBlockEnd:
		return "end(" + p.blk.Name() + ")"
	}
	return "invalid"
}
