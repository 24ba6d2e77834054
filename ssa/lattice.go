package ssa

import "strings"

// ChangeResult reports whether a lattice mutation actually changed the state.
// The solver only re-enqueues dependents on Changed.
type ChangeResult byte

const (
	ChangeUnchanged ChangeResult = iota
	ChangeChanged
)

func (c ChangeResult) String() string {
	if c == ChangeChanged {
		return "changed"
	}
	return "unchanged"
}

// merge folds another change result into this one.
func (c ChangeResult) merge(other ChangeResult) ChangeResult {
	if c == ChangeChanged || other == ChangeChanged {
		return ChangeChanged
	}
	return ChangeUnchanged
}

// CFGEdge is a lattice anchor for a control flow edge between two blocks.
type CFGEdge struct {
	From, To *basicBlock
}

func (e CFGEdge) String() string {
	return e.From.Name() + " -> " + e.To.Name()
}

// Executable is the lattice state tracking whether a block or edge is
// reachable. It starts out optimistically dead and is flipped live at most
// once, so the fixpoint is monotone.
type Executable struct {
	live bool
}

func (e *Executable) IsLive() bool { return e.live }

func (e *Executable) markLive() ChangeResult {
	if e.live {
		return ChangeUnchanged
	}
	e.live = true
	return ChangeChanged
}

func (e *Executable) String() string {
	if e.live {
		return "live"
	}
	return "dead"
}

// PredecessorState tracks the live control flow predecessors of a program
// point: the instructions that can transfer control to it. Each predecessor
// optionally carries the values it forwards across the transfer. allKnown
// starts true and is cleared once any predecessor is statically
// unresolvable, such as a callsite of a public function.
type PredecessorState struct {
	known    []*Instruction
	inputs   map[*Instruction][]Value
	allKnown bool
}

func newPredecessorState() *PredecessorState {
	return &PredecessorState{allKnown: true}
}

// AllPredecessorsKnown returns false when some predecessor of this point
// cannot be resolved statically.
func (p *PredecessorState) AllPredecessorsKnown() bool { return p.allKnown }

// KnownPredecessors returns the instructions known to transfer control here.
func (p *PredecessorState) KnownPredecessors() []*Instruction { return p.known }

// SuccessorInputs returns the values pred forwards across the transfer.
func (p *PredecessorState) SuccessorInputs(pred *Instruction) []Value {
	return p.inputs[pred]
}

func (p *PredecessorState) setHasUnknownPredecessors() ChangeResult {
	if !p.allKnown {
		return ChangeUnchanged
	}
	p.allKnown = false
	return ChangeChanged
}

func (p *PredecessorState) join(pred *Instruction) ChangeResult {
	for _, known := range p.known {
		if known == pred {
			return ChangeUnchanged
		}
	}
	p.known = append(p.known, pred)
	if p.inputs == nil {
		p.inputs = map[*Instruction][]Value{}
	}
	p.inputs[pred] = nil
	return ChangeChanged
}

func (p *PredecessorState) joinWithInputs(pred *Instruction, inputs []Value) ChangeResult {
	result := p.join(pred)
	prev := p.inputs[pred]
	if !valuesEqual(prev, inputs) {
		p.inputs[pred] = append([]Value(nil), inputs...)
		result = result.merge(ChangeChanged)
	}
	return result
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (p *PredecessorState) String() string {
	var str strings.Builder
	str.WriteByte('{')
	for i, pred := range p.known {
		if i > 0 {
			str.WriteString(", ")
		}
		str.WriteString(pred.opcode.String())
	}
	if !p.allKnown {
		if len(p.known) > 0 {
			str.WriteString(", ")
		}
		str.WriteString("...")
	}
	str.WriteByte('}')
	return str.String()
}

// ConstantLattice is the constant propagation surface the executability
// analysis folds branch conditions with. Lookup returns the folded constant
// of v when isConst, and known=false while the producing analysis has not
// settled v yet, in which case the caller must not conclude anything.
type ConstantLattice interface {
	Lookup(v Value) (c uint64, isConst, known bool)
}

// foldedConstants is the default ConstantLattice: an instruction result is
// constant exactly when its defining instruction is an integer constant.
// Everything is immediately known since no fixpoint is involved.
type foldedConstants struct {
	b *builder
}

// NewFoldedConstants returns a ConstantLattice backed directly by the
// defining instructions in b.
func NewFoldedConstants(b Builder) ConstantLattice {
	return &foldedConstants{b: b.(*builder)}
}

func (f *foldedConstants) Lookup(v Value) (uint64, bool, bool) {
	instr := f.b.InstructionOfValue(v)
	if instr == nil {
		return 0, false, true
	}
	switch instr.opcode {
	case OpcodeIconst:
		return instr.u64, true, true
	case OpcodeF32const, OpcodeF64const:
		return instr.u64, true, true
	default:
		return 0, false, true
	}
}
