package ssa

import (
	"fmt"
	"math"
	"strings"
)

// Opcode represents a SSA instruction.
type Opcode uint32

// Instruction represents an instruction whose opcode is specified by
// Opcode. Since Go doesn't have union type, we use this flattened type
// for all instructions, and therefore each field has different meaning
// depending on Opcode.
type Instruction struct {
	opcode     Opcode
	u64        uint64
	v          Value
	v2         Value
	vs         []Value
	typ        Type
	blk        *basicBlock
	regions    []*Region
	parent     *basicBlock
	prev, next *Instruction
	id         int

	rValue  Value
	rValues []Value
}

// Opcode returns the opcode of this instruction.
func (i *Instruction) Opcode() Opcode {
	return i.opcode
}

// Returns Value(s) produced by this instruction if any.
// The `first` is the first return value, and `rest` is the rest of the values.
func (i *Instruction) Returns() (first Value, rest []Value) {
	return i.rValue, i.rValues
}

// Next returns the next instruction laid out next to itself.
func (i *Instruction) Next() *Instruction {
	return i.next
}

// Prev returns the previous instruction laid out prior to itself.
func (i *Instruction) Prev() *Instruction {
	return i.prev
}

// Block returns the block this instruction is inserted into.
func (i *Instruction) Block() BasicBlock {
	return i.parent
}

const (
	invalidOpcode Opcode = iota

	// OpcodeJump takes the list of args to the `block` and unconditionally jumps to it.
	OpcodeJump

	// OpcodeBrz branches into `blk` with `args` if the value `c` equals zero: `Brz c, blk, args`.
	OpcodeBrz

	// OpcodeBrnz branches into `blk` with `args` if the value `c` is not zero: `Brnz c, blk, args`.
	OpcodeBrnz

	// OpcodeReturn returns from the function: `return rvalues`.
	OpcodeReturn

	// OpcodeYield exits the region of the enclosing structured operation.
	OpcodeYield

	// OpcodeTrap exits the execution immediately.
	OpcodeTrap

	// OpcodeCall calls a function specified by the FuncRef with arguments `args`.
	// `returnvals = Call FN, args...`
	OpcodeCall

	// OpcodeIconst represents a constant integer: `iconst_{32,64} imm`.
	OpcodeIconst

	// OpcodeF32const represents a 32-bit float constant.
	OpcodeF32const

	// OpcodeF64const represents a 64-bit float constant.
	OpcodeF64const

	// OpcodeIadd performs integer addition: `a = iadd x, y`.
	OpcodeIadd

	// OpcodeIsub performs integer subtraction: `a = isub x, y`.
	OpcodeIsub

	// OpcodeImul performs integer multiplication: `a = imul x, y`.
	OpcodeImul

	// OpcodeIcmp compares two integers: `a = icmp cond, x, y`.
	OpcodeIcmp

	// OpcodeLoad loads from the address: `a = load p, offset`.
	OpcodeLoad

	// OpcodeStore stores the value to the address: `store x, p, offset`.
	OpcodeStore

	// OpcodeIf runs regions[0] if the condition is non-zero, otherwise
	// regions[1]: `if c, then_region, else_region`.
	OpcodeIf

	// OpcodeLoop runs regions[0] repeatedly. A yield in the body exits the
	// loop, a jump back to the body entry repeats it: `loop args, body_region`.
	OpcodeLoop

	// OpcodeSpill is a pseudo instruction marking that the value must be moved
	// out of registers at this point. Lowered to a store by the spill transform.
	OpcodeSpill

	// OpcodeReload is a pseudo instruction producing a fresh copy of a spilled
	// value: `a = reload x`. Lowered to a load by the spill transform.
	OpcodeReload

	opcodeEnd
)

// IntegerCmpCond represents a condition for integer comparison.
type IntegerCmpCond byte

const (
	IntegerCmpCondInvalid IntegerCmpCond = iota
	IntegerCmpCondEqual
	IntegerCmpCondNotEqual
	IntegerCmpCondSignedLessThan
	IntegerCmpCondUnsignedLessThan
)

func (c IntegerCmpCond) String() string {
	switch c {
	case IntegerCmpCondEqual:
		return "eq"
	case IntegerCmpCondNotEqual:
		return "neq"
	case IntegerCmpCondSignedLessThan:
		return "lt_s"
	case IntegerCmpCondUnsignedLessThan:
		return "lt_u"
	}
	return "invalid"
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	switch o {
	case OpcodeJump:
		return "Jump"
	case OpcodeBrz:
		return "Brz"
	case OpcodeBrnz:
		return "Brnz"
	case OpcodeReturn:
		return "Return"
	case OpcodeYield:
		return "Yield"
	case OpcodeTrap:
		return "Trap"
	case OpcodeCall:
		return "Call"
	case OpcodeIconst:
		return "Iconst"
	case OpcodeF32const:
		return "F32const"
	case OpcodeF64const:
		return "F64const"
	case OpcodeIadd:
		return "Iadd"
	case OpcodeIsub:
		return "Isub"
	case OpcodeImul:
		return "Imul"
	case OpcodeIcmp:
		return "Icmp"
	case OpcodeLoad:
		return "Load"
	case OpcodeStore:
		return "Store"
	case OpcodeIf:
		return "If"
	case OpcodeLoop:
		return "Loop"
	case OpcodeSpill:
		return "Spill"
	case OpcodeReload:
		return "Reload"
	}
	panic(fmt.Sprintf("BUG: unknown opcode %d", o))
}

// IsBranch returns true if this instruction transfers control to another block
// in the same region.
func (i *Instruction) IsBranch() bool {
	switch i.opcode {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz:
		return true
	}
	return false
}

// IsReturnLike returns true if this instruction transfers control out of the
// region it lives in, either to the caller or to the parent operation.
func (i *Instruction) IsReturnLike() bool {
	switch i.opcode {
	case OpcodeReturn, OpcodeYield:
		return true
	}
	return false
}

// HasRegions returns true if this instruction carries nested regions.
func (i *Instruction) HasRegions() bool {
	return len(i.regions) > 0
}

// Regions returns the nested regions of this instruction.
func (i *Instruction) Regions() []*Region {
	return i.regions
}

// isRepetitiveRegion returns true if the ix-th nested region may execute more
// than once per execution of this instruction.
func (i *Instruction) isRepetitiveRegion(ix int) bool {
	return i.opcode == OpcodeLoop && ix == 0
}

// IsSpill returns true if this is the spill pseudo instruction.
func (i *Instruction) IsSpill() bool { return i.opcode == OpcodeSpill }

// IsReload returns true if this is the reload pseudo instruction.
func (i *Instruction) IsReload() bool { return i.opcode == OpcodeReload }

// BranchTarget returns the target block of a branch instruction.
func (i *Instruction) BranchTarget() BasicBlock {
	if !i.IsBranch() {
		panic("BUG: BranchTarget on non-branch instruction: " + i.opcode.String())
	}
	return i.blk
}

// BranchArgs returns the values forwarded to the params of the target block.
func (i *Instruction) BranchArgs() []Value {
	return i.vs
}

// setBranchTarget redirects a branch to `target`, keeping the forwarded args.
func (i *Instruction) setBranchTarget(target *basicBlock) {
	if !i.IsBranch() {
		panic("BUG: setBranchTarget on non-branch instruction: " + i.opcode.String())
	}
	i.blk = target
}

// forEachOperand invokes fn with a pointer to each value operand of this
// instruction, including branch args, so callers can rewrite uses in place.
func (i *Instruction) forEachOperand(fn func(*Value)) {
	if i.v.Valid() {
		fn(&i.v)
	}
	if i.v2.Valid() {
		fn(&i.v2)
	}
	for n := range i.vs {
		fn(&i.vs[n])
	}
}

// Operands returns the value operands of this instruction in order.
func (i *Instruction) Operands() (ret []Value) {
	i.forEachOperand(func(v *Value) { ret = append(ret, *v) })
	return
}

func (i *Instruction) AsJump(vs []Value, target BasicBlock) {
	i.opcode = OpcodeJump
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.vs = vs
	i.blk = target.(*basicBlock)
}

func (i *Instruction) AsBrz(v Value, args []Value, target BasicBlock) {
	i.opcode = OpcodeBrz
	i.v = v
	i.v2 = ValueInvalid
	i.vs = args
	i.blk = target.(*basicBlock)
}

func (i *Instruction) AsBrnz(v Value, args []Value, target BasicBlock) {
	i.opcode = OpcodeBrnz
	i.v = v
	i.v2 = ValueInvalid
	i.vs = args
	i.blk = target.(*basicBlock)
}

func (i *Instruction) AsReturn(vs []Value) {
	i.opcode = OpcodeReturn
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.vs = vs
}

func (i *Instruction) AsYield(vs []Value) {
	i.opcode = OpcodeYield
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.vs = vs
}

func (i *Instruction) AsTrap() {
	i.opcode = OpcodeTrap
	i.v = ValueInvalid
	i.v2 = ValueInvalid
}

func (i *Instruction) AsCall(ref FuncRef, args []Value) {
	i.opcode = OpcodeCall
	i.u64 = uint64(ref)
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.vs = args
}

func (i *Instruction) AsIconst64(v uint64) {
	i.opcode = OpcodeIconst
	i.typ = TypeI64
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.u64 = v
}

func (i *Instruction) AsIconst32(v uint32) {
	i.opcode = OpcodeIconst
	i.typ = TypeI32
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.u64 = uint64(v)
}

func (i *Instruction) AsF32const(f float32) {
	i.opcode = OpcodeF32const
	i.typ = TypeF32
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.u64 = uint64(math.Float32bits(f))
}

func (i *Instruction) AsF64const(f float64) {
	i.opcode = OpcodeF64const
	i.typ = TypeF64
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.u64 = math.Float64bits(f)
}

func (i *Instruction) AsIadd(x, y Value) {
	i.opcode = OpcodeIadd
	i.v = x
	i.v2 = y
	i.typ = x.Type()
}

func (i *Instruction) AsIsub(x, y Value) {
	i.opcode = OpcodeIsub
	i.v = x
	i.v2 = y
	i.typ = x.Type()
}

func (i *Instruction) AsImul(x, y Value) {
	i.opcode = OpcodeImul
	i.v = x
	i.v2 = y
	i.typ = x.Type()
}

func (i *Instruction) AsIcmp(x, y Value, c IntegerCmpCond) {
	i.opcode = OpcodeIcmp
	i.v = x
	i.v2 = y
	i.u64 = uint64(c)
	i.typ = TypeI32
}

func (i *Instruction) AsLoad(ptr Value, offset uint32, typ Type) {
	i.opcode = OpcodeLoad
	i.v = ptr
	i.v2 = ValueInvalid
	i.u64 = uint64(offset)
	i.typ = typ
}

func (i *Instruction) AsStore(value, ptr Value, offset uint32) {
	i.opcode = OpcodeStore
	i.v = value
	i.v2 = ptr
	i.u64 = uint64(offset)
}

func (i *Instruction) AsIf(c Value, thenRegion, elseRegion *Region) {
	i.opcode = OpcodeIf
	i.v = c
	i.v2 = ValueInvalid
	i.regions = append(i.regions[:0], thenRegion, elseRegion)
	thenRegion.owner, elseRegion.owner = i, i
}

func (i *Instruction) AsLoop(args []Value, body *Region) {
	i.opcode = OpcodeLoop
	i.v = ValueInvalid
	i.v2 = ValueInvalid
	i.vs = args
	i.regions = append(i.regions[:0], body)
	body.owner = i
}

func (i *Instruction) AsSpill(v Value) {
	i.opcode = OpcodeSpill
	i.v = v
	i.v2 = ValueInvalid
}

func (i *Instruction) AsReload(v Value) {
	i.opcode = OpcodeReload
	i.v = v
	i.v2 = ValueInvalid
	i.typ = v.Type()
}

type returnTypesFn func(b *builder, instr *Instruction) (t1 Type, ts []Type)

var (
	returnTypesFnNoReturns returnTypesFn = func(b *builder, instr *Instruction) (t1 Type, ts []Type) { return TypeInvalid, nil }
	returnTypesFnSelf                    = func(b *builder, instr *Instruction) (t1 Type, ts []Type) { return instr.typ, nil }
)

var instructionReturnTypes = [opcodeEnd]returnTypesFn{
	OpcodeJump:     returnTypesFnNoReturns,
	OpcodeBrz:      returnTypesFnNoReturns,
	OpcodeBrnz:     returnTypesFnNoReturns,
	OpcodeReturn:   returnTypesFnNoReturns,
	OpcodeYield:    returnTypesFnNoReturns,
	OpcodeTrap:     returnTypesFnNoReturns,
	OpcodeIconst:   returnTypesFnSelf,
	OpcodeF32const: returnTypesFnSelf,
	OpcodeF64const: returnTypesFnSelf,
	OpcodeIadd:     returnTypesFnSelf,
	OpcodeIsub:     returnTypesFnSelf,
	OpcodeImul:     returnTypesFnSelf,
	OpcodeIcmp:     returnTypesFnSelf,
	OpcodeLoad:     returnTypesFnSelf,
	OpcodeStore:    returnTypesFnNoReturns,
	OpcodeIf:       returnTypesFnNoReturns,
	OpcodeLoop:     returnTypesFnNoReturns,
	OpcodeSpill:    returnTypesFnNoReturns,
	OpcodeReload:   returnTypesFnSelf,
	OpcodeCall: func(b *builder, instr *Instruction) (t1 Type, ts []Type) {
		callee := b.funcRefs[FuncRef(instr.u64)]
		switch len(callee.results) {
		case 0:
		case 1:
			t1 = callee.results[0]
		default:
			t1, ts = callee.results[0], callee.results[1:]
		}
		return
	},
}

// Format returns a debug string for this instruction.
func (i *Instruction) Format(b Builder) string {
	var instSuffix string
	switch i.opcode {
	case OpcodeTrap:
	case OpcodeCall:
		vs := make([]string, len(i.vs))
		for idx := range vs {
			vs[idx] = i.vs[idx].format(b)
		}
		instSuffix = fmt.Sprintf(" %s, %s", FuncRef(i.u64), strings.Join(vs, ", "))
	case OpcodeStore:
		instSuffix = fmt.Sprintf(" %s, %s, %#x", i.v.format(b), i.v2.format(b), uint32(i.u64))
	case OpcodeLoad:
		instSuffix = fmt.Sprintf(" %s, %#x", i.v.format(b), uint32(i.u64))
	case OpcodeIconst:
		switch i.typ {
		case TypeI32:
			instSuffix = fmt.Sprintf("_32 %#x", uint32(i.u64))
		case TypeI64:
			instSuffix = fmt.Sprintf("_64 %#x", i.u64)
		}
	case OpcodeF32const:
		instSuffix = fmt.Sprintf(" %f", math.Float32frombits(uint32(i.u64)))
	case OpcodeF64const:
		instSuffix = fmt.Sprintf(" %f", math.Float64frombits(i.u64))
	case OpcodeIadd, OpcodeIsub, OpcodeImul:
		instSuffix = fmt.Sprintf(" %s, %s", i.v.format(b), i.v2.format(b))
	case OpcodeIcmp:
		instSuffix = fmt.Sprintf(" %s, %s, %s", IntegerCmpCond(i.u64), i.v.format(b), i.v2.format(b))
	case OpcodeReturn, OpcodeYield:
		if len(i.vs) == 0 {
			break
		}
		vs := make([]string, len(i.vs))
		for idx := range vs {
			vs[idx] = i.vs[idx].format(b)
		}
		instSuffix = fmt.Sprintf(" %s", strings.Join(vs, ", "))
	case OpcodeJump:
		vs := make([]string, len(i.vs)+1)
		vs[0] = " " + i.blk.Name()
		for idx := range i.vs {
			vs[idx+1] = i.vs[idx].format(b)
		}
		instSuffix = strings.Join(vs, ", ")
	case OpcodeBrz, OpcodeBrnz:
		vs := make([]string, len(i.vs)+2)
		vs[0] = " " + i.v.format(b)
		vs[1] = i.blk.Name()
		for idx := range i.vs {
			vs[idx+2] = i.vs[idx].format(b)
		}
		instSuffix = strings.Join(vs, ", ")
	case OpcodeIf:
		instSuffix = fmt.Sprintf(" %s, then=%s, else=%s", i.v.format(b), i.regions[0].Name(), i.regions[1].Name())
	case OpcodeLoop:
		vs := make([]string, len(i.vs)+1)
		vs[0] = " " + i.regions[0].Name()
		for idx := range i.vs {
			vs[idx+1] = i.vs[idx].format(b)
		}
		instSuffix = strings.Join(vs, ", ")
	case OpcodeSpill, OpcodeReload:
		instSuffix = " " + i.v.format(b)
	default:
		panic("TODO: format for " + i.opcode.String())
	}

	instr := i.opcode.String() + instSuffix

	var rvs []string
	if rv := i.rValue; rv.Valid() {
		rvs = append(rvs, rv.formatWithType(b))
	}
	for _, v := range i.rValues {
		rvs = append(rvs, v.formatWithType(b))
	}
	if len(rvs) > 0 {
		return fmt.Sprintf("%s = %s", strings.Join(rvs, ", "), instr)
	}
	return instr
}
