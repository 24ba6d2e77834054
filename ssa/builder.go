// Package ssa implements the SSA middle end of the compiler: the IR itself,
// dominance structures, dataflow analyses and the spill transform. By nature
// this is free of source language and ISA specific things.
package ssa

import (
	"fmt"
	"strings"
)

// Builder is used to build SSA consisting of Basic Blocks per function.
type Builder interface {
	// Reset must be called to reuse this builder for the next module.
	Reset()

	// Module returns the module under construction.
	Module() *Module

	// DeclareFunction adds a function with a body to the module. The entry
	// block is created with one parameter per params entry.
	DeclareFunction(name string, public bool, params, results []Type) *Function

	// DeclareFunctionImport adds a body-less function to the module. Calls to
	// it have unknown effects.
	DeclareFunctionImport(name string, params, results []Type) *Function

	// SetCurrentFunction sets the function whose body subsequent allocations
	// target, and moves the insertion point to its entry block.
	SetCurrentFunction(f *Function)

	// CurrentFunction returns the function set by SetCurrentFunction.
	CurrentFunction() *Function

	// AllocateBasicBlock creates a basic block in the current region.
	AllocateBasicBlock() BasicBlock

	// AllocateRegion creates an empty region to be attached to a structured
	// control flow instruction. Blocks are added to it via SetCurrentRegion
	// and AllocateBasicBlock.
	AllocateRegion() *Region

	// SetCurrentRegion sets the region subsequent AllocateBasicBlock calls
	// target.
	SetCurrentRegion(r *Region)

	// CurrentBlock returns the currently handled BasicBlock which is set by the latest call to SetCurrentBlock.
	CurrentBlock() BasicBlock

	// SetCurrentBlock sets the instruction insertion target to the BasicBlock `b`.
	SetCurrentBlock(b BasicBlock)

	// AllocateInstruction returns a new Instruction.
	AllocateInstruction() *Instruction

	// InsertInstruction inserts an instruction into the tail of the current
	// block, assigns its result values and wires CFG edges for branches.
	InsertInstruction(raw *Instruction)

	// AllocateValue allocates an unused Value of the given type.
	AllocateValue(typ Type) Value

	// AnnotateValue sets the debug name of the given Value.
	AnnotateValue(v Value, name string)

	// InstructionOfValue returns the defining instruction of v, or nil when v
	// is defined as a block parameter.
	InstructionOfValue(v Value) *Instruction

	// DefBlock returns the block where v is defined: the parent block of the
	// defining instruction or the block v is a parameter of.
	DefBlock(v Value) BasicBlock

	// Format returns the debug string of the given function.
	Format(f *Function) string
}

// NewBuilder returns a new Builder implementation.
func NewBuilder() Builder {
	return &builder{
		module:           &Module{byName: map[string]*Function{}},
		basicBlocksPool:  newPool[basicBlock](),
		regionsPool:      newPool[Region](),
		instructionsPool: newPool[Instruction](),
		valueAnnotations: map[valueID]string{},
	}
}

// builder implements Builder interface.
type builder struct {
	module        *Module
	currentFn     *Function
	currentRegion *Region
	currentBB     *basicBlock

	basicBlocksPool  pool[basicBlock]
	regionsPool      pool[Region]
	instructionsPool pool[Instruction]

	nextValueID  valueID
	nextBlockID  basicBlockID
	nextRegionID regionID
	nextInstrID  int

	// defs track the origin of each Value with the index regarded valueID.
	defs []valueOrigin

	// funcRefs track the functions with the index regarded FuncRef.
	funcRefs []*Function

	valueAnnotations map[valueID]string

	// blkStack and blkStack2 are reused working slices for the traversals.
	blkStack, blkStack2 []*basicBlock
	blkVisited          map[*basicBlock]int
}

// Reset implements Builder.
func (b *builder) Reset() {
	b.basicBlocksPool.reset()
	b.regionsPool.reset()
	b.instructionsPool.reset()
	b.module = &Module{byName: map[string]*Function{}}
	b.currentFn, b.currentRegion, b.currentBB = nil, nil, nil
	b.nextValueID, b.nextBlockID, b.nextRegionID, b.nextInstrID = 0, 0, 0, 0
	b.defs = b.defs[:0]
	b.funcRefs = b.funcRefs[:0]
	for v := range b.valueAnnotations {
		delete(b.valueAnnotations, v)
	}
}

// Module implements Builder.
func (b *builder) Module() *Module {
	return b.module
}

// DeclareFunction implements Builder.
func (b *builder) DeclareFunction(name string, public bool, params, results []Type) *Function {
	f := b.declare(name, params, results)
	f.public = public
	f.body = b.allocateRegion(f)
	entry := b.allocateBasicBlockIn(f.body)
	for _, t := range params {
		entry.AddParam(b, t)
	}
	return f
}

// DeclareFunctionImport implements Builder.
func (b *builder) DeclareFunctionImport(name string, params, results []Type) *Function {
	return b.declare(name, params, results)
}

func (b *builder) declare(name string, params, results []Type) *Function {
	if _, ok := b.module.byName[name]; ok {
		panic("BUG: duplicated function declaration: " + name)
	}
	f := &Function{ref: FuncRef(len(b.funcRefs)), name: name, params: params, results: results}
	b.funcRefs = append(b.funcRefs, f)
	b.module.funcs = append(b.module.funcs, f)
	b.module.byName[name] = f
	return f
}

// SetCurrentFunction implements Builder.
func (b *builder) SetCurrentFunction(f *Function) {
	if f.Declaration() {
		panic("BUG: cannot build the body of a declaration: " + f.name)
	}
	b.currentFn = f
	b.currentRegion = f.body
	b.currentBB = f.body.entry()
}

// CurrentFunction implements Builder.
func (b *builder) CurrentFunction() *Function {
	return b.currentFn
}

// AllocateBasicBlock implements Builder.
func (b *builder) AllocateBasicBlock() BasicBlock {
	return b.allocateBasicBlockIn(b.currentRegion)
}

func (b *builder) allocateBasicBlockIn(r *Region) *basicBlock {
	blk := b.basicBlocksPool.allocate()
	blk.reset()
	blk.id = b.nextBlockID
	blk.region = r
	b.nextBlockID++
	r.blocks = append(r.blocks, blk)
	return blk
}

// AllocateRegion implements Builder.
func (b *builder) AllocateRegion() *Region {
	return b.allocateRegion(b.currentFn)
}

func (b *builder) allocateRegion(f *Function) *Region {
	r := b.regionsPool.allocate()
	r.id = b.nextRegionID
	r.fn = f
	r.owner = nil
	r.blocks = nil
	b.nextRegionID++
	return r
}

// SetCurrentRegion implements Builder.
func (b *builder) SetCurrentRegion(r *Region) {
	b.currentRegion = r
}

// CurrentBlock implements Builder.
func (b *builder) CurrentBlock() BasicBlock {
	return b.currentBB
}

// SetCurrentBlock implements Builder.
func (b *builder) SetCurrentBlock(bb BasicBlock) {
	b.currentBB = bb.(*basicBlock)
	b.currentRegion = b.currentBB.region
}

// AllocateInstruction implements Builder.
func (b *builder) AllocateInstruction() *Instruction {
	instr := b.instructionsPool.allocate()
	instr.id = b.nextInstrID
	b.nextInstrID++
	instr.v, instr.v2, instr.rValue = ValueInvalid, ValueInvalid, ValueInvalid
	return instr
}

// AllocateValue implements Builder.
func (b *builder) AllocateValue(typ Type) (v Value) {
	v = Value(b.nextValueID).setType(typ)
	b.nextValueID++
	b.defs = append(b.defs, valueOrigin{})
	return
}

// AnnotateValue implements Builder.
func (b *builder) AnnotateValue(v Value, name string) {
	b.valueAnnotations[v.id()] = name
}

// InsertInstruction implements Builder.
func (b *builder) InsertInstruction(instr *Instruction) {
	b.currentBB.insertInstruction(instr)
	if instr.IsBranch() {
		instr.blk.addPred(b.currentBB, instr)
	}
	b.assignResults(instr)
}

// assignResults allocates the result values of instr and records their origin.
func (b *builder) assignResults(instr *Instruction) {
	t1, ts := instructionReturnTypes[instr.opcode](b, instr)
	if t1 != TypeInvalid {
		instr.rValue = b.AllocateValue(t1)
		b.defs[instr.rValue.id()] = valueOrigin{instr: instr}
	}
	for _, t := range ts {
		v := b.AllocateValue(t)
		b.defs[v.id()] = valueOrigin{instr: instr}
		instr.rValues = append(instr.rValues, v)
	}
}

func (b *builder) defineBlockParam(v Value, bb *basicBlock) {
	b.defs[v.id()] = valueOrigin{blk: bb}
}

func (b *builder) valueDef(v Value) valueOrigin {
	if int(v.id()) >= len(b.defs) {
		panic(fmt.Sprintf("BUG: value v%d is not allocated by this builder", v.id()))
	}
	return b.defs[v.id()]
}

// InstructionOfValue implements Builder.
func (b *builder) InstructionOfValue(v Value) *Instruction {
	return b.valueDef(v).instr
}

// DefBlock implements Builder.
func (b *builder) DefBlock(v Value) BasicBlock {
	o := b.valueDef(v)
	if o.isBlockParam() {
		return o.blk
	}
	if o.instr == nil {
		return nil
	}
	return o.instr.parent
}

// postorderOf returns the blocks of the region in postorder from its entry,
// following successor edges within the region only. Unreachable blocks are
// not included.
func (b *builder) postorderOf(r *Region) []*basicBlock {
	postorder := make([]*basicBlock, 0, len(r.blocks))
	exploreStack := b.blkStack2[:0]
	if b.blkVisited == nil {
		b.blkVisited = make(map[*basicBlock]int)
	} else {
		for key := range b.blkVisited {
			delete(b.blkVisited, key)
		}
	}

	const visitStateUnseen, visitStateSeen, visitStateDone = 0, 1, 2
	entryBlk := r.entry()
	exploreStack = append(exploreStack, entryBlk)
	b.blkVisited[entryBlk] = visitStateSeen
	for len(exploreStack) > 0 {
		tail := len(exploreStack) - 1
		blk := exploreStack[tail]
		exploreStack = exploreStack[:tail]
		switch b.blkVisited[blk] {
		case visitStateUnseen:
			panic("BUG: unsupported CFG")
		case visitStateSeen:
			// This is the first time to pop this block, and we have to see the successors first.
			// So push this block again to the stack.
			exploreStack = append(exploreStack, blk)
			// And push the successors to the stack if necessary.
			for _, succ := range blk.success {
				if b.blkVisited[succ] == visitStateUnseen {
					b.blkVisited[succ] = visitStateSeen
					exploreStack = append(exploreStack, succ)
				}
			}
			// Finally, we could pop this block once we pop all of its successors.
			b.blkVisited[blk] = visitStateDone
		case visitStateDone:
			postorder = append(postorder, blk)
		}
	}
	b.blkStack2 = exploreStack
	return postorder
}

// reversePostorderOf returns the blocks of the region in reverse postorder.
func (b *builder) reversePostorderOf(r *Region) []*basicBlock {
	ret := b.postorderOf(r)
	for i := len(ret)/2 - 1; i >= 0; i-- {
		j := len(ret) - 1 - i
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret
}

// Format implements Builder.
func (b *builder) Format(f *Function) string {
	str := strings.Builder{}
	str.WriteString("function ")
	str.WriteString(f.name)
	str.WriteByte('\n')
	if f.Declaration() {
		str.WriteString("\t<declaration>\n")
		return str.String()
	}
	b.formatRegion(&str, f.body, 1)
	return str.String()
}

func (b *builder) formatRegion(str *strings.Builder, r *Region, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, blk := range r.blocks {
		if blk.invalid {
			continue
		}
		str.WriteString(indent)
		str.WriteString(blk.String())
		str.WriteByte('\n')
		for cur := blk.rootInstr; cur != nil; cur = cur.next {
			str.WriteString(indent)
			str.WriteByte('\t')
			str.WriteString(cur.Format(b))
			str.WriteByte('\n')
			for _, nested := range cur.regions {
				b.formatRegion(str, nested, depth+1)
			}
		}
	}
}
