package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// spillTestFunc returns a function with a pointer parameter for the stack
// slot lowering and an integer parameter usable as branch condition.
func spillTestFunc(b Builder) (fn *Function, base, x Value) {
	fn = b.DeclareFunction("f", true, []Type{TypeI64, TypeI32}, []Type{TypeI32})
	b.SetCurrentFunction(fn)
	entry := fn.Body().EntryBlock()
	return fn, entry.Param(0), entry.Param(1)
}

func TestTransformSpills_singleBlock(t *testing.T) {
	b := NewBuilder()
	fn, base, x := spillTestFunc(b)

	def := b.AllocateInstruction()
	def.AsIadd(x, x)
	b.InsertInstruction(def)
	v, _ := def.Returns()

	early := b.AllocateInstruction()
	early.AsIadd(v, x)
	b.InsertInstruction(early)

	use := b.AllocateInstruction()
	use.AsIadd(v, x)
	b.InsertInstruction(use)

	use2 := b.AllocateInstruction()
	use2.AsIadd(v, v)
	b.InsertInstruction(use2)
	res, _ := use2.Returns()

	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{res})
	b.InsertInstruction(ret)

	sa := NewSpillAnalysis()
	sa.AddSpill(v, PlaceAt(After(early)))
	sa.AddReload(v, PlaceAt(Before(use)))
	require.True(t, sa.Spilled(v))

	changed, err := TransformSpills(b, fn, sa, NewStackSlotLowering(base), nil)
	require.NoError(t, err)
	require.True(t, changed)

	// Every use after the reload reads the reloaded copy, which the lowering
	// turned into a load from the spill slot.
	reloaded := use.Operands()[0]
	require.NotEqual(t, v, reloaded)
	require.Equal(t, []Value{reloaded, reloaded}, use2.Operands())
	load := b.InstructionOfValue(reloaded)
	require.NotNil(t, load)
	require.Equal(t, OpcodeLoad, load.Opcode())
	require.Equal(t, []Value{base}, load.Operands())

	// The use before the spill still reads the original value.
	require.Equal(t, []Value{v, x}, early.Operands())

	// The spill became a store of the original value right after the last
	// pre-spill use.
	store := early.Next()
	require.Equal(t, OpcodeStore, store.Opcode())
	require.Equal(t, []Value{v, base}, store.Operands())

	// Store and load share the slot offset.
	require.Equal(t, store.u64, load.u64)
}

func TestTransformSpills_phiInsertion(t *testing.T) {
	//  0            v reloaded in both arms, used at the merge: the merge
	// / \           needs a parameter joining the two copies.
	// 1   2
	// \ /
	//  3
	b := NewBuilder()
	fn, base, x := spillTestFunc(b)

	blk1 := b.AllocateBasicBlock().(*basicBlock)
	blk2 := b.AllocateBasicBlock().(*basicBlock)
	blk3 := b.AllocateBasicBlock().(*basicBlock)

	def := b.AllocateInstruction()
	def.AsIadd(x, x)
	b.InsertInstruction(def)
	v, _ := def.Returns()

	brz := b.AllocateInstruction()
	brz.AsBrz(x, nil, blk1)
	b.InsertInstruction(brz)
	j := b.AllocateInstruction()
	j.AsJump(nil, blk2)
	b.InsertInstruction(j)

	b.SetCurrentBlock(blk1)
	j1 := b.AllocateInstruction()
	j1.AsJump(nil, blk3)
	b.InsertInstruction(j1)

	b.SetCurrentBlock(blk2)
	j2 := b.AllocateInstruction()
	j2.AsJump(nil, blk3)
	b.InsertInstruction(j2)

	b.SetCurrentBlock(blk3)
	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{v})
	b.InsertInstruction(ret)

	sa := NewSpillAnalysis()
	sa.AddSpill(v, PlaceAt(After(def)))
	sa.AddReload(v, PlaceAt(StartOf(blk1)))
	sa.AddReload(v, PlaceAt(StartOf(blk2)))

	changed, err := TransformSpills(b, fn, sa, NewStackSlotLowering(base), nil)
	require.NoError(t, err)
	require.True(t, changed)

	// The merge block gained a parameter joining the two copies, and the
	// return reads it instead of the original value.
	require.Equal(t, 1, blk3.Params())
	p := blk3.Param(0)
	require.Equal(t, []Value{p}, ret.Operands())

	// Each arm forwards its own reloaded copy.
	require.Len(t, j1.BranchArgs(), 1)
	require.Len(t, j2.BranchArgs(), 1)
	for _, arg := range []Value{j1.BranchArgs()[0], j2.BranchArgs()[0]} {
		require.NotEqual(t, v, arg)
		load := b.InstructionOfValue(arg)
		require.NotNil(t, load)
		require.Equal(t, OpcodeLoad, load.Opcode())
	}

	// The spill in the entry survived, as a store.
	require.Equal(t, OpcodeStore, def.Next().Opcode())
}

func TestTransformSpills_deadPlanIsDropped(t *testing.T) {
	b := NewBuilder()
	fn, base, x := spillTestFunc(b)
	entry := fn.Body().EntryBlock()

	def := b.AllocateInstruction()
	def.AsIadd(x, x)
	b.InsertInstruction(def)
	v, _ := def.Returns()

	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{x})
	b.InsertInstruction(ret)

	sa := NewSpillAnalysis()
	sa.AddSpill(v, PlaceAt(After(def)))
	// The reload's copy has no use at all.
	sa.AddReload(v, PlaceAt(Before(ret)))

	changed, err := TransformSpills(b, fn, sa, NewStackSlotLowering(base), nil)
	require.NoError(t, err)
	require.False(t, changed)

	// Both pseudo instructions were dropped again; nothing was lowered.
	for cur := entry.Root(); cur != nil; cur = cur.Next() {
		require.NotEqual(t, OpcodeSpill, cur.Opcode())
		require.NotEqual(t, OpcodeReload, cur.Opcode())
		require.NotEqual(t, OpcodeStore, cur.Opcode())
		require.NotEqual(t, OpcodeLoad, cur.Opcode())
	}
}

func TestTransformSpills_edgeSplit(t *testing.T) {
	//  0           0
	// / \         / \
	// 1   2  =>   1   2
	// \ /         |   |
	//  3          S   |
	//              \ /
	//               3
	b := NewBuilder()
	fn, base, x := spillTestFunc(b)

	blk1 := b.AllocateBasicBlock().(*basicBlock)
	blk2 := b.AllocateBasicBlock().(*basicBlock)
	blk3 := b.AllocateBasicBlock().(*basicBlock)

	def := b.AllocateInstruction()
	def.AsIadd(x, x)
	b.InsertInstruction(def)
	v, _ := def.Returns()

	brz := b.AllocateInstruction()
	brz.AsBrz(x, nil, blk1)
	b.InsertInstruction(brz)
	j := b.AllocateInstruction()
	j.AsJump(nil, blk2)
	b.InsertInstruction(j)

	b.SetCurrentBlock(blk1)
	j1 := b.AllocateInstruction()
	j1.AsJump(nil, blk3)
	b.InsertInstruction(j1)

	b.SetCurrentBlock(blk2)
	j2 := b.AllocateInstruction()
	j2.AsJump(nil, blk3)
	b.InsertInstruction(j2)

	b.SetCurrentBlock(blk3)
	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{v})
	b.InsertInstruction(ret)

	sa := NewSpillAnalysis()
	sa.AddSpill(v, PlaceAt(After(def)))
	idx := sa.AddSplit(blk1, blk3)
	sa.AddReload(v, PlaceOnSplit(idx))

	changed, err := TransformSpills(b, fn, sa, NewStackSlotLowering(base), nil)
	require.NoError(t, err)
	require.True(t, changed)

	split := sa.Splits()[0].Split
	require.NotNil(t, split)

	// blk1 now branches to the split block, which jumps on to blk3.
	require.Equal(t, []BasicBlock{BasicBlock(split)}, blk1.Succs())
	require.Equal(t, []BasicBlock{BasicBlock(blk1)}, split.Preds())
	require.Contains(t, blk3.Preds(), BasicBlock(split))
	require.Contains(t, blk3.Preds(), BasicBlock(blk2))

	// The copies merge in a parameter of blk3: the split path forwards the
	// reloaded copy, the other path still forwards the original value.
	require.Equal(t, 1, blk3.Params())
	p := blk3.Param(0)
	require.Equal(t, []Value{p}, ret.Operands())

	splitJump := split.Tail()
	require.Equal(t, OpcodeJump, splitJump.Opcode())
	require.Len(t, splitJump.BranchArgs(), 1)
	fromSplit := splitJump.BranchArgs()[0]
	require.NotEqual(t, v, fromSplit)
	require.Equal(t, OpcodeLoad, b.InstructionOfValue(fromSplit).Opcode())
	require.Equal(t, []Value{v}, j2.BranchArgs())

	// The split block holds exactly the lowered reload and the jump.
	require.Equal(t, OpcodeLoad, split.Root().Opcode())
	require.Equal(t, splitJump, split.Root().Next())
}

func TestTransformSpills_splitWithoutEdge(t *testing.T) {
	b := NewBuilder()
	fn, base, _ := spillTestFunc(b)
	blk1 := b.AllocateBasicBlock()
	b.SetCurrentBlock(fn.Body().EntryBlock())
	ret := b.AllocateInstruction()
	ret.AsReturn(nil)
	b.InsertInstruction(ret)

	sa := NewSpillAnalysis()
	sa.AddSplit(fn.Body().EntryBlock(), blk1)

	_, err := TransformSpills(b, fn, sa, NewStackSlotLowering(base), nil)
	require.Error(t, err)
}
