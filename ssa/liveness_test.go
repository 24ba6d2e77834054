package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runLiveness(t *testing.T, b Builder, fn *Function) *LivenessAnalysis {
	a, err := NewLivenessAnalysis(fn)
	require.NoError(t, err)
	s := NewSolver(b, nil)
	s.Load(a)
	require.NoError(t, s.Run())
	return a
}

func TestLivenessAnalysis_straightLine(t *testing.T) {
	b := NewBuilder()
	fn := b.DeclareFunction("f", true, []Type{TypeI32}, []Type{TypeI32})
	b.SetCurrentFunction(fn)
	entry := fn.Body().EntryBlock()
	x := entry.Param(0)

	iconst := b.AllocateInstruction()
	iconst.AsIconst32(1)
	b.InsertInstruction(iconst)
	c, _ := iconst.Returns()

	unused := b.AllocateInstruction()
	unused.AsIconst32(5)
	b.InsertInstruction(unused)
	u, _ := unused.Returns()

	add1 := b.AllocateInstruction()
	add1.AsIadd(x, c)
	b.InsertInstruction(add1)
	a1, _ := add1.Returns()

	add2 := b.AllocateInstruction()
	add2.AsIadd(a1, c)
	b.InsertInstruction(add2)
	a2, _ := add2.Returns()

	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{a2})
	b.InsertInstruction(ret)

	la := runLiveness(t, b, fn)

	// Operands are at distance zero where they are used.
	require.Equal(t, uint32(0), la.NextUsesBefore(ret).Distance(a2))
	require.Equal(t, uint32(0), la.NextUsesBefore(add1).Distance(x))
	require.Equal(t, uint32(0), la.NextUsesBefore(add1).Distance(c))

	// c's next use is one instruction past its definition.
	require.Equal(t, uint32(1), la.NextUsesAfter(iconst).Distance(c))

	// A result nobody reads is recorded dead right after its definition.
	require.True(t, la.NextUsesAfter(unused).Contains(u))
	require.False(t, la.IsLiveAfter(unused, u))
	require.Equal(t, DeadDistance, la.NextUseDistanceAfter(unused, u))

	// The parameter's first use is two instructions from the entry.
	require.Equal(t, uint32(2), la.NextUsesAtStartOf(entry).Distance(x))

	// Each definition ends the live range walking backward past it.
	require.False(t, la.NextUsesBefore(add1).IsLive(a1))
	require.True(t, la.IsLiveAfter(add1, a1))
}

func TestLivenessAnalysis_loopExitPenalty(t *testing.T) {
	// 0 -> 1 -> 2 -> 1, 1 -> 3. v is defined in 0 and used only in 3,
	// after the loop.
	b := NewBuilder()
	fn := b.DeclareFunction("f", true, []Type{TypeI32}, []Type{TypeI32})
	b.SetCurrentFunction(fn)
	entry := fn.Body().EntryBlock().(*basicBlock)
	x := entry.Param(0)

	header := b.AllocateBasicBlock().(*basicBlock)
	latch := b.AllocateBasicBlock().(*basicBlock)
	exit := b.AllocateBasicBlock().(*basicBlock)

	iconst := b.AllocateInstruction()
	iconst.AsIconst32(42)
	b.InsertInstruction(iconst)
	v, _ := iconst.Returns()
	j := b.AllocateInstruction()
	j.AsJump(nil, header)
	b.InsertInstruction(j)

	b.SetCurrentBlock(header)
	brz := b.AllocateInstruction()
	brz.AsBrz(x, nil, latch)
	b.InsertInstruction(brz)
	toExit := b.AllocateInstruction()
	toExit.AsJump(nil, exit)
	b.InsertInstruction(toExit)

	b.SetCurrentBlock(latch)
	back := b.AllocateInstruction()
	back.AsJump(nil, header)
	b.InsertInstruction(back)

	b.SetCurrentBlock(exit)
	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{v})
	b.InsertInstruction(ret)

	la := runLiveness(t, b, fn)

	// Right before the use, v is near.
	require.Equal(t, uint32(0), la.NextUsesAtStartOf(exit).Distance(v))

	// Inside the loop every path to the use crosses the exit edge, so the
	// distance carries the penalty.
	dLatch := la.NextUsesAtEndOf(latch).Distance(v)
	require.True(t, dLatch >= LoopExitDistance, "distance %d", dLatch)
	require.True(t, dLatch < DeadDistance)
	dHeader := la.NextUsesAtStartOf(header).Distance(v)
	require.True(t, dHeader >= LoopExitDistance, "distance %d", dHeader)
}

func TestLivenessAnalysis_blockParams(t *testing.T) {
	//  0
	// / \
	// 1   2
	// \ /
	//  3(p)
	//
	// 1 forwards v1 and 2 forwards v2 into the parameter p of 3.
	b := NewBuilder()
	fn := b.DeclareFunction("f", true, []Type{TypeI32}, []Type{TypeI32})
	b.SetCurrentFunction(fn)
	entry := fn.Body().EntryBlock().(*basicBlock)
	x := entry.Param(0)

	blk1 := b.AllocateBasicBlock().(*basicBlock)
	blk2 := b.AllocateBasicBlock().(*basicBlock)
	blk3 := b.AllocateBasicBlock().(*basicBlock)
	p := blk3.AddParam(b, TypeI32)

	brz := b.AllocateInstruction()
	brz.AsBrz(x, nil, blk1)
	b.InsertInstruction(brz)
	j := b.AllocateInstruction()
	j.AsJump(nil, blk2)
	b.InsertInstruction(j)

	b.SetCurrentBlock(blk1)
	ic1 := b.AllocateInstruction()
	ic1.AsIconst32(1)
	b.InsertInstruction(ic1)
	v1, _ := ic1.Returns()
	j1 := b.AllocateInstruction()
	j1.AsJump([]Value{v1}, blk3)
	b.InsertInstruction(j1)

	b.SetCurrentBlock(blk2)
	ic2 := b.AllocateInstruction()
	ic2.AsIconst32(2)
	b.InsertInstruction(ic2)
	v2, _ := ic2.Returns()
	j2 := b.AllocateInstruction()
	j2.AsJump([]Value{v2}, blk3)
	b.InsertInstruction(j2)

	b.SetCurrentBlock(blk3)
	ret := b.AllocateInstruction()
	ret.AsReturn([]Value{p})
	b.InsertInstruction(ret)

	la := runLiveness(t, b, fn)

	// The forwarded value is used by the branch itself.
	require.Equal(t, uint32(0), la.NextUsesBefore(j1).Distance(v1))
	// The other arm never sees it.
	require.False(t, la.NextUsesAtEndOf(blk2).IsLive(v1))
	// The parameter is live in its own block only; the transfer across the
	// edge strips it.
	require.Equal(t, uint32(0), la.NextUsesAtStartOf(blk3).Distance(p))
	require.False(t, la.NextUsesAtEndOf(blk1).IsLive(p))
	require.False(t, la.NextUsesAtEndOf(blk2).IsLive(p))
}

func TestLivenessAnalysis_regions(t *testing.T) {
	t.Run("value live across if", func(t *testing.T) {
		b := NewBuilder()
		fn := b.DeclareFunction("f", true, []Type{TypeI32}, []Type{TypeI32})
		b.SetCurrentFunction(fn)
		entry := fn.Body().EntryBlock()
		x := entry.Param(0)

		thenRegion := b.AllocateRegion()
		b.SetCurrentRegion(thenRegion)
		thenBlk := b.AllocateBasicBlock()
		b.SetCurrentBlock(thenBlk)
		thenYield := b.AllocateInstruction()
		thenYield.AsYield(nil)
		b.InsertInstruction(thenYield)

		elseRegion := b.AllocateRegion()
		b.SetCurrentRegion(elseRegion)
		elseBlk := b.AllocateBasicBlock()
		b.SetCurrentBlock(elseBlk)
		elseYield := b.AllocateInstruction()
		elseYield.AsYield(nil)
		b.InsertInstruction(elseYield)

		b.SetCurrentBlock(entry)
		iconst := b.AllocateInstruction()
		iconst.AsIconst32(42)
		b.InsertInstruction(iconst)
		v, _ := iconst.Returns()

		ifInstr := b.AllocateInstruction()
		ifInstr.AsIf(x, thenRegion, elseRegion)
		b.InsertInstruction(ifInstr)

		ret := b.AllocateInstruction()
		ret.AsReturn([]Value{v})
		b.InsertInstruction(ret)

		la := runLiveness(t, b, fn)

		// v is live after the if, and therefore through both regions.
		require.Equal(t, uint32(0), la.NextUsesAfter(ifInstr).Distance(v))
		require.Equal(t, uint32(0), la.NextUsesAtEndOf(thenBlk).Distance(v))
		require.Equal(t, uint32(0), la.NextUsesAtEndOf(elseBlk).Distance(v))
		require.True(t, la.IsLiveBefore(ifInstr, v))
	})

	t.Run("repetitive region charges the exit penalty", func(t *testing.T) {
		b := NewBuilder()
		fn := b.DeclareFunction("f", true, []Type{TypeI32}, []Type{TypeI32})
		b.SetCurrentFunction(fn)
		entry := fn.Body().EntryBlock()
		x := entry.Param(0)

		body := b.AllocateRegion()
		b.SetCurrentRegion(body)
		bodyBlk := b.AllocateBasicBlock()
		b.SetCurrentBlock(bodyBlk)
		yield := b.AllocateInstruction()
		yield.AsYield(nil)
		b.InsertInstruction(yield)

		b.SetCurrentBlock(entry)
		iconst := b.AllocateInstruction()
		iconst.AsIconst32(42)
		b.InsertInstruction(iconst)
		v, _ := iconst.Returns()

		loop := b.AllocateInstruction()
		loop.AsLoop([]Value{x}, body)
		b.InsertInstruction(loop)

		ret := b.AllocateInstruction()
		ret.AsReturn([]Value{v})
		b.InsertInstruction(ret)

		la := runLiveness(t, b, fn)

		// A value used only after the loop looks far away inside the body.
		require.Equal(t, uint32(0), la.NextUsesAfter(loop).Distance(v))
		require.Equal(t, LoopExitDistance, la.NextUsesAtEndOf(bodyBlk).Distance(v))
	})
}
