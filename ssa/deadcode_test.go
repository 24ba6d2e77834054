package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runDeadCode(t *testing.T, b Builder) *Solver {
	s := NewSolver(b, nil)
	s.Load(NewDeadCodeAnalysis(b.Module(), NewFoldedConstants(b)))
	require.NoError(t, s.Run())
	return s
}

func TestDeadCodeAnalysis_constantBranch(t *testing.T) {
	//    0 --[c == 0]--> 1
	//    |               |
	//    v               v
	//    2 ------------> 3
	//
	// c folds to 1, so the branch to 1 is never taken.
	b := NewBuilder()
	fn := b.DeclareFunction("f", true, nil, nil)
	b.SetCurrentFunction(fn)
	entry := fn.Body().EntryBlock().(*basicBlock)
	blk1 := b.AllocateBasicBlock().(*basicBlock)
	blk2 := b.AllocateBasicBlock().(*basicBlock)
	blk3 := b.AllocateBasicBlock().(*basicBlock)

	iconst := b.AllocateInstruction()
	iconst.AsIconst32(1)
	b.InsertInstruction(iconst)
	c, _ := iconst.Returns()

	brz := b.AllocateInstruction()
	brz.AsBrz(c, nil, blk1)
	b.InsertInstruction(brz)
	jump := b.AllocateInstruction()
	jump.AsJump(nil, blk2)
	b.InsertInstruction(jump)

	for _, pair := range [][2]*basicBlock{{blk1, blk3}, {blk2, blk3}} {
		b.SetCurrentBlock(pair[0])
		j := b.AllocateInstruction()
		j.AsJump(nil, pair[1])
		b.InsertInstruction(j)
	}
	b.SetCurrentBlock(blk3)
	ret := b.AllocateInstruction()
	ret.AsReturn(nil)
	b.InsertInstruction(ret)

	s := runDeadCode(t, b)

	require.True(t, s.IsBlockExecutable(entry))
	require.False(t, s.IsBlockExecutable(blk1))
	require.True(t, s.IsBlockExecutable(blk2))
	require.True(t, s.IsBlockExecutable(blk3))

	require.False(t, s.IsEdgeExecutable(entry, blk1))
	require.True(t, s.IsEdgeExecutable(entry, blk2))
	require.False(t, s.IsEdgeExecutable(blk1, blk3))
	require.True(t, s.IsEdgeExecutable(blk2, blk3))

	// Only the live jump reaches blk3.
	ps := s.PredecessorsAt(StartOf(blk3))
	require.NotNil(t, ps)
	require.True(t, ps.AllPredecessorsKnown())
	require.Len(t, ps.KnownPredecessors(), 1)
	require.Equal(t, blk2, ps.KnownPredecessors()[0].parent)
}

func TestDeadCodeAnalysis_uncalledFunction(t *testing.T) {
	b := NewBuilder()

	f := b.DeclareFunction("f", true, nil, nil)
	b.SetCurrentFunction(f)
	ret := b.AllocateInstruction()
	ret.AsReturn(nil)
	b.InsertInstruction(ret)

	g := b.DeclareFunction("g", false, nil, nil)
	b.SetCurrentFunction(g)
	ret2 := b.AllocateInstruction()
	ret2.AsReturn(nil)
	b.InsertInstruction(ret2)

	s := runDeadCode(t, b)

	require.True(t, s.IsBlockExecutable(f.Body().EntryBlock()))
	require.False(t, s.IsBlockExecutable(g.Body().EntryBlock()))

	// External callers of the public function are unknown.
	require.False(t, s.PredecessorsAt(f).AllPredecessorsKnown())
	require.Nil(t, s.PredecessorsAt(g))
}

func TestDeadCodeAnalysis_callPropagation(t *testing.T) {
	b := NewBuilder()

	g := b.DeclareFunction("g", false, nil, []Type{TypeI32})
	b.SetCurrentFunction(g)
	iconst := b.AllocateInstruction()
	iconst.AsIconst32(7)
	b.InsertInstruction(iconst)
	seven, _ := iconst.Returns()
	gRet := b.AllocateInstruction()
	gRet.AsReturn([]Value{seven})
	b.InsertInstruction(gRet)

	f := b.DeclareFunction("f", true, nil, []Type{TypeI32})
	b.SetCurrentFunction(f)
	call := b.AllocateInstruction()
	call.AsCall(g.FuncRef(), nil)
	b.InsertInstruction(call)
	res, _ := call.Returns()
	fRet := b.AllocateInstruction()
	fRet.AsReturn([]Value{res})
	b.InsertInstruction(fRet)

	s := runDeadCode(t, b)

	// The call makes the private callee live.
	require.True(t, s.IsBlockExecutable(g.Body().EntryBlock()))

	// The callee knows its callsites.
	callers := s.PredecessorsAt(g)
	require.NotNil(t, callers)
	require.True(t, callers.AllPredecessorsKnown())
	require.Equal(t, []*Instruction{call}, callers.KnownPredecessors())

	// The point after the call is reached by the callee's return, carrying
	// the returned values.
	after := s.PredecessorsAt(After(call))
	require.NotNil(t, after)
	require.True(t, after.AllPredecessorsKnown())
	require.Equal(t, []*Instruction{gRet}, after.KnownPredecessors())
	require.Equal(t, []Value{seven}, after.SuccessorInputs(gRet))
}

func TestDeadCodeAnalysis_callToDeclaration(t *testing.T) {
	b := NewBuilder()
	imp := b.DeclareFunctionImport("host", nil, nil)

	f := b.DeclareFunction("f", true, nil, nil)
	b.SetCurrentFunction(f)
	call := b.AllocateInstruction()
	call.AsCall(imp.FuncRef(), nil)
	b.InsertInstruction(call)
	ret := b.AllocateInstruction()
	ret.AsReturn(nil)
	b.InsertInstruction(ret)

	s := runDeadCode(t, b)

	// What a declaration does is unknown, so is what reaches the point
	// after calling it.
	after := s.PredecessorsAt(After(call))
	require.NotNil(t, after)
	require.False(t, after.AllPredecessorsKnown())
}

func TestDeadCodeAnalysis_structuredControlFlow(t *testing.T) {
	t.Run("if with constant condition", func(t *testing.T) {
		b := NewBuilder()
		fn := b.DeclareFunction("f", true, nil, nil)
		b.SetCurrentFunction(fn)
		entry := fn.Body().EntryBlock()

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
		iconst.AsIconst32(0)
		b.InsertInstruction(iconst)
		c, _ := iconst.Returns()

		ifInstr := b.AllocateInstruction()
		ifInstr.AsIf(c, thenRegion, elseRegion)
		b.InsertInstruction(ifInstr)

		ret := b.AllocateInstruction()
		ret.AsReturn(nil)
		b.InsertInstruction(ret)

		s := runDeadCode(t, b)

		// c == 0 selects the else region only.
		require.False(t, s.IsBlockExecutable(thenBlk))
		require.True(t, s.IsBlockExecutable(elseBlk))

		after := s.PredecessorsAt(After(ifInstr))
		require.NotNil(t, after)
		require.Equal(t, []*Instruction{elseYield}, after.KnownPredecessors())
	})

	t.Run("loop body", func(t *testing.T) {
		b := NewBuilder()
		fn := b.DeclareFunction("f", true, []Type{TypeI32}, nil)
		b.SetCurrentFunction(fn)
		entry := fn.Body().EntryBlock()
		x := entry.Param(0)

		body := b.AllocateRegion()
		b.SetCurrentRegion(body)
		bodyBlk := b.AllocateBasicBlock()
		bodyBlk.AddParam(b, TypeI32)
		b.SetCurrentBlock(bodyBlk)
		yield := b.AllocateInstruction()
		yield.AsYield(nil)
		b.InsertInstruction(yield)

		b.SetCurrentBlock(entry)
		loop := b.AllocateInstruction()
		loop.AsLoop([]Value{x}, body)
		b.InsertInstruction(loop)
		ret := b.AllocateInstruction()
		ret.AsReturn(nil)
		b.InsertInstruction(ret)

		s := runDeadCode(t, b)

		require.True(t, s.IsBlockExecutable(bodyBlk))

		// The loop enters its body forwarding the carried values.
		ps := s.PredecessorsAt(StartOf(bodyBlk))
		require.NotNil(t, ps)
		require.Equal(t, []*Instruction{loop}, ps.KnownPredecessors())
		require.Equal(t, []Value{x}, ps.SuccessorInputs(loop))

		after := s.PredecessorsAt(After(loop))
		require.NotNil(t, after)
		require.Equal(t, []*Instruction{yield}, after.KnownPredecessors())
	})
}
