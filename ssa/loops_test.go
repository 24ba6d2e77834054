package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoopInfo(t *testing.T) {
	t.Run("no loops", func(t *testing.T) {
		//  0
		// / \
		// 1   2
		// \ /
		//  3
		b := NewBuilder()
		fn, blocks := buildCFGFunc(b, map[basicBlockID][]basicBlockID{
			0: {1, 2},
			1: {3},
			2: {3},
		})
		tree, err := NewDominatorTree(b, fn.Body())
		require.NoError(t, err)
		li := NewLoopInfo(tree)
		require.Empty(t, li.Loops())
		require.Nil(t, li.InnermostLoopOf(blocks[0]))
		require.Equal(t, 0, li.LoopDepthOf(blocks[3]))
	})

	t.Run("single loop", func(t *testing.T) {
		// 0 -> 1 -> 2 -> 1, 1 -> 3
		b := NewBuilder()
		fn, blocks := buildCFGFunc(b, map[basicBlockID][]basicBlockID{
			0: {1},
			1: {2, 3},
			2: {1},
		})
		tree, err := NewDominatorTree(b, fn.Body())
		require.NoError(t, err)
		li := NewLoopInfo(tree)

		require.Len(t, li.Loops(), 1)
		loop := li.Loops()[0]
		require.Equal(t, BasicBlock(blocks[1]), loop.Header())
		require.Nil(t, loop.Parent())

		require.Equal(t, loop, li.InnermostLoopOf(blocks[1]))
		require.Equal(t, loop, li.InnermostLoopOf(blocks[2]))
		require.Nil(t, li.InnermostLoopOf(blocks[0]))
		require.Nil(t, li.InnermostLoopOf(blocks[3]))

		require.True(t, li.IsBackEdge(blocks[2], blocks[1]))
		require.False(t, li.IsBackEdge(blocks[1], blocks[2]))
		require.True(t, li.IsLoopExitEdge(blocks[1], blocks[3]))
		require.False(t, li.IsLoopExitEdge(blocks[1], blocks[2]))
		require.False(t, li.IsLoopExitEdge(blocks[0], blocks[1]))
	})

	t.Run("nested loops", func(t *testing.T) {
		// 0 -> 1 -> 2 -> 3 -> 2, 3 -> 4 -> 1, 4 -> 5
		//
		// Inner loop {2,3} headed by 2, outer loop {1,2,3,4} headed by 1.
		b := NewBuilder()
		fn, blocks := buildCFGFunc(b, map[basicBlockID][]basicBlockID{
			0: {1},
			1: {2},
			2: {3},
			3: {2, 4},
			4: {1, 5},
		})
		tree, err := NewDominatorTree(b, fn.Body())
		require.NoError(t, err)
		li := NewLoopInfo(tree)

		require.Len(t, li.Loops(), 2)
		inner := li.InnermostLoopOf(blocks[2])
		require.NotNil(t, inner)
		require.Equal(t, BasicBlock(blocks[2]), inner.Header())
		outer := inner.Parent()
		require.NotNil(t, outer)
		require.Equal(t, BasicBlock(blocks[1]), outer.Header())

		require.Equal(t, inner, li.InnermostLoopOf(blocks[3]))
		require.Equal(t, outer, li.InnermostLoopOf(blocks[1]))
		require.Equal(t, outer, li.InnermostLoopOf(blocks[4]))

		require.Equal(t, 2, li.LoopDepthOf(blocks[3]))
		require.Equal(t, 1, li.LoopDepthOf(blocks[4]))
		require.Equal(t, 0, li.LoopDepthOf(blocks[5]))

		require.True(t, li.Contains(outer, blocks[3]))
		require.False(t, li.Contains(inner, blocks[4]))

		// 3 -> 4 leaves the inner loop but stays in the outer one.
		require.True(t, li.IsLoopExitEdge(blocks[3], blocks[4]))
		// 4 -> 5 leaves the outer loop.
		require.True(t, li.IsLoopExitEdge(blocks[4], blocks[5]))
		// Back edges stay inside their loop.
		require.False(t, li.IsLoopExitEdge(blocks[4], blocks[1]))
		require.False(t, li.IsLoopExitEdge(blocks[3], blocks[2]))
	})
}
