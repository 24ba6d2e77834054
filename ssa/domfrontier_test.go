package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDominanceFrontier(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edges map[basicBlockID][]basicBlockID
		exp   map[basicBlockID][]basicBlockID
	}{
		{
			name: "diamond",
			//  0
			// / \
			// 1   2
			// \ /
			//  3
			edges: map[basicBlockID][]basicBlockID{
				0: {1, 2},
				1: {3},
				2: {3},
			},
			exp: map[basicBlockID][]basicBlockID{
				1: {3},
				2: {3},
			},
		},
		{
			name: "loop",
			// 0 -> 1 -> 2 -> 1, 1 -> 3
			edges: map[basicBlockID][]basicBlockID{
				0: {1},
				1: {2, 3},
				2: {1},
			},
			exp: map[basicBlockID][]basicBlockID{
				1: {1},
				2: {1},
			},
		},
		{
			name: "nested merge",
			//       0
			//      / \
			//     1   2
			//    / \   \
			//   3   4   |
			//    \ /    |
			//     5     |
			//      \   /
			//       6
			edges: map[basicBlockID][]basicBlockID{
				0: {1, 2},
				1: {3, 4},
				2: {6},
				3: {5},
				4: {5},
				5: {6},
			},
			exp: map[basicBlockID][]basicBlockID{
				1: {6},
				2: {6},
				3: {5},
				4: {5},
				5: {6},
			},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder()
			fn, blocks := buildCFGFunc(b, tc.edges)
			tree, err := NewDominatorTree(b, fn.Body())
			require.NoError(t, err)
			f := NewDominanceFrontier(tree)

			for id := basicBlockID(0); id < testNumBlocks; id++ {
				var exp []BasicBlock
				for _, fid := range tc.exp[id] {
					exp = append(exp, blocks[fid])
				}
				require.Equal(t, exp, f.Of(blocks[id]), "frontier of blk%d", id)
			}
		})
	}
}

func TestDominanceFrontier_iterateAll(t *testing.T) {
	//       0
	//      / \
	//     1   2
	//    / \   \
	//   3   4   |
	//    \ /    |
	//     5     |
	//      \   /
	//       6
	b := NewBuilder()
	fn, blocks := buildCFGFunc(b, map[basicBlockID][]basicBlockID{
		0: {1, 2},
		1: {3, 4},
		2: {6},
		3: {5},
		4: {5},
		5: {6},
	})
	tree, err := NewDominatorTree(b, fn.Body())
	require.NoError(t, err)
	f := NewDominanceFrontier(tree)

	// A definition in 3 needs phis at 5, and transitively at 6.
	require.Equal(t, []BasicBlock{blocks[5], blocks[6]}, f.Iterate(blocks[3]))
	// Definitions in both branch arms of 1 converge the same way.
	require.Equal(t, []BasicBlock{blocks[5], blocks[6]},
		f.IterateAll([]BasicBlock{blocks[3], blocks[4]}))
	// The entry dominates everything.
	require.Nil(t, f.IterateAll([]BasicBlock{blocks[0]}))
}
