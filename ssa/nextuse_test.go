package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextUseSet_insertKeepsMinimum(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	var s NextUseSet

	require.Equal(t, ChangeChanged, s.Insert(v1, 10))
	require.Equal(t, ChangeUnchanged, s.Insert(v1, 15))
	require.Equal(t, ChangeChanged, s.Insert(v1, 3))
	require.Equal(t, uint32(3), s.Distance(v1))
	require.True(t, s.IsLive(v1))
}

func TestNextUseSet_deadEntries(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	v2 := Value(2).setType(TypeI32)
	var s NextUseSet

	s.Insert(v1, DeadDistance)
	s.Insert(v2, 4)
	require.True(t, s.Contains(v1))
	require.False(t, s.IsLive(v1))
	require.True(t, s.IsLive(v2))
	require.Equal(t, []Value{v2}, s.Live())

	// Unknown values are indistinguishable from dead ones by distance.
	require.Equal(t, DeadDistance, s.Distance(Value(9).setType(TypeI32)))
}

func TestNextUseSet_join(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	v2 := Value(2).setType(TypeI32)
	v3 := Value(3).setType(TypeI32)

	var a, b NextUseSet
	a.Insert(v1, 5)
	a.Insert(v2, DeadDistance)
	b.Insert(v1, 9)
	b.Insert(v2, 2)
	b.Insert(v3, 1)

	require.Equal(t, ChangeChanged, a.join(&b))
	require.Equal(t, uint32(5), a.Distance(v1))
	require.Equal(t, uint32(2), a.Distance(v2))
	require.Equal(t, uint32(1), a.Distance(v3))

	// Joining the same state again is a no-op.
	require.Equal(t, ChangeUnchanged, a.join(&b))
}

func TestNextUseSet_addToAllSaturates(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	v2 := Value(2).setType(TypeI32)
	var s NextUseSet
	s.Insert(v1, 1)
	s.Insert(v2, DeadDistance-1)

	s.addToAll(LoopExitDistance)
	require.Equal(t, 1+LoopExitDistance, s.Distance(v1))
	require.Equal(t, DeadDistance, s.Distance(v2))
}

func TestNextUseSet_pop(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	v2 := Value(2).setType(TypeI32)
	v3 := Value(3).setType(TypeI32)
	var s NextUseSet
	s.Insert(v1, 7)
	s.Insert(v2, 3)
	s.Insert(v3, 7)

	nearest, ok := s.PopNearest()
	require.True(t, ok)
	require.Equal(t, NextUse{Value: v2, Distance: 3}, nearest)

	// Ties break towards the larger value ID when evicting.
	furthest, ok := s.PopFurthest()
	require.True(t, ok)
	require.Equal(t, NextUse{Value: v3, Distance: 7}, furthest)

	_, ok = s.PopNearest()
	require.True(t, ok)
	_, ok = s.PopNearest()
	require.False(t, ok)
}

func TestNextUseSet_cloneAndEqual(t *testing.T) {
	v1 := Value(1).setType(TypeI32)
	v2 := Value(2).setType(TypeI32)
	var s NextUseSet
	s.Insert(v1, 1)
	s.Insert(v2, 2)

	c := s.Clone()
	require.True(t, s.Equal(c))
	c.Insert(v1, 0)
	require.False(t, s.Equal(c))
	require.Equal(t, uint32(1), s.Distance(v1))

	require.Equal(t, "{v1: 0, v2: 2}", c.String())
}
