package ssa

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DeadDistance is the next-use distance of a value known to be dead: its
// next use is infinitely far away. A value absent from a NextUseSet has
// unknown liveness instead, which is the bottom of the lattice.
const DeadDistance uint32 = math.MaxUint32

// NextUse pairs a value with the distance to its next use at some program
// point. Distance 0 means the value is used at the point itself.
type NextUse struct {
	Value    Value
	Distance uint32
}

// NextUseSet maps live values to their next-use distance at one program
// point. During fixpoint iteration an entry only becomes more defined:
// absent, then some finite distance shrinking towards its final value, with
// DeadDistance standing for "live range ends here". The join of two sets is
// their union keeping the minimum distance per value.
type NextUseSet struct {
	uses []NextUse
}

func (s *NextUseSet) find(v Value) int {
	for i := range s.uses {
		if s.uses[i].Value == v {
			return i
		}
	}
	return -1
}

// Insert adds v with the given distance, keeping the smaller distance when v
// is already present.
func (s *NextUseSet) Insert(v Value, distance uint32) ChangeResult {
	if i := s.find(v); i >= 0 {
		if s.uses[i].Distance <= distance {
			return ChangeUnchanged
		}
		s.uses[i].Distance = distance
		return ChangeChanged
	}
	s.uses = append(s.uses, NextUse{Value: v, Distance: distance})
	return ChangeChanged
}

// Remove drops the entry for v, returning its distance and whether it was
// present.
func (s *NextUseSet) Remove(v Value) (uint32, bool) {
	i := s.find(v)
	if i < 0 {
		return 0, false
	}
	d := s.uses[i].Distance
	s.uses[i] = s.uses[len(s.uses)-1]
	s.uses = s.uses[:len(s.uses)-1]
	return d, true
}

// Distance returns the next-use distance of v, or DeadDistance when v is
// dead or unknown here.
func (s *NextUseSet) Distance(v Value) uint32 {
	if i := s.find(v); i >= 0 {
		return s.uses[i].Distance
	}
	return DeadDistance
}

// IsLive returns true if v has a finite next-use distance.
func (s *NextUseSet) IsLive(v Value) bool {
	return s.Distance(v) < DeadDistance
}

// Contains returns true if v has an entry, live or dead.
func (s *NextUseSet) Contains(v Value) bool {
	return s.find(v) >= 0
}

// Len returns the number of entries.
func (s *NextUseSet) Len() int { return len(s.uses) }

// Clear removes all entries.
func (s *NextUseSet) Clear() {
	s.uses = s.uses[:0]
}

// Clone returns a copy sharing no storage with s.
func (s *NextUseSet) Clone() *NextUseSet {
	return &NextUseSet{uses: append([]NextUse(nil), s.uses...)}
}

// Equal compares two sets as maps, ignoring entry order.
func (s *NextUseSet) Equal(other *NextUseSet) bool {
	if len(s.uses) != len(other.uses) {
		return false
	}
	for _, nu := range s.uses {
		i := other.find(nu.Value)
		if i < 0 || other.uses[i].Distance != nu.Distance {
			return false
		}
	}
	return true
}

// join merges other into s, keeping the minimum distance per value.
func (s *NextUseSet) join(other *NextUseSet) ChangeResult {
	result := ChangeUnchanged
	for _, nu := range other.uses {
		result = result.merge(s.Insert(nu.Value, nu.Distance))
	}
	return result
}

// addToAll increments every distance by delta, saturating at DeadDistance.
func (s *NextUseSet) addToAll(delta uint32) {
	for i := range s.uses {
		s.uses[i].Distance = saturatingAdd(s.uses[i].Distance, delta)
	}
}

func saturatingAdd(a, b uint32) uint32 {
	if sum := uint64(a) + uint64(b); sum < uint64(DeadDistance) {
		return uint32(sum)
	}
	return DeadDistance
}

// Live returns the values with a finite next-use distance, ordered by value
// ID for deterministic iteration.
func (s *NextUseSet) Live() []Value {
	var ret []Value
	for _, nu := range s.uses {
		if nu.Distance < DeadDistance {
			ret = append(ret, nu.Value)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].id() < ret[j].id() })
	return ret
}

// PopNearest removes and returns the entry with the smallest distance,
// breaking ties by smaller value ID. Returns false on an empty set.
func (s *NextUseSet) PopNearest() (NextUse, bool) {
	return s.pop(func(a, b NextUse) bool {
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Value.id() < b.Value.id()
	})
}

// PopFurthest removes and returns the entry with the largest distance,
// breaking ties by larger value ID. Spill heuristics evict the value whose
// next use is furthest away.
func (s *NextUseSet) PopFurthest() (NextUse, bool) {
	return s.pop(func(a, b NextUse) bool {
		if a.Distance != b.Distance {
			return a.Distance > b.Distance
		}
		return a.Value.id() > b.Value.id()
	})
}

func (s *NextUseSet) pop(better func(a, b NextUse) bool) (NextUse, bool) {
	if len(s.uses) == 0 {
		return NextUse{}, false
	}
	best := 0
	for i := 1; i < len(s.uses); i++ {
		if better(s.uses[i], s.uses[best]) {
			best = i
		}
	}
	nu := s.uses[best]
	s.uses[best] = s.uses[len(s.uses)-1]
	s.uses = s.uses[:len(s.uses)-1]
	return nu, true
}

func (s *NextUseSet) String() string {
	entries := append([]NextUse(nil), s.uses...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value.id() < entries[j].Value.id() })
	var str strings.Builder
	str.WriteByte('{')
	for i, nu := range entries {
		if i > 0 {
			str.WriteString(", ")
		}
		if nu.Distance == DeadDistance {
			fmt.Fprintf(&str, "v%d: dead", nu.Value.id())
		} else {
			fmt.Fprintf(&str, "v%d: %d", nu.Value.id(), nu.Distance)
		}
	}
	str.WriteByte('}')
	return str.String()
}
