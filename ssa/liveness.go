package ssa

import (
	"github.com/pkg/errors"
)

// LoopExitDistance is the extra next-use distance charged when liveness
// crosses an edge leaving a loop, or a yield leaving a repetitive region.
// A value whose only remaining uses are outside the loop thereby looks much
// further away than anything used inside it, so spill heuristics prefer to
// evict it.
const LoopExitDistance uint32 = 100000

// LivenessAnalysis computes, for every program point of one function, the
// set of live values together with the distance to their next use. It runs
// backward: the state at a point is joined from the states of whatever the
// point can transfer control to, with each instruction step adding one to
// all distances. Operands are at distance zero where they are used, and a
// value defined here but never used again is recorded at DeadDistance.
//
// The analysis is dense but consults the executability states of the same
// solver run, so values kept alive only by unreachable blocks or edges do
// not leak in. Scope is a single function; calls inside it are ordinary
// instructions that use their arguments and define their results.
type LivenessAnalysis struct {
	fn *Function
	s  *Solver

	// loops is the per-region loop structure, for the exit edge penalty.
	loops map[*Region]*LoopInfo
}

// NewLivenessAnalysis returns an analysis over the body of fn.
func NewLivenessAnalysis(fn *Function) (*LivenessAnalysis, error) {
	if fn.Declaration() {
		return nil, errors.Errorf("cannot analyze liveness of declaration %s", fn.Name())
	}
	return &LivenessAnalysis{fn: fn, loops: map[*Region]*LoopInfo{}}, nil
}

func (a *LivenessAnalysis) name() string { return "liveness" }

// initialize implements dataflowAnalysis. It builds the loop structure of
// every region of the function and seeds one visit per block, anchored at
// the block's end since the scan runs backward from there.
func (a *LivenessAnalysis) initialize(s *Solver) error {
	a.s = s
	return a.initRegion(s, a.fn.Body())
}

func (a *LivenessAnalysis) initRegion(s *Solver, r *Region) error {
	t, err := NewDominatorTree(s.b, r)
	if err != nil {
		return errors.Wrapf(err, "building dominator tree of %s", r.Name())
	}
	a.loops[r] = NewLoopInfo(t)
	for _, blk := range r.blocks {
		if blk.invalid {
			continue
		}
		s.enqueue(workItem{analysis: a, point: EndOf(blk)})
		for cur := blk.rootInstr; cur != nil; cur = cur.next {
			for _, nested := range cur.regions {
				if nested.Empty() {
					continue
				}
				if err := a.initRegion(s, nested); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// visit implements dataflowAnalysis. p is the end point of a block: the
// block's live-out set is joined from its live successors, then the
// instructions are scanned in reverse, recording the state before and after
// each one, down to the block's start point.
func (a *LivenessAnalysis) visit(s *Solver, p ProgramPoint) error {
	blk := p.block()
	item := workItem{analysis: a, point: p}

	s.addDependency(StartOf(blk), item)
	if !s.IsBlockExecutable(blk) {
		return nil
	}

	cur := a.liveOut(s, blk, item)
	s.propagate(p, s.nextUsesAt(p).join(cur))

	for instr := blk.currentInstr; instr != nil; instr = instr.prev {
		for _, res := range instrResults(instr) {
			if !cur.Contains(res) {
				cur.Insert(res, DeadDistance)
			}
		}
		after := After(instr)
		s.propagate(after, s.nextUsesAt(after).join(cur))

		cur = cur.Clone()
		cur.addToAll(1)
		for _, res := range instrResults(instr) {
			cur.Remove(res)
		}
		for _, nested := range instr.regions {
			a.joinRegionEntry(s, cur, nested, item)
		}
		instr.forEachOperand(func(v *Value) { cur.Insert(*v, 0) })
		before := Before(instr)
		s.propagate(before, s.nextUsesAt(before).join(cur))
	}

	for i := range blk.params {
		if v := blk.params[i].value; !cur.Contains(v) {
			cur.Insert(v, DeadDistance)
		}
	}
	start := StartOf(blk)
	s.propagate(start, s.nextUsesAt(start).join(cur))
	return nil
}

// liveOut joins the states flowing backward into the end of blk: the entry
// states of live CFG successors, and for a yield the state after the
// instruction owning the region. Control past a return or trap never comes
// back, so those contribute nothing.
func (a *LivenessAnalysis) liveOut(s *Solver, blk *basicBlock, item workItem) *NextUseSet {
	out := &NextUseSet{}
	li := a.loops[blk.region]
	for _, succ := range blk.success {
		edge := CFGEdge{From: blk, To: succ}
		s.addDependency(edge, item)
		s.addDependency(StartOf(succ), item)
		if !s.IsEdgeExecutable(blk, succ) {
			continue
		}
		in := s.NextUsesAt(StartOf(succ))
		if in == nil {
			continue
		}
		t := in.Clone()
		for i := range succ.params {
			t.Remove(succ.params[i].value)
		}
		if li.IsLoopExitEdge(blk, succ) {
			t.addToAll(LoopExitDistance)
		}
		out.join(t)
	}

	tail := blk.currentInstr
	if tail == nil || tail.opcode != OpcodeYield {
		return out
	}
	owner := blk.region.owner
	if owner == nil {
		// A yield terminating the function body behaves like a return.
		return out
	}
	anchor := After(owner)
	s.addDependency(anchor, item)
	if in := s.NextUsesAt(anchor); in != nil {
		t := in.Clone()
		for _, res := range instrResults(owner) {
			t.Remove(res)
		}
		if blk.region.isRepetitive() {
			t.addToAll(LoopExitDistance)
		}
		out.join(t)
	}
	return out
}

// joinRegionEntry folds the entry state of a nested region into the state
// before its owning instruction. The region's own parameters are defined by
// the transfer and excluded; everything live inside is at least one step
// away from the owner.
func (a *LivenessAnalysis) joinRegionEntry(s *Solver, cur *NextUseSet, r *Region, item workItem) {
	if r.Empty() {
		return
	}
	entry := r.entry()
	s.addDependency(StartOf(entry), item)
	if !s.IsBlockExecutable(entry) {
		return
	}
	in := s.NextUsesAt(StartOf(entry))
	if in == nil {
		return
	}
	t := in.Clone()
	for i := range entry.params {
		t.Remove(entry.params[i].value)
	}
	t.addToAll(1)
	cur.join(t)
}

// instrResults returns the values defined by instr.
func instrResults(instr *Instruction) []Value {
	first, rest := instr.Returns()
	if !first.Valid() {
		return nil
	}
	if len(rest) == 0 {
		return []Value{first}
	}
	return append([]Value{first}, rest...)
}

// NextUsesBefore returns the next-use set before instr, nil if never reached.
func (a *LivenessAnalysis) NextUsesBefore(instr *Instruction) *NextUseSet {
	return a.s.NextUsesAt(Before(instr))
}

// NextUsesAfter returns the next-use set after instr, nil if never reached.
func (a *LivenessAnalysis) NextUsesAfter(instr *Instruction) *NextUseSet {
	return a.s.NextUsesAt(After(instr))
}

// NextUsesAtStartOf returns the next-use set at the start of blk.
func (a *LivenessAnalysis) NextUsesAtStartOf(blk BasicBlock) *NextUseSet {
	return a.s.NextUsesAt(StartOf(blk))
}

// NextUsesAtEndOf returns the next-use set at the end of blk.
func (a *LivenessAnalysis) NextUsesAtEndOf(blk BasicBlock) *NextUseSet {
	return a.s.NextUsesAt(EndOf(blk))
}

// IsLiveBefore returns true if v has a use at or after instr.
func (a *LivenessAnalysis) IsLiveBefore(instr *Instruction, v Value) bool {
	set := a.NextUsesBefore(instr)
	return set != nil && set.IsLive(v)
}

// IsLiveAfter returns true if v has a use after instr.
func (a *LivenessAnalysis) IsLiveAfter(instr *Instruction, v Value) bool {
	set := a.NextUsesAfter(instr)
	return set != nil && set.IsLive(v)
}

// IsLiveAtStartOf returns true if v has a use at or after the start of blk.
func (a *LivenessAnalysis) IsLiveAtStartOf(blk BasicBlock, v Value) bool {
	set := a.NextUsesAtStartOf(blk)
	return set != nil && set.IsLive(v)
}

// IsLiveAtEndOf returns true if v has a use reachable from the end of blk.
func (a *LivenessAnalysis) IsLiveAtEndOf(blk BasicBlock, v Value) bool {
	set := a.NextUsesAtEndOf(blk)
	return set != nil && set.IsLive(v)
}

// IsLiveAfterEntry returns true if v is still needed once control has entered
// instr: used inside one of its nested regions, or after the instruction
// itself. For an instruction without regions this is the same as IsLiveAfter.
func (a *LivenessAnalysis) IsLiveAfterEntry(instr *Instruction, v Value) bool {
	if a.IsLiveAfter(instr, v) {
		return true
	}
	for _, r := range instr.regions {
		if r.Empty() {
			continue
		}
		if a.IsLiveAtStartOf(r.EntryBlock(), v) {
			return true
		}
	}
	return false
}

// NextUseDistanceAfter returns the distance from the point after instr to
// the next use of v, DeadDistance when v is dead there.
func (a *LivenessAnalysis) NextUseDistanceAfter(instr *Instruction, v Value) uint32 {
	set := a.NextUsesAfter(instr)
	if set == nil {
		return DeadDistance
	}
	return set.Distance(v)
}
