package ssa

import (
	"go.uber.org/zap"
)

// dataflowAnalysis is the contract between the solver and an analysis
// instance. initialize seeds the lattice states and the worklist; visit
// recomputes the states anchored at one program point.
type dataflowAnalysis interface {
	name() string
	initialize(s *Solver) error
	visit(s *Solver, p ProgramPoint) error
}

// workItem is one pending (analysis, point) visit.
type workItem struct {
	analysis dataflowAnalysis
	point    ProgramPoint
}

// Solver drives loaded dataflow analyses to a fixpoint over an explicit
// worklist. Lattice states are owned by the solver and keyed by their
// anchor, either a ProgramPoint or a CFGEdge. When a state changes, the
// dependency table re-enqueues every visit that was derived from it, so all
// re-visitation is scheduled here rather than inside the states.
type Solver struct {
	b   *builder
	log *zap.Logger

	analyses []dataflowAnalysis

	queue  []workItem
	queued map[workItem]struct{}

	// deps maps a state anchor to the visits depending on its value.
	deps map[any][]workItem

	executable map[any]*Executable
	preds      map[any]*PredecessorState
	nextUses   map[ProgramPoint]*NextUseSet
}

// NewSolver returns an empty solver for the given builder. A nil logger
// disables logging.
func NewSolver(b Builder, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{
		b:          b.(*builder),
		log:        log,
		queued:     map[workItem]struct{}{},
		deps:       map[any][]workItem{},
		executable: map[any]*Executable{},
		preds:      map[any]*PredecessorState{},
		nextUses:   map[ProgramPoint]*NextUseSet{},
	}
}

// Load registers an analysis instance to run on the next Run call.
func (s *Solver) Load(a dataflowAnalysis) {
	s.analyses = append(s.analyses, a)
}

// Run initializes all loaded analyses and processes the worklist until no
// pending visits remain.
func (s *Solver) Run() error {
	for _, a := range s.analyses {
		s.log.Debug("initializing analysis", zap.String("analysis", a.name()))
		if err := a.initialize(s); err != nil {
			return err
		}
	}
	for len(s.queue) > 0 {
		item := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, item)
		s.log.Debug("visiting",
			zap.String("analysis", item.analysis.name()),
			zap.Stringer("point", item.point))
		if err := item.analysis.visit(s, item.point); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) enqueue(item workItem) {
	if _, ok := s.queued[item]; ok {
		return
	}
	s.queued[item] = struct{}{}
	s.queue = append(s.queue, item)
}

// addDependency records that item must be re-visited whenever the state at
// anchor changes.
func (s *Solver) addDependency(anchor any, item workItem) {
	for _, dep := range s.deps[anchor] {
		if dep == item {
			return
		}
	}
	s.deps[anchor] = append(s.deps[anchor], item)
}

// onChange schedules every visit depending on the state at anchor.
func (s *Solver) onChange(anchor any) {
	for _, dep := range s.deps[anchor] {
		s.enqueue(dep)
	}
}

// propagate folds a change result into the schedule: dependents of anchor
// are re-enqueued only when the state actually changed.
func (s *Solver) propagate(anchor any, result ChangeResult) {
	if result == ChangeChanged {
		s.onChange(anchor)
	}
}

// executableAt returns the Executable state at the given anchor, creating a
// dead one if absent. Valid anchors are block start points and CFG edges.
func (s *Solver) executableAt(anchor any) *Executable {
	state, ok := s.executable[anchor]
	if !ok {
		state = &Executable{}
		s.executable[anchor] = state
	}
	return state
}

// markLive flips the Executable state at anchor to live and notifies
// dependents on change.
func (s *Solver) markLive(anchor any) ChangeResult {
	result := s.executableAt(anchor).markLive()
	s.log.Debug("marking live", zap.Any("anchor", anchor), zap.Stringer("result", result))
	s.propagate(anchor, result)
	return result
}

// IsBlockExecutable returns whether blk was proven reachable. A block with
// no recorded state is conservatively treated as executable, so answers stay
// sound when no executability analysis ran.
func (s *Solver) IsBlockExecutable(blk BasicBlock) bool {
	state, ok := s.executable[StartOf(blk)]
	if !ok {
		return true
	}
	return state.IsLive()
}

// IsEdgeExecutable returns whether the edge from -> to was proven reachable.
func (s *Solver) IsEdgeExecutable(from, to BasicBlock) bool {
	state, ok := s.executable[CFGEdge{From: from.(*basicBlock), To: to.(*basicBlock)}]
	if !ok {
		return true
	}
	return state.IsLive()
}

// predecessorsAt returns the PredecessorState at the given anchor, creating
// an all-known empty one if absent. Valid anchors are program points and
// functions (for callsite sets).
func (s *Solver) predecessorsAt(anchor any) *PredecessorState {
	state, ok := s.preds[anchor]
	if !ok {
		state = newPredecessorState()
		s.preds[anchor] = state
	}
	return state
}

// PredecessorsAt exposes the predecessor state at the given anchor for
// queries, or nil when nothing was recorded there.
func (s *Solver) PredecessorsAt(anchor any) *PredecessorState {
	return s.preds[anchor]
}

// nextUsesAt returns the NextUseSet anchored at p, creating an empty one if
// absent.
func (s *Solver) nextUsesAt(p ProgramPoint) *NextUseSet {
	set, ok := s.nextUses[p]
	if !ok {
		set = &NextUseSet{}
		s.nextUses[p] = set
	}
	return set
}

// NextUsesAt exposes the next-use set at p for queries, or nil when the
// liveness analysis never reached p.
func (s *Solver) NextUsesAt(p ProgramPoint) *NextUseSet {
	return s.nextUses[p]
}
