package ssa

// DeadCodeAnalysis proves blocks, CFG edges and whole functions reachable.
// It is optimistic: everything starts dead, and only the entry blocks of
// public functions are live initially. Liveness then flows forward through
// branches, structured control flow regions and resolvable calls. Branch
// conditions are folded through the ConstantLattice so that a branch whose
// condition is a known constant only keeps its taken edge alive.
//
// Besides executability this analysis populates the predecessor states of
// the solver: for each live transfer target it records which instructions
// can reach it and the values they forward, and for each function the
// callsites it is invoked from. Anything a static resolver cannot see, such
// as external callers of a public function or a call to a declaration,
// degrades the affected state to unknown predecessors instead of guessing.
type DeadCodeAnalysis struct {
	module *Module
	consts ConstantLattice
}

// NewDeadCodeAnalysis returns an analysis over all the functions of module.
// consts folds branch conditions; NewFoldedConstants is the usual choice.
func NewDeadCodeAnalysis(module *Module, consts ConstantLattice) *DeadCodeAnalysis {
	if consts == nil {
		panic("BUG: DeadCodeAnalysis requires a ConstantLattice")
	}
	return &DeadCodeAnalysis{module: module, consts: consts}
}

func (a *DeadCodeAnalysis) name() string { return "dead-code" }

// initialize implements dataflowAnalysis. Every block of every function gets
// a visit seeded and re-scheduled whenever its start point changes, so a
// block is rescanned when it first becomes live and when a predecessor later
// forwards different values. Public functions are reachability roots and get
// unknown callers recorded up front.
func (a *DeadCodeAnalysis) initialize(s *Solver) error {
	for _, fn := range a.module.Functions() {
		if fn.Declaration() {
			continue
		}
		if fn.Public() {
			s.propagate(fn, s.predecessorsAt(fn).setHasUnknownPredecessors())
			s.markLive(StartOf(fn.Body().EntryBlock()))
		}
		a.seedRegion(s, fn.Body())
	}
	return nil
}

// seedRegion registers and enqueues the visits of every block in r and in
// the regions nested under its instructions. Block and edge states are
// created dead here, so after the run everything not proven live queries as
// dead rather than falling back to the conservative default.
func (a *DeadCodeAnalysis) seedRegion(s *Solver, r *Region) {
	for _, blk := range r.blocks {
		if blk.invalid {
			continue
		}
		item := workItem{analysis: a, point: StartOf(blk)}
		s.executableAt(StartOf(blk))
		s.addDependency(StartOf(blk), item)
		s.enqueue(item)
		for _, succ := range blk.success {
			s.executableAt(CFGEdge{From: blk, To: succ})
		}
		for cur := blk.rootInstr; cur != nil; cur = cur.next {
			for _, nested := range cur.regions {
				a.seedRegion(s, nested)
			}
		}
	}
}

// visit implements dataflowAnalysis. p is the start point of a block; if the
// block is live its instructions are scanned in order, transferring liveness
// to whatever each control flow instruction can reach. The scan stops at the
// first instruction that never falls through.
func (a *DeadCodeAnalysis) visit(s *Solver, p ProgramPoint) error {
	blk := p.block()
	if !s.executableAt(p).IsLive() {
		return nil
	}
	for cur := blk.rootInstr; cur != nil; cur = cur.next {
		switch cur.opcode {
		case OpcodeJump:
			a.markEdgeLive(s, blk, cur)
			return nil
		case OpcodeBrz, OpcodeBrnz:
			c, isConst, known := a.consts.Lookup(cur.v)
			if known && isConst {
				taken := (c == 0) == (cur.opcode == OpcodeBrz)
				if taken {
					a.markEdgeLive(s, blk, cur)
					return nil
				}
				// The branch can never be taken; only the fall
				// through path stays live.
				continue
			}
			a.markEdgeLive(s, blk, cur)
		case OpcodeReturn:
			a.visitReturn(s, p, cur)
			return nil
		case OpcodeYield:
			a.visitYield(s, p, cur)
			return nil
		case OpcodeTrap:
			return nil
		case OpcodeIf:
			a.visitIf(s, cur)
		case OpcodeLoop:
			a.enterRegion(s, cur, cur.regions[0], cur.vs)
		case OpcodeCall:
			a.visitCall(s, cur)
		}
	}
	return nil
}

// markEdgeLive records the CFG edge of the branch as live, makes its target
// live and joins the branch into the target's predecessors together with the
// forwarded args.
func (a *DeadCodeAnalysis) markEdgeLive(s *Solver, from *basicBlock, branch *Instruction) {
	to := branch.blk
	s.markLive(CFGEdge{From: from, To: to})
	s.markLive(StartOf(to))
	s.propagate(StartOf(to), s.predecessorsAt(StartOf(to)).joinWithInputs(branch, branch.vs))
}

// visitIf transfers liveness into the regions of an If. A known constant
// condition keeps only the corresponding region alive; otherwise both are
// entered. An empty region means the If immediately falls through, which is
// recorded as the If reaching its own after point.
func (a *DeadCodeAnalysis) visitIf(s *Solver, instr *Instruction) {
	thenLive, elseLive := true, true
	if c, isConst, known := a.consts.Lookup(instr.v); known && isConst {
		thenLive, elseLive = c != 0, c == 0
	}
	if thenLive {
		a.enterRegion(s, instr, instr.regions[0], nil)
	}
	if elseLive {
		a.enterRegion(s, instr, instr.regions[1], nil)
	}
}

// enterRegion makes the entry block of r live with instr as a known
// predecessor forwarding inputs. An empty region transfers control straight
// to the point after its owner.
func (a *DeadCodeAnalysis) enterRegion(s *Solver, instr *Instruction, r *Region, inputs []Value) {
	if r == nil || r.Empty() {
		s.propagate(After(instr), s.predecessorsAt(After(instr)).join(instr))
		return
	}
	entry := r.entry()
	s.markLive(StartOf(entry))
	s.propagate(StartOf(entry), s.predecessorsAt(StartOf(entry)).joinWithInputs(instr, inputs))
}

// visitCall resolves the callee and transfers liveness into its body. Calls
// to declarations cannot be followed, so the point after the call loses
// predecessor precision instead.
func (a *DeadCodeAnalysis) visitCall(s *Solver, call *Instruction) {
	callee := a.module.Function(FuncRef(call.u64))
	if callee == nil || callee.Declaration() {
		s.propagate(After(call), s.predecessorsAt(After(call)).setHasUnknownPredecessors())
		return
	}
	s.markLive(StartOf(callee.Body().EntryBlock()))
	s.propagate(callee, s.predecessorsAt(callee).joinWithInputs(call, call.vs))
}

// visitReturn joins the return into the after points of every known callsite
// of the enclosing function. The visit is registered as depending on the
// callsite set so that callsites discovered later re-run it.
func (a *DeadCodeAnalysis) visitReturn(s *Solver, p ProgramPoint, ret *Instruction) {
	fn := ret.parent.region.fn
	s.addDependency(fn, workItem{analysis: a, point: p})
	callsites := s.predecessorsAt(fn)
	for _, call := range callsites.KnownPredecessors() {
		s.propagate(After(call), s.predecessorsAt(After(call)).joinWithInputs(ret, ret.vs))
	}
}

// visitYield joins the yield into the after point of the instruction owning
// its region. A yield in a function body region behaves like a return.
func (a *DeadCodeAnalysis) visitYield(s *Solver, p ProgramPoint, yield *Instruction) {
	owner := yield.parent.region.owner
	if owner == nil {
		a.visitReturn(s, p, yield)
		return
	}
	s.propagate(After(owner), s.predecessorsAt(After(owner)).joinWithInputs(yield, yield.vs))
}
