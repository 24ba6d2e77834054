package ssa

import "fmt"

type regionID uint32

// Region is a list of basic blocks forming a single-entry sub-CFG. The body
// of a Function is a region, and structured control flow instructions such as
// If and Loop carry nested regions.
type Region struct {
	id regionID
	// owner is the instruction carrying this region, nil for a function body.
	owner  *Instruction
	fn     *Function
	blocks []*basicBlock
}

// Name returns the unique string ID of this region.
func (r *Region) Name() string {
	return fmt.Sprintf("region%d", r.id)
}

// Function returns the function this region belongs to.
func (r *Region) Function() *Function {
	return r.fn
}

// Owner returns the instruction carrying this region, or nil when this region
// is a function body.
func (r *Region) Owner() *Instruction {
	return r.owner
}

// Empty returns true if this region has no blocks.
func (r *Region) Empty() bool {
	return len(r.blocks) == 0
}

// Blocks returns the blocks of this region in allocation order. Erased blocks
// are skipped.
func (r *Region) Blocks() (ret []BasicBlock) {
	for _, blk := range r.blocks {
		if !blk.invalid {
			ret = append(ret, blk)
		}
	}
	return
}

// EntryBlock returns the entry block of this region.
func (r *Region) EntryBlock() BasicBlock {
	return r.entry()
}

func (r *Region) entry() *basicBlock {
	if len(r.blocks) == 0 {
		panic("BUG: entry block of an empty region")
	}
	return r.blocks[0]
}

// regionIndex returns the position of this region in its owner instruction.
func (r *Region) regionIndex() int {
	if r.owner == nil {
		panic("BUG: regionIndex on a function body")
	}
	for i, nested := range r.owner.regions {
		if nested == r {
			return i
		}
	}
	panic("BUG: region is not attached to its owner")
}

// isRepetitive returns true if this region may execute more than once per
// execution of its owner, e.g. a loop body.
func (r *Region) isRepetitive() bool {
	return r.owner != nil && r.owner.isRepetitiveRegion(r.regionIndex())
}

// FuncRef is a unique identifier of a Function within a Module.
type FuncRef uint32

// String implements fmt.Stringer.
func (r FuncRef) String() string {
	return fmt.Sprintf("f%d", r)
}

// Function is a single function in a Module. A Function without a body is a
// declaration, e.g. an import, whose effects are unknown to the analyses.
type Function struct {
	ref     FuncRef
	name    string
	public  bool
	params  []Type
	results []Type
	// body is nil for declarations.
	body *Region
}

// Name returns the symbol name of this function.
func (f *Function) Name() string { return f.name }

// FuncRef returns the unique identifier of this function within its module.
func (f *Function) FuncRef() FuncRef { return f.ref }

// Public returns true if this function is visible outside the module, which
// makes it a root for reachability.
func (f *Function) Public() bool { return f.public }

// Declaration returns true if this function has no body.
func (f *Function) Declaration() bool { return f.body == nil }

// Body returns the body region, nil for declarations.
func (f *Function) Body() *Region { return f.body }

// Params returns the parameter types.
func (f *Function) Params() []Type { return f.params }

// Results returns the result types.
func (f *Function) Results() []Type { return f.results }

// Module is a set of functions with name based lookup, the scope over which
// call targets resolve.
type Module struct {
	funcs  []*Function
	byName map[string]*Function
}

// Functions returns all the functions of this module in declaration order.
func (m *Module) Functions() []*Function {
	return m.funcs
}

// Find returns the function with the given name, or nil.
func (m *Module) Find(name string) *Function {
	return m.byName[name]
}

// Function returns the function for the given ref.
func (m *Module) Function(ref FuncRef) *Function {
	return m.funcs[ref]
}
