// Package fixture loads SSA modules from YAML descriptions. It exists for the
// sablec debug tool and for tests that want to state a CFG as data instead of
// builder calls: each function lists its blocks, each block its parameters and
// a small assembly-like instruction text.
package fixture

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/sable-vm/sable/ssa"
)

// File is the top level YAML document.
type File struct {
	Functions []FunctionDef `yaml:"functions"`
}

// FunctionDef describes one function. A function with Import set has no
// blocks and resolves as a declaration. The first block of Blocks is the
// entry; its parameters are the function parameters, named by Args or p0,
// p1, ... when Args is absent.
type FunctionDef struct {
	Name    string     `yaml:"name"`
	Public  bool       `yaml:"public"`
	Import  bool       `yaml:"import"`
	Params  []string   `yaml:"params"`
	Results []string   `yaml:"results"`
	Args    []string   `yaml:"args"`
	Blocks  []BlockDef `yaml:"blocks"`
}

// BlockDef describes one basic block: its name, its parameters and its
// instructions, one per line.
type BlockDef struct {
	Name   string     `yaml:"name"`
	Params []ParamDef `yaml:"params"`
	Code   []string   `yaml:"code"`
}

// ParamDef is a named block parameter.
type ParamDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Module is the loaded form: the builder holding the IR plus the name tables
// the fixture introduced, so tools can report results in the fixture's own
// vocabulary.
type Module struct {
	Builder   ssa.Builder
	Functions []*Function
}

// Function pairs a built function with its fixture-level names.
type Function struct {
	Fn     *ssa.Function
	Blocks map[string]ssa.BasicBlock
	Values map[string]ssa.Value

	blockNames map[ssa.BasicBlock]string
}

// BlockName returns the fixture name of blk, falling back to its IR name.
func (f *Function) BlockName(blk ssa.BasicBlock) string {
	if name, ok := f.blockNames[blk]; ok {
		return name
	}
	return blk.Name()
}

// Load reads and parses the YAML module at path.
func Load(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading fixture")
	}
	return Parse(data)
}

// Parse builds the module described by the YAML document in data.
func Parse(data []byte) (*Module, error) {
	var file File
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing fixture")
	}

	b := ssa.NewBuilder()
	m := &Module{Builder: b}

	// Declare everything first so calls can reference functions in any order.
	for i := range file.Functions {
		def := &file.Functions[i]
		params, err := parseTypes(def.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s: params", def.Name)
		}
		results, err := parseTypes(def.Results)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s: results", def.Name)
		}
		if def.Import {
			if len(def.Blocks) > 0 {
				return nil, errors.Errorf("function %s: an import cannot have blocks", def.Name)
			}
			b.DeclareFunctionImport(def.Name, params, results)
			continue
		}
		if len(def.Blocks) == 0 {
			return nil, errors.Errorf("function %s: a non-import needs at least one block", def.Name)
		}
		b.DeclareFunction(def.Name, def.Public, params, results)
	}

	for i := range file.Functions {
		def := &file.Functions[i]
		if def.Import {
			continue
		}
		fn, err := buildBody(b, def)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", def.Name)
		}
		m.Functions = append(m.Functions, fn)
	}
	return m, nil
}

func buildBody(b ssa.Builder, def *FunctionDef) (*Function, error) {
	fn := b.Module().Find(def.Name)
	b.SetCurrentFunction(fn)

	lf := &Function{
		Fn:         fn,
		Blocks:     map[string]ssa.BasicBlock{},
		Values:     map[string]ssa.Value{},
		blockNames: map[ssa.BasicBlock]string{},
	}

	// The entry block exists already, carrying the function parameters.
	entry := fn.Body().EntryBlock()
	for i := 0; i < entry.Params(); i++ {
		name := "p" + strconv.Itoa(i)
		if i < len(def.Args) {
			name = def.Args[i]
		}
		v := entry.Param(i)
		lf.Values[name] = v
		b.AnnotateValue(v, name)
	}

	// Allocate all blocks and their parameters before parsing any code, so
	// branches can target blocks defined later in the document.
	for i := range def.Blocks {
		bd := &def.Blocks[i]
		if bd.Name == "" {
			return nil, errors.Errorf("block %d has no name", i)
		}
		if _, dup := lf.Blocks[bd.Name]; dup {
			return nil, errors.Errorf("duplicated block name %s", bd.Name)
		}
		var blk ssa.BasicBlock
		if i == 0 {
			if len(bd.Params) > 0 {
				return nil, errors.Errorf("block %s: the entry takes its parameters from the function", bd.Name)
			}
			blk = entry
		} else {
			blk = b.AllocateBasicBlock()
			for _, p := range bd.Params {
				typ, err := parseType(p.Type)
				if err != nil {
					return nil, errors.Wrapf(err, "block %s: param %s", bd.Name, p.Name)
				}
				v := blk.AddParam(b, typ)
				if _, dup := lf.Values[p.Name]; dup {
					return nil, errors.Errorf("block %s: duplicated value name %s", bd.Name, p.Name)
				}
				lf.Values[p.Name] = v
				b.AnnotateValue(v, p.Name)
			}
		}
		lf.Blocks[bd.Name] = blk
		lf.blockNames[blk] = bd.Name
	}

	for i := range def.Blocks {
		bd := &def.Blocks[i]
		b.SetCurrentBlock(lf.Blocks[bd.Name])
		for _, line := range bd.Code {
			if err := parseInstruction(b, lf, line); err != nil {
				return nil, errors.Wrapf(err, "block %s: %q", bd.Name, line)
			}
		}
	}
	return lf, nil
}

// parseInstruction assembles one line of the form
//
//	[result[, result...] =] opcode operand[, operand...]
//
// into the current block. Operands are value names, block names, immediates
// or types, depending on the opcode.
func parseInstruction(b ssa.Builder, lf *Function, line string) error {
	results, rest := splitResults(line)
	tokens := tokenize(rest)
	if len(tokens) == 0 {
		return errors.New("empty instruction")
	}
	op, args := tokens[0], tokens[1:]

	instr := b.AllocateInstruction()
	switch op {
	case "iconst_32":
		imm, err := immediate(args, 32)
		if err != nil {
			return err
		}
		instr.AsIconst32(uint32(imm))
	case "iconst_64":
		imm, err := immediate(args, 64)
		if err != nil {
			return err
		}
		instr.AsIconst64(imm)
	case "iadd", "isub", "imul":
		x, y, err := lf.twoValues(args)
		if err != nil {
			return err
		}
		switch op {
		case "iadd":
			instr.AsIadd(x, y)
		case "isub":
			instr.AsIsub(x, y)
		case "imul":
			instr.AsImul(x, y)
		}
	case "icmp":
		if len(args) != 3 {
			return errors.Errorf("icmp needs cond, x, y, got %d operands", len(args))
		}
		cond, err := parseCond(args[0])
		if err != nil {
			return err
		}
		x, y, err := lf.twoValues(args[1:])
		if err != nil {
			return err
		}
		instr.AsIcmp(x, y, cond)
	case "load":
		if len(args) != 3 {
			return errors.New("load needs type, ptr, offset")
		}
		typ, err := parseType(args[0])
		if err != nil {
			return err
		}
		ptr, err := lf.value(args[1])
		if err != nil {
			return err
		}
		off, err := immediate(args[2:], 32)
		if err != nil {
			return err
		}
		instr.AsLoad(ptr, uint32(off), typ)
	case "store":
		if len(args) != 3 {
			return errors.New("store needs value, ptr, offset")
		}
		v, ptr, err := lf.twoValues(args[:2])
		if err != nil {
			return err
		}
		off, err := immediate(args[2:], 32)
		if err != nil {
			return err
		}
		instr.AsStore(v, ptr, uint32(off))
	case "call":
		if len(args) == 0 {
			return errors.New("call needs a callee")
		}
		callee := b.Module().Find(args[0])
		if callee == nil {
			return errors.Errorf("unknown function %s", args[0])
		}
		vs, err := lf.values(args[1:])
		if err != nil {
			return err
		}
		instr.AsCall(callee.FuncRef(), vs)
	case "jump":
		if len(args) == 0 {
			return errors.New("jump needs a target")
		}
		target, err := lf.block(args[0])
		if err != nil {
			return err
		}
		vs, err := lf.values(args[1:])
		if err != nil {
			return err
		}
		instr.AsJump(vs, target)
	case "brz", "brnz":
		if len(args) < 2 {
			return errors.Errorf("%s needs cond, target", op)
		}
		c, err := lf.value(args[0])
		if err != nil {
			return err
		}
		target, err := lf.block(args[1])
		if err != nil {
			return err
		}
		vs, err := lf.values(args[2:])
		if err != nil {
			return err
		}
		if op == "brz" {
			instr.AsBrz(c, vs, target)
		} else {
			instr.AsBrnz(c, vs, target)
		}
	case "return":
		vs, err := lf.values(args)
		if err != nil {
			return err
		}
		instr.AsReturn(vs)
	case "trap":
		if len(args) != 0 {
			return errors.New("trap takes no operands")
		}
		instr.AsTrap()
	default:
		return errors.Errorf("unknown opcode %s", op)
	}

	b.InsertInstruction(instr)
	return bindResults(b, lf, instr, results)
}

func bindResults(b ssa.Builder, lf *Function, instr *ssa.Instruction, results []string) error {
	first, rest := instr.Returns()
	var produced []ssa.Value
	if first.Valid() {
		produced = append(produced, first)
	}
	produced = append(produced, rest...)
	if len(results) != len(produced) {
		return errors.Errorf("instruction produces %d values, %d names given", len(produced), len(results))
	}
	for i, name := range results {
		if _, dup := lf.Values[name]; dup {
			return errors.Errorf("duplicated value name %s", name)
		}
		lf.Values[name] = produced[i]
		b.AnnotateValue(produced[i], name)
	}
	return nil
}

func (f *Function) value(name string) (ssa.Value, error) {
	v, ok := f.Values[name]
	if !ok {
		return ssa.ValueInvalid, errors.Errorf("unknown value %s", name)
	}
	return v, nil
}

func (f *Function) values(names []string) ([]ssa.Value, error) {
	if len(names) == 0 {
		return nil, nil
	}
	vs := make([]ssa.Value, len(names))
	for i, name := range names {
		v, err := f.value(name)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (f *Function) twoValues(names []string) (ssa.Value, ssa.Value, error) {
	if len(names) != 2 {
		return ssa.ValueInvalid, ssa.ValueInvalid, errors.Errorf("need two operands, got %d", len(names))
	}
	x, err := f.value(names[0])
	if err != nil {
		return ssa.ValueInvalid, ssa.ValueInvalid, err
	}
	y, err := f.value(names[1])
	if err != nil {
		return ssa.ValueInvalid, ssa.ValueInvalid, err
	}
	return x, y, nil
}

func (f *Function) block(name string) (ssa.BasicBlock, error) {
	blk, ok := f.Blocks[name]
	if !ok {
		return nil, errors.Errorf("unknown block %s", name)
	}
	return blk, nil
}

// splitResults separates the result names in front of "=" from the rest.
func splitResults(line string) (results []string, rest string) {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return nil, line
	}
	for _, name := range strings.Split(line[:eq], ",") {
		if name = strings.TrimSpace(name); name != "" {
			results = append(results, name)
		}
	}
	return results, line[eq+1:]
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

func immediate(args []string, bits int) (uint64, error) {
	if len(args) != 1 {
		return 0, errors.Errorf("need one immediate, got %d operands", len(args))
	}
	imm, err := strconv.ParseUint(args[0], 0, bits)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing immediate %s", args[0])
	}
	return imm, nil
}

func parseCond(s string) (ssa.IntegerCmpCond, error) {
	switch s {
	case "eq":
		return ssa.IntegerCmpCondEqual, nil
	case "neq":
		return ssa.IntegerCmpCondNotEqual, nil
	case "lt_s":
		return ssa.IntegerCmpCondSignedLessThan, nil
	case "lt_u":
		return ssa.IntegerCmpCondUnsignedLessThan, nil
	}
	return ssa.IntegerCmpCondInvalid, errors.Errorf("unknown comparison %s", s)
}

func parseType(s string) (ssa.Type, error) {
	switch s {
	case "i32":
		return ssa.TypeI32, nil
	case "i64":
		return ssa.TypeI64, nil
	case "f32":
		return ssa.TypeF32, nil
	case "f64":
		return ssa.TypeF64, nil
	case "ptr":
		return ssa.TypePtr, nil
	}
	return ssa.TypeInvalid, errors.Errorf("unknown type %s", s)
}

func parseTypes(ss []string) ([]ssa.Type, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	ts := make([]ssa.Type, len(ss))
	for i, s := range ss {
		t, err := parseType(s)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}
