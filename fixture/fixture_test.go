package fixture

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sable-vm/sable/ssa"
)

const diamond = `
functions:
  - name: max
    public: true
    params: [i32, i32]
    results: [i32]
    args: [x, y]
    blocks:
      - name: entry
        code:
          - c = icmp lt_s x, y
          - brz c, left
          - jump right
      - name: left
        code:
          - jump merge, y
      - name: right
        code:
          - jump merge, x
      - name: merge
        params:
          - {name: m, type: i32}
        code:
          - return m
`

func TestParse_diamond(t *testing.T) {
	m, err := Parse([]byte(diamond))
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)

	f := m.Functions[0]
	require.Equal(t, "max", f.Fn.Name())
	require.True(t, f.Fn.Public())
	require.Len(t, f.Blocks, 4)

	entry := f.Blocks["entry"]
	require.True(t, entry.EntryBlock())
	succNames := []string{}
	for _, succ := range entry.Succs() {
		succNames = append(succNames, f.BlockName(succ))
	}
	if diff := cmp.Diff([]string{"left", "right"}, succNames); diff != "" {
		t.Fatalf("entry successors mismatch (-want +got):\n%s", diff)
	}

	merge := f.Blocks["merge"]
	require.Equal(t, 1, merge.Params())
	require.Equal(t, f.Values["m"], merge.Param(0))
	require.Len(t, merge.Preds(), 2)
}

func TestParse_analysesRunOnFixture(t *testing.T) {
	m, err := Parse([]byte(diamond))
	require.NoError(t, err)
	f := m.Functions[0]

	la, err := ssa.NewLivenessAnalysis(f.Fn)
	require.NoError(t, err)
	s := ssa.NewSolver(m.Builder, nil)
	s.Load(ssa.NewDeadCodeAnalysis(m.Builder.Module(), ssa.NewFoldedConstants(m.Builder)))
	s.Load(la)
	require.NoError(t, s.Run())

	require.True(t, s.IsBlockExecutable(f.Blocks["left"]))
	require.True(t, s.IsBlockExecutable(f.Blocks["right"]))
	require.True(t, la.IsLiveAtStartOf(f.Blocks["merge"], f.Values["m"]))
	// y is forwarded only on the left arm.
	require.True(t, la.IsLiveAtEndOf(f.Blocks["left"], f.Values["y"]))
	require.False(t, la.IsLiveAtStartOf(f.Blocks["merge"], f.Values["y"]))
}

func TestLoad(t *testing.T) {
	m, err := Load("testdata/max.yaml")
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)
	require.Equal(t, "max", m.Functions[0].Fn.Name())

	_, err = Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
}

func TestParse_imports(t *testing.T) {
	m, err := Parse([]byte(`
functions:
  - name: host
    import: true
    params: [i64]
    results: [i64]
  - name: f
    public: true
    params: [i64]
    blocks:
      - name: entry
        code:
          - r = call host, p0
          - return
`))
	require.NoError(t, err)
	host := m.Builder.Module().Find("host")
	require.NotNil(t, host)
	require.True(t, host.Declaration())
	require.Equal(t, ssa.TypeI64, m.Functions[0].Values["r"].Type())
}

func TestParse_errors(t *testing.T) {
	for _, tc := range []struct {
		name, doc, msg string
	}{
		{
			name: "unknown opcode",
			doc: `
functions:
  - name: f
    blocks:
      - name: entry
        code: ["frobnicate p0"]
`,
			msg: "unknown opcode",
		},
		{
			name: "unknown value",
			doc: `
functions:
  - name: f
    blocks:
      - name: entry
        code: ["return q"]
`,
			msg: "unknown value q",
		},
		{
			name: "unknown branch target",
			doc: `
functions:
  - name: f
    blocks:
      - name: entry
        code: ["jump nowhere"]
`,
			msg: "unknown block nowhere",
		},
		{
			name: "result count mismatch",
			doc: `
functions:
  - name: f
    blocks:
      - name: entry
        code: ["a, b = iconst_32 1"]
`,
			msg: "produces 1 values, 2 names given",
		},
		{
			name: "entry with params",
			doc: `
functions:
  - name: f
    blocks:
      - name: entry
        params: [{name: x, type: i32}]
        code: ["return"]
`,
			msg: "takes its parameters from the function",
		},
		{
			name: "import with blocks",
			doc: `
functions:
  - name: f
    import: true
    blocks:
      - name: entry
        code: ["return"]
`,
			msg: "cannot have blocks",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.ErrorContains(t, err, tc.msg)
		})
	}
}
