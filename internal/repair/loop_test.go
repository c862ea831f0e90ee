package repair

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/history"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/workspace"
)

var acmeSchema = artifact.Schema{
	Columns: []string{"Date", "Description", "Amount"},
	Numeric: []string{"Amount"},
}

const acmeReference = "Date,Description,Amount\n01-08-2024,Fuel,10.5\n02-08-2024,Salary,100\n"

type stubTables struct {
	tables []models.RawTable
	err    error
}

func (s stubTables) Tables(string) ([]models.RawTable, error) { return s.tables, s.err }

var acmeEnv = artifact.Env{Tables: stubTables{tables: []models.RawTable{{
	Page:   1,
	Header: []string{"Date", "Description", "Amount"},
	Rows: [][]string{
		{"01-08-2024", "Fuel", "10.50"},
		{"02-08-2024", "Salary", "100.00"},
	},
}}}}

type stubGenerator struct {
	calls int
	make  func() (*artifact.Artifact, error)
}

func (g *stubGenerator) Generate(context.Context, string) (*artifact.Artifact, error) {
	g.calls++
	return g.make()
}

type memRecorder struct{ entries []history.Entry }

func (m *memRecorder) Record(e history.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) outcomes() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type fixture struct {
	loop *Loop
	gen  *stubGenerator
	rec  *memRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	layout := workspace.Layout{DataDir: filepath.Join(root, "data"), DebugDir: filepath.Join(root, "debug")}
	dir := layout.TargetDir("acme")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme_statement.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, workspace.ReferenceFile), []byte(acmeReference), 0o644))

	gen := &stubGenerator{make: func() (*artifact.Artifact, error) { return artifact.New("acme", acmeSchema), nil }}
	rec := &memRecorder{}
	return fixture{
		loop: &Loop{
			Layout:    layout,
			Store:     artifact.Store{Dir: filepath.Join(root, "custom_parsers")},
			Env:       acmeEnv,
			Generator: gen,
			Recorder:  rec,
		},
		gen: gen,
		rec: rec,
	}
}

func reversedArtifact() *artifact.Artifact {
	a := artifact.New("acme", acmeSchema)
	a.Section(artifact.Cleanup).Insert(0, artifact.Step{Op: artifact.OpReverseColumns})
	return a
}

func TestRunPassesFirstTime(t *testing.T) {
	f := newFixture(t)
	res, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 3})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, []string{history.OutcomePass}, f.rec.outcomes())

	_, err = f.loop.Store.Load("acme")
	assert.NoError(t, err, "generated artifact is saved")

	gotPath, _, _ := f.loop.Layout.DebugPaths("acme")
	assert.NoFileExists(t, gotPath)
}

func TestRunPatchesSchemaMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.loop.Store.Save(reversedArtifact()))

	res, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 2})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Zero(t, f.gen.calls)
	assert.Equal(t, []string{history.OutcomePatched, history.OutcomePass}, f.rec.outcomes())
	assert.Equal(t, []string{"reindex-before-return"}, f.rec.entries[0].Patches)
	assert.Equal(t, []string{"schema"}, f.rec.entries[0].Categories)

	a, err := f.loop.Store.Load("acme")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Revision)
	steps := a.Section(artifact.Cleanup).Steps
	require.Len(t, steps, 3)
	assert.Equal(t, artifact.OpReindex, steps[1].Op)
	assert.Equal(t, acmeSchema.Columns, steps[1].Columns)

	gotPath, expPath, _ := f.loop.Layout.DebugPaths("acme")
	assert.FileExists(t, gotPath)
	assert.FileExists(t, expPath)
}

func TestRunRegeneratesWhenNoRuleApplies(t *testing.T) {
	f := newFixture(t)
	bare := &artifact.Artifact{
		Target: "acme",
		Schema: acmeSchema,
		Parse: &artifact.Pipeline{Sections: []artifact.Section{
			{Steps: []artifact.Step{{Op: artifact.OpReverseColumns}}},
		}},
	}
	require.NoError(t, f.loop.Store.Save(bare))

	res, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 2})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, []string{history.OutcomeRegenerate, history.OutcomePass}, f.rec.outcomes())
}

func TestRunExhausted(t *testing.T) {
	f := newFixture(t)
	f.loop.Layout.Workbook = true
	require.NoError(t, f.loop.Store.Save(reversedArtifact()))

	res, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 1})
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Status)
	assert.Equal(t, 1, res.ExitCode())
	assert.Contains(t, res.Diff, "Column schema mismatch")
	assert.Equal(t, []string{history.OutcomeMismatch}, f.rec.outcomes())

	_, _, xlsxPath := f.loop.Layout.DebugPaths("acme")
	assert.FileExists(t, xlsxPath)

	a, err := f.loop.Store.Load("acme")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Revision, "no patch on the last iteration")
}

func TestRunMissingParseIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.loop.Store.Dir, 0o755))
	require.NoError(t, os.WriteFile(f.loop.Store.Path("acme"),
		[]byte("target: acme\nschema:\n  columns: [Date]\n"), 0o644))

	_, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 3})
	assert.Equal(t, artifact.ErrParseMissing, errors.Cause(err))
	assert.Zero(t, f.gen.calls)
}

func TestRunMalformedIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.loop.Store.Dir, 0o755))
	require.NoError(t, os.WriteFile(f.loop.Store.Path("acme"), []byte("parse: [unclosed"), 0o644))

	_, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 3})
	assert.Equal(t, artifact.ErrMalformed, errors.Cause(err))
}

func TestRunMissingInputs(t *testing.T) {
	f := newFixture(t)
	_, err := f.loop.Run(context.Background(), Config{Target: "nobody", MaxIters: 1})
	assert.Equal(t, workspace.ErrNotFound, errors.Cause(err))

	require.NoError(t, os.Remove(filepath.Join(f.loop.Layout.TargetDir("acme"), "acme_statement.pdf")))
	_, err = f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 1})
	assert.Equal(t, workspace.ErrNotFound, errors.Cause(err))
}

func TestRunRepeatedExecutionErrors(t *testing.T) {
	f := newFixture(t)
	f.loop.Env = artifact.Env{Tables: stubTables{err: errors.New("broken page tree")}}
	f.gen.make = func() (*artifact.Artifact, error) {
		a := artifact.New("acme", acmeSchema)
		a.Parse.Extract = artifact.ExtractTables
		return a, nil
	}

	_, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 5})
	assert.Equal(t, ErrParseFailed, errors.Cause(err))
	assert.Equal(t, 2, f.gen.calls)
	assert.Equal(t, []string{history.OutcomeExecError, history.OutcomeExecError}, f.rec.outcomes())
}

func TestRunGeneratorFailureSkipsIteration(t *testing.T) {
	f := newFixture(t)
	fail := true
	f.gen.make = func() (*artifact.Artifact, error) {
		if fail {
			fail = false
			return nil, errors.New("model unavailable")
		}
		return artifact.New("acme", acmeSchema), nil
	}

	res, err := f.loop.Run(context.Background(), Config{Target: "acme", MaxIters: 2})
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{history.OutcomeGeneratorFailed, history.OutcomePass}, f.rec.outcomes())
	assert.Equal(t, "model unavailable", f.rec.entries[0].Error)
}
