package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/workspace"
)

const hdfcReference = "Txn Date,Narration,Debit,Credit,Balance\n" +
	"01-Aug-2024,Fuel,10.5,,89.5\n" +
	"02-Aug-2024,Salary,,100,189.5\n"

func newLayout(t *testing.T) workspace.Layout {
	t.Helper()
	root := t.TempDir()
	l := workspace.Layout{DataDir: filepath.Join(root, "data"), DebugDir: filepath.Join(root, "debug")}
	dir := l.TargetDir("hdfc")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, workspace.ReferenceFile), []byte(hdfcReference), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hdfc_aug.pdf"), []byte("%PDF-1.4"), 0o644))
	return l
}

var hdfcSchema = artifact.Schema{
	Columns:    []string{"Txn Date", "Narration", "Debit", "Credit", "Balance"},
	Numeric:    []string{"Debit", "Credit", "Balance"},
	DateColumn: "Txn Date",
	DateSample: "01-Aug-2024",
}

func TestTemplateGenerate(t *testing.T) {
	layout := newLayout(t)
	a, err := Template{Layout: layout}.Generate(context.Background(), "hdfc")
	require.NoError(t, err)
	assert.Equal(t, hdfcSchema, a.Schema)
	assert.Empty(t, a.Check())

	store := artifact.Store{Dir: t.TempDir()}
	require.NoError(t, store.Save(a))
	loaded, err := store.Load("hdfc")
	require.NoError(t, err)
	assert.Equal(t, a, loaded)
}

func TestTemplateMissingReference(t *testing.T) {
	_, err := Template{Layout: newLayout(t)}.Generate(context.Background(), "axis")
	assert.Equal(t, workspace.ErrNotFound, errors.Cause(err))
}

func TestExtractYAML(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"fenced", "Sure.\n```yaml\ntarget: x\n```\nDone.", "target: x\n"},
		{"bare fence", "```\ntarget: x\n```", "target: x\n"},
		{"no fence", "  target: x\n", "target: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractYAML(tt.reply))
		})
	}
}

func TestClaudeGenerate(t *testing.T) {
	reply := artifact.New("whatever", artifact.Schema{Columns: []string{"ignored"}})
	reply.Parse.Extract = artifact.ExtractLines
	body, err := reply.Marshal()
	require.NoError(t, err)

	var prompt string
	g := Claude{
		Layout: newLayout(t),
		Complete: func(_ context.Context, p string) (string, error) {
			prompt = p
			return "Here it is:\n```yaml\n" + string(body) + "```\n", nil
		},
	}
	a, err := g.Generate(context.Background(), "hdfc")
	require.NoError(t, err)
	assert.Equal(t, "hdfc", a.Target)
	assert.Equal(t, hdfcSchema, a.Schema)
	assert.Equal(t, artifact.ExtractLines, a.Parse.Extract)

	assert.Contains(t, prompt, "01-Aug-2024,Fuel,10.5,,89.5")
	assert.Contains(t, prompt, artifact.NumericCast)
	assert.False(t, strings.Contains(prompt, "Statement text"), "no lines without a line source")
}

func TestClaudeRejectsInvalidReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not yaml", "```yaml\nparse: [\n```"},
		{"unknown field", "```yaml\nparser: {}\n```"},
		{"no patchpoints", "```yaml\nparse:\n  sections:\n  - steps:\n    - op: return\n```"},
		{"no parse", "I cannot help with that."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Claude{
				Layout:   newLayout(t),
				Complete: func(context.Context, string) (string, error) { return tt.reply, nil },
			}
			_, err := g.Generate(context.Background(), "hdfc")
			assert.Equal(t, ErrInvalidArtifact, errors.Cause(err))
		})
	}
}

func TestClaudeRequestError(t *testing.T) {
	g := Claude{
		Layout:   newLayout(t),
		Complete: func(context.Context, string) (string, error) { return "", errors.New("overloaded") },
	}
	_, err := g.Generate(context.Background(), "hdfc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestClaudeNeedsKey(t *testing.T) {
	_, err := Claude{}.messages(context.Background(), "hi")
	assert.EqualError(t, err, "ANTHROPIC_API_KEY not set")
}
