package generator

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/extractor"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/workspace"
	"github.com/insightdelivered/statement-agent/internal/writer"
)

const DefaultModel = "claude-sonnet-4-5-20250929"

// ErrInvalidArtifact means the model answered with something that is not a
// usable artifact.
var ErrInvalidArtifact = errors.New("generated artifact is invalid")

const (
	promptSampleRows  = 5
	promptSampleLines = 40
)

var yamlFence = regexp.MustCompile("(?s)```(?:yaml|yml)?\\s*\\n(.*?)```")

// Claude asks an Anthropic model to write the pipeline. The schema always
// comes from the reference table; only the pipeline is taken from the reply.
type Claude struct {
	Layout workspace.Layout
	Lines  extractor.LineSource
	APIKey string
	Model  string
	Log    *zap.Logger

	// Complete sends a prompt and returns the reply text. Nil uses the
	// Anthropic messages API.
	Complete func(ctx context.Context, prompt string) (string, error)
}

func (g Claude) logger() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

func (g Claude) Generate(ctx context.Context, target string) (*artifact.Artifact, error) {
	exp, err := g.Layout.LoadReference(target)
	if err != nil {
		return nil, err
	}
	pdfPath, err := g.Layout.LocatePDF(target)
	if err != nil {
		return nil, err
	}
	var lines []string
	if g.Lines != nil {
		lines, err = extractor.ExtractLines(pdfPath, g.Lines)
		if err != nil {
			g.logger().Warn("no statement lines for the prompt", zap.String("target", target), zap.Error(err))
		}
	}

	schema := SchemaOf(exp)
	prompt, err := buildPrompt(target, schema, exp, lines)
	if err != nil {
		return nil, err
	}

	complete := g.Complete
	if complete == nil {
		complete = g.messages
	}
	g.logger().Debug("asking model for a parser", zap.String("target", target), zap.Int("prompt_len", len(prompt)))
	reply, err := complete(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "claude request")
	}
	return parseReply(target, schema, reply)
}

func (g Claude) messages(ctx context.Context, prompt string) (string, error) {
	if g.APIKey == "" {
		return "", errors.New("ANTHROPIC_API_KEY not set")
	}
	model := g.Model
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(g.APIKey))
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from model")
	}
	return text.String(), nil
}

func buildPrompt(target string, schema artifact.Schema, exp *models.Table, lines []string) (string, error) {
	example, err := artifact.New(target, schema).Marshal()
	if err != nil {
		return "", errors.Wrap(err, "encode example artifact")
	}

	sample := models.NewTable(exp.Columns)
	for i := 0; i < exp.Len() && i < promptSampleRows; i++ {
		sample.AddRow(exp.Rows[i])
	}
	var rows bytes.Buffer
	if err := (&writer.CSVWriter{}).Write(&rows, sample); err != nil {
		return "", err
	}
	if len(lines) > promptSampleLines {
		lines = lines[:promptSampleLines]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a parser artifact for the bank statement format %q.\n\n", target)
	b.WriteString("The artifact is YAML. Steps run in order until the first `return`.\n")
	fmt.Fprintf(&b, "Allowed ops: %s.\n", strings.Join([]string{
		artifact.OpCoerceDates, artifact.OpCastNumeric, artifact.OpTrimStrings, artifact.OpReverseColumns,
		artifact.OpSelect, artifact.OpReindex, artifact.OpDropEmptyRows, artifact.OpReturn,
	}, ", "))
	fmt.Fprintf(&b, "`extract` is one of %s, %s, %s.\n", artifact.ExtractAuto, artifact.ExtractTables, artifact.ExtractLines)
	fmt.Fprintf(&b, "Keep a section with patchpoint %q containing %s, and a section with patchpoint %q ending in %s.\n\n",
		artifact.NumericCast, artifact.OpCastNumeric, artifact.Cleanup, artifact.OpReturn)
	b.WriteString("A valid starting point:\n```yaml\n")
	b.Write(example)
	b.WriteString("```\n\nExpected output, first rows:\n```csv\n")
	b.Write(rows.Bytes())
	b.WriteString("```\n")
	if len(lines) > 0 {
		b.WriteString("\nStatement text, one transaction per line:\n```\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n```\n")
	}
	b.WriteString("\nAnswer with the artifact only, in one ```yaml block.\n")
	return b.String(), nil
}

// extractYAML returns the first fenced YAML block of a reply, or the whole
// reply when it has no fence.
func extractYAML(reply string) string {
	if m := yamlFence.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return strings.TrimSpace(reply)
}

func parseReply(target string, schema artifact.Schema, reply string) (*artifact.Artifact, error) {
	a, err := artifact.Unmarshal([]byte(extractYAML(reply)))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArtifact, err.Error())
	}
	a.Target, a.Revision, a.Schema = target, 0, schema
	if problems := a.Check(); len(problems) > 0 {
		return nil, errors.Wrap(ErrInvalidArtifact, strings.Join(problems, "; "))
	}
	return a, nil
}
