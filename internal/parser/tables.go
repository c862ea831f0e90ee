// Package parser assembles normalized transaction tables from what the
// extractor found: candidate tables when the statement has them, stitched
// text lines otherwise.
package parser

import (
	"strings"

	"github.com/insightdelivered/statement-agent/internal/headers"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/normalize"
)

// TableReport explains what happened to one candidate table.
type TableReport struct {
	Page        int                 `json:"page"`
	Score       int                 `json:"score"`
	Accepted    bool                `json:"accepted"`
	Reason      string              `json:"reason,omitempty"`
	Mapping     map[string]string   `json:"mapping,omitempty"`
	Unmapped    []string            `json:"unmapped,omitempty"`
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

// ColumnKind is the semantic cast applied to a canonical column.
type ColumnKind int

const (
	PlainColumn ColumnKind = iota
	AmountColumn
	DescriptionColumn
)

var (
	amountHints      = []string{"debit", "credit", "amount", "balance"}
	descriptionHints = []string{"desc", "narrat", "details", "particular"}
)

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// KindOf classifies a canonical column by its name.
func KindOf(column string) ColumnKind {
	l := strings.ToLower(column)
	switch {
	case containsAny(l, amountHints):
		return AmountColumn
	case containsAny(l, descriptionHints):
		return DescriptionColumn
	default:
		return PlainColumn
	}
}

// CastCell converts one raw cell according to its column kind.
func CastCell(kind ColumnKind, raw string) models.Value {
	switch kind {
	case AmountColumn:
		if f, ok := normalize.NormalizeAmount(raw); ok {
			return models.Num(f)
		}
		return models.Null
	case DescriptionColumn:
		return normalize.CleanValue(normalize.TextValue(raw))
	default:
		return normalize.TextValue(raw)
	}
}

// score counts canonical columns whose normalized name occurs inside some
// normalized header.
func score(columns, header []string) int {
	norms := make([]string, len(header))
	for i, h := range header {
		norms[i] = headers.Normalize(h)
	}
	n := 0
	for _, c := range columns {
		want := headers.Normalize(c)
		if want == "" {
			continue
		}
		for _, h := range norms {
			if strings.Contains(h, want) {
				n++
				break
			}
		}
	}
	return n
}

// FromTables maps every plausible candidate table onto the canonical columns
// and concatenates the results in document order. It returns a nil table
// when no candidate was accepted.
func FromTables(tables []models.RawTable, columns []string) (*models.Table, []TableReport) {
	var (
		out     *models.Table
		reports []TableReport
	)
	minScore := len(columns) / 2
	if minScore < 2 {
		minScore = 2
	}

	for _, rt := range tables {
		rep := TableReport{Page: rt.Page, Score: score(columns, rt.Header)}
		if rep.Score < minScore {
			rep.Reason = "too few canonical columns in header"
			reports = append(reports, rep)
			continue
		}

		src := make([]int, len(columns))
		rep.Mapping = make(map[string]string)
		mapped := 0
		for i, c := range columns {
			src[i] = -1
			h, ok := headers.BestSource(c, rt.Header)
			if !ok {
				rep.Unmapped = append(rep.Unmapped, c)
				if s := headers.Suggest(c, rt.Header); len(s) > 0 {
					if rep.Suggestions == nil {
						rep.Suggestions = make(map[string][]string)
					}
					rep.Suggestions[c] = s
				}
				continue
			}
			src[i] = indexOf(rt.Header, h)
			rep.Mapping[c] = h
			mapped++
		}
		if mapped < 2 {
			rep.Reason = "fewer than two columns mapped"
			reports = append(reports, rep)
			continue
		}

		if out == nil {
			out = models.NewTable(columns)
		}
		for r := range rt.Rows {
			row := make([]models.Value, len(columns))
			for i, c := range columns {
				if src[i] >= 0 {
					row[i] = CastCell(KindOf(c), rt.Cell(r, src[i]))
				}
			}
			out.AddRow(row)
		}
		rep.Accepted = true
		reports = append(reports, rep)
	}
	return out, reports
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
