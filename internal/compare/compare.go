// Package compare checks a produced table against the reference table and
// renders the differences.
package compare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// Category is one kind of mismatch. It selects the repair rule to try.
type Category string

const (
	Schema   Category = "schema"
	RowCount Category = "row-count"
	Value    Category = "value"
)

// Markers that open each section of a rendered diff.
const (
	SchemaMarker   = "Column schema mismatch"
	RowCountMarker = "Row count mismatch"
	ValueMarker    = "First diffs"
)

// CellDiff is one differing cell. Row is zero-based.
type CellDiff struct {
	Row      int          `json:"row"`
	Column   string       `json:"column"`
	Got      models.Value `json:"got"`
	Expected models.Value `json:"expected"`
}

type Report struct {
	Categories      []Category `json:"categories,omitempty"`
	GotColumns      []string   `json:"got_columns,omitempty"`
	ExpectedColumns []string   `json:"expected_columns,omitempty"`
	GotRows         int        `json:"got_rows"`
	ExpectedRows    int        `json:"expected_rows"`
	Diffs           []CellDiff `json:"diffs,omitempty"`
	DiffCount       int        `json:"diff_count"`
}

// OK reports whether the tables matched.
func (r Report) OK() bool { return len(r.Categories) == 0 }

// Has reports whether the report carries category c.
func (r Report) Has(c Category) bool {
	for _, x := range r.Categories {
		if x == c {
			return true
		}
	}
	return false
}

// Compare checks got against exp. A column mismatch stops the comparison;
// a row-count mismatch still compares the overlapping rows. At most
// maxDiffs cell differences are kept, in row-major order.
func Compare(got, exp *models.Table, maxDiffs int) Report {
	r := Report{GotRows: got.Len(), ExpectedRows: exp.Len()}
	if !got.SameColumns(exp) {
		r.Categories = []Category{Schema}
		r.GotColumns = append([]string(nil), got.Columns...)
		r.ExpectedColumns = append([]string(nil), exp.Columns...)
		return r
	}
	if r.GotRows != r.ExpectedRows {
		r.Categories = append(r.Categories, RowCount)
	}

	rows := r.GotRows
	if r.ExpectedRows < rows {
		rows = r.ExpectedRows
	}
	for i := 0; i < rows; i++ {
		for j, col := range exp.Columns {
			g, e := got.Rows[i][j], exp.Rows[i][j]
			if g.Equal(e) {
				continue
			}
			r.DiffCount++
			if len(r.Diffs) < maxDiffs {
				r.Diffs = append(r.Diffs, CellDiff{Row: i, Column: col, Got: g, Expected: e})
			}
		}
	}
	if r.DiffCount > 0 {
		r.Categories = append(r.Categories, Value)
	}
	return r
}

// String renders the report as the diff text shown to users and fed to
// CategoriesOf. A passing report renders as the empty string.
func (r Report) String() string {
	var b strings.Builder
	if r.Has(Schema) {
		fmt.Fprintf(&b, "%s.\n  got:      %s\n  expected: %s\n", SchemaMarker,
			quoteList(r.GotColumns), quoteList(r.ExpectedColumns))
		return b.String()
	}
	if r.Has(RowCount) {
		fmt.Fprintf(&b, "%s: got %d vs expected %d\n", RowCountMarker, r.GotRows, r.ExpectedRows)
	}
	if len(r.Diffs) > 0 {
		fmt.Fprintf(&b, "%s (row, col, got, exp):\n", ValueMarker)
		for _, d := range r.Diffs {
			fmt.Fprintf(&b, "  (%d, '%s', %s, %s)\n", d.Row, d.Column, display(d.Got), display(d.Expected))
		}
		if more := r.DiffCount - len(r.Diffs); more > 0 {
			fmt.Fprintf(&b, "  ... %d more\n", more)
		}
	}
	return b.String()
}

func display(v models.Value) string {
	switch v.Kind {
	case models.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case models.Text:
		return "'" + v.Str + "'"
	default:
		return "NaN"
	}
}

func quoteList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = "'" + c + "'"
	}
	return "[" + strings.Join(q, ", ") + "]"
}

// CategoriesOf recovers the mismatch categories from a rendered diff.
func CategoriesOf(diff string) []Category {
	var out []Category
	if strings.Contains(diff, SchemaMarker) {
		out = append(out, Schema)
	}
	if strings.Contains(diff, RowCountMarker) {
		out = append(out, RowCount)
	}
	if strings.Contains(diff, ValueMarker) {
		out = append(out, Value)
	}
	return out
}
