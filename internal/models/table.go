package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the content of a table cell.
type Kind int

const (
	Absent Kind = iota
	Number
	Text
)

// Value is a single table cell: absent, a signed number, or free text.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Null is the absent value.
var Null = Value{}

// Num wraps a number.
func Num(f float64) Value { return Value{Kind: Number, Num: f} }

// Str wraps a string.
func Str(s string) Value { return Value{Kind: Text, Str: s} }

// IsAbsent reports whether the cell holds no value.
func (v Value) IsAbsent() bool { return v.Kind == Absent }

// String renders the cell the way it is written to CSV: numbers in their
// shortest form, text verbatim, absent as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Text:
		return v.Str
	default:
		return ""
	}
}

// MarshalJSON encodes a number as a JSON number, text as a string and an
// absent cell as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Number:
		return json.Marshal(v.Num)
	case Text:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// Equal compares two cells. Numbers are compared exactly.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Number:
		return v.Num == o.Num
	case Text:
		return v.Str == o.Str
	default:
		return true
	}
}

// Table is an ordered set of named columns with one Value per column per row.
type Table struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// NewTable returns an empty table with the given column order.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// AddRow appends a row, padding or truncating it to the column count.
func (t *Table) AddRow(row []Value) {
	out := make([]Value, len(t.Columns))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

// Column returns a copy of one column's values.
func (t *Table) Column(i int) []Value {
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// SetColumn overwrites one column's values.
func (t *Table) SetColumn(i int, values []Value) {
	for r := range t.Rows {
		if r < len(values) {
			t.Rows[r][i] = values[r]
		}
	}
}

// SameColumns reports whether both tables have identical column order.
func (t *Table) SameColumns(o *Table) bool {
	if len(t.Columns) != len(o.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}

// RawTable is a candidate table straight off a PDF page: one header row
// and untyped body cells.
type RawTable struct {
	Page   int        `json:"page"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Cell returns the trimmed cell at row r, column c, or "" when missing.
func (rt RawTable) Cell(r, c int) string {
	if r >= len(rt.Rows) || c < 0 || c >= len(rt.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(rt.Rows[r][c])
}
