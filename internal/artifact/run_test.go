package artifact

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-agent/internal/models"
)

type stubTables struct {
	tables []models.RawTable
	err    error
}

func (s stubTables) Tables(string) ([]models.RawTable, error) { return s.tables, s.err }

type stubLines struct {
	lines []string
	err   error
}

type panicTables struct{}

func (panicTables) Tables(string) ([]models.RawTable, error) {
	panic("loading {1 0}: found int64 instead of objdef")
}

func (s stubLines) Lines(string) ([]string, error) { return s.lines, s.err }

var statementTable = models.RawTable{
	Page:   1,
	Header: []string{"Date", "Description", "Debit", "Credit", "Balance"},
	Rows: [][]string{
		{"01/08/2024", "Fuel", "10.005", "", "89.995"},
		{"", "", "", "", ""},
	},
}

func TestRunTables(t *testing.T) {
	a := New("icici", testSchema)
	got, err := a.Run(Env{Tables: stubTables{tables: []models.RawTable{statementTable}}}, "s.pdf")
	require.NoError(t, err)
	assert.Equal(t, testSchema.Columns, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []models.Value{
		models.Str("01-Aug-2024"), models.Str("Fuel"), models.Num(10.005), models.Null, models.Num(89.995),
	}, got.Rows[0])
}

func TestRunStrictCastAndCleanup(t *testing.T) {
	a := New("icici", testSchema)
	a.Section(NumericCast).Steps[0].Mode = CastStrict
	cleanup := a.Section(Cleanup)
	cleanup.Insert(0, Step{Op: OpDropEmptyRows})

	got, err := a.Run(Env{Tables: stubTables{tables: []models.RawTable{statementTable}}}, "s.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, models.Num(10.01), got.Rows[0][2])
	assert.Equal(t, models.Num(90), got.Rows[0][4])
}

func TestRunFallsBackToLines(t *testing.T) {
	a := New("icici", testSchema)
	env := Env{
		Tables: stubTables{err: errors.New("no tables")},
		Lines: stubLines{lines: []string{
			"Statement for August",
			"01-08-2024 Salary Credit XYZ 1935.30 6864.58",
		}},
	}
	got, err := a.Run(env, "s.pdf")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, []models.Value{
		models.Str("01-Aug-2024"), models.Str("Salary Credit XYZ"), models.Null, models.Num(1935.3), models.Num(6864.58),
	}, got.Rows[0])
}

func TestRunTablePanicFallsBackToLines(t *testing.T) {
	a := New("icici", testSchema)
	env := Env{
		Tables: panicTables{},
		Lines: stubLines{lines: []string{
			"01-08-2024 Salary Credit XYZ 1935.30 6864.58",
		}},
	}
	var got *models.Table
	var err error
	require.NotPanics(t, func() { got, err = a.Run(env, "s.pdf") })
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, models.Num(6864.58), got.Rows[0][4])

	a.Parse.Extract = ExtractTables
	require.NotPanics(t, func() { _, err = a.Run(env, "s.pdf") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table extraction panicked")
}

func TestRunReturnStopsPipeline(t *testing.T) {
	a := New("icici", testSchema)
	a.Section(Cleanup).Steps = append(a.Section(Cleanup).Steps, Step{Op: OpReverseColumns})

	got, err := a.Run(Env{Tables: stubTables{tables: []models.RawTable{statementTable}}}, "s.pdf")
	require.NoError(t, err)
	assert.Equal(t, testSchema.Columns, got.Columns)
}

func TestRunReverseAndReindex(t *testing.T) {
	a := New("icici", testSchema)
	cleanup := a.Section(Cleanup)
	cleanup.Insert(0, Step{Op: OpReverseColumns})

	env := Env{Tables: stubTables{tables: []models.RawTable{statementTable}}}
	got, err := a.Run(env, "s.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"Balance", "Credit", "Debit", "Description", "Date"}, got.Columns)
	assert.Equal(t, models.Str("Fuel"), got.Rows[0][3])

	cleanup.Insert(1, Step{Op: OpReindex})
	got, err = a.Run(env, "s.pdf")
	require.NoError(t, err)
	assert.Equal(t, testSchema.Columns, got.Columns)
	assert.Equal(t, models.Str("Fuel"), got.Rows[0][1])
}

func TestRunErrors(t *testing.T) {
	env := Env{Tables: stubTables{tables: []models.RawTable{statementTable}}}

	t.Run("missing parse", func(t *testing.T) {
		_, err := (&Artifact{Schema: testSchema}).Run(env, "s.pdf")
		assert.Equal(t, ErrParseMissing, errors.Cause(err))
	})

	t.Run("unknown op", func(t *testing.T) {
		a := New("icici", testSchema)
		a.Section(Cleanup).Insert(0, Step{Op: "explode"})
		_, err := a.Run(env, "s.pdf")
		require.Error(t, err)
		assert.NotEqual(t, ErrParseMissing, errors.Cause(err))
	})

	t.Run("unknown cast mode", func(t *testing.T) {
		a := New("icici", testSchema)
		a.Section(NumericCast).Steps[0].Mode = "lenient"
		_, err := a.Run(env, "s.pdf")
		assert.Error(t, err)
	})

	t.Run("select missing column", func(t *testing.T) {
		a := New("icici", testSchema)
		a.Section(Cleanup).Insert(0, Step{Op: OpSelect, Columns: []string{"Ref"}})
		_, err := a.Run(env, "s.pdf")
		assert.Error(t, err)
	})

	t.Run("lines fail", func(t *testing.T) {
		a := New("icici", testSchema)
		a.Parse.Extract = ExtractLines
		_, err := a.Run(Env{Lines: stubLines{err: errors.New("boom")}}, "s.pdf")
		assert.Error(t, err)
	})
}

func TestDropEmptyRows(t *testing.T) {
	tbl := models.NewTable([]string{"A", "B"})
	tbl.AddRow([]models.Value{models.Null, models.Str(" ")})
	tbl.AddRow([]models.Value{models.Null, models.Num(0)})
	got := DropEmptyRows(tbl)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, models.Num(0), got.Rows[0][1])
}
