package artifact

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/extractor"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/normalize"
	"github.com/insightdelivered/statement-agent/internal/parser"
)

// Env supplies the extraction strategies a pipeline runs against.
type Env struct {
	Tables extractor.TableSource
	Lines  extractor.LineSource
	Log    *zap.Logger
}

// DefaultEnv wires the PDF table reader and the two-strategy line chain.
func DefaultEnv(log *zap.Logger) Env {
	return Env{Tables: extractor.PDFTables{}, Lines: extractor.NewChain(log), Log: log}
}

func (e Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// Run parses the statement at path into the schema's table. An artifact
// without a parse pipeline fails with ErrParseMissing; every other failure
// is an execution error.
func (a *Artifact) Run(env Env, path string) (*models.Table, error) {
	if a.Parse == nil {
		return nil, ErrParseMissing
	}
	t, err := a.extract(env, path)
	if err != nil {
		return nil, err
	}
	for _, sec := range a.Parse.Sections {
		for _, st := range sec.Steps {
			if st.Op == OpReturn {
				return t, nil
			}
			if t, err = a.apply(t, st); err != nil {
				return nil, errors.Wrapf(err, "step %s", st)
			}
		}
	}
	return t, nil
}

func (a *Artifact) extract(env Env, path string) (*models.Table, error) {
	mode := a.Parse.Extract
	if mode == "" {
		mode = ExtractAuto
	}
	columns := a.Schema.Columns
	log := env.logger()

	switch mode {
	case ExtractAuto, ExtractTables:
		if env.Tables != nil {
			raw, err := safeTables(env.Tables, path)
			if err != nil {
				if mode == ExtractTables {
					return nil, errors.Wrap(err, "extract tables")
				}
				log.Debug("table extraction failed", zap.Error(err))
			}
			t, reports := parser.FromTables(raw, columns)
			for _, r := range reports {
				log.Debug("candidate table", zap.Int("page", r.Page), zap.Int("score", r.Score),
					zap.Bool("accepted", r.Accepted), zap.String("reason", r.Reason),
					zap.Strings("unmapped", r.Unmapped), zap.Any("suggestions", r.Suggestions))
			}
			if t != nil {
				return t, nil
			}
		}
		if mode == ExtractTables {
			return models.NewTable(columns), nil
		}
		fallthrough
	case ExtractLines:
		if env.Lines == nil {
			return nil, errors.New("no line source configured")
		}
		lines, err := extractor.ExtractLines(path, env.Lines)
		if err != nil {
			return nil, errors.Wrap(err, "extract lines")
		}
		return parser.FromLines(lines, columns), nil
	default:
		return nil, errors.Errorf("unknown extract mode %q", mode)
	}
}

// safeTables turns a panicking table source into an error so auto mode can
// still fall back to lines.
func safeTables(src extractor.TableSource, path string) (tables []models.RawTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, errors.Errorf("table extraction panicked: %v", r)
		}
	}()
	return src.Tables(path)
}

func (a *Artifact) apply(t *models.Table, st Step) (*models.Table, error) {
	switch st.Op {
	case OpCoerceDates:
		i := t.Index(a.Schema.DateColumn)
		if i >= 0 && a.Schema.DateSample != "" {
			t.SetColumn(i, normalize.CoerceDatesToSample(t.Column(i), a.Schema.DateSample))
		}
		return t, nil
	case OpCastNumeric:
		return a.castNumeric(t, st.Mode)
	case OpTrimStrings:
		for _, row := range t.Rows {
			for j, v := range row {
				if v.Kind == models.Text {
					row[j] = normalize.TextValue(v.Str)
				}
			}
		}
		return t, nil
	case OpReverseColumns:
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[len(cols)-1-i] = c
		}
		return Reindex(t, cols), nil
	case OpSelect:
		for _, c := range st.Columns {
			if t.Index(c) < 0 {
				return nil, errors.Errorf("select: no column %q", c)
			}
		}
		return Reindex(t, st.Columns), nil
	case OpReindex:
		cols := st.Columns
		if len(cols) == 0 {
			cols = a.Schema.Columns
		}
		return Reindex(t, cols), nil
	case OpDropEmptyRows:
		return DropEmptyRows(t), nil
	default:
		return nil, errors.Errorf("unknown op %q", st.Op)
	}
}

func (a *Artifact) castNumeric(t *models.Table, mode string) (*models.Table, error) {
	if mode == "" {
		mode = CastNormalize
	}
	if mode != CastNormalize && mode != CastStrict {
		return nil, errors.Errorf("unknown cast mode %q", mode)
	}
	for _, c := range a.Schema.Numeric {
		i := t.Index(c)
		if i < 0 {
			continue
		}
		for _, row := range t.Rows {
			v := normalize.AmountValue(row[i])
			if mode == CastStrict && v.Kind == models.Number {
				v = models.Num(normalize.QuantizeAmount(v.Num, 2))
			}
			row[i] = v
		}
	}
	return t, nil
}

// Reindex returns t with exactly the given columns, in that order. Columns
// t does not have are filled with absent values.
func Reindex(t *models.Table, columns []string) *models.Table {
	out := models.NewTable(columns)
	src := make([]int, len(columns))
	for i, c := range columns {
		src[i] = t.Index(c)
	}
	for _, row := range t.Rows {
		values := make([]models.Value, len(columns))
		for i, j := range src {
			if j >= 0 {
				values[i] = row[j]
			}
		}
		out.AddRow(values)
	}
	return out
}

// DropEmptyRows removes rows whose every cell is absent or blank text.
func DropEmptyRows(t *models.Table) *models.Table {
	out := models.NewTable(t.Columns)
	for _, row := range t.Rows {
		for _, v := range row {
			if !v.IsAbsent() && strings.TrimSpace(v.String()) != "" {
				out.AddRow(row)
				break
			}
		}
	}
	return out
}
