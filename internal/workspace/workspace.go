// Package workspace knows where a target's sample statement, reference
// table and debug output live on disk.
package workspace

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/insightdelivered/statement-agent/internal/compare"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/writer"
)

// ErrNotFound means a target's sample statement or reference table is missing.
var ErrNotFound = errors.New("not found")

// ReferenceFile is the reference table name inside a target's data folder.
const ReferenceFile = "result.csv"

// Layout is the directory layout of one workspace:
//
//	<DataDir>/<target>/*.pdf          sample statements
//	<DataDir>/<target>/result.csv     reference table
//	<DebugDir>/<target>_got.csv       produced table of the last failed compare
//	<DebugDir>/<target>_expected.csv  reference table of the last failed compare
type Layout struct {
	DataDir  string
	DebugDir string
	// Workbook also writes <target>_debug.xlsx with differing cells marked.
	Workbook bool
}

// TargetDir returns the data folder of a target.
func (l Layout) TargetDir(target string) string {
	return filepath.Join(l.DataDir, target)
}

// LocatePDF returns the sample statement of a target. A file whose name
// contains the target wins over other PDFs; otherwise the first by name.
func (l Layout) LocatePDF(target string) (string, error) {
	dir := l.TargetDir(target)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(ErrNotFound, "data folder %s", dir)
	}

	var pdfs []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			pdfs = append(pdfs, e.Name())
		}
	}
	if len(pdfs) == 0 {
		return "", errors.Wrapf(ErrNotFound, "no PDF in %s", dir)
	}
	sort.Strings(pdfs)

	want := strings.ToLower(target)
	for _, name := range pdfs {
		if strings.Contains(strings.ToLower(name), want) {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, pdfs[0]), nil
}

// LoadReference reads the target's reference table. A column whose
// non-empty cells all parse as numbers is numeric; empty cells are absent.
func (l Layout) LoadReference(target string) (*models.Table, error) {
	path := filepath.Join(l.TargetDir(target), ReferenceFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "reference table %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open reference table")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("reference table %s has no header", path)
	}
	return ParseRecords(records[0], records[1:]), nil
}

// ParseRecords types raw CSV records into a table.
func ParseRecords(header []string, body [][]string) *models.Table {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t := models.NewTable(columns)

	numeric := make([]bool, len(columns))
	for c := range columns {
		numeric[c] = true
		for _, rec := range body {
			if c >= len(rec) || isNA(rec[c]) {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64); err != nil {
				numeric[c] = false
				break
			}
		}
	}

	for _, rec := range body {
		row := make([]models.Value, len(columns))
		for c := range columns {
			if c >= len(rec) {
				continue
			}
			s := strings.TrimSpace(rec[c])
			switch {
			case isNA(s):
			case numeric[c]:
				f, _ := strconv.ParseFloat(s, 64)
				row[c] = models.Num(f)
			default:
				row[c] = models.Str(rec[c])
			}
		}
		t.AddRow(row)
	}
	return t
}

// isNA reports cells that mean "no value" in exported reference tables.
func isNA(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "nan", "NaN", "NA", "N/A", "null", "NULL":
		return true
	}
	return false
}

// DebugPaths returns the debug files written for a target.
func (l Layout) DebugPaths(target string) (got, expected, workbook string) {
	return filepath.Join(l.DebugDir, target+"_got.csv"),
		filepath.Join(l.DebugDir, target+"_expected.csv"),
		filepath.Join(l.DebugDir, target+"_debug.xlsx")
}

// WriteDebug persists both tables of a failed comparison for inspection.
func (l Layout) WriteDebug(target string, got, exp *models.Table, report compare.Report) error {
	if err := os.MkdirAll(l.DebugDir, 0o755); err != nil {
		return errors.Wrap(err, "create debug dir")
	}
	gotPath, expPath, xlsxPath := l.DebugPaths(target)
	w := &writer.CSVWriter{}
	if err := w.WriteToFile(gotPath, got); err != nil {
		return err
	}
	if err := w.WriteToFile(expPath, exp); err != nil {
		return err
	}
	if !l.Workbook {
		return nil
	}

	marks := make([][2]int, 0, len(report.Diffs))
	for _, d := range report.Diffs {
		if c := got.Index(d.Column); c >= 0 {
			marks = append(marks, [2]int{d.Row, c})
		}
	}
	return writer.WriteWorkbook(xlsxPath, []writer.Sheet{
		{Name: "got", Table: got, Highlight: marks},
		{Name: "expected", Table: exp},
	})
}
