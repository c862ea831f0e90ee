// Package writer renders tables as CSV files and XLSX workbooks.
package writer

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// CSVWriter writes a table as CSV: one header row, then one record per row.
// Numbers are written in their shortest form and absent cells as empty
// fields.
type CSVWriter struct {
	// Comments are written as "# key,value" records before the header.
	Comments [][2]string
}

// WriteToFile writes the table to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, t *models.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create output file %q", path)
	}
	if err := w.Write(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the table in CSV format to out.
func (w *CSVWriter) Write(out io.Writer, t *models.Table) error {
	cw := csv.NewWriter(out)

	for _, c := range w.Comments {
		if err := cw.Write([]string{"# " + c[0], c[1]}); err != nil {
			return errors.Wrap(err, "write CSV comment")
		}
	}
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush CSV")
}
