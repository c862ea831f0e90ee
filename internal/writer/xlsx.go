package writer

import (
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// Sheet is one worksheet of a workbook. Highlight marks cells, as
// zero-based {row, column} body positions, to fill in red.
type Sheet struct {
	Name      string
	Table     *models.Table
	Highlight [][2]int
}

// WriteWorkbook writes every sheet into a new XLSX file at path. Numbers are
// stored as numeric cells so they can be filtered and summed.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	bad, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "create style")
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create style")
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return errors.Wrap(err, "rename sheet")
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return errors.Wrapf(err, "create sheet %q", s.Name)
		}
		if err := writeSheet(f, s, header, bad); err != nil {
			return err
		}
	}
	return errors.Wrap(f.SaveAs(path), "save workbook")
}

func writeSheet(f *excelize.File, s Sheet, header, bad int) error {
	cols := make([]interface{}, len(s.Table.Columns))
	for i, c := range s.Table.Columns {
		cols[i] = c
	}
	if err := f.SetSheetRow(s.Name, "A1", &cols); err != nil {
		return errors.Wrapf(err, "write header of %q", s.Name)
	}
	if len(cols) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := f.SetCellStyle(s.Name, "A1", last, header); err != nil {
			return errors.Wrap(err, "style header")
		}
	}

	for r, row := range s.Table.Rows {
		values := make([]interface{}, len(row))
		for i, v := range row {
			switch v.Kind {
			case models.Number:
				values[i] = v.Num
			case models.Text:
				values[i] = v.Str
			default:
				values[i] = nil
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d of %q", r, s.Name)
		}
	}

	for _, h := range s.Highlight {
		cell, err := excelize.CoordinatesToCellName(h[1]+1, h[0]+2)
		if err != nil {
			continue
		}
		if err := f.SetCellStyle(s.Name, cell, cell, bad); err != nil {
			return errors.Wrap(err, "highlight cell")
		}
	}
	return nil
}
