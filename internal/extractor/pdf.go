package extractor

import (
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// PDFLines reads lines with the ledongthuc/pdf row grouping, which keeps the
// visual layout of well-formed statements.
type PDFLines struct{}

// Lines implements LineSource. Any page that cannot be read fails the
// whole document so the caller can switch strategy.
func (PDFLines) Lines(path string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, errors.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", i)
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// PDFTables rebuilds ruled or aligned tables from glyph positions.
type PDFTables struct{}

// Tables implements TableSource. Pages that fail or panic are skipped; a
// panic while reading the page tree fails the whole document.
func (PDFTables) Tables(path string) (tables []models.RawTable, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tables, err = nil, errors.Errorf("PDF library crashed: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		glyphs, ok := pageGlyphs(r, i)
		if !ok {
			continue
		}
		if t, ok := assembleTable(i, groupRows(glyphs)); ok {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

func pageGlyphs(r *pdf.Reader, i int) (glyphs []glyph, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			glyphs, ok = nil, false
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return nil, false
	}
	for _, t := range page.Content().Text {
		glyphs = append(glyphs, glyph{x: t.X, y: t.Y, w: t.W, size: t.FontSize, s: t.S})
	}
	return glyphs, len(glyphs) > 0
}
