package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// glyph is one positioned text run as reported by the PDF reader.
type glyph struct {
	x, y, w float64
	size    float64
	s       string
}

func (g glyph) end() float64 {
	if g.w > 0 {
		return g.x + g.w
	}
	return g.x + 0.5*g.fontSize()*float64(len([]rune(g.s)))
}

func (g glyph) fontSize() float64 {
	if g.size > 0 {
		return g.size
	}
	return 10
}

// cell is a horizontally contiguous run of text within a row.
type cell struct {
	x0, x1 float64
	text   string
}

func (c cell) center() float64 { return (c.x0 + c.x1) / 2 }

// groupRows buckets glyphs by rounded baseline, top of page first, and splits
// each row into cells wherever the horizontal gap is wider than a column gap.
func groupRows(glyphs []glyph) [][]cell {
	byY := make(map[int][]glyph)
	for _, g := range glyphs {
		y := int(math.Round(g.y))
		byY[y] = append(byY[y], g)
	}
	ys := make([]int, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	// PDF y grows upwards
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	rows := make([][]cell, 0, len(ys))
	for _, y := range ys {
		items := byY[y]
		sort.SliceStable(items, func(a, b int) bool { return items[a].x < items[b].x })
		if row := splitCells(items); len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func splitCells(items []glyph) []cell {
	var (
		cells   []cell
		cur     *cell
		text    strings.Builder
		prevEnd float64
	)
	flush := func() {
		if cur == nil {
			return
		}
		if t := strings.TrimSpace(text.String()); t != "" {
			cur.text = t
			cells = append(cells, *cur)
		}
		cur = nil
		text.Reset()
	}

	for _, g := range items {
		if strings.TrimSpace(g.s) == "" {
			continue
		}
		size := g.fontSize()
		gap := g.x - prevEnd
		switch {
		case cur == nil:
			cur = &cell{x0: g.x}
		case gap > math.Max(1.2*size, 8):
			flush()
			cur = &cell{x0: g.x}
		case gap > 0.2*size:
			text.WriteByte(' ')
		}
		text.WriteString(g.s)
		prevEnd = g.end()
		cur.x1 = prevEnd
	}
	flush()
	return cells
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// isHeaderRow reports whether a row looks like column titles: at least two
// cells, most of them free of digits.
func isHeaderRow(row []cell) bool {
	if len(row) < 2 {
		return false
	}
	digits := 0
	for _, c := range row {
		if hasDigit(c.text) {
			digits++
		}
	}
	return digits*2 < len(row)
}

// assembleTable picks the header row with the most cells (earliest on ties)
// and aligns every later row to the nearest header column.
func assembleTable(page int, rows [][]cell) (models.RawTable, bool) {
	headerIdx := -1
	for i, row := range rows {
		if isHeaderRow(row) && (headerIdx < 0 || len(row) > len(rows[headerIdx])) {
			headerIdx = i
		}
	}
	if headerIdx < 0 {
		return models.RawTable{}, false
	}

	header := rows[headerIdx]
	t := models.RawTable{Page: page, Header: make([]string, len(header))}
	for i, c := range header {
		t.Header[i] = c.text
	}

	for _, row := range rows[headerIdx+1:] {
		out := make([]string, len(header))
		for _, c := range row {
			col := nearestColumn(header, c)
			if out[col] != "" {
				out[col] += " "
			}
			out[col] += c.text
		}
		t.Rows = append(t.Rows, out)
	}
	return t, len(t.Rows) > 0
}

func nearestColumn(header []cell, c cell) int {
	best, bestDist := 0, math.Inf(1)
	for i, h := range header {
		// overlap with the header span wins outright
		if c.x0 < h.x1 && c.x1 > h.x0 {
			return i
		}
		if d := math.Abs(h.center() - c.center()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
