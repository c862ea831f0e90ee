// Package extractor reads statement PDFs into raw lines and candidate tables.
package extractor

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/normalize"
)

// ErrNoText is returned when every line strategy failed on a document.
var ErrNoText = errors.New("no line extraction strategy could read the document")

// TableSource yields candidate tables, page by page.
type TableSource interface {
	Tables(path string) ([]models.RawTable, error)
}

// LineSource yields the raw text lines of a document in reading order.
type LineSource interface {
	Lines(path string) ([]string, error)
}

// Chain reads lines with Primary and falls back to Secondary for the whole
// document only when Primary fails. A panic in either source counts as a
// failure.
type Chain struct {
	Primary   LineSource
	Secondary LineSource
	Log       *zap.Logger
}

// NewChain returns the default two-strategy chain: the layout-aware reader
// first, the raw content-stream reader second.
func NewChain(log *zap.Logger) Chain {
	return Chain{Primary: PDFLines{}, Secondary: ContentStreamLines{}, Log: log}
}

func (c Chain) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// Lines implements LineSource.
func (c Chain) Lines(path string) ([]string, error) {
	lines, primaryErr := safeLines(c.Primary, path)
	if primaryErr == nil {
		return lines, nil
	}
	c.logger().Warn("primary line extraction failed, using secondary",
		zap.String("path", path), zap.Error(primaryErr))

	if c.Secondary == nil {
		return nil, errors.Wrapf(ErrNoText, "primary: %v", primaryErr)
	}
	lines, secondaryErr := safeLines(c.Secondary, path)
	if secondaryErr != nil {
		return nil, errors.Wrapf(ErrNoText, "primary: %v; secondary: %v", primaryErr, secondaryErr)
	}
	return lines, nil
}

func safeLines(src LineSource, path string) (lines []string, err error) {
	if src == nil {
		return nil, errors.New("no line source configured")
	}
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, errors.Errorf("line extraction panicked: %v", r)
		}
	}()
	return src.Lines(path)
}

// ExtractLines reads the document through src, applies compatibility
// normalization to every line and stitches continuation lines onto the
// date-led line they belong to.
func ExtractLines(path string, src LineSource) ([]string, error) {
	raw, err := src.Lines(path)
	if err != nil {
		return nil, err
	}
	clean := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(normalize.NFKC(l))
		if l != "" {
			clean = append(clean, l)
		}
	}
	return Stitch(clean), nil
}

// Stitch joins continuation lines to the preceding date-led line with a
// single space. Lines before the first date-led line are dropped.
func Stitch(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if normalize.StartsWithDate(l) {
			out = append(out, l)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1] += " " + l
		}
	}
	return out
}
