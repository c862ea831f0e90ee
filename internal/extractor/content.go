package extractor

import (
	"encoding/hex"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
)

// ContentStreamLines decodes the text operators of each page content stream
// directly. It recovers text from documents whose layout the row reader
// cannot handle, at the cost of column spacing.
type ContentStreamLines struct{}

// Lines implements LineSource.
func (ContentStreamLines) Lines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, errors.Wrap(err, "pdfcpu read")
	}

	fonts := collectCMaps(ctx)

	var lines []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d content", pageNr)
		}
		if r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d content", pageNr)
		}
		lines = append(lines, decodeContent(string(data), fonts)...)
	}
	return lines, nil
}

// collectCMaps merges every ToUnicode CMap stream found in the document.
func collectCMaps(ctx *model.Context) *toUnicode {
	merged := &toUnicode{codes: make(map[string]string), codeLen: 1}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if err := sd.Decode(); err != nil || !isCMap(sd.Content) {
			continue
		}
		merged.merge(parseCMap(string(sd.Content)))
	}
	return merged
}

var (
	textOp = regexp.MustCompile(
		`\[((?:[^\]\\]|\\.)*)\]\s*TJ` +
			`|\(((?:[^()\\]|\\.)*)\)\s*(Tj|'|")` +
			`|<([0-9A-Fa-f\s]*)>\s*Tj` +
			`|(-?[\d.]+)\s+(-?[\d.]+)\s+T[dD]` +
			`|T\*|\bBT\b|\bET\b`)
	arrayElem = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>|\(((?:[^()\\]|\\.)*)\)|(-?[\d.]+)`)
)

// decodeContent walks the text operators of a content stream in order.
// BT, ET, T*, the quote operators and any Td/TD with a vertical move end
// the current line.
func decodeContent(content string, fonts *toUnicode) []string {
	var (
		lines []string
		cur   strings.Builder
	)
	endLine := func() {
		if l := strings.TrimSpace(cur.String()); l != "" {
			lines = append(lines, l)
		}
		cur.Reset()
	}

	for _, m := range textOp.FindAllStringSubmatch(content, -1) {
		switch {
		case strings.HasSuffix(m[0], "TJ"):
			cur.WriteString(decodeArray(m[1], fonts))
		case m[3] != "":
			if m[3] != "Tj" {
				endLine()
			}
			cur.WriteString(decodeLiteral(m[2], fonts))
		case strings.HasSuffix(m[0], "Tj"):
			cur.WriteString(decodeHex(m[4], fonts))
		case m[5] != "":
			ty, _ := strconv.ParseFloat(m[6], 64)
			tx, _ := strconv.ParseFloat(m[5], 64)
			if ty != 0 {
				endLine()
			} else if tx > 0 && cur.Len() > 0 {
				cur.WriteByte(' ')
			}
		default:
			endLine()
		}
	}
	endLine()
	return lines
}

// decodeArray joins the strings of a TJ array; a large negative adjustment
// is a word gap.
func decodeArray(body string, fonts *toUnicode) string {
	var b strings.Builder
	for _, m := range arrayElem.FindAllStringSubmatch(body, -1) {
		switch {
		case strings.HasPrefix(m[0], "<"):
			b.WriteString(decodeHex(m[1], fonts))
		case strings.HasPrefix(m[0], "("):
			b.WriteString(decodeLiteral(m[2], fonts))
		default:
			if adj, err := strconv.ParseFloat(m[3], 64); err == nil && adj < -200 {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

func decodeHex(h string, fonts *toUnicode) string {
	h = strings.Join(strings.Fields(h), "")
	if len(h)%2 != 0 {
		h += "0"
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return ""
	}
	if s := fonts.decode(raw); s != "" {
		return s
	}
	if len(raw) >= 2 && len(raw)%2 == 0 {
		var b strings.Builder
		for i := 0; i+1 < len(raw); i += 2 {
			if r := rune(raw[i])<<8 | rune(raw[i+1]); unicode.IsPrint(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return printableOnly(string(raw))
}

func decodeLiteral(s string, fonts *toUnicode) string {
	raw := unescapeLiteral(s)
	if d := fonts.decode([]byte(raw)); d != "" && mostlyPrintable(d) {
		return d
	}
	return printableOnly(raw)
}

// unescapeLiteral resolves the backslash escapes of a PDF literal string.
func unescapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch c = s[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(c - '0')
			for j := 0; j < 2 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; j++ {
				i++
				v = v*8 + int(s[i]-'0')
			}
			b.WriteByte(byte(v))
		default:
			// \( \) \\ and unknown escapes keep the character
			b.WriteByte(c)
		}
	}
	return b.String()
}

func printableOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

func mostlyPrintable(s string) bool {
	total, ok := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) {
			ok++
		}
	}
	return total > 0 && ok*2 > total
}
