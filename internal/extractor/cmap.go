package extractor

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// toUnicode maps font character codes, as uppercase hex, to text. Fonts with
// custom encodings ship one of these as a ToUnicode CMap stream.
type toUnicode struct {
	codes   map[string]string
	codeLen int // bytes per character code
}

var (
	bfCharBlock  = regexp.MustCompile(`(?s)beginbfchar\s*(.*?)\s*endbfchar`)
	bfRangeBlock = regexp.MustCompile(`(?s)beginbfrange\s*(.*?)\s*endbfrange`)
	hexToken     = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
)

func isCMap(content []byte) bool {
	s := string(content)
	return strings.Contains(s, "beginbfchar") || strings.Contains(s, "beginbfrange")
}

// parseCMap reads the bfchar and bfrange sections of a CMap program.
func parseCMap(content string) *toUnicode {
	m := &toUnicode{codes: make(map[string]string)}

	for _, block := range bfCharBlock.FindAllStringSubmatch(content, -1) {
		toks := hexToken.FindAllStringSubmatch(block[1], -1)
		for i := 0; i+1 < len(toks); i += 2 {
			if u := utf16Hex(toks[i+1][1]); u != "" {
				m.codes[strings.ToUpper(toks[i][1])] = u
			}
		}
	}

	for _, block := range bfRangeBlock.FindAllStringSubmatch(content, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			m.addRange(strings.TrimSpace(line))
		}
	}

	m.codeLen = dominantKeyLen(m.codes)
	return m
}

// addRange handles both "<lo> <hi> <dst>" and "<lo> <hi> [<d1> <d2> ...]".
func (m *toUnicode) addRange(line string) {
	if line == "" {
		return
	}
	head, list := line, ""
	if i := strings.Index(line, "["); i >= 0 {
		head, list = line[:i], line[i:]
	}
	bounds := hexToken.FindAllStringSubmatch(head, -1)
	if len(bounds) < 2 {
		return
	}
	width := len(bounds[0][1])
	lo, err1 := strconv.ParseUint(bounds[0][1], 16, 32)
	hi, err2 := strconv.ParseUint(bounds[1][1], 16, 32)
	if err1 != nil || err2 != nil || hi < lo {
		return
	}

	if list != "" {
		for i, d := range hexToken.FindAllStringSubmatch(list, -1) {
			if u := utf16Hex(d[1]); u != "" {
				m.codes[codeKey(lo+uint64(i), width)] = u
			}
		}
		return
	}

	if len(bounds) < 3 {
		return
	}
	dstHex := bounds[2][1]
	dst, err := strconv.ParseUint(dstHex, 16, 32)
	if err != nil {
		return
	}
	for code := lo; code <= hi; code++ {
		if u := utf16Hex(codeKey(dst+code-lo, len(dstHex))); u != "" {
			m.codes[codeKey(code, width)] = u
		}
	}
}

func codeKey(code uint64, width int) string {
	h := strings.ToUpper(strconv.FormatUint(code, 16))
	if len(h) > width {
		return h[len(h)-width:]
	}
	return strings.Repeat("0", width-len(h)) + h
}

func dominantKeyLen(codes map[string]string) int {
	counts := make(map[int]int)
	for k := range codes {
		counts[len(k)/2]++
	}
	best := 1
	for n, c := range counts {
		if c > counts[best] || (c == counts[best] && n < best) {
			best = n
		}
	}
	if best < 1 {
		best = 1
	}
	return best
}

// utf16Hex decodes a big-endian UTF-16 hex string, surrogate pairs included.
func utf16Hex(h string) string {
	if len(h)%2 != 0 {
		h = "0" + h
	}
	data, err := hex.DecodeString(h)
	if err != nil || len(data) == 0 {
		return ""
	}
	if len(data) == 1 {
		return string(rune(data[0]))
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return string(utf16.Decode(units))
}

// decode maps raw string bytes through the table. Codes missing from a
// multi-byte table are retried as single bytes; printable ASCII passes
// through a single-byte table untouched.
func (m *toUnicode) decode(raw []byte) string {
	if m == nil || len(m.codes) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+m.codeLen <= len(raw); {
		key := strings.ToUpper(hex.EncodeToString(raw[i : i+m.codeLen]))
		if u, ok := m.codes[key]; ok {
			b.WriteString(u)
			i += m.codeLen
			continue
		}
		if m.codeLen > 1 {
			if u, ok := m.codes[strings.ToUpper(hex.EncodeToString(raw[i:i+1]))]; ok {
				b.WriteString(u)
			}
			i++
			continue
		}
		if raw[i] >= 32 && raw[i] < 127 {
			b.WriteByte(raw[i])
		}
		i++
	}
	return b.String()
}

// merge folds other into m; later tables win on conflicting codes.
func (m *toUnicode) merge(other *toUnicode) {
	for k, v := range other.codes {
		m.codes[k] = v
	}
	m.codeLen = dominantKeyLen(m.codes)
}
