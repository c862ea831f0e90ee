package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-agent/internal/models"
)

var (
	// Uppercase DR/CR as a whole word carries sign; lowercase does not.
	upperDRPattern = regexp.MustCompile(`(?:^|[^A-Za-z])DR(?:[^A-Za-z]|$)`)
	// Any-case CR/DR not glued to other letters, removed before parsing.
	crdrTokenPattern = regexp.MustCompile(`(?i)(^|[^a-z])(?:cr|dr)([^a-z]|$)`)
	trailingCents    = regexp.MustCompile(`,\d{2}$`)
)

// NormalizeAmount converts a currency-like string to a signed number.
// It handles Indian/US grouping (1,23,456.78 / 1,234.56), EU grouping
// (1.234,56 / 2 345,67), currency symbols, apostrophe separators,
// parenthesized negatives and an uppercase DR suffix. The second result is
// false for blanks, dashes and anything outside that grammar.
func NormalizeAmount(s string) (float64, bool) {
	s = strings.TrimSpace(NFKC(s))
	if s == "" || strings.EqualFold(s, "nan") || s == "-" || s == "\u2013" || s == "\u2014" {
		return 0, false
	}

	hasDR := upperDRPattern.MatchString(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\u2212':
			return '-'
		case unicode.IsSpace(r), r == '\u00A0', r == '\u202F', r == '\u2009':
			return -1
		case unicode.Is(unicode.Sc, r), r == '\'':
			return -1
		}
		return r
	}, s)

	// Drop CR/DR markers now that the sign decision is made. Applied twice
	// because adjacent markers share their separator.
	s = crdrTokenPattern.ReplaceAllString(s, "$1$2")
	s = strings.TrimSpace(crdrTokenPattern.ReplaceAllString(s, "$1$2"))

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return 0, false
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// EU: '.' thousands, ',' decimal
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		if trailingCents.MatchString(s) {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()

	if neg || hasDR {
		return -math.Abs(v), true
	}
	return v, true
}

// AmountValue applies NormalizeAmount to a cell. Numbers pass through,
// absent stays absent.
func AmountValue(v models.Value) models.Value {
	switch v.Kind {
	case models.Number:
		return v
	case models.Text:
		if f, ok := NormalizeAmount(v.Str); ok {
			return models.Num(f)
		}
	}
	return models.Null
}

// QuantizeAmount rounds a value to the given number of decimal places
// using decimal arithmetic, so 0.1+0.2 style noise does not survive.
func QuantizeAmount(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
