// Package normalize turns raw statement cell strings into typed values:
// date and amount token recognition, locale-aware amount parsing, date
// canonicalization, and description clean-up.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Date token shapes found at the start of statement lines.
var (
	// DD/MM/YYYY, D-M-YY and mixed separators
	datePatternNumeric = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}$`)
	// DD-Mon-YYYY or DD-Mon-YY
	datePatternMonth = regexp.MustCompile(`^\d{1,2}-[A-Za-z]{3}-\d{2,4}$`)
	// DD.MM.YYYY
	datePatternDotted = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2,4}$`)
)

// numberPattern matches numeric-looking fragments: optional opening paren or
// minus, digits with thousands separators (comma, apostrophe, no-break and
// thin spaces), an optional decimal part and closing paren.
const numberPattern = `[(\-\x{2212}]?\d[\d,\x{00A0}\x{202F}\x{2009}']*\.?\d*\)?`

var (
	numberRe      = regexp.MustCompile(numberPattern)
	wholeNumberRe = regexp.MustCompile(`^` + numberPattern + `$`)
)

// IsDateToken reports whether a single whitespace-free token looks like a date.
func IsDateToken(tok string) bool {
	return datePatternNumeric.MatchString(tok) ||
		datePatternMonth.MatchString(tok) ||
		datePatternDotted.MatchString(tok)
}

// StartsWithDate reports whether the first field of a line is a date token.
func StartsWithDate(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && IsDateToken(fields[0])
}

// IsAmountToken reports whether the whole token is a numeric fragment.
func IsAmountToken(tok string) bool {
	return wholeNumberRe.MatchString(strings.TrimSpace(tok))
}

// NumberTokens returns every numeric-looking fragment in text, in order.
func NumberTokens(text string) []string {
	return numberRe.FindAllString(text, -1)
}

// NFKC applies compatibility normalization so that no-break spaces,
// full-width digits and similar presentation forms compare as plain text.
func NFKC(s string) string {
	return norm.NFKC.String(s)
}
