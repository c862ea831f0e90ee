package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/insightdelivered/statement-agent/internal/models"
)

// CanonicalDateLayout is the DD-MM-YYYY form every parsed date is rendered in.
const CanonicalDateLayout = "02-01-2006"

// dateLayouts is the fixed, ordered list ParseDate tries. Day and month use
// the non-padded verbs so "1/8/24" parses as well as "01/08/2024".
var dateLayouts = []string{
	"2-1-2006", "2-1-06",
	"2/1/2006", "2/1/06",
	"2.1.2006", "2.1.06",
	"2-Jan-2006", "2-Jan-06",
	"2/Jan/2006", "2/Jan/06",
	"2.Jan.2006", "2.Jan.06",
	"2 Jan 2006", "2 Jan 06",
}

// coerceLayouts is tried when re-rendering a column to a reference style.
// It is wider than dateLayouts: ISO dates and full month names are accepted.
var coerceLayouts = []string{
	"2-1-2006", "2/1/2006", "2.1.2006",
	"2-1-06", "2/1/06", "2.1.06",
	"2-Jan-2006", "2-Jan-06",
	"2006-01-02",
	"2 Jan 2006",
	"2 January 2006",
	"2/Jan/2006", "2/Jan/06",
	"2.Jan.2006", "2.Jan.06",
	"2 Jan 06",
}

var (
	compactDate   = regexp.MustCompile(`^\d{8}$`)
	twoDigitYear  = regexp.MustCompile(`\D\d{2}$`)
	dayFirstDigit = regexp.MustCompile(`^(\d{1,2})\D+(\d{1,2})\D+(\d{2,4})$`)
	dayFirstName  = regexp.MustCompile(`^(\d{1,2})[\s\-/.,]*([A-Za-z]{3,})[\s\-/.,]*(\d{2,4})$`)
)

// ParseDate converts a statement date to DD-MM-YYYY. Only the fixed layout
// list and the compact DDMMYYYY form are accepted; anything else fails
// closed rather than guessing.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(NFKC(s))
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout), true
		}
	}
	if compactDate.MatchString(s) {
		if t, err := time.Parse("02012006", s); err == nil {
			return t.Format(CanonicalDateLayout), true
		}
	}
	return "", false
}

// DateStyle describes how a reference column displays its dates.
type DateStyle struct {
	Sep          string
	MonthName    bool
	TwoDigitYear bool
}

// InferDateStyle guesses the display style from one sample cell.
func InferDateStyle(sample string) DateStyle {
	s := strings.TrimSpace(sample)
	st := DateStyle{Sep: "."}
	switch {
	case strings.Contains(s, "-"):
		st.Sep = "-"
	case strings.Contains(s, "/"):
		st.Sep = "/"
	case strings.Contains(s, " "):
		st.Sep = " "
	}
	st.MonthName = strings.IndexFunc(s, unicode.IsLetter) >= 0
	st.TwoDigitYear = twoDigitYear.MatchString(s)
	return st
}

// Layout returns the Go time layout for the style.
func (st DateStyle) Layout() string {
	month, year := "01", "2006"
	if st.MonthName {
		month = "Jan"
	}
	if st.TwoDigitYear {
		year = "06"
	}
	return "02" + st.Sep + month + st.Sep + year
}

// CoerceDates re-renders values in the display style of the first non-empty
// cell among the first ten reference values. With no usable reference
// sample the input is returned unchanged.
func CoerceDates(values, reference []models.Value) []models.Value {
	for i, v := range reference {
		if i >= 10 {
			break
		}
		if sample := strings.TrimSpace(v.String()); sample != "" {
			return CoerceDatesToSample(values, sample)
		}
	}
	return values
}

// CoerceDatesToSample re-renders every cell in the style inferred from sample.
// Cells that cannot be read as a date become absent.
func CoerceDatesToSample(values []models.Value, sample string) []models.Value {
	if strings.TrimSpace(sample) == "" {
		return values
	}
	layout := InferDateStyle(sample).Layout()
	out := make([]models.Value, len(values))
	for i, v := range values {
		t, ok := parseLoose(v.String())
		if !ok {
			out[i] = models.Null
			continue
		}
		out[i] = models.Str(t.Format(layout))
	}
	return out
}

// parseLoose tries the coercion layouts, then a permissive day-first read.
func parseLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(NFKC(s))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range coerceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if compactDate.MatchString(s) {
		if t, err := time.Parse("02012006", s); err == nil {
			return t, true
		}
	}
	if m := dayFirstDigit.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		return buildDate(m[1], time.Month(month), m[3])
	}
	if m := dayFirstName.FindStringSubmatch(s); m != nil {
		if month, ok := monthByPrefix(m[2]); ok {
			return buildDate(m[1], month, m[3])
		}
	}
	return time.Time{}, false
}

func buildDate(dayStr string, month time.Month, yearStr string) (time.Time, bool) {
	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	switch len(yearStr) {
	case 2:
		// same pivot as the "06" layout verb
		if year >= 69 {
			year += 1900
		} else {
			year += 2000
		}
	case 3:
		return time.Time{}, false
	}
	if month < time.January || month > time.December {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func monthByPrefix(name string) (time.Month, bool) {
	prefix := strings.ToLower(name[:3])
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()[:3]) == prefix {
			return m, true
		}
	}
	return 0, false
}
