package normalize

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-agent/internal/models"
)

var (
	trailingMarker  = regexp.MustCompile(`(?i)(?:^|\s+)(?:cr|dr)\s*$`)
	trailingNumbers = regexp.MustCompile(`\s*(?:` + numberPattern + `\s*)+$`)
)

// CleanDescription strips a trailing CR/DR marker and any trailing run of
// numbers left behind by over-greedy column splitting.
func CleanDescription(s string) string {
	t := strings.TrimSpace(s)
	for {
		next := trailingMarker.ReplaceAllString(t, "")
		next = strings.TrimSpace(trailingNumbers.ReplaceAllString(next, ""))
		if next == t {
			return t
		}
		t = next
	}
}

// CleanValue applies CleanDescription to a cell; an empty result is absent.
func CleanValue(v models.Value) models.Value {
	if v.Kind == models.Absent {
		return v
	}
	cleaned := CleanDescription(v.String())
	if cleaned == "" {
		return models.Null
	}
	return models.Str(cleaned)
}

// TextValue trims a raw cell into text, or absent when blank.
func TextValue(s string) models.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Null
	}
	return models.Str(s)
}
