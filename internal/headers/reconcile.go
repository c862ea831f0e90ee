// Package headers maps the column names a bank prints on its statement to
// the canonical column names of a target schema.
package headers

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// synonymGroup lists the names banks use for one kind of column.
type synonymGroup struct {
	key   string
	names []string
}

// Group order is the tie-break when a canonical name hits several groups.
var synonyms = []synonymGroup{
	{"date", []string{"date", "txn date", "transaction date", "value date", "posting date"}},
	{"description", []string{"description", "narration", "details", "particulars", "remarks", "narr"}},
	{"debit", []string{"debit", "debit amt", "withdrawal", "withdrawal amount", "dr", "amount debit", "paid"}},
	{"credit", []string{"credit", "credit amt", "deposit", "deposit amount", "cr", "amount credit", "received"}},
	{"balance", []string{"balance", "closing balance", "available balance", "avail bal", "bal", "ledger bal"}},
}

// Normalize lowercases a header and keeps letters only.
func Normalize(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func overlaps(a, b string) bool {
	return a != "" && b != "" && (a == b || strings.Contains(a, b) || strings.Contains(b, a))
}

// BestSource returns the source header that best matches a canonical column.
// Synonyms of every group whose key appears in the canonical name are tried
// first, in list order; then the canonical name itself. Either way the first
// source header that contains, or is contained in, the candidate wins.
func BestSource(canonical string, source []string) (string, bool) {
	want := Normalize(canonical)
	norms := make([]string, len(source))
	for i, h := range source {
		norms[i] = Normalize(h)
	}

	seen := make(map[string]bool)
	for _, g := range synonyms {
		if !strings.Contains(want, g.key) {
			continue
		}
		for _, name := range g.names {
			sn := Normalize(name)
			if seen[sn] {
				continue
			}
			seen[sn] = true
			for i, hn := range norms {
				if overlaps(sn, hn) {
					return source[i], true
				}
			}
		}
	}

	for i, hn := range norms {
		if overlaps(want, hn) {
			return source[i], true
		}
	}
	return "", false
}

// Suggest ranks source headers that loosely resemble a canonical column.
// It never feeds the mapping; it only explains why a column went unmapped.
func Suggest(canonical string, source []string) []string {
	want := Normalize(canonical)
	if want == "" {
		return nil
	}
	norms := make([]string, len(source))
	for i, h := range source {
		norms[i] = Normalize(h)
	}
	ranks := fuzzy.RankFindNormalizedFold(want, norms)
	// also catch headers that are abbreviations of the canonical name
	ranks = append(ranks, fuzzy.RankFindNormalizedFold(abbreviate(want), norms)...)
	sort.Sort(ranks)

	var out []string
	picked := make(map[int]bool)
	for _, r := range ranks {
		if picked[r.OriginalIndex] {
			continue
		}
		picked[r.OriginalIndex] = true
		out = append(out, source[r.OriginalIndex])
	}
	return out
}

func abbreviate(s string) string {
	if len(s) <= 3 {
		return s
	}
	return s[:3]
}
