package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/normalize"
)

var (
	creditKeywords = []string{
		"salary credit", "interest credit", "cheque deposit", "cash deposit",
		"neft transfer from", "neft from", "deposit", "credited",
	}
	debitKeywords = []string{
		"imps", "upi", "qr payment", "fuel", "dining", "restaurant", "emi",
		"utility bill", "service charge", "electricity bill", "online card purchase",
		"card swipe", "atm cash withdrawal", "credit card payment", "mobile recharge",
		"insurance premium",
	}

	// an amount with the marker glued on, e.g. "1,200.00Cr"
	gluedMarker = regexp.MustCompile(`(?i)\d(cr|dr)$`)
)

// Side says which column a transaction amount belongs in.
type Side int

const (
	Credit Side = iota
	Debit
)

// LineState is carried from one statement line to the next.
type LineState struct {
	Balance    float64
	HasBalance bool
}

// LineRow is one parsed statement line.
type LineRow struct {
	Date        string
	Description string
	Amount      models.Value
	Side        Side
	Balance     models.Value
}

// markers reports standalone cr and dr tokens in the line tail.
func markers(tail string) (cr, dr bool) {
	fields := strings.Fields(strings.ToLower(tail))
	for _, f := range fields {
		switch strings.Trim(f, ".,;:()[]") {
		case "cr":
			cr = true
		case "dr":
			dr = true
		}
	}
	if n := len(fields); n > 0 {
		if m := gluedMarker.FindStringSubmatch(fields[n-1]); m != nil {
			cr = cr || m[1] == "cr"
			dr = dr || m[1] == "dr"
		}
	}
	return cr, dr
}

// Classify decides whether amount is a credit or a debit. Explicit markers
// win, then the keyword lists, then the direction the balance moved. With no
// signal at all the amount is taken as a credit.
func Classify(state LineState, tail string, balance models.Value) Side {
	cr, dr := markers(tail)
	switch {
	case cr && !dr:
		return Credit
	case dr && !cr:
		return Debit
	}

	lower := strings.ToLower(tail)
	hasCredit := containsAny(lower, creditKeywords)
	hasDebit := containsAny(lower, debitKeywords)
	switch {
	case hasCredit && !hasDebit:
		return Credit
	case hasDebit && !hasCredit:
		return Debit
	}

	if state.HasBalance && balance.Kind == models.Number {
		switch {
		case balance.Num > state.Balance:
			return Credit
		case balance.Num < state.Balance:
			return Debit
		}
	}
	return Credit
}

// Fold parses one stitched line against the running state. The second
// result is false when the line does not start with a date.
func Fold(state LineState, line string) (LineState, LineRow, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || !normalize.IsDateToken(fields[0]) {
		return state, LineRow{}, false
	}
	tail := strings.Join(fields[1:], " ")
	row := LineRow{Date: fields[0], Description: normalize.CleanDescription(tail)}

	nums := normalize.NumberTokens(tail)
	if len(nums) == 0 {
		return state, row, true
	}
	row.Balance = amountOf(nums[len(nums)-1])
	if len(nums) >= 2 {
		row.Amount = amountOf(nums[len(nums)-2])
	}
	if !row.Amount.IsAbsent() {
		row.Side = Classify(state, tail, row.Balance)
	}

	if row.Balance.Kind == models.Number {
		state = LineState{Balance: row.Balance.Num, HasBalance: true}
	}
	return state, row, true
}

func amountOf(tok string) models.Value {
	if f, ok := normalize.NormalizeAmount(tok); ok {
		return models.Num(f)
	}
	return models.Null
}

// Cell projects the row onto one canonical column by name.
func (r LineRow) Cell(column string) models.Value {
	l := strings.ToLower(column)
	switch {
	case strings.Contains(l, "date"):
		return normalize.TextValue(r.Date)
	case strings.Contains(l, "debit"):
		if r.Side == Debit {
			return r.Amount
		}
	case strings.Contains(l, "credit"):
		if r.Side == Credit {
			return r.Amount
		}
	case strings.Contains(l, "balance"):
		return r.Balance
	case containsAny(l, descriptionHints):
		return normalize.TextValue(r.Description)
	}
	return models.Null
}

// FromLines folds the stitched lines into one row per date-led line.
func FromLines(lines []string, columns []string) *models.Table {
	t := models.NewTable(columns)
	var state LineState
	for _, l := range lines {
		next, row, ok := Fold(state, l)
		state = next
		if !ok {
			continue
		}
		values := make([]models.Value, len(columns))
		for i, c := range columns {
			values[i] = row.Cell(c)
		}
		t.AddRow(values)
	}
	return t
}
