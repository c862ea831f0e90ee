package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var statementHeaders = []string{"Transaction Date", "Narration", "Withdrawal Amount", "Deposit Amount", "Closing Balance"}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "debitamt", Normalize("Debit Amt."))
	assert.Equal(t, "", Normalize("  123 "))
	assert.Equal(t, "txndate", Normalize("Txn_Date"))
}

func TestBestSource(t *testing.T) {
	tests := []struct {
		canonical string
		want      string
		ok        bool
	}{
		{"Date", "Transaction Date", true},
		{"Description", "Narration", true},
		{"Debit", "Withdrawal Amount", true},
		{"Debit Amt", "Withdrawal Amount", true},
		{"Credit Amt", "Deposit Amount", true},
		{"Balance", "Closing Balance", true},
		{"FooBar", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.canonical, func(t *testing.T) {
			got, ok := BestSource(tt.canonical, statementHeaders)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestSourceDirectMatch(t *testing.T) {
	got, ok := BestSource("Ref No", []string{"Cheque/Ref No.", "Value Dt"})
	assert.True(t, ok)
	assert.Equal(t, "Cheque/Ref No.", got)
}

func TestBestSourceIgnoresBlankHeaders(t *testing.T) {
	_, ok := BestSource("Date", []string{"", "123", "--"})
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	got := Suggest("Balnce", []string{"Narration", "Closing Bal"})
	assert.Equal(t, []string{"Closing Bal"}, got)
	assert.Empty(t, Suggest("", statementHeaders))
}
