package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-agent/internal/models"
)

func TestFromTables(t *testing.T) {
	columns := []string{"Date", "Description", "Debit", "Credit", "Balance"}
	tables := []models.RawTable{
		{
			Page:   1,
			Header: []string{"Account Summary", "Value"},
			Rows:   [][]string{{"Opening", "1,000.00"}},
		},
		{
			Page:   1,
			Header: []string{"Transaction Date", "Narration", "Withdrawal Amount", "Deposit Amount", "Closing Balance"},
			Rows: [][]string{
				{"01/08/2024", "UPI Grocery 1234.00 DR", "1,234.00", "", "10,000.00"},
				{"02/08/2024", "Salary", "", "50,000.00", "60,000.00"},
			},
		},
		{
			Page:   2,
			Header: []string{"Transaction Date", "Narration", "Withdrawal Amount", "Deposit Amount", "Closing Balance"},
			Rows:   [][]string{{"03/08/2024", "Fuel", "500.00", "-", "59,500.00"}},
		},
	}

	got, reports := FromTables(tables, columns)
	require.NotNil(t, got)
	assert.Equal(t, columns, got.Columns)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []models.Value{
		models.Str("01/08/2024"), models.Str("UPI Grocery"), models.Num(1234), models.Null, models.Num(10000),
	}, got.Rows[0])
	assert.Equal(t, []models.Value{
		models.Str("03/08/2024"), models.Str("Fuel"), models.Num(500), models.Null, models.Num(59500),
	}, got.Rows[2])

	require.Len(t, reports, 3)
	assert.False(t, reports[0].Accepted)
	assert.True(t, reports[1].Accepted)
	assert.Equal(t, "Withdrawal Amount", reports[1].Mapping["Debit"])
}

func TestFromTablesUnmappedColumn(t *testing.T) {
	columns := []string{"Date", "Description", "Debit", "Credit", "Balance", "Ref No"}
	tables := []models.RawTable{{
		Header: []string{"Date", "Description", "Debit", "Credit", "Balance"},
		Rows:   [][]string{{"01/08/2024", "Fuel", "10", "", "90"}},
	}}

	got, reports := FromTables(tables, columns)
	require.NotNil(t, got)
	assert.True(t, got.Rows[0][5].IsAbsent())
	assert.Equal(t, []string{"Ref No"}, reports[0].Unmapped)
}

func TestFromTablesNothingAccepted(t *testing.T) {
	got, reports := FromTables([]models.RawTable{{Header: []string{"Page", "Of"}}}, []string{"Date", "Balance"})
	assert.Nil(t, got)
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].Reason)

	got, _ = FromTables(nil, []string{"Date", "Balance"})
	assert.Nil(t, got)
}

func TestCastCell(t *testing.T) {
	assert.Equal(t, models.Num(-500), CastCell(KindOf("Debit Amount"), "(500)"))
	assert.Equal(t, models.Str("Grocery"), CastCell(KindOf("Narration"), " Grocery 12.00 "))
	assert.Equal(t, models.Str("x"), CastCell(KindOf("Ref"), " x "))
	assert.True(t, CastCell(KindOf("Ref"), "  ").IsAbsent())
}
