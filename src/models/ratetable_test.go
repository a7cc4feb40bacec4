// backend/src/models/ratetable_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTable_EURIsPinned(t *testing.T) {
	table := NewRateTable()

	rate, ok := table.Rate("EUR")
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	assert.ErrorIs(t, table.Set("EUR", 2.0), ErrEURPinned)
	assert.ErrorIs(t, table.Add("eur", 2.0), ErrEURPinned)
	assert.ErrorIs(t, table.Remove("EUR"), ErrEURPinned)
}

func TestRateTable_ConvertDividesByRate(t *testing.T) {
	table := NewRateTable()
	require.NoError(t, table.Add("USD", 1.09))

	// 150 USD at 1.09 USD per EUR.
	eur, ok := table.ConvertToEUR(150, "USD")
	require.True(t, ok)
	assert.InDelta(t, 137.61, eur, 0.01)

	eur, ok = table.ConvertToEUR(42, "eur")
	require.True(t, ok)
	assert.Equal(t, 42.0, eur)
}

func TestRateTable_ConvertUnknownCurrency(t *testing.T) {
	table := NewRateTable()
	_, ok := table.ConvertToEUR(100, "JPY")
	assert.False(t, ok)
}

func TestRateTable_SetRequiresExistingCurrency(t *testing.T) {
	table := NewRateTable()
	assert.ErrorIs(t, table.Set("USD", 1.09), ErrCurrencyNotFound)

	require.NoError(t, table.Add("USD", 1.09))
	require.NoError(t, table.Set("usd", 1.12))

	rate, ok := table.Rate("USD")
	require.True(t, ok)
	assert.Equal(t, 1.12, rate)
}

func TestRateTable_RejectsNonPositiveRates(t *testing.T) {
	table := NewRateTable()
	assert.ErrorIs(t, table.Add("USD", 0), ErrInvalidRate)
	assert.ErrorIs(t, table.Add("USD", -1.09), ErrInvalidRate)
}

func TestRateTableFromSnapshot_RepinsEUR(t *testing.T) {
	table := RateTableFromSnapshot(map[string]float64{
		"EUR": 0.5, // corrupt snapshot entry must not unpin EUR
		"USD": 1.09,
		"BAD": -3,
	})

	rate, ok := table.Rate("EUR")
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	rate, ok = table.Rate("USD")
	require.True(t, ok)
	assert.Equal(t, 1.09, rate)

	assert.False(t, table.Has("BAD"))
}

func TestRateTable_CurrenciesSorted(t *testing.T) {
	table := NewRateTable()
	require.NoError(t, table.Add("USD", 1.09))
	require.NoError(t, table.Add("GBP", 0.85))

	assert.Equal(t, []string{"EUR", "GBP", "USD"}, table.Currencies())
}
