// backend/src/models/ratetable.go
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Rates are expressed as units of currency per 1 EUR, so converting an amount
// into EUR is a division. The EUR entry is always present, always 1.0, and
// can neither be altered nor removed.
var (
	ErrEURPinned        = errors.New("EUR rate is fixed at 1.0 and cannot be changed or removed")
	ErrCurrencyNotFound = errors.New("currency not present in rate table")
	ErrInvalidRate      = errors.New("exchange rate must be a positive number")
)

// RateTable maps currency codes to their EUR exchange rate. The zero value is
// not usable; construct with NewRateTable.
type RateTable struct {
	rates map[string]float64
}

// NewRateTable returns a table containing only the pinned EUR entry.
func NewRateTable() *RateTable {
	return &RateTable{rates: map[string]float64{"EUR": 1.0}}
}

// NormalizeCurrency uppercases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Rate returns the rate for a currency and whether it is known.
func (t *RateTable) Rate(code string) (float64, bool) {
	r, ok := t.rates[NormalizeCurrency(code)]
	return r, ok
}

// Has reports whether a currency exists in the table.
func (t *RateTable) Has(code string) bool {
	_, ok := t.rates[NormalizeCurrency(code)]
	return ok
}

// Set updates the rate of a currency that is already in the table. EUR is
// rejected; so are non-positive rates.
func (t *RateTable) Set(code string, rate float64) error {
	code = NormalizeCurrency(code)
	if code == "EUR" {
		return ErrEURPinned
	}
	if rate <= 0 {
		return fmt.Errorf("%w: %q -> %v", ErrInvalidRate, code, rate)
	}
	if _, ok := t.rates[code]; !ok {
		return fmt.Errorf("%w: %q", ErrCurrencyNotFound, code)
	}
	t.rates[code] = rate
	return nil
}

// Add introduces a new currency. Adding is always an explicit operation;
// refresh never adds currencies on its own.
func (t *RateTable) Add(code string, rate float64) error {
	code = NormalizeCurrency(code)
	if code == "EUR" {
		return ErrEURPinned
	}
	if rate <= 0 {
		return fmt.Errorf("%w: %q -> %v", ErrInvalidRate, code, rate)
	}
	t.rates[code] = rate
	return nil
}

// Remove deletes a currency from the table. EUR cannot be removed.
func (t *RateTable) Remove(code string) error {
	code = NormalizeCurrency(code)
	if code == "EUR" {
		return ErrEURPinned
	}
	if _, ok := t.rates[code]; !ok {
		return fmt.Errorf("%w: %q", ErrCurrencyNotFound, code)
	}
	delete(t.rates, code)
	return nil
}

// ConvertToEUR converts an amount in the given currency into EUR. The second
// return value is false when the currency is unknown.
func (t *RateTable) ConvertToEUR(amount float64, code string) (float64, bool) {
	rate, ok := t.Rate(code)
	if !ok || rate == 0 {
		return 0, false
	}
	return amount / rate, true
}

// Currencies returns all currency codes in lexical order.
func (t *RateTable) Currencies() []string {
	codes := make([]string, 0, len(t.rates))
	for c := range t.rates {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Snapshot returns a plain map copy of the table, for serialization.
func (t *RateTable) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.rates))
	for c, r := range t.rates {
		out[c] = r
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *RateTable) Clone() *RateTable {
	return &RateTable{rates: t.Snapshot()}
}

// RateTableFromSnapshot rebuilds a table from persisted data, re-pinning EUR
// regardless of what the snapshot contains.
func RateTableFromSnapshot(rates map[string]float64) *RateTable {
	t := NewRateTable()
	for code, rate := range rates {
		code = NormalizeCurrency(code)
		if code == "EUR" || rate <= 0 {
			continue
		}
		t.rates[code] = rate
	}
	return t
}
