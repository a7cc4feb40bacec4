// backend/src/services/rates_service_test.go
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/foliotracker/backend/src/models"
)

func TestRatesService_AddSetRemove(t *testing.T) {
	store := newTestStore(t, nil)
	svc := NewRatesService(store, "http://unused.invalid")

	require.NoError(t, svc.AddCurrency("usd", 1.09))
	assert.Equal(t, map[string]float64{"EUR": 1.0, "USD": 1.09}, svc.List())

	require.NoError(t, svc.SetRate("USD", 1.12))
	assert.Equal(t, 1.12, svc.List()["USD"])

	assert.ErrorIs(t, svc.SetRate("JPY", 150), models.ErrCurrencyNotFound)
	assert.ErrorIs(t, svc.SetRate("EUR", 2), models.ErrEURPinned)

	require.NoError(t, svc.RemoveCurrency("USD"))
	assert.NotContains(t, svc.List(), "USD")
}

func TestRatesService_RemoveCurrencyInUse(t *testing.T) {
	store := newTestStore(t, map[string]float64{"USD": 1.09})
	merger := NewMergeService(store, "EUR", true)
	svc := NewRatesService(store, "http://unused.invalid")

	_, err := merger.MergeBatch([]models.DraftRecord{draftRecord("AAPL", 10, 150, "USD")})
	require.NoError(t, err)

	err = svc.RemoveCurrency("USD")
	var inUseErr *CurrencyInUseError
	require.ErrorAs(t, err, &inUseErr)
	assert.Contains(t, inUseErr.Instruments, "AAPL")
	assert.Contains(t, svc.List(), "USD")

	// Once nothing references the currency, removal succeeds.
	require.NoError(t, store.DeleteHolding("AAPL"))
	require.NoError(t, svc.RemoveCurrency("USD"))
}

func TestRatesService_RefreshUpdatesExistingOnly(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"base": "EUR",
			"date": "2026-08-28",
			"rates": map[string]float64{
				"USD": 1.17,
				"GBP": 0.84,
				"JPY": 172.5, // not in the table; must not be added
			},
		})
	}))
	defer server.Close()

	store := newTestStore(t, map[string]float64{"USD": 1.09, "GBP": 0.85})
	svc := NewRatesService(store, server.URL)

	rates, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/latest", requestedPath)
	assert.Equal(t, 1.17, rates["USD"])
	assert.Equal(t, 0.84, rates["GBP"])
	assert.Equal(t, 1.0, rates["EUR"])
	assert.NotContains(t, rates, "JPY")
}

func TestRatesService_RefreshWithOnlyEURSkipsFetch(t *testing.T) {
	store := newTestStore(t, nil)
	// The base URL is unreachable; with nothing to refresh it is never hit.
	svc := NewRatesService(store, "http://unreachable.invalid")

	rates, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"EUR": 1.0}, rates)
}

func TestRatesService_RefreshAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := newTestStore(t, map[string]float64{"USD": 1.09})
	svc := NewRatesService(store, server.URL)

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	// The table keeps its previous rates.
	assert.Equal(t, 1.09, svc.List()["USD"])
}
