// backend/src/services/rates_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/foliotracker/backend/src/config"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
)

// CurrencyInUseError is returned when removing a currency that holdings or
// instrument mappings still reference.
type CurrencyInUseError struct {
	Currency    string
	Instruments []string
}

func (e *CurrencyInUseError) Error() string {
	return fmt.Sprintf("currency %q is still used by: %s", e.Currency, strings.Join(e.Instruments, ", "))
}

type ratesServiceImpl struct {
	store      *PortfolioStore
	baseURL    string
	httpClient *http.Client
	fetchCache *cache.Cache
}

const fetchCacheKey = "frankfurter_latest"

// NewRatesService manages the EUR-based exchange rate table. baseURL points
// at a Frankfurter-compatible API and is injectable for tests; empty means
// the configured default.
func NewRatesService(store *PortfolioStore, baseURL string) RatesService {
	timeout := 15 * time.Second
	if config.Cfg != nil {
		timeout = config.Cfg.RatesFetchTimeout
		if baseURL == "" {
			baseURL = config.Cfg.RatesAPIBaseURL
		}
	}
	return &ratesServiceImpl{
		store:      store,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		fetchCache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *ratesServiceImpl) List() map[string]float64 {
	return s.store.RatesView().Snapshot()
}

func (s *ratesServiceImpl) SetRate(currency string, rate float64) error {
	return s.store.update(func(_ *models.Portfolio, rates *models.RateTable, _ map[string]*models.InstrumentMapping) (dirtySet, error) {
		if err := rates.Set(currency, rate); err != nil {
			return dirtySet{}, err
		}
		return dirtySet{rates: true}, nil
	})
}

func (s *ratesServiceImpl) AddCurrency(currency string, rate float64) error {
	return s.store.update(func(_ *models.Portfolio, rates *models.RateTable, _ map[string]*models.InstrumentMapping) (dirtySet, error) {
		if err := rates.Add(currency, rate); err != nil {
			return dirtySet{}, err
		}
		logger.L.Info("Currency added to rate table", "currency", models.NormalizeCurrency(currency), "rate", rate)
		return dirtySet{rates: true}, nil
	})
}

// RemoveCurrency deletes a currency, refusing while any holding or mapping
// still uses it. Without the guard those rows would silently drop out of the
// valuation report.
func (s *ratesServiceImpl) RemoveCurrency(currency string) error {
	code := models.NormalizeCurrency(currency)
	return s.store.update(func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		var users []string
		for _, id := range p.SortedIDs() {
			if models.NormalizeCurrency(p.Holdings[id].Currency) == code {
				users = append(users, id)
			}
		}
		for id, m := range mappings {
			if models.NormalizeCurrency(m.Currency) == code {
				users = append(users, "mapping:"+id)
			}
		}
		if len(users) > 0 {
			return dirtySet{}, &CurrencyInUseError{Currency: code, Instruments: users}
		}
		if err := rates.Remove(code); err != nil {
			return dirtySet{}, err
		}
		return dirtySet{rates: true}, nil
	})
}

// frankfurterResponse mirrors the Frankfurter /latest payload. Rates come
// back EUR-based already, so they drop straight into the table.
type frankfurterResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Refresh fetches fresh quotes for the currencies already in the table.
// Currencies the API does not quote keep their previous rate; the API never
// introduces currencies the user did not add.
func (s *ratesServiceImpl) Refresh(ctx context.Context) (map[string]float64, error) {
	var symbols []string
	for _, code := range s.store.RatesView().Currencies() {
		if code != "EUR" {
			symbols = append(symbols, code)
		}
	}
	if len(symbols) == 0 {
		return s.List(), nil
	}

	fetched, err := s.fetchLatest(ctx, symbols)
	if err != nil {
		return nil, err
	}

	updated := 0
	err = s.store.update(func(_ *models.Portfolio, rates *models.RateTable, _ map[string]*models.InstrumentMapping) (dirtySet, error) {
		for code, rate := range fetched {
			if !rates.Has(code) {
				continue
			}
			if err := rates.Set(code, rate); err != nil {
				logger.L.Warn("Skipping refreshed rate", "currency", code, "rate", rate, "error", err)
				continue
			}
			updated++
		}
		return dirtySet{rates: updated > 0}, nil
	})
	if err != nil {
		return nil, err
	}
	logger.L.Info("Exchange rates refreshed", "requested", len(symbols), "updated", updated)
	return s.List(), nil
}

func (s *ratesServiceImpl) fetchLatest(ctx context.Context, symbols []string) (map[string]float64, error) {
	cacheKey := fetchCacheKey + ":" + strings.Join(symbols, ",")
	if cached, ok := s.fetchCache.Get(cacheKey); ok {
		return cached.(map[string]float64), nil
	}

	endpoint := fmt.Sprintf("%s/latest?base=EUR&symbols=%s", s.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building rates request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching exchange rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates API returned status %d", resp.StatusCode)
	}

	var payload frankfurterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding rates response: %w", err)
	}

	out := make(map[string]float64, len(payload.Rates))
	for code, rate := range payload.Rates {
		out[models.NormalizeCurrency(code)] = rate
	}
	s.fetchCache.Set(cacheKey, out, cache.DefaultExpiration)
	return out, nil
}
