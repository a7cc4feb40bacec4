// backend/src/services/state.go
package services

import (
	"fmt"
	"sync"

	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/processors"
	"github.com/username/foliotracker/backend/src/storage"
)

// PortfolioStore owns the shared mutable state: the portfolio, the exchange
// rate table, and the instrument mappings. One RWMutex covers all three so a
// valuation read can never observe a half-applied merge; every write persists
// through the storage snapshot before the lock is released.
type PortfolioStore struct {
	mu        sync.RWMutex
	portfolio *models.Portfolio
	rates     *models.RateTable
	mappings  map[string]*models.InstrumentMapping
	store     *storage.Store // nil when running without persistence (tests)
	version   uint64         // bumped on every committed write; keys the valuation cache
}

// NewPortfolioStore builds a store around a loaded snapshot. Pass a nil
// storage.Store for an ephemeral, in-memory-only store.
func NewPortfolioStore(st *storage.Store) (*PortfolioStore, error) {
	ps := &PortfolioStore{
		portfolio: models.NewPortfolio(),
		rates:     models.NewRateTable(),
		mappings:  make(map[string]*models.InstrumentMapping),
		store:     st,
	}
	if st == nil {
		return ps, nil
	}
	snap, err := st.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("loading startup snapshot: %w", err)
	}
	ps.portfolio = snap.Portfolio
	ps.rates = models.RateTableFromSnapshot(snap.Rates)
	ps.mappings = snap.Mappings
	return ps, nil
}

// View runs fn under the read lock. fn must not retain references to the
// passed state beyond the call.
func (ps *PortfolioStore) View(fn func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) error) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return fn(ps.portfolio, ps.rates, ps.mappings)
}

// update runs fn under the write lock and persists the touched state. fn
// reports which parts of the snapshot it dirtied.
type dirtySet struct {
	portfolio bool
	mappings  bool
	rates     bool
}

// update applies fn to a deep copy of the state and swaps the copy in only
// after a successful persist. A failed save therefore leaves both memory and
// disk at the pre-call state; the caller sees an error and nothing else.
func (ps *PortfolioStore) update(fn func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error)) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	portfolio := ps.portfolio.Clone()
	rates := ps.rates.Clone()
	mappings := cloneMappings(ps.mappings)

	dirty, err := fn(portfolio, rates, mappings)
	if err != nil {
		return err
	}
	if err := ps.persistLocked(portfolio, rates, mappings, dirty); err != nil {
		return err
	}
	ps.portfolio = portfolio
	ps.rates = rates
	ps.mappings = mappings
	ps.version++
	return nil
}

func cloneMappings(mappings map[string]*models.InstrumentMapping) map[string]*models.InstrumentMapping {
	out := make(map[string]*models.InstrumentMapping, len(mappings))
	for id, m := range mappings {
		out[id] = m.Clone()
	}
	return out
}

// Version identifies the current committed state; it changes on every write.
func (ps *PortfolioStore) Version() uint64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.version
}

func (ps *PortfolioStore) persistLocked(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping, dirty dirtySet) error {
	if ps.store == nil {
		return nil
	}
	if dirty.portfolio {
		if err := ps.store.SavePortfolio(p); err != nil {
			return fmt.Errorf("persisting portfolio: %w", err)
		}
	}
	if dirty.mappings {
		if err := ps.store.SaveMappings(mappings); err != nil {
			return fmt.Errorf("persisting instrument mappings: %w", err)
		}
	}
	if dirty.rates {
		if err := ps.store.SaveRates(rates.Snapshot()); err != nil {
			return fmt.Errorf("persisting exchange rates: %w", err)
		}
	}
	return nil
}

// PortfolioView returns a deep copy of the current portfolio.
func (ps *PortfolioStore) PortfolioView() *models.Portfolio {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.portfolio.Clone()
}

// MappingsView returns a deep copy of the instrument mappings.
func (ps *PortfolioStore) MappingsView() map[string]*models.InstrumentMapping {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return cloneMappings(ps.mappings)
}

// RatesView returns a copy of the exchange rate table.
func (ps *PortfolioStore) RatesView() *models.RateTable {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.rates.Clone()
}

// SetFreeCash replaces the free cash amount.
func (ps *PortfolioStore) SetFreeCash(amount float64) error {
	return ps.update(func(p *models.Portfolio, _ *models.RateTable, _ map[string]*models.InstrumentMapping) (dirtySet, error) {
		p.FreeCashEUR = amount
		return dirtySet{portfolio: true}, nil
	})
}

// HoldingEdit is a direct user edit of a holding's classification. Nil
// pointers leave the corresponding attribute untouched.
type HoldingEdit struct {
	AssetType     *models.AssetType
	Region        *models.Region
	Currency      *string
	TargetPercent *float64
	ClearTarget   bool
}

// EditHolding applies a classification edit and writes it through to the
// instrument mapping so future imports remember it. The id is matched on the
// normalized key, so caller casing and padding do not matter.
func (ps *PortfolioStore) EditHolding(instrumentID string, edit HoldingEdit) error {
	instrumentID = processors.NormalizeInstrumentID(instrumentID)
	return ps.update(func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		h, ok := p.Holdings[instrumentID]
		if !ok {
			return dirtySet{}, fmt.Errorf("%w: %s", ErrHoldingNotFound, instrumentID)
		}
		if edit.Currency != nil {
			currency := models.NormalizeCurrency(*edit.Currency)
			if !rates.Has(currency) {
				return dirtySet{}, &UnknownCurrencyError{Currency: currency}
			}
			h.Currency = currency
		}
		if edit.AssetType != nil {
			h.AssetType = *edit.AssetType
		}
		if edit.Region != nil {
			h.Region = *edit.Region
		}
		if edit.ClearTarget {
			h.TargetPercent = nil
		} else if edit.TargetPercent != nil {
			t := *edit.TargetPercent
			h.TargetPercent = &t
		}

		m, ok := mappings[instrumentID]
		if !ok {
			m = &models.InstrumentMapping{InstrumentID: instrumentID}
			mappings[instrumentID] = m
		}
		m.Currency = h.Currency
		m.AssetType = h.AssetType
		m.Region = h.Region
		if h.TargetPercent != nil {
			t := *h.TargetPercent
			m.TargetPercent = &t
		} else {
			m.TargetPercent = nil
		}

		return dirtySet{portfolio: true, mappings: true}, nil
	})
}

// DeleteHolding removes a holding. The instrument mapping survives; its
// lifecycle is independent and it will pre-fill the next import of the same
// instrument.
func (ps *PortfolioStore) DeleteHolding(instrumentID string) error {
	instrumentID = processors.NormalizeInstrumentID(instrumentID)
	return ps.update(func(p *models.Portfolio, _ *models.RateTable, _ map[string]*models.InstrumentMapping) (dirtySet, error) {
		if _, ok := p.Holdings[instrumentID]; !ok {
			return dirtySet{}, fmt.Errorf("%w: %s", ErrHoldingNotFound, instrumentID)
		}
		delete(p.Holdings, instrumentID)
		logger.L.Info("Holding deleted", "instrument", instrumentID)
		return dirtySet{portfolio: true}, nil
	})
}

// SetMapping creates or replaces an instrument mapping. The mapping is keyed
// by the normalized instrument id so later imports find it.
func (ps *PortfolioStore) SetMapping(m *models.InstrumentMapping) error {
	return ps.update(func(_ *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		if m.Currency != "" {
			m.Currency = models.NormalizeCurrency(m.Currency)
			if !rates.Has(m.Currency) {
				return dirtySet{}, &UnknownCurrencyError{Currency: m.Currency}
			}
		}
		m.InstrumentID = processors.NormalizeInstrumentID(m.InstrumentID)
		mappings[m.InstrumentID] = m.Clone()
		return dirtySet{mappings: true}, nil
	})
}

// DeleteMapping forgets a remembered classification.
func (ps *PortfolioStore) DeleteMapping(instrumentID string) error {
	return ps.update(func(_ *models.Portfolio, _ *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		delete(mappings, processors.NormalizeInstrumentID(instrumentID))
		return dirtySet{mappings: true}, nil
	})
}
