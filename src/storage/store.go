// backend/src/storage/store.go
package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
)

const freeCashKey = "free_cash_eur"

// Store is the persistence boundary: it loads one snapshot of
// (portfolio, instrument mappings, exchange rates) at startup and writes an
// updated snapshot after every merge commit or direct edit. Each table is
// rewritten wholesale inside a transaction; portfolios are small enough that
// this is cheaper than diffing.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Snapshot is everything the core needs at startup.
type Snapshot struct {
	Portfolio *models.Portfolio
	Mappings  map[string]*models.InstrumentMapping
	Rates     map[string]float64
}

// LoadSnapshot reads the persisted state. A fresh database yields an empty
// portfolio and a rate table containing only EUR.
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Portfolio: models.NewPortfolio(),
		Mappings:  make(map[string]*models.InstrumentMapping),
		Rates:     make(map[string]float64),
	}

	rows, err := s.db.Query(`SELECT instrument_id, position, last_price, change_percent, cost_basis,
		market_value, avg_price, daily_pnl, unrealized_pnl, currency, asset_type, region, target_percent
		FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("loading holdings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h models.Holding
		var assetType, region string
		var target sql.NullFloat64
		if err := rows.Scan(&h.InstrumentID, &h.Position, &h.LastPrice, &h.ChangePercent, &h.CostBasis,
			&h.MarketValue, &h.AvgPrice, &h.DailyPnl, &h.UnrealizedPnl, &h.Currency, &assetType, &region, &target); err != nil {
			return nil, fmt.Errorf("scanning holding: %w", err)
		}
		h.AssetType, _ = models.ParseAssetType(assetType)
		h.Region, _ = models.ParseRegion(region)
		if target.Valid {
			t := target.Float64
			h.TargetPercent = &t
		}
		snap.Portfolio.Holdings[h.InstrumentID] = &h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating holdings: %w", err)
	}

	mrows, err := s.db.Query(`SELECT instrument_id, currency, asset_type, region, target_percent FROM instrument_mappings`)
	if err != nil {
		return nil, fmt.Errorf("loading instrument mappings: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m models.InstrumentMapping
		var assetType, region string
		var target sql.NullFloat64
		if err := mrows.Scan(&m.InstrumentID, &m.Currency, &assetType, &region, &target); err != nil {
			return nil, fmt.Errorf("scanning instrument mapping: %w", err)
		}
		m.AssetType, _ = models.ParseAssetType(assetType)
		m.Region, _ = models.ParseRegion(region)
		if target.Valid {
			t := target.Float64
			m.TargetPercent = &t
		}
		snap.Mappings[m.InstrumentID] = &m
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating instrument mappings: %w", err)
	}

	rrows, err := s.db.Query(`SELECT currency, rate FROM exchange_rates`)
	if err != nil {
		return nil, fmt.Errorf("loading exchange rates: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var currency string
		var rate float64
		if err := rrows.Scan(&currency, &rate); err != nil {
			return nil, fmt.Errorf("scanning exchange rate: %w", err)
		}
		snap.Rates[currency] = rate
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchange rates: %w", err)
	}

	var freeCashStr string
	err = s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, freeCashKey).Scan(&freeCashStr)
	switch {
	case err == sql.ErrNoRows:
		// fresh database, free cash stays 0
	case err != nil:
		return nil, fmt.Errorf("loading free cash: %w", err)
	default:
		if cash, perr := strconv.ParseFloat(freeCashStr, 64); perr == nil {
			snap.Portfolio.FreeCashEUR = cash
		} else {
			logger.L.Warn("Ignoring malformed free cash setting", "value", freeCashStr)
		}
	}

	logger.L.Info("Snapshot loaded",
		"holdings", len(snap.Portfolio.Holdings),
		"mappings", len(snap.Mappings),
		"currencies", len(snap.Rates))
	return snap, nil
}

// SavePortfolio rewrites the holdings table and the free cash setting.
func (s *Store) SavePortfolio(p *models.Portfolio) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning portfolio save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM holdings`); err != nil {
		return fmt.Errorf("clearing holdings: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO holdings
		(instrument_id, position, last_price, change_percent, cost_basis, market_value,
		avg_price, daily_pnl, unrealized_pnl, currency, asset_type, region, target_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing holding insert: %w", err)
	}
	defer stmt.Close()
	for _, id := range p.SortedIDs() {
		h := p.Holdings[id]
		var target sql.NullFloat64
		if h.TargetPercent != nil {
			target = sql.NullFloat64{Float64: *h.TargetPercent, Valid: true}
		}
		if _, err := stmt.Exec(h.InstrumentID, h.Position, h.LastPrice, h.ChangePercent, h.CostBasis,
			h.MarketValue, h.AvgPrice, h.DailyPnl, h.UnrealizedPnl, h.Currency,
			string(h.AssetType), string(h.Region), target); err != nil {
			return fmt.Errorf("inserting holding %s: %w", h.InstrumentID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		freeCashKey, strconv.FormatFloat(p.FreeCashEUR, 'f', -1, 64)); err != nil {
		return fmt.Errorf("saving free cash: %w", err)
	}

	return tx.Commit()
}

// SaveMappings rewrites the instrument mappings table.
func (s *Store) SaveMappings(mappings map[string]*models.InstrumentMapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning mappings save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM instrument_mappings`); err != nil {
		return fmt.Errorf("clearing instrument mappings: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO instrument_mappings
		(instrument_id, currency, asset_type, region, target_percent) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mapping insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range mappings {
		var target sql.NullFloat64
		if m.TargetPercent != nil {
			target = sql.NullFloat64{Float64: *m.TargetPercent, Valid: true}
		}
		if _, err := stmt.Exec(m.InstrumentID, m.Currency, string(m.AssetType), string(m.Region), target); err != nil {
			return fmt.Errorf("inserting mapping %s: %w", m.InstrumentID, err)
		}
	}
	return tx.Commit()
}

// SaveRates rewrites the exchange rate table.
func (s *Store) SaveRates(rates map[string]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rates save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exchange_rates`); err != nil {
		return fmt.Errorf("clearing exchange rates: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO exchange_rates (currency, rate) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing rate insert: %w", err)
	}
	defer stmt.Close()
	for currency, rate := range rates {
		if _, err := stmt.Exec(currency, rate); err != nil {
			return fmt.Errorf("inserting rate %s: %w", currency, err)
		}
	}
	return tx.Commit()
}
