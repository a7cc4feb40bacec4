// backend/src/storage/store_test.go
package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_init_schema.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func TestLoadSnapshot_FreshDatabase(t *testing.T) {
	store := NewStore(setupTestDB(t))

	snap, err := store.LoadSnapshot()
	require.NoError(t, err)

	assert.Empty(t, snap.Portfolio.Holdings)
	assert.Equal(t, 0.0, snap.Portfolio.FreeCashEUR)
	assert.Empty(t, snap.Mappings)
	// The schema seeds EUR.
	assert.Equal(t, map[string]float64{"EUR": 1.0}, snap.Rates)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore(setupTestDB(t))

	target := 25.0
	p := models.NewPortfolio()
	p.FreeCashEUR = 500.5
	p.Holdings["AAPL"] = &models.Holding{
		InstrumentID:  "AAPL",
		Position:      10,
		LastPrice:     150,
		MarketValue:   1500,
		UnrealizedPnl: -12.5,
		Currency:      "USD",
		AssetType:     models.AssetEquity,
		Region:        models.RegionUS,
		TargetPercent: &target,
	}
	p.Holdings["VWCE"] = &models.Holding{
		InstrumentID: "VWCE",
		Position:     12,
		LastPrice:    110.52,
		MarketValue:  1326.24,
		Currency:     "EUR",
		AssetType:    models.AssetUnassigned,
		Region:       models.RegionUnassigned,
	}
	mappings := map[string]*models.InstrumentMapping{
		"AAPL": {InstrumentID: "AAPL", Currency: "USD", AssetType: models.AssetEquity, Region: models.RegionUS, TargetPercent: &target},
		"GONE": {InstrumentID: "GONE", Currency: "EUR", AssetType: models.AssetBonds, Region: models.RegionEU},
	}
	rates := map[string]float64{"EUR": 1.0, "USD": 1.09}

	require.NoError(t, store.SavePortfolio(p))
	require.NoError(t, store.SaveMappings(mappings))
	require.NoError(t, store.SaveRates(rates))

	snap, err := store.LoadSnapshot()
	require.NoError(t, err)

	require.Len(t, snap.Portfolio.Holdings, 2)
	aapl := snap.Portfolio.Holdings["AAPL"]
	require.NotNil(t, aapl)
	assert.Equal(t, 10.0, aapl.Position)
	assert.Equal(t, -12.5, aapl.UnrealizedPnl)
	assert.Equal(t, models.AssetEquity, aapl.AssetType)
	assert.Equal(t, models.RegionUS, aapl.Region)
	require.NotNil(t, aapl.TargetPercent)
	assert.Equal(t, 25.0, *aapl.TargetPercent)

	vwce := snap.Portfolio.Holdings["VWCE"]
	require.NotNil(t, vwce)
	assert.Nil(t, vwce.TargetPercent)

	assert.Equal(t, 500.5, snap.Portfolio.FreeCashEUR)
	assert.Equal(t, rates, snap.Rates)

	require.Len(t, snap.Mappings, 2)
	assert.Equal(t, models.AssetBonds, snap.Mappings["GONE"].AssetType)
	assert.Nil(t, snap.Mappings["GONE"].TargetPercent)
}

func TestSavePortfolio_RewritesWholesale(t *testing.T) {
	store := NewStore(setupTestDB(t))

	p := models.NewPortfolio()
	p.Holdings["AAPL"] = &models.Holding{InstrumentID: "AAPL", Position: 10, Currency: "EUR"}
	p.Holdings["MSFT"] = &models.Holding{InstrumentID: "MSFT", Position: 5, Currency: "EUR"}
	require.NoError(t, store.SavePortfolio(p))

	delete(p.Holdings, "MSFT")
	p.Holdings["AAPL"].Position = 11
	require.NoError(t, store.SavePortfolio(p))

	snap, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, snap.Portfolio.Holdings, 1)
	assert.Equal(t, 11.0, snap.Portfolio.Holdings["AAPL"].Position)
}
