package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/db"
	"github.com/Simplici0/renoprice/internal/migrations"
	"github.com/Simplici0/renoprice/internal/pricing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, migrations.Up(database))
	return database
}

// newTestStore returns a Store whose clock advances one minute per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := New(openTestDB(t))
	clock := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func sampleEstimate(jobType, region string, total float64) pricing.Estimate {
	return pricing.Estimate{
		JobType:     jobType,
		Region:      region,
		Quantity:    100,
		UnitKey:     catalog.PerSqft,
		UnitPrice:   3.5,
		RateSource:  pricing.SourceCatalog,
		Labor:       280,
		Materials:   70,
		Modifiers:   []pricing.Modifier{{Name: "stairs", Factor: 1.1}},
		Subtotal:    total,
		Total:       total,
		Currency:    pricing.Currency,
		EstDaysLow:  1,
		EstDaysHigh: 1,
		BaseDays:    0.33,
	}
}

func TestSaveAndGetQuote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := map[string]any{"job_type": "painting", "inputs": map[string]float64{"area_sqft": 100}}
	saved, err := s.SaveQuote(ctx, "Kitchen", req, sampleEstimate("painting", "Durham", 385))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "2026-01-05 09:01:00", saved.CreatedAt)

	got, err := s.GetQuote(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "Kitchen", got.Title)
	assert.Empty(t, got.BatchID)
	assert.Equal(t, saved.Estimate, got.Estimate)
	assert.JSONEq(t, `{"job_type":"painting","inputs":{"area_sqft":100}}`, string(got.Request))
}

func TestGetQuote_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetQuote(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetBatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListQuotes_NewestFirstAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveQuote(ctx, "Basement", nil, sampleEstimate("flooring", "York", 100))
	require.NoError(t, err)
	_, err = s.SaveQuote(ctx, "", nil, sampleEstimate("plumbing", "Durham", 200))
	require.NoError(t, err)
	_, err = s.SaveQuote(ctx, "Kitchen refresh", nil, sampleEstimate("painting", "GTA", 300))
	require.NoError(t, err)

	all, err := s.ListQuotes(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "painting", all[0].Estimate.JobType)
	assert.Equal(t, "plumbing", all[1].Estimate.JobType)
	assert.Equal(t, "flooring", all[2].Estimate.JobType)

	byTitle, err := s.ListQuotes(ctx, "Kitchen")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, 300.0, byTitle[0].Estimate.Total)

	byRegion, err := s.ListQuotes(ctx, "York")
	require.NoError(t, err)
	require.Len(t, byRegion, 1)
	assert.Equal(t, "flooring", byRegion[0].Estimate.JobType)

	none, err := s.ListQuotes(ctx, "roofing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveBatch_LinksLineQuotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lines := []pricing.Estimate{
		sampleEstimate("painting", "Durham", 100),
		sampleEstimate("flooring", "Durham", 250.5),
	}
	res := pricing.Aggregate(lines, pricing.OverlapAdjusted)
	reqs := []any{
		map[string]any{"job_type": "painting"},
		map[string]any{"job_type": "flooring"},
	}

	b, err := s.SaveBatch(ctx, "Whole house", reqs, res)
	require.NoError(t, err)

	got, err := s.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Whole house", got.Title)
	assert.Equal(t, 2, got.Result.TradeCount)
	assert.Equal(t, 350.5, got.Result.TotalTotal)

	quotes, err := s.ListQuotes(ctx, "")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		assert.Equal(t, b.ID, q.BatchID)
	}
}

func TestSaveBatch_RequestCountMismatch(t *testing.T) {
	s := newTestStore(t)

	res := pricing.Aggregate([]pricing.Estimate{sampleEstimate("painting", "Durham", 100)}, pricing.Sequential)
	_, err := s.SaveBatch(context.Background(), "", nil, res)
	assert.Error(t, err)
}

func TestRecordRefresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRefresh(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RecordRefresh(ctx, catalog.RefreshResult{
		RefreshedOn: "2026-01-05",
		Factor:      decimal.RequireFromString("1.015"),
		JobTypes:    7,
	}, "./data/prices.json"))
	require.NoError(t, s.RecordRefresh(ctx, catalog.RefreshResult{
		RefreshedOn: "2026-02-05",
		Factor:      decimal.RequireFromString("1.015"),
		JobTypes:    8,
	}, "./data/prices.json"))

	r, err := s.LatestRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-05", r.RefreshedOn)
	assert.Equal(t, "1.015", r.Factor)
	assert.Equal(t, 8, r.JobTypes)
	assert.Equal(t, "./data/prices.json", r.Source)
}

func TestLookupAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO api_keys (name, key_hash, active) VALUES (?, ?, ?), (?, ?, ?)`,
		"frontend", HashAPIKey("secret-1"), true,
		"retired", HashAPIKey("secret-2"), false)
	require.NoError(t, err)

	name, err := s.LookupAPIKey(ctx, "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "frontend", name)

	_, err = s.LookupAPIKey(ctx, "secret-2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LookupAPIKey(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountAPIKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHashAPIKey(t *testing.T) {
	assert.Equal(t, "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b", HashAPIKey("secret"))
	assert.Len(t, HashAPIKey(""), 64)
}
