package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paintingJob(sqft float64) JobRequest {
	return JobRequest{
		JobType:    "painting",
		Inputs:     map[string]float64{"area_sqft": sqft},
		Region:     "Durham",
		IncludeTax: true,
	}
}

// The service combines batch durations with the overlap-adjusted policy by default.
func TestEstimateBatch_OverlapAdjustedDurationIsDefault(t *testing.T) {
	e := newTestEstimator(testCatalog())

	res, err := e.EstimateBatch([]JobRequest{paintingJob(600), paintingJob(600)})
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	for _, l := range res.Lines {
		assert.Equal(t, 2, l.EstDaysLow)
		assert.Equal(t, 3, l.EstDaysHigh)
		nearlyEqual(t, "base days", l.BaseDays, 2)
	}

	assert.Equal(t, OverlapAdjusted, res.Policy)
	assert.Equal(t, 2, res.TradeCount)
	nearlyEqual(t, "overlap factor", res.OverlapFactor, 0.88)
	// raw 2+2 = 4 days, 4 * 0.88 = 3.52, low 3.52*0.9 = 3.168, high 3.52*1.1 = 3.872
	nearlyEqual(t, "days low", res.EstDaysLow, 3.2)
	nearlyEqual(t, "days high", res.EstDaysHigh, 3.9)

	nearlyEqual(t, "total subtotal", res.TotalSubtotal, 4200)
	nearlyEqual(t, "total tax", res.TotalTax, 546)
	nearlyEqual(t, "total", res.TotalTotal, 4746)
	assert.Equal(t, "CAD", res.Currency)
}

func TestEstimateBatch_SequentialPolicySumsLineRanges(t *testing.T) {
	e := newTestEstimator(testCatalog(), WithDurationPolicy(Sequential))

	res, err := e.EstimateBatch([]JobRequest{paintingJob(600), paintingJob(600), paintingJob(100)})
	require.NoError(t, err)

	assert.Equal(t, Sequential, res.Policy)
	assert.Equal(t, 1.0, res.OverlapFactor)
	nearlyEqual(t, "days low", res.EstDaysLow, 2+2+1)
	nearlyEqual(t, "days high", res.EstDaysHigh, 3+3+2)
}

func TestEstimateBatch_PreservesInputOrder(t *testing.T) {
	e := newTestEstimator(testCatalog())

	reqs := make([]JobRequest, 0, 40)
	for i := 1; i <= 40; i++ {
		reqs = append(reqs, paintingJob(float64(i*10)))
	}

	res, err := e.EstimateBatch(reqs)
	require.NoError(t, err)
	require.Len(t, res.Lines, 40)
	for i, l := range res.Lines {
		assert.Equal(t, float64((i+1)*10), l.Quantity)
	}
}

func TestEstimateBatch_TotalsIndependentOfOrder(t *testing.T) {
	e := newTestEstimator(testCatalog())

	forward := []JobRequest{
		paintingJob(333.3),
		{JobType: "plumbing", Inputs: map[string]float64{"fixtures": 3}, Region: "York", IncludeTax: true},
		{JobType: "tile backsplash", Inputs: map[string]float64{"area_sqft": 41.7}, IncludeTax: false,
			Modifiers: []Modifier{{Name: "pattern", Factor: 1.15}}},
	}
	backward := []JobRequest{forward[2], forward[1], forward[0]}

	a, err := e.EstimateBatch(forward)
	require.NoError(t, err)
	b, err := e.EstimateBatch(backward)
	require.NoError(t, err)

	assert.Equal(t, a.TotalSubtotal, b.TotalSubtotal)
	assert.Equal(t, a.TotalTax, b.TotalTax)
	assert.Equal(t, a.TotalTotal, b.TotalTotal)
	assert.Equal(t, a.EstDaysLow, b.EstDaysLow)
	assert.Equal(t, a.EstDaysHigh, b.EstDaysHigh)

	sum := 0.0
	for _, l := range a.Lines {
		sum += l.Subtotal
	}
	nearlyEqual(t, "total subtotal", a.TotalSubtotal, round2(sum))
}

func TestEstimateBatch_FailsWholeBatchOnBadLine(t *testing.T) {
	e := newTestEstimator(testCatalog(), WithStrictJobTypes(true))

	res, err := e.EstimateBatch([]JobRequest{
		paintingJob(100),
		{JobType: "demolition", Inputs: map[string]float64{"area_sqft": 100}},
		paintingJob(200),
	})
	require.ErrorIs(t, err, ErrUnknownJobType)
	assert.Contains(t, err.Error(), "line 2")
	assert.Empty(t, res.Lines)
	assert.Zero(t, res.TotalTotal)
}

func TestEstimateBatch_Empty(t *testing.T) {
	e := newTestEstimator(testCatalog())

	res, err := e.EstimateBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TradeCount)
	assert.Zero(t, res.TotalTotal)
	assert.Zero(t, res.EstDaysLow)
	assert.Zero(t, res.EstDaysHigh)
}

func TestOverlapFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		trades int
		want   float64
	}{
		{trades: 0, want: 1},
		{trades: 1, want: 1},
		{trades: 2, want: 0.88},
		{trades: 3, want: 0.76},
		{trades: 4, want: 0.65},
		{trades: 12, want: 0.65},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, OverlapFactor(tt.trades), 1e-9, "trades=%d", tt.trades)
	}
}

func TestParseDurationPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseDurationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverlapAdjusted, p)

	p, err = ParseDurationPolicy("sequential")
	require.NoError(t, err)
	assert.Equal(t, Sequential, p)

	_, err = ParseDurationPolicy("parallel")
	require.Error(t, err)
}

func TestBaseDaysAndRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		quantity float64
		wantDays float64
		wantLow  int
		wantHigh int
	}{
		{quantity: 0, wantDays: 1, wantLow: 1, wantHigh: 2},
		{quantity: 150, wantDays: 1, wantLow: 1, wantHigh: 2},
		{quantity: 300, wantDays: 1, wantLow: 1, wantHigh: 2},
		{quantity: 500, wantDays: 500.0 / 300, wantLow: 2, wantHigh: 3},
		{quantity: 900, wantDays: 3, wantLow: 3, wantHigh: 5},
		{quantity: 1000, wantDays: 1000.0 / 300, wantLow: 3, wantHigh: 5},
	}
	for _, tt := range tests {
		days := BaseDays(tt.quantity)
		assert.InDelta(t, tt.wantDays, days, 1e-9, "quantity=%v", tt.quantity)
		low, high := DayRange(days)
		assert.Equal(t, tt.wantLow, low, "quantity=%v", tt.quantity)
		assert.Equal(t, tt.wantHigh, high, "quantity=%v", tt.quantity)
	}
}
