package pricing

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DurationPolicy selects how the day ranges of batch lines are combined.
type DurationPolicy string

const (
	// OverlapAdjusted assumes trades partly run in parallel crews.
	OverlapAdjusted DurationPolicy = "overlap"
	// Sequential assumes trades run back to back.
	Sequential DurationPolicy = "sequential"
)

const (
	overlapStep  = 0.12
	overlapFloor = 0.65
)

// ParseDurationPolicy maps a configuration value onto a DurationPolicy.
func ParseDurationPolicy(s string) (DurationPolicy, error) {
	switch DurationPolicy(s) {
	case "", OverlapAdjusted:
		return OverlapAdjusted, nil
	case Sequential:
		return Sequential, nil
	default:
		return "", fmt.Errorf("unknown duration policy %q", s)
	}
}

// BatchResult aggregates the estimates of a multi-trade request.
type BatchResult struct {
	Lines         []Estimate     `json:"lines"`
	TradeCount    int            `json:"trade_count"`
	Policy        DurationPolicy `json:"duration_policy"`
	OverlapFactor float64        `json:"overlap_factor"`
	TotalSubtotal float64        `json:"total_subtotal"`
	TotalTax      float64        `json:"total_tax"`
	TotalTotal    float64        `json:"total"`
	Currency      string         `json:"currency"`
	EstDaysLow    float64        `json:"est_days_low"`
	EstDaysHigh   float64        `json:"est_days_high"`
}

// EstimateBatch prices every request against one catalog snapshot. Lines are independent and
// computed concurrently; the result keeps input order. Any failing line fails the batch.
func (e *Estimator) EstimateBatch(reqs []JobRequest) (BatchResult, error) {
	snapshot := e.catalog.Snapshot()
	lines := make([]Estimate, len(reqs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, req := range reqs {
		g.Go(func() error {
			est, err := e.estimate(snapshot, req)
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", i+1, req.JobType, err)
			}
			lines[i] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	return Aggregate(lines, e.policy), nil
}

// Aggregate sums estimates into a BatchResult and combines their durations under policy.
func Aggregate(lines []Estimate, policy DurationPolicy) BatchResult {
	subtotals := make([]float64, len(lines))
	taxes := make([]float64, len(lines))
	totals := make([]float64, len(lines))
	for i, l := range lines {
		subtotals[i] = l.Subtotal
		taxes[i] = l.Tax
		totals[i] = l.Total
	}

	res := BatchResult{
		Lines:         lines,
		TradeCount:    len(lines),
		Policy:        policy,
		OverlapFactor: 1,
		TotalSubtotal: sum2(subtotals),
		TotalTax:      sum2(taxes),
		TotalTotal:    sum2(totals),
		Currency:      Currency,
	}
	if len(lines) == 0 {
		return res
	}

	switch policy {
	case Sequential:
		for _, l := range lines {
			res.EstDaysLow += float64(l.EstDaysLow)
			res.EstDaysHigh += float64(l.EstDaysHigh)
		}
	default:
		res.Policy = OverlapAdjusted
		res.OverlapFactor = OverlapFactor(len(lines))
		raw := 0.0
		for _, l := range lines {
			raw += l.BaseDays
		}
		scaled := raw * res.OverlapFactor
		res.EstDaysLow = round1(scaled * 0.9)
		res.EstDaysHigh = round1(scaled * 1.1)
	}
	return res
}

// OverlapFactor is the schedule compression for tradeCount trades sharing a site.
func OverlapFactor(tradeCount int) float64 {
	if tradeCount <= 1 {
		return 1
	}
	return math.Max(overlapFloor, 1-overlapStep*float64(tradeCount-1))
}
