package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/renoprice/internal/catalog"
)

const (
	// Currency is the currency every estimate is quoted in.
	Currency = "CAD"
	// RegionModifierName labels the region multiplier in an estimate's modifier list.
	RegionModifierName = "region_multiplier"
)

var (
	// ErrUnknownJobType is returned in strict mode when the job type is not in the price list.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrNoCostKey is returned when the resolved rate schema names no unit to price.
	ErrNoCostKey = errors.New("rate schema has no unit price key")
)

// JobRequest represents one job to price.
type JobRequest struct {
	JobType    string
	Inputs     map[string]float64
	Region     string
	IncludeTax bool
	// Modifiers are complexity adjustments applied to the subtotal in order.
	Modifiers []Modifier
}

// Modifier is a named multiplicative adjustment.
type Modifier struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// ValidFactor reports whether f can be used as a modifier factor.
func ValidFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Estimate contains the priced breakdown for one job.
type Estimate struct {
	JobType     string          `json:"job_type"`
	Region      string          `json:"region"`
	Quantity    float64         `json:"quantity"`
	UnitKey     catalog.UnitKey `json:"unit_key"`
	UnitPrice   float64         `json:"unit_price"`
	RateSource  string          `json:"rate_source"`
	Labor       float64         `json:"labor"`
	Materials   float64         `json:"materials"`
	Modifiers   []Modifier      `json:"modifiers"`
	Subtotal    float64         `json:"subtotal"`
	Tax         float64         `json:"tax"`
	Total       float64         `json:"total"`
	Currency    string          `json:"currency"`
	EstDaysLow  int             `json:"est_days_low"`
	EstDaysHigh int             `json:"est_days_high"`
	// BaseDays is the unrounded day estimate the range is derived from.
	BaseDays float64 `json:"base_days"`
	Notes    string  `json:"notes,omitempty"`
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithStrictJobTypes makes job types missing from the price list an error instead of
// falling back to the heuristic rates.
func WithStrictJobTypes(strict bool) Option {
	return func(e *Estimator) {
		e.strict = strict
	}
}

// WithDurationPolicy sets how batch durations are combined.
func WithDurationPolicy(p DurationPolicy) Option {
	return func(e *Estimator) {
		e.policy = p
	}
}

// Estimator prices jobs against the catalog currently published in its store.
type Estimator struct {
	catalog *catalog.Store
	strict  bool
	policy  DurationPolicy
}

// New creates an Estimator reading rates from store.
func New(store *catalog.Store, opts ...Option) *Estimator {
	e := &Estimator{
		catalog: store,
		policy:  OverlapAdjusted,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate prices a single job.
func (e *Estimator) Estimate(req JobRequest) (Estimate, error) {
	return e.estimate(e.catalog.Snapshot(), req)
}

func (e *Estimator) estimate(c *catalog.Catalog, req JobRequest) (Estimate, error) {
	schema, source, err := e.resolve(c, req.JobType)
	if err != nil {
		return Estimate{}, err
	}
	if !schema.Usable() {
		return Estimate{}, fmt.Errorf("%w: %q", ErrNoCostKey, req.JobType)
	}

	quantity := Quantity(schema.Unit, req.Inputs)
	baseCost := quantity * schema.UnitPrice
	materials := baseCost * schema.MaterialsPct
	labor := baseCost - materials

	region := c.ResolveRegion(req.Region)
	multiplier := c.RegionMultiplier(region)
	subtotal := (labor + materials) * multiplier

	modifiers := make([]Modifier, 0, len(req.Modifiers)+1)
	modifiers = append(modifiers, Modifier{Name: RegionModifierName, Factor: round2(multiplier)})
	for _, m := range req.Modifiers {
		if !ValidFactor(m.Factor) {
			continue
		}
		subtotal *= m.Factor
		modifiers = append(modifiers, Modifier{Name: m.Name, Factor: round2(m.Factor)})
	}

	tax := 0.0
	if req.IncludeTax {
		tax = subtotal * c.HSTRate
	}
	total := subtotal + tax

	days := BaseDays(quantity)
	low, high := DayRange(days)

	return Estimate{
		JobType:     req.JobType,
		Region:      region,
		Quantity:    quantity,
		UnitKey:     schema.Unit,
		UnitPrice:   schema.UnitPrice,
		RateSource:  source,
		Labor:       round2(labor),
		Materials:   round2(materials),
		Modifiers:   modifiers,
		Subtotal:    round2(subtotal),
		Tax:         round2(tax),
		Total:       round2(total),
		Currency:    Currency,
		EstDaysLow:  low,
		EstDaysHigh: high,
		BaseDays:    days,
		Notes:       notes(c.HSTRate, source),
	}, nil
}

func (e *Estimator) resolve(c *catalog.Catalog, jobType string) (catalog.RateSchema, string, error) {
	if e.strict {
		schema, ok := c.Rate(jobType)
		if !ok {
			return catalog.RateSchema{}, "", fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
		}
		return schema, SourceCatalog, nil
	}
	schema, source := Resolve(c, jobType)
	return schema, source, nil
}

// Quantity returns the amount of work to price for unit: the unit's input field, then the
// unit key itself, else zero. Negative or non-finite inputs count as zero.
func Quantity(unit catalog.UnitKey, inputs map[string]float64) float64 {
	q, ok := inputs[unit.InputField()]
	if !ok {
		q = inputs[string(unit)]
	}
	if !(q > 0) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

func notes(hstRate float64, source string) string {
	pct := decimal.NewFromFloat(hstRate).Shift(2).String()
	n := "Simple price list model. HST " + pct + "% when include_tax=true."
	if source != SourceCatalog {
		n += " Rate estimated from job type (" + source + ")."
	}
	return n
}
