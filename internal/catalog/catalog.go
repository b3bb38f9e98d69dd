// Package catalog holds the price list used by the estimator: unit rates per job type,
// region multipliers and the HST rate.
//
// A Catalog is an immutable snapshot. Reloads build a new Catalog and swap it into a Store;
// nothing mutates a Catalog after it has been published.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

const (
	// DefaultRegion is used when the price list omits default_region.
	DefaultRegion = "Durham"
	// DefaultHSTRate is used when the price list omits hst_rate.
	DefaultHSTRate = 0.13

	materialsPctKey = "materials_pct"
)

// UnitKey names the unit a job type is priced in.
type UnitKey string

const (
	PerSqft     UnitKey = "per_sqft"
	PerFixture  UnitKey = "per_fixture"
	PerPoint    UnitKey = "per_point"
	PerLinearFt UnitKey = "per_linear_ft"
	PerUnit     UnitKey = "per_unit"
	PerHour     UnitKey = "per_hr"
	PerProject  UnitKey = "per_project"
)

// UnitKeys lists the recognized unit-price keys. When a schema carries more than one,
// the first in this order is used.
var UnitKeys = []UnitKey{PerSqft, PerFixture, PerPoint, PerLinearFt, PerUnit, PerHour, PerProject}

var inputFields = map[UnitKey]string{
	PerSqft:     "area_sqft",
	PerFixture:  "fixtures",
	PerPoint:    "points",
	PerLinearFt: "length_ft",
	PerUnit:     "units",
	PerHour:     "hours",
	PerProject:  "projects",
}

// InputField returns the request input that carries the quantity for this unit.
func (k UnitKey) InputField() string {
	return inputFields[k]
}

// Valid reports whether k is one of the recognized unit keys.
func (k UnitKey) Valid() bool {
	_, ok := inputFields[k]
	return ok
}

// RateSchema is the pricing rule for one job type: a price per unit and the share of the
// base cost attributed to materials.
type RateSchema struct {
	Unit         UnitKey
	UnitPrice    float64
	MaterialsPct float64
}

// Usable reports whether the schema names a unit to price.
func (r RateSchema) Usable() bool {
	return r.Unit.Valid()
}

// MarshalJSON writes the schema in the price-list shape: {"per_sqft": 3.5, "materials_pct": 0.2}.
func (r RateSchema) MarshalJSON() ([]byte, error) {
	out := map[string]float64{materialsPctKey: r.MaterialsPct}
	if r.Unit != "" {
		out[string(r.Unit)] = r.UnitPrice
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the price-list shape. Keys that are not numeric or not recognized are ignored.
func (r *RateSchema) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode rate schema: %w", err)
	}

	*r = RateSchema{}
	if v, ok := raw[materialsPctKey]; ok {
		if err := json.Unmarshal(v, &r.MaterialsPct); err != nil {
			return fmt.Errorf("decode %s: %w", materialsPctKey, err)
		}
	}
	for _, key := range UnitKeys {
		v, ok := raw[string(key)]
		if !ok {
			continue
		}
		var price float64
		if err := json.Unmarshal(v, &price); err != nil {
			continue
		}
		r.Unit = key
		r.UnitPrice = price
		break
	}
	return nil
}

// Catalog is one published snapshot of the price list.
type Catalog struct {
	DefaultRegion     string                `json:"default_region"`
	HSTRate           float64               `json:"hst_rate"`
	RegionMultipliers map[string]float64    `json:"region_multipliers"`
	BaseRates         map[string]RateSchema `json:"base_rates"`
	LastRefreshed     string                `json:"last_refreshed,omitempty"`
}

// Default returns the safe fallback catalog used when the price list cannot be loaded.
func Default() *Catalog {
	return &Catalog{
		DefaultRegion:     DefaultRegion,
		HSTRate:           DefaultHSTRate,
		RegionMultipliers: map[string]float64{},
		BaseRates:         map[string]RateSchema{},
	}
}

// Rate returns the schema configured for jobType, matched exactly.
func (c *Catalog) Rate(jobType string) (RateSchema, bool) {
	r, ok := c.BaseRates[jobType]
	return r, ok
}

// RegionMultiplier returns the multiplier for region, or 1.0 when the region is unknown.
func (c *Catalog) RegionMultiplier(region string) float64 {
	if m, ok := c.RegionMultipliers[region]; ok {
		return m
	}
	return 1.0
}

// ResolveRegion returns region, or the catalog default when region is empty.
func (c *Catalog) ResolveRegion(region string) string {
	if region == "" {
		return c.DefaultRegion
	}
	return region
}

// Validate checks the invariants every published snapshot must hold.
func (c *Catalog) Validate() error {
	var errs []error
	if c.HSTRate < 0 || c.HSTRate > 1 || math.IsNaN(c.HSTRate) {
		errs = append(errs, fmt.Errorf("hst_rate %v out of range [0,1]", c.HSTRate))
	}
	for region, m := range c.RegionMultipliers {
		if !(m > 0) || math.IsInf(m, 0) {
			errs = append(errs, fmt.Errorf("region %q: multiplier %v must be positive", region, m))
		}
	}
	for jobType, r := range c.BaseRates {
		if !r.Usable() {
			errs = append(errs, fmt.Errorf("job type %q: no unit price key", jobType))
			continue
		}
		if r.UnitPrice < 0 || math.IsInf(r.UnitPrice, 0) || math.IsNaN(r.UnitPrice) {
			errs = append(errs, fmt.Errorf("job type %q: unit price %v must be non-negative", jobType, r.UnitPrice))
		}
		if r.MaterialsPct < 0 || r.MaterialsPct > 1 || math.IsNaN(r.MaterialsPct) {
			errs = append(errs, fmt.Errorf("job type %q: materials_pct %v out of range [0,1]", jobType, r.MaterialsPct))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes a price list. Missing default_region and hst_rate fall back to the
// package defaults; the result is validated.
func Parse(data []byte) (*Catalog, error) {
	var raw struct {
		DefaultRegion     *string               `json:"default_region"`
		HSTRate           *float64              `json:"hst_rate"`
		RegionMultipliers map[string]float64    `json:"region_multipliers"`
		BaseRates         map[string]RateSchema `json:"base_rates"`
		LastRefreshed     string                `json:"last_refreshed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}

	c := Default()
	if raw.DefaultRegion != nil && *raw.DefaultRegion != "" {
		c.DefaultRegion = *raw.DefaultRegion
	}
	if raw.HSTRate != nil {
		c.HSTRate = *raw.HSTRate
	}
	if raw.RegionMultipliers != nil {
		c.RegionMultipliers = raw.RegionMultipliers
	}
	if raw.BaseRates != nil {
		c.BaseRates = raw.BaseRates
	}
	c.LastRefreshed = raw.LastRefreshed

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate price list: %w", err)
	}
	return c, nil
}

// LoadFile reads and parses the price list at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	return Parse(data)
}
