package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// AppreciationFactor is the yearly price appreciation applied by the refresh job.
var AppreciationFactor = decimal.RequireFromString("1.015")

const refreshDateLayout = "2006-01-02"

// RefreshResult summarizes one run of the refresh job.
type RefreshResult struct {
	RefreshedOn string
	Factor      decimal.Decimal
	JobTypes    int
	Catalog     *Catalog
}

// Appreciate returns a copy of c with every unit price multiplied by factor and rounded to
// cents, stamped with the refresh date. Materials shares and region multipliers are unchanged.
func Appreciate(c *Catalog, factor decimal.Decimal, now time.Time) *Catalog {
	out := &Catalog{
		DefaultRegion:     c.DefaultRegion,
		HSTRate:           c.HSTRate,
		RegionMultipliers: make(map[string]float64, len(c.RegionMultipliers)),
		BaseRates:         make(map[string]RateSchema, len(c.BaseRates)),
		LastRefreshed:     now.Format(refreshDateLayout),
	}
	for region, m := range c.RegionMultipliers {
		out.RegionMultipliers[region] = m
	}
	for jobType, r := range c.BaseRates {
		r.UnitPrice = appreciate(r.UnitPrice, factor)
		out.BaseRates[jobType] = r
	}
	return out
}

func appreciate(price float64, factor decimal.Decimal) float64 {
	return decimal.NewFromFloat(price).Mul(factor).Round(2).InexactFloat64()
}

// RefreshFile applies the appreciation factor to the price list at path in place. Keys the
// catalog does not model are written back untouched.
func RefreshFile(path string, factor decimal.Decimal, now time.Time) (RefreshResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("read price list: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return RefreshResult{}, fmt.Errorf("decode price list: %w", err)
	}

	var rates map[string]map[string]any
	if raw, ok := doc["base_rates"]; ok {
		if err := json.Unmarshal(raw, &rates); err != nil {
			return RefreshResult{}, fmt.Errorf("decode base_rates: %w", err)
		}
	}
	for _, schema := range rates {
		for _, key := range UnitKeys {
			if price, ok := schema[string(key)].(float64); ok {
				schema[string(key)] = appreciate(price, factor)
			}
		}
	}

	refreshedOn := now.Format(refreshDateLayout)
	if doc["base_rates"], err = json.Marshal(rates); err != nil {
		return RefreshResult{}, fmt.Errorf("encode base_rates: %w", err)
	}
	if doc["last_refreshed"], err = json.Marshal(refreshedOn); err != nil {
		return RefreshResult{}, fmt.Errorf("encode last_refreshed: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return RefreshResult{}, fmt.Errorf("encode price list: %w", err)
	}

	c, err := Parse(out)
	if err != nil {
		return RefreshResult{}, err
	}
	if err := writeFileAtomic(path, append(out, '\n')); err != nil {
		return RefreshResult{}, err
	}

	return RefreshResult{
		RefreshedOn: refreshedOn,
		Factor:      factor,
		JobTypes:    len(rates),
		Catalog:     c,
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prices-*.json")
	if err != nil {
		return fmt.Errorf("create temp price list: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp price list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp price list: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace price list: %w", err)
	}
	return nil
}
