package pricing

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/catalog"
)

// Rate sources reported on an estimate.
const (
	SourceCatalog = "catalog"
	SourceDefault = "default"

	heuristicPrefix = "heuristic:"
)

// FallbackRule prices job types missing from the price list whose name contains Needle.
type FallbackRule struct {
	Needle string
	Schema catalog.RateSchema
}

// Prices job types no fallback rule matches.
var defaultSchema = catalog.RateSchema{Unit: catalog.PerSqft, UnitPrice: 10.0, MaterialsPct: 0.35}

// Checked in order; the first match wins.
var fallbackRules = []FallbackRule{
	{Needle: "plumb", Schema: catalog.RateSchema{Unit: catalog.PerFixture, UnitPrice: 275.0, MaterialsPct: 0.40}},
	{Needle: "elect", Schema: catalog.RateSchema{Unit: catalog.PerPoint, UnitPrice: 195.0, MaterialsPct: 0.35}},
	{Needle: "paint", Schema: catalog.RateSchema{Unit: catalog.PerSqft, UnitPrice: 3.5, MaterialsPct: 0.20}},
	{Needle: "tile", Schema: catalog.RateSchema{Unit: catalog.PerSqft, UnitPrice: 10.0, MaterialsPct: 0.40}},
	{Needle: "drywall", Schema: catalog.RateSchema{Unit: catalog.PerSqft, UnitPrice: 6.0, MaterialsPct: 0.30}},
	{Needle: "carp", Schema: catalog.RateSchema{Unit: catalog.PerSqft, UnitPrice: 8.0, MaterialsPct: 0.30}},
	{Needle: "handyman", Schema: catalog.RateSchema{Unit: catalog.PerPoint, UnitPrice: 95.0, MaterialsPct: 0.20}},
}

// FallbackRules returns a copy of the ordered fallback table.
func FallbackRules() []FallbackRule {
	out := make([]FallbackRule, len(fallbackRules))
	copy(out, fallbackRules)
	return out
}

// DefaultSchema returns the rate schema used when no fallback rule matches.
func DefaultSchema() catalog.RateSchema {
	return defaultSchema
}

// Fallback classifies jobType by case-insensitive substring against the fallback table.
func Fallback(jobType string) (catalog.RateSchema, string) {
	name := strings.ToLower(jobType)
	for _, rule := range fallbackRules {
		if strings.Contains(name, rule.Needle) {
			return rule.Schema, heuristicPrefix + rule.Needle
		}
	}
	return defaultSchema, SourceDefault
}

// Resolve returns the rate schema for jobType: the price list entry when present, otherwise
// the fallback table. It never fails.
func Resolve(c *catalog.Catalog, jobType string) (catalog.RateSchema, string) {
	if schema, ok := c.Rate(jobType); ok {
		return schema, SourceCatalog
	}
	schema, source := Fallback(jobType)
	zap.S().Named("pricing").Debugw("job type not in price list, using fallback rate",
		"job_type", jobType, "source", source)
	return schema, source
}
