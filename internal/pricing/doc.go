// Package pricing turns renovation job requests into priced estimates.
//
// A job type resolves to a rate schema (price list first, then a fixed fallback table), the
// schema's unit picks the quantity from the request inputs, and the base cost is split into
// labor and materials, scaled by the region multiplier and complexity modifiers, and taxed.
// Batches sum per-line estimates and combine their durations.
package pricing
