package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

func round2(x float64) float64 {
	return roundTo(x, 2)
}

func round1(x float64) float64 {
	return roundTo(x, 1)
}

// roundTo rounds half away from zero on the shortest decimal form of x, so 2.675 rounds
// to 2.68 rather than to the binary neighbour below it.
func roundTo(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func sum2(values []float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}
