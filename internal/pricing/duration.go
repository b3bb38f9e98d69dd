package pricing

import "math"

// unitsPerDay is the assumed crew throughput for any unit (sqft, fixtures, points...).
const unitsPerDay = 300.0

// BaseDays converts a quantity into a continuous day estimate, never less than one day.
func BaseDays(quantity float64) float64 {
	if quantity <= 0 {
		return 1
	}
	return math.Max(1, quantity/unitsPerDay)
}

// DayRange rounds a day estimate into a whole-day low/high range.
func DayRange(baseDays float64) (low, high int) {
	return int(math.Round(baseDays)), int(math.Round(baseDays * 1.5))
}
