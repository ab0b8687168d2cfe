package pricing

import (
	"math"
	"strings"
)

// roundUnit rounds to the nearest whole currency unit, half away from zero.
// The value is first settled to cents so float noise such as 45.4999999
// cannot flip the result.
func roundUnit(x float64) float64 {
	cents := math.Round(x * 100)
	return math.Round(cents / 100)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
