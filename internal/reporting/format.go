package reporting

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// formatMoney renders a currency amount with two decimals, rounding half
// away from zero on the decimal value.
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// formatFloat renders v with fixed precision, "n/a" for NaN.
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// formatPct renders a fraction as a percentage.
func formatPct(fraction float64) string {
	if math.IsNaN(fraction) {
		return "n/a"
	}
	return decimal.NewFromFloat(fraction * 100).StringFixed(2) + "%"
}
