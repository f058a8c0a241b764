package checker

import (
	"fmt"
	"math"
)

var engrSuffix = []struct {
	sym   string
	scale float64
}{
	{"a", 1e-18}, {"f", 1e-15}, {"p", 1e-12}, {"n", 1e-9}, {"u", 1e-6}, {"m", 1e-3},
	{"", 1}, {"k", 1e3}, {"M", 1e6}, {"G", 1e9}, {"T", 1e12}, {"P", 1e15}, {"E", 1e18},
}

// Engr formats v in engineering notation with three decimals, e.g. 1.500m.
// Magnitudes below 1e-18 print as 0.0.
func Engr(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	if math.IsInf(v, 0) {
		return fmt.Sprintf("%g", v)
	}
	m := math.Abs(v)
	if m < engrSuffix[0].scale {
		return "0.0"
	}
	last := engrSuffix[len(engrSuffix)-1]
	if m >= last.scale {
		return fmt.Sprintf("%.3f%s", v/last.scale, last.sym)
	}
	for i := 1; i < len(engrSuffix); i++ {
		if m < engrSuffix[i].scale {
			s := engrSuffix[i-1]
			return fmt.Sprintf("%.3f%s", v/s.scale, s.sym)
		}
	}
	return fmt.Sprintf("%.3f", v)
}

// FormatGainError prints a gain error in percent, capped at "> 100.0".
func FormatGainError(e float64) string {
	if math.IsNaN(e) {
		return "N/A"
	}
	if e > 100 {
		return "> 100.0"
	}
	return fmt.Sprintf("%.1f", e)
}
