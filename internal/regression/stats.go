package regression

import (
	"math"

	"github.com/montanaflynn/stats"
)

// RelError is the relative difference of two gains in percent,
// max(|Δ/a|, |Δ/b|)·100 truncated to one decimal. It is +Inf when exactly
// one side is zero and 0 when both are.
func RelError(a, b float64) float64 {
	if a*b == 0 {
		if a+b != 0 {
			return math.Inf(1)
		}
		return 0
	}
	d := b - a
	e := math.Max(math.Abs(d/a*100), math.Abs(d/b*100))
	return math.Trunc(e*10) / 10
}

// AbsMax returns the element of largest magnitude, keeping its sign. Ties
// go to the positive value.
func AbsMax(xs []float64) float64 {
	best := 0.0
	for _, x := range xs {
		if a, b := math.Abs(x), math.Abs(best); a > b || (a == b && x > best) {
			best = x
		}
	}
	return best
}

// Std is the population standard deviation; NaN for an empty slice.
func Std(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return populationStd(xs)
}

func populationStd(xs []float64) float64 {
	sd, err := stats.StandardDeviationPopulation(xs)
	if err != nil {
		return 0
	}
	return sd
}
