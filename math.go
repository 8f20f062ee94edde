package spacez

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	deg2rad = math.Pi / 180
)

// Deg2rad converts degrees to radians.
func Deg2rad(a float64) float64 {
	return a * deg2rad
}

// Rad2deg converts radians to degrees.
func Rad2deg(a float64) float64 {
	return a / deg2rad
}

// hypot returns sqrt(a^2+b^2).
func hypot(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}

// heading returns the direction of the provided vector, defined as zero for a null vector.
func heading(x, y float64) float64 {
	if scalar.EqualWithinAbs(x, 0, 1e-12) && scalar.EqualWithinAbs(y, 0, 1e-12) {
		return 0
	}
	return math.Atan2(y, x)
}

// segmentIndex returns the index of the last start which is lower or equal to t.
// Times before the first start map to the first segment.
func segmentIndex(starts []float64, t float64) int {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > t })
	if i == 0 {
		return 0
	}
	return i - 1
}

// EvaluationTimes returns n evenly spaced times between t0 and t1 (both included).
func EvaluationTimes(t0, t1 float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{t1}
	}
	return floats.Span(make([]float64, n), t0, t1)
}

// isFinite returns whether all the provided values are finite.
func isFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
