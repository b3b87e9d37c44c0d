// Package stats implements the descriptive statistics and
// ordinary-least-squares helpers shared by the metrics, bottleneck and
// forecast engines. All functions are pure and treat empty input as a
// defined case rather than an error.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean, or 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the p-th percentile (0–100) using linear
// interpolation between closest ranks. Input order does not matter.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

// Median returns the 50th percentile.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// CoefficientOfVariation returns stddev/mean, or 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / mean
}

// TukeyFences returns the [Q1 − k·IQR, Q3 + k·IQR] interval. Quartiles are
// not meaningful below 4 data points; ok is false in that case.
func TukeyFences(values []float64, k float64) (lo, hi float64, ok bool) {
	if len(values) < 4 {
		return 0, 0, false
	}
	q1 := Percentile(values, 25)
	q3 := Percentile(values, 75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}

// PearsonR returns the Pearson correlation coefficient between x and y.
// It returns ok=false when the slices differ in length, fewer than 2
// pairs are available, or either side has zero variance; callers must
// treat that as "correlation undefined", not as zero.
func PearsonR(x, y []float64) (float64, bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, false
	}

	meanX := Mean(x)
	meanY := Mean(y)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

// Fit is an ordinary-least-squares line fit of y against the sequential
// index 0,1,2,…
type Fit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// FitLine fits y = intercept + slope·i over i = 0..len(y)-1. It returns
// ok=false when fewer than 2 points are available or the fit is not
// finite; callers must treat that as "trend undefined", not as zero.
func FitLine(y []float64) (Fit, bool) {
	n := len(y)
	if n < 2 {
		return Fit{}, false
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXX += x * x
		sumXY += x * v
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Fit{}, false
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssRes, ssTot float64
	for i, v := range y {
		pred := intercept + slope*float64(i)
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - meanY) * (v - meanY)
	}

	var r2 float64
	switch {
	case ssTot == 0 && ssRes == 0:
		// Constant series fit exactly by a flat line.
		r2 = 1
	case ssTot == 0:
		r2 = 0
	default:
		r2 = 1 - ssRes/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}

	fit := Fit{Slope: slope, Intercept: intercept, RSquared: r2}
	if math.IsNaN(fit.Slope) || math.IsInf(fit.Slope, 0) ||
		math.IsNaN(fit.Intercept) || math.IsInf(fit.Intercept, 0) ||
		math.IsNaN(fit.RSquared) {
		return Fit{}, false
	}
	return fit, true
}

// Project evaluates the fitted line at n consecutive indices starting at
// start.
func (f Fit) Project(start, n int) []float64 {
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.Intercept+f.Slope*float64(start+i))
	}
	return out
}
