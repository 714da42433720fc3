package beta

import (
	"gonum.org/v1/gonum/stat"
)

// Estimator computes beta coefficients from aligned return series.
//
// Beta is the ratio of the sample covariance between asset and benchmark
// returns to the sample variance of the benchmark returns. Sample (n-1)
// statistics are used for both terms so that an asset measured against
// itself yields exactly 1.
type Estimator struct {
	// MinObservations is the smallest number of overlapping observations
	// required for an estimate. Below it the Fallback is returned. Values
	// under 2 are treated as 2, the minimum for a defined sample statistic.
	MinObservations int

	// Fallback is the beta reported when the overlap is too small to
	// estimate. 1.0 assumes the asset is market-neutral until proven
	// otherwise.
	Fallback float64
}

// DefaultEstimator is the primary path: no sample-size floor beyond the two
// points a sample statistic needs, missing data assumed market-neutral.
var DefaultEstimator = Estimator{MinObservations: 2, Fallback: 1.0}

// StrictEstimator additionally requires a full month of overlapping daily
// observations before trusting an estimate.
var StrictEstimator = Estimator{MinObservations: 30, Fallback: 1.0}

func (e Estimator) minObservations() int {
	if e.MinObservations < 2 {
		return 2
	}
	return e.MinObservations
}

// Estimable reports whether the pair shares enough dates for a real
// estimate; below the floor Beta returns the Fallback instead.
func (e Estimator) Estimable(asset, benchmark ReturnSeries) bool {
	x, _ := Align(asset, benchmark)
	return len(x) >= e.minObservations()
}

// Beta estimates the beta of an asset against a benchmark. The two series
// are inner-joined on date first. A benchmark with zero variance over the
// effective window yields exactly 0, never a division error.
func (e Estimator) Beta(asset, benchmark ReturnSeries) float64 {
	x, y := Align(asset, benchmark)
	if len(x) < e.minObservations() {
		return e.Fallback
	}

	variance := stat.Variance(y, nil)
	if variance == 0 {
		return 0
	}
	return stat.Covariance(x, y, nil) / variance
}

// Weights computes value weights for the given USD values: each weight is
// value/total. A zero total yields all-zero weights rather than an error.
func Weights(usdValues []float64) []float64 {
	var total float64
	for _, v := range usdValues {
		total += v
	}

	weights := make([]float64, len(usdValues))
	if total == 0 {
		return weights
	}
	for i, v := range usdValues {
		weights[i] = v / total
	}
	return weights
}

// PortfolioBeta value-weights per-position betas into one portfolio beta.
// The slices must be the same length.
func PortfolioBeta(weights, betas []float64) float64 {
	var sum float64
	for i := range weights {
		sum += weights[i] * betas[i]
	}
	return sum
}
