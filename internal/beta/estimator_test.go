package beta

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetaSelfIsOne(t *testing.T) {
	series := BuildReturns(pricePoints(100, 110, 99, 108.9, 103.455))
	assert.InDelta(t, 1.0, DefaultEstimator.Beta(series, series), 1e-12)
}

func TestBetaScalesWithAmplitude(t *testing.T) {
	// asset moves exactly twice the benchmark each day
	bench := BuildReturns(pricePoints(100, 110, 99, 108.9))
	asset := BuildReturns(pricePoints(100, 120, 96, 115.2))

	assert.InDelta(t, 2.0, DefaultEstimator.Beta(asset, bench), 1e-9)
}

func TestBetaZeroVarianceBenchmark(t *testing.T) {
	bench := BuildReturns(pricePoints(100, 100, 100, 100))
	asset := BuildReturns(pricePoints(100, 110, 99, 108.9))

	assert.Equal(t, 0.0, DefaultEstimator.Beta(asset, bench))
}

func TestBetaFlatAsset(t *testing.T) {
	// the asset itself is flat while the benchmark moves; covariance is
	// zero, so the pair estimates to 0 rather than falling back
	asset := BuildReturns(pricePoints(100, 100, 100, 100))
	bench := BuildReturns(pricePoints(100, 110, 99, 108.9))

	assert.Equal(t, 0.0, DefaultEstimator.Beta(asset, bench))
}

func TestBetaInsufficientOverlapFallsBack(t *testing.T) {
	asset := BuildReturns(pricePoints(100, 110))
	bench := BuildReturns(pricePoints(50, 55))

	// one shared observation is below the sample minimum of two
	assert.Equal(t, 1.0, DefaultEstimator.Beta(asset, bench))
}

func TestBetaEmptySeriesFallsBack(t *testing.T) {
	bench := BuildReturns(pricePoints(100, 110, 99))
	assert.Equal(t, 1.0, DefaultEstimator.Beta(ReturnSeries{}, bench))
}

func TestEstimable(t *testing.T) {
	series := BuildReturns(pricePoints(100, 110, 99))

	assert.True(t, DefaultEstimator.Estimable(series, series))
	assert.False(t, DefaultEstimator.Estimable(ReturnSeries{}, series))
	assert.False(t, StrictEstimator.Estimable(series, series))
}

func TestStrictEstimatorRequiresFullWindow(t *testing.T) {
	series := BuildReturns(pricePoints(100, 110, 99, 108.9, 103.455))

	assert.Equal(t, 1.0, StrictEstimator.Beta(series, series))

	prices := make([]float64, 0, 31)
	p := 100.0
	for i := 0; i < 31; i++ {
		prices = append(prices, p)
		if i%2 == 0 {
			p *= 1.02
		} else {
			p *= 0.99
		}
	}
	long := BuildReturns(pricePoints(prices...))
	assert.InDelta(t, 1.0, StrictEstimator.Beta(long, long), 1e-9)
}

func TestWeights(t *testing.T) {
	w := Weights([]float64{600, 300, 100})
	require.Len(t, w, 3)
	assert.InDelta(t, 0.6, w[0], 1e-12)
	assert.InDelta(t, 0.3, w[1], 1e-12)
	assert.InDelta(t, 0.1, w[2], 1e-12)
}

func TestWeightsZeroTotal(t *testing.T) {
	w := Weights([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, w)
}

func TestPortfolioBeta(t *testing.T) {
	got := PortfolioBeta([]float64{0.5, 0.3, 0.2}, []float64{1.0, 2.0, 0.5})
	assert.InDelta(t, 1.2, got, 1e-12)

	// $750 at 1.2 plus $250 at 0.4 lands exactly on the benchmark
	got = PortfolioBeta(Weights([]float64{750, 250}), []float64{1.2, 0.4})
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestPortfolioBetaSinglePosition(t *testing.T) {
	got := PortfolioBeta(Weights([]float64{1000}), []float64{1.7})
	assert.InDelta(t, 1.7, got, 1e-12)
}

func TestBetaProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genPrices := gen.SliceOfN(10, gen.Float64Range(1, 1000))

	properties.Property("beta of a series against itself is 1 when it varies", prop.ForAll(
		func(prices []float64) bool {
			series := BuildReturns(pricePoints(prices...))
			x, y := Align(series, series)
			if len(x) < 2 {
				return true
			}
			varies := false
			for i := 1; i < len(y); i++ {
				if y[i] != y[0] {
					varies = true
					break
				}
			}
			if !varies {
				return DefaultEstimator.Beta(series, series) == 0
			}
			b := DefaultEstimator.Beta(series, series)
			return b > 1-1e-6 && b < 1+1e-6
		},
		genPrices,
	))

	properties.Property("weights of positive values sum to 1", prop.ForAll(
		func(values []float64) bool {
			w := Weights(values)
			var sum float64
			for _, v := range w {
				sum += v
			}
			return sum > 1-1e-9 && sum < 1+1e-9
		},
		gen.SliceOfN(5, gen.Float64Range(0.01, 1e6)),
	))

	properties.TestingRun(t)
}
