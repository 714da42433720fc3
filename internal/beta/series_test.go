package beta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beta-portfolio/internal/types"
)

func day(n int) time.Time {
	return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func pricePoints(prices ...float64) []types.PricePoint {
	points := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = types.PricePoint{Date: day(i), Price: p}
	}
	return points
}

func TestBuildReturnsPctChange(t *testing.T) {
	returns := BuildReturns(pricePoints(100, 110, 99))

	require.Equal(t, 2, returns.Len())
	entries := returns.Entries()
	assert.InDelta(t, 0.10, entries[0].Pct, 1e-12)
	assert.InDelta(t, -0.10, entries[1].Pct, 1e-12)
	assert.Equal(t, day(1), entries[0].Date)
	assert.Equal(t, day(2), entries[1].Date)
}

func TestBuildReturnsRoundTrip(t *testing.T) {
	prices := []float64{100, 104.2, 99.7, 101.3, 87.6}
	returns := BuildReturns(pricePoints(prices...))
	require.Equal(t, len(prices)-1, returns.Len())

	p := prices[0]
	for i, e := range returns.Entries() {
		p *= 1 + e.Pct
		assert.InDelta(t, prices[i+1], p, 1e-9)
	}
}

func TestBuildReturnsDropsFirstObservation(t *testing.T) {
	returns := BuildReturns(pricePoints(100, 100))
	require.Equal(t, 1, returns.Len())
	assert.Equal(t, 0.0, returns.Entries()[0].Pct)
}

func TestBuildReturnsKeepsFirstPricePerDay(t *testing.T) {
	morning := time.Date(2026, 7, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 7, 2, 20, 0, 0, 0, time.UTC)
	points := []types.PricePoint{
		{Date: day(0), Price: 100},
		{Date: morning, Price: 110},
		{Date: evening, Price: 150},
	}

	returns := BuildReturns(points)

	require.Equal(t, 1, returns.Len())
	assert.InDelta(t, 0.10, returns.Entries()[0].Pct, 1e-12)
}

func TestBuildReturnsSortsUnorderedInput(t *testing.T) {
	points := []types.PricePoint{
		{Date: day(2), Price: 99},
		{Date: day(0), Price: 100},
		{Date: day(1), Price: 110},
	}

	returns := BuildReturns(points)

	require.Equal(t, 2, returns.Len())
	assert.InDelta(t, 0.10, returns.Entries()[0].Pct, 1e-12)
	assert.InDelta(t, -0.10, returns.Entries()[1].Pct, 1e-12)
}

func TestBuildReturnsTooShort(t *testing.T) {
	assert.Equal(t, 0, BuildReturns(nil).Len())
	assert.Equal(t, 0, BuildReturns(pricePoints(100)).Len())
}

func TestBuildReturnsSkipsZeroPrice(t *testing.T) {
	returns := BuildReturns(pricePoints(100, 0, 110))

	// the drop to zero is a defined -100% return; the transition FROM zero
	// is undefined and skipped
	require.Equal(t, 1, returns.Len())
	assert.InDelta(t, -1.0, returns.Entries()[0].Pct, 1e-12)
}

func TestAlignInnerJoin(t *testing.T) {
	a := BuildReturns([]types.PricePoint{
		{Date: day(0), Price: 100},
		{Date: day(1), Price: 110},
		{Date: day(2), Price: 121},
		{Date: day(4), Price: 133.1},
	})
	b := BuildReturns([]types.PricePoint{
		{Date: day(1), Price: 50},
		{Date: day(2), Price: 55},
		{Date: day(3), Price: 60},
		{Date: day(4), Price: 66},
	})

	x, y := Align(a, b)

	// day(2) and day(4) have a return on both sides
	require.Len(t, x, 2)
	require.Len(t, y, 2)
	assert.InDelta(t, 0.10, x[0], 1e-12)
	assert.InDelta(t, 0.10, y[0], 1e-12)
	assert.InDelta(t, 0.10, x[1], 1e-9)
	assert.InDelta(t, 0.10, y[1], 1e-9)
}

func TestAlignDisjointDates(t *testing.T) {
	a := BuildReturns(pricePoints(100, 110, 121))
	b := BuildReturns([]types.PricePoint{
		{Date: day(10), Price: 50},
		{Date: day(11), Price: 55},
		{Date: day(12), Price: 60},
	})

	x, y := Align(a, b)
	assert.Empty(t, x)
	assert.Empty(t, y)
}
