// Package beta implements the statistical aggregation engine: position
// selection, daily return series construction, covariance-based beta
// estimation, and portfolio-level aggregation and scoring. Everything in
// this package is pure computation, free of I/O and shared state.
package beta

import (
	"sort"
	"time"

	"github.com/beta-portfolio/internal/types"
)

// ReturnEntry is one daily percentage change.
type ReturnEntry struct {
	Date time.Time
	Pct  float64
}

// ReturnSeries is a date-ordered sequence of daily percentage price changes
// for one asset or benchmark. Dates are unique and chronological. A series
// is constructed once per analysis run and never mutated.
type ReturnSeries struct {
	entries []ReturnEntry
}

// Len returns the number of return observations.
func (s ReturnSeries) Len() int {
	return len(s.entries)
}

// Entries returns the ordered observations.
func (s ReturnSeries) Entries() []ReturnEntry {
	return s.entries
}

// BuildReturns converts a raw daily price series into a percentage-change
// series: pct(t) = price(t)/price(t-1) - 1, with the first (undefined)
// observation dropped. Duplicate dates are reduced to the first observation
// per date; input order beyond that does not matter. Empty or single-point
// input yields an empty series.
func BuildReturns(prices []types.PricePoint) ReturnSeries {
	daily := dedupeByDay(prices)
	if len(daily) < 2 {
		return ReturnSeries{}
	}

	entries := make([]ReturnEntry, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		prev := daily[i-1].Price
		if prev == 0 {
			// A zero price has no defined return; skip the transition.
			continue
		}
		entries = append(entries, ReturnEntry{
			Date: daily[i].Date,
			Pct:  daily[i].Price/prev - 1,
		})
	}
	return ReturnSeries{entries: entries}
}

// dedupeByDay truncates observations to UTC calendar days, keeps the first
// observation per day, and returns them in chronological order.
func dedupeByDay(prices []types.PricePoint) []types.PricePoint {
	seen := make(map[time.Time]types.PricePoint, len(prices))
	for _, p := range prices {
		day := types.Day(p.Date)
		if _, ok := seen[day]; !ok {
			seen[day] = types.PricePoint{Date: day, Price: p.Price}
		}
	}

	daily := make([]types.PricePoint, 0, len(seen))
	for _, p := range seen {
		daily = append(daily, p)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date.Before(daily[j].Date) })
	return daily
}

// Align inner-joins two return series on their shared dates and returns the
// paired values in chronological order. Dates present in only one series are
// discarded, so different pairs may use different effective date sets.
func Align(a, b ReturnSeries) (x, y []float64) {
	byDate := make(map[time.Time]float64, b.Len())
	for _, e := range b.entries {
		byDate[e.Date] = e.Pct
	}
	for _, e := range a.entries {
		if v, ok := byDate[e.Date]; ok {
			x = append(x, e.Pct)
			y = append(y, v)
		}
	}
	return x, y
}
