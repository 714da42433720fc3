package beta

import (
	"sort"

	"github.com/beta-portfolio/internal/types"
)

// SelectTop filters out positions below minUSD, sorts the remainder by USD
// value descending (stable, so ties keep discovery order) and truncates to
// maxN. An empty result means "no eligible holdings" and is not an error;
// callers decide how to surface it.
func SelectTop(positions []types.Position, maxN int, minUSD float64) []types.Position {
	eligible := make([]types.Position, 0, len(positions))
	for _, p := range positions {
		if p.USDValue >= minUSD {
			eligible = append(eligible, p)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].USDValue > eligible[j].USDValue
	})

	if maxN >= 0 && len(eligible) > maxN {
		eligible = eligible[:maxN]
	}
	return eligible
}
