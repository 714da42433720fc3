// Package adapter implements clients for the external data collaborators:
// block explorers for balance discovery, pricing APIs for spot and
// historical prices, and JSON-RPC nodes for on-chain balance reads.
package adapter

import (
	"context"
	"time"

	"github.com/beta-portfolio/internal/types"
)

// BalanceSource discovers a wallet's raw token holdings on one chain. An
// empty slice means "no holdings"; errors signal transport failure only.
type BalanceSource interface {
	GetTokenBalances(ctx context.Context, wallet string, chain types.ChainID) ([]types.TokenBalance, error)
}

// SpotPriceSource returns the current USD price of a token on a chain.
// A price of 0 with a nil error means the source does not know the token.
type SpotPriceSource interface {
	GetPrice(ctx context.Context, chain types.ChainID, tokenAddress string) (float64, error)
}

// HistoricalPriceSource returns a daily USD price series for a token. The
// result may be partial (fewer dates than requested) but is sorted and
// deduplicated per asset.
type HistoricalPriceSource interface {
	GetPriceHistory(ctx context.Context, chain types.ChainID, tokenAddress string, from, to time.Time) ([]types.PricePoint, error)
}

// BenchmarkSource returns a daily USD price series for a benchmark asset
// identified by its CoinGecko coin id.
type BenchmarkSource interface {
	GetBenchmarkHistory(ctx context.Context, coinID string, days int) ([]types.PricePoint, error)
}
