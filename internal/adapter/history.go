package adapter

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/types"
)

// ChainedHistorySource implements HistoricalPriceSource over Covalent with
// a CoinGecko contract-chart fallback: Covalent covers more chains but not
// every token, and rejects requests without an API key.
type ChainedHistorySource struct {
	covalent *CovalentClient
	gecko    *CoinGeckoClient
	log      zerolog.Logger
}

// NewChainedHistorySource builds the default historical price source.
func NewChainedHistorySource(covalent *CovalentClient, gecko *CoinGeckoClient, log zerolog.Logger) *ChainedHistorySource {
	return &ChainedHistorySource{
		covalent: covalent,
		gecko:    gecko,
		log:      log.With().Str("component", "history_source").Logger(),
	}
}

// GetPriceHistory implements HistoricalPriceSource.
func (s *ChainedHistorySource) GetPriceHistory(ctx context.Context, chain types.ChainID, tokenAddress string, from, to time.Time) ([]types.PricePoint, error) {
	if s.covalent != nil && s.covalent.Configured() {
		points, err := s.covalent.GetPriceHistory(ctx, chain, tokenAddress, from, to)
		switch {
		case err == nil && len(points) > 0:
			return points, nil
		case err != nil && !IsNotFound(err):
			s.log.Warn().Err(err).
				Str("token", tokenAddress).
				Int64("chain", int64(chain)).
				Msg("covalent history failed, trying coingecko")
		}
	}

	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return s.gecko.GetContractHistory(ctx, chain, tokenAddress, days)
}
