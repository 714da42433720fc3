// Package service wires balance discovery, pricing, and beta estimation
// into the analysis pipeline behind the API.
package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/beta-portfolio/internal/adapter"
	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

// NativeBalanceSource reads a wallet's native coin balance on one chain.
// Satisfied by adapter.RPCClient.
type NativeBalanceSource interface {
	NativeBalance(ctx context.Context, chain types.ChainID, wallet string) (*big.Int, error)
}

// Scanner discovers and values a wallet's holdings across the enabled
// chains. Each chain is scanned concurrently; a failing chain degrades the
// scan rather than aborting it, unless every chain fails.
type Scanner struct {
	chains []types.ChainID
	tokens adapter.BalanceSource
	native NativeBalanceSource
	spot   adapter.SpotPriceSource
	log    zerolog.Logger
}

// NewScanner builds a scanner over the given chains. native may be nil when
// no RPC endpoints are configured; native balances are then skipped.
func NewScanner(chains []types.ChainID, tokens adapter.BalanceSource, native NativeBalanceSource, spot adapter.SpotPriceSource, log zerolog.Logger) *Scanner {
	return &Scanner{chains: chains, tokens: tokens, native: native, spot: spot, log: log}
}

// Chains returns the chain ids this scanner covers.
func (s *Scanner) Chains() []types.ChainID {
	return s.chains
}

type chainScan struct {
	positions []types.Position
	err       error
}

// Scan returns the wallet's priced positions across all enabled chains,
// sorted only by discovery order. Tokens without a known USD price are
// dropped; they cannot contribute to a value-weighted portfolio.
func (s *Scanner) Scan(ctx context.Context, wallet string) ([]types.Position, error) {
	results := make([]chainScan, len(s.chains))

	var wg sync.WaitGroup
	for i, chain := range s.chains {
		wg.Add(1)
		go func(i int, chain types.ChainID) {
			defer wg.Done()
			positions, err := s.scanChain(ctx, wallet, chain)
			results[i] = chainScan{positions: positions, err: err}
		}(i, chain)
	}
	wg.Wait()

	var positions []types.Position
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			s.log.Warn().Err(r.err).
				Str("wallet", wallet).
				Int64("chain", int64(s.chains[i])).
				Msg("chain scan failed")
			continue
		}
		positions = append(positions, r.positions...)
	}

	if failed == len(s.chains) && len(s.chains) > 0 {
		return nil, errors.NewTransportFailureError("balance discovery", results[0].err)
	}
	return positions, nil
}

// Balances returns the wallet's raw token balances grouped by chain,
// without pricing or filtering. Chains that fail are omitted; the error is
// non-nil only when every chain fails.
func (s *Scanner) Balances(ctx context.Context, wallet string) (map[types.ChainID][]types.TokenBalance, error) {
	type chainBalances struct {
		balances []types.TokenBalance
		err      error
	}
	results := make([]chainBalances, len(s.chains))

	var wg sync.WaitGroup
	for i, chain := range s.chains {
		wg.Add(1)
		go func(i int, chain types.ChainID) {
			defer wg.Done()
			balances, err := s.tokens.GetTokenBalances(ctx, wallet, chain)
			results[i] = chainBalances{balances: balances, err: err}
		}(i, chain)
	}
	wg.Wait()

	out := make(map[types.ChainID][]types.TokenBalance, len(s.chains))
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			s.log.Warn().Err(r.err).Int64("chain", int64(s.chains[i])).Msg("balance fetch failed")
			continue
		}
		out[s.chains[i]] = r.balances
	}
	if failed == len(s.chains) && len(s.chains) > 0 {
		return nil, errors.NewTransportFailureError("balance discovery", results[0].err)
	}
	return out, nil
}

func (s *Scanner) scanChain(ctx context.Context, wallet string, chain types.ChainID) ([]types.Position, error) {
	balances, err := s.tokens.GetTokenBalances(ctx, wallet, chain)
	if err != nil {
		return nil, err
	}

	var positions []types.Position
	for _, b := range balances {
		qty, err := rawQuantity(b.Raw, b.Decimals)
		if err != nil || qty.IsZero() {
			continue
		}

		var price float64
		if b.QuoteUSD != nil {
			price = *b.QuoteUSD
		} else {
			price, err = s.spot.GetPrice(ctx, chain, b.TokenAddress)
			if err != nil {
				s.log.Debug().Err(err).Str("token", b.TokenAddress).Msg("spot price lookup failed")
				continue
			}
		}
		if price <= 0 {
			continue
		}

		positions = append(positions, types.Position{
			ChainID:      chain,
			TokenAddress: b.TokenAddress,
			Symbol:       b.Symbol,
			USDValue:     qty.InexactFloat64() * price,
		})
	}

	if native := s.nativePosition(ctx, wallet, chain); native != nil {
		positions = append(positions, *native)
	}
	return positions, nil
}

// nativePosition values the chain's native coin via the sentinel address.
// Failures here are soft: token discovery already succeeded for the chain.
func (s *Scanner) nativePosition(ctx context.Context, wallet string, chain types.ChainID) *types.Position {
	if s.native == nil {
		return nil
	}
	info, ok := types.ChainByID(chain)
	if !ok {
		return nil
	}

	wei, err := s.native.NativeBalance(ctx, chain, wallet)
	if err != nil {
		s.log.Debug().Err(err).Int64("chain", int64(chain)).Msg("native balance read failed")
		return nil
	}
	if wei.Sign() == 0 {
		return nil
	}

	price, err := s.spot.GetPrice(ctx, chain, types.NativeTokenAddress)
	if err != nil || price <= 0 {
		return nil
	}

	qty := decimal.NewFromBigInt(wei, -18)
	return &types.Position{
		ChainID:      chain,
		TokenAddress: types.NativeTokenAddress,
		Symbol:       info.NativeSymbol,
		USDValue:     qty.InexactFloat64() * price,
	}
}

// rawQuantity converts an integer token amount to its decimal-adjusted
// quantity without intermediate float rounding.
func rawQuantity(raw string, decimals int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-int32(decimals)), nil
}
