// Package types provides common type definitions for the portfolio beta scanner.
package types

import (
	"strconv"
	"time"
)

// ChainID identifies an EVM-compatible network by its numeric chain id.
type ChainID int64

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = 10
	// ChainBNB represents the BNB Smart Chain
	ChainBNB ChainID = 56
	// ChainBase represents the Base network
	ChainBase ChainID = 8453
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = 42161
	// ChainAvalanche represents the Avalanche C-Chain
	ChainAvalanche ChainID = 43114
)

// NativeTokenAddress is the sentinel contract address used for a chain's
// native asset (ETH, BNB, AVAX) in positions and price lookups.
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// ChainInfo describes a supported chain.
type ChainInfo struct {
	ID           ChainID `json:"chainId"`
	Name         string  `json:"name"`
	LlamaSlug    string  `json:"-"` // DefiLlama platform slug for price lookups
	NativeSymbol string  `json:"nativeSymbol"`
}

// SupportedChains lists every chain the scanner knows how to query, in
// ascending chain-id order.
var SupportedChains = []ChainInfo{
	{ID: ChainEthereum, Name: "Ethereum", LlamaSlug: "ethereum", NativeSymbol: "ETH"},
	{ID: ChainOptimism, Name: "Optimism", LlamaSlug: "optimism", NativeSymbol: "ETH"},
	{ID: ChainBNB, Name: "BNB Smart Chain", LlamaSlug: "bsc", NativeSymbol: "BNB"},
	{ID: ChainBase, Name: "Base", LlamaSlug: "base", NativeSymbol: "ETH"},
	{ID: ChainArbitrum, Name: "Arbitrum", LlamaSlug: "arbitrum", NativeSymbol: "ETH"},
	{ID: ChainAvalanche, Name: "Avalanche", LlamaSlug: "avax", NativeSymbol: "AVAX"},
}

// ChainByID returns the chain info for a chain id, if supported.
func ChainByID(id ChainID) (ChainInfo, bool) {
	for _, c := range SupportedChains {
		if c.ID == id {
			return c, true
		}
	}
	return ChainInfo{}, false
}

// ChainName returns a display name for a chain id, falling back to the
// numeric id for chains outside the registry.
func ChainName(id ChainID) string {
	if c, ok := ChainByID(id); ok {
		return c.Name
	}
	return "Chain " + id.String()
}

// String implements fmt.Stringer.
func (c ChainID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// Position is one token holding on one chain, marked to market in USD.
// Positions are immutable once captured; a fresh scan produces a new set.
type Position struct {
	ChainID      ChainID `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"` // lowercase hex, or NativeTokenAddress
	Symbol       string  `json:"symbol"`
	USDValue     float64 `json:"usdValue"`
}

// TokenBalance is a raw holding as reported by a balance source, before
// pricing: an integer quantity in base units plus the divisor exponent.
type TokenBalance struct {
	ChainID      ChainID `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"` // lowercase hex, or NativeTokenAddress
	Symbol       string  `json:"symbol"`
	Decimals     int     `json:"decimals"`
	Raw          string  `json:"raw"` // decimal integer string, may exceed uint64

	// QuoteUSD is the source's own USD valuation, when it provides one.
	// Nil means the scanner must price the balance itself.
	QuoteUSD *float64 `json:"quoteUsd,omitempty"`
}

// PricePoint is a single daily price observation.
type PricePoint struct {
	Date  time.Time `json:"date"` // truncated to a UTC calendar day
	Price float64   `json:"price"`
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BenchmarkKey identifies a benchmark asset beta is measured against.
type BenchmarkKey string

const (
	// BenchmarkBTC is the Bitcoin benchmark
	BenchmarkBTC BenchmarkKey = "BTC"
	// BenchmarkETH is the Ether benchmark
	BenchmarkETH BenchmarkKey = "ETH"
)

// DefaultBenchmarks maps benchmark keys to their CoinGecko coin ids.
var DefaultBenchmarks = map[BenchmarkKey]string{
	BenchmarkBTC: "bitcoin",
	BenchmarkETH: "ethereum",
}

// BenchmarkKeys returns the keys of a benchmark set in stable order: the two
// canonical benchmarks first, then any extras in map order.
func BenchmarkKeys(set map[BenchmarkKey]string) []BenchmarkKey {
	keys := make([]BenchmarkKey, 0, len(set))
	for _, k := range []BenchmarkKey{BenchmarkBTC, BenchmarkETH} {
		if _, ok := set[k]; ok {
			keys = append(keys, k)
		}
	}
	for k := range set {
		if k != BenchmarkBTC && k != BenchmarkETH {
			keys = append(keys, k)
		}
	}
	return keys
}

// AnalysisStatus represents the lifecycle state of one analysis run.
type AnalysisStatus string

const (
	// StatusPending represents a queued run that has not started yet
	StatusPending AnalysisStatus = "pending"
	// StatusRunning represents a run in progress
	StatusRunning AnalysisStatus = "running"
	// StatusCompleted represents a successfully finished run
	StatusCompleted AnalysisStatus = "completed"
	// StatusFailed represents a terminally failed run
	StatusFailed AnalysisStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
