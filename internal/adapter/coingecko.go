package adapter

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beta-portfolio/internal/types"
)

// CoinGeckoClient fetches daily price histories from the CoinGecko
// market_chart endpoints, both for benchmark coins (by coin id) and for
// ERC-20 contracts (by platform and address).
type CoinGeckoClient struct {
	baseURL string
	http    *httpClient
}

// NewCoinGeckoClient creates a CoinGecko client.
func NewCoinGeckoClient(baseURL string, opts ClientOptions) *CoinGeckoClient {
	opts.Name = "coingecko"
	return &CoinGeckoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(opts),
	}
}

// marketChart is the CoinGecko market_chart payload: rows of
// [unix-milliseconds, price].
type marketChart struct {
	Prices [][2]float64 `json:"prices"`
}

// GetBenchmarkHistory implements BenchmarkSource.
func (c *CoinGeckoClient) GetBenchmarkHistory(ctx context.Context, coinID string, days int) ([]types.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/market_chart", c.baseURL, url.PathEscape(coinID))
	return c.fetchChart(ctx, endpoint, days)
}

// GetContractHistory returns the daily price series of an ERC-20 contract.
// It backs the historical price source when the primary explorer has no
// series for a token.
func (c *CoinGeckoClient) GetContractHistory(ctx context.Context, chain types.ChainID, tokenAddress string, days int) ([]types.PricePoint, error) {
	info, ok := types.ChainByID(chain)
	if !ok || info.LlamaSlug == "" {
		return nil, nil
	}
	// CoinGecko platform ids match the DefiLlama slugs for the chains we
	// support, except BNB Smart Chain.
	platform := info.LlamaSlug
	if chain == types.ChainBNB {
		platform = "binance-smart-chain"
	}

	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/contract/%s/market_chart",
		c.baseURL, platform, strings.ToLower(tokenAddress))
	return c.fetchChart(ctx, endpoint, days)
}

func (c *CoinGeckoClient) fetchChart(ctx context.Context, endpoint string, days int) ([]types.PricePoint, error) {
	params := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
	}

	var chart marketChart
	if err := c.http.getJSON(ctx, endpoint, params, &chart); err != nil {
		return nil, err
	}
	return chartToDaily(chart), nil
}

// chartToDaily reduces millisecond-resolution chart rows to one observation
// per UTC day, keeping the first observation of each day, sorted ascending.
func chartToDaily(chart marketChart) []types.PricePoint {
	seen := make(map[time.Time]float64, len(chart.Prices))
	for _, row := range chart.Prices {
		ts := time.UnixMilli(int64(row[0])).UTC()
		day := types.Day(ts)
		if _, ok := seen[day]; !ok {
			seen[day] = row[1]
		}
	}

	points := make([]types.PricePoint, 0, len(seen))
	for day, price := range seen {
		points = append(points, types.PricePoint{Date: day, Price: price})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}
