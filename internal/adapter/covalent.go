package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/beta-portfolio/internal/types"
)

// CovalentClient talks to the Covalent unified API: token balances with USD
// quotes via balances_v2, and daily price histories via
// historical_by_addresses_v2.
type CovalentClient struct {
	baseURL string
	apiKey  string
	http    *httpClient
}

// NewCovalentClient creates a Covalent client.
func NewCovalentClient(baseURL, apiKey string, opts ClientOptions) *CovalentClient {
	opts.Name = "covalent"
	return &CovalentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(opts),
	}
}

// Configured reports whether an API key is available. Covalent endpoints
// reject unauthenticated requests, so an unconfigured client is skipped.
func (c *CovalentClient) Configured() bool {
	return c.apiKey != ""
}

type covalentBalancesResponse struct {
	Data struct {
		Items []struct {
			ContractAddress  string   `json:"contract_address"`
			ContractTicker   string   `json:"contract_ticker_symbol"`
			ContractDecimals int      `json:"contract_decimals"`
			Balance          string   `json:"balance"`
			Quote            *float64 `json:"quote"`
		} `json:"items"`
	} `json:"data"`
}

// GetTokenBalances implements BalanceSource.
func (c *CovalentClient) GetTokenBalances(ctx context.Context, wallet string, chain types.ChainID) ([]types.TokenBalance, error) {
	endpoint := fmt.Sprintf("%s/v1/%d/address/%s/balances_v2/", c.baseURL, chain, strings.ToLower(wallet))
	params := url.Values{
		"nft": {"false"},
		"key": {c.apiKey},
	}

	var resp covalentBalancesResponse
	if err := c.http.getJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	balances := make([]types.TokenBalance, 0, len(resp.Data.Items))
	for _, it := range resp.Data.Items {
		if it.Balance == "" || it.Balance == "0" {
			continue
		}
		decimals := it.ContractDecimals
		if decimals == 0 {
			decimals = 18
		}
		balances = append(balances, types.TokenBalance{
			ChainID:      chain,
			TokenAddress: strings.ToLower(it.ContractAddress),
			Symbol:       it.ContractTicker,
			Decimals:     decimals,
			Raw:          it.Balance,
			QuoteUSD:     it.Quote,
		})
	}
	return balances, nil
}

type covalentHistoryResponse struct {
	Data struct {
		Prices []struct {
			ContractAddress string `json:"contract_address"`
			Prices          []struct {
				Date  string  `json:"date"`
				Price float64 `json:"price"`
			} `json:"prices"`
		} `json:"prices"`
	} `json:"data"`
}

// GetPriceHistory implements HistoricalPriceSource. A 404 means Covalent
// does not track the token; the error unwraps to the shared not-found
// sentinel so callers can fall through to another source.
func (c *CovalentClient) GetPriceHistory(ctx context.Context, chain types.ChainID, tokenAddress string, from, to time.Time) ([]types.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/v1/%d/pricing/historical_by_addresses_v2/USD/%s/",
		c.baseURL, chain, strings.ToLower(tokenAddress))
	params := url.Values{
		"from": {from.UTC().Format("2006-01-02")},
		"to":   {to.UTC().Format("2006-01-02")},
		"key":  {c.apiKey},
	}

	var resp covalentHistoryResponse
	if err := c.http.getJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	target := strings.ToLower(tokenAddress)
	for _, series := range resp.Data.Prices {
		if strings.ToLower(series.ContractAddress) != target {
			continue
		}
		points := make([]types.PricePoint, 0, len(series.Prices))
		for _, p := range series.Prices {
			day, err := time.Parse("2006-01-02", p.Date)
			if err != nil {
				continue
			}
			points = append(points, types.PricePoint{Date: day.UTC(), Price: p.Price})
		}
		// stable so that duplicate dates keep the first-reported observation
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		return dedupeSorted(points), nil
	}
	return nil, nil
}

// dedupeSorted drops repeated dates from an already-sorted series, keeping
// the first observation.
func dedupeSorted(points []types.PricePoint) []types.PricePoint {
	out := points[:0]
	var last time.Time
	for i, p := range points {
		if i > 0 && p.Date.Equal(last) {
			continue
		}
		out = append(out, p)
		last = p.Date
	}
	return out
}

// IsNotFound reports whether an adapter error means the upstream had no
// record of the requested resource.
func IsNotFound(err error) bool {
	return stderrors.Is(err, errNotFound)
}
