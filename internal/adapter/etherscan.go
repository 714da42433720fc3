package adapter

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

// EtherscanClient discovers ERC-20 holdings through the Etherscan v2 API,
// which serves every supported chain from one endpoint via a chainid
// parameter.
type EtherscanClient struct {
	baseURL string
	apiKey  string
	http    *httpClient
}

// NewEtherscanClient creates an Etherscan v2 client.
func NewEtherscanClient(baseURL, apiKey string, opts ClientOptions) *EtherscanClient {
	opts.Name = "etherscan"
	return &EtherscanClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(opts),
	}
}

// etherscanTokenBalance is one entry of the addresstokenbalance action.
type etherscanTokenBalance struct {
	TokenAddress  string `json:"TokenAddress"`
	TokenName     string `json:"TokenName"`
	TokenSymbol   string `json:"TokenSymbol"`
	TokenQuantity string `json:"TokenQuantity"`
	TokenDivisor  string `json:"TokenDivisor"`
}

// etherscanResponse is the common envelope of Etherscan API responses.
type etherscanResponse struct {
	Status  string                  `json:"status"`
	Message string                  `json:"message"`
	Result  []etherscanTokenBalance `json:"result"`
}

// GetTokenBalances implements BalanceSource. A wallet holding no tokens
// yields an empty slice, not an error; Etherscan signals that case with
// status "0" and message "No token balances found".
func (c *EtherscanClient) GetTokenBalances(ctx context.Context, wallet string, chain types.ChainID) ([]types.TokenBalance, error) {
	params := url.Values{
		"chainid": {strconv.FormatInt(int64(chain), 10)},
		"module":  {"account"},
		"action":  {"addresstokenbalance"},
		"address": {wallet},
		"page":    {"1"},
		"offset":  {"100"},
		"apikey":  {c.apiKey},
	}

	var resp etherscanResponse
	if err := c.http.getJSON(ctx, c.baseURL, params, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "1" {
		if strings.Contains(strings.ToLower(resp.Message), "no t") { // "No token balances found" / "No transactions found"
			return nil, nil
		}
		return nil, errors.NewTransportFailureError("etherscan",
			&types.ServiceError{Code: "ETHERSCAN_ERROR", Message: resp.Message})
	}

	balances := make([]types.TokenBalance, 0, len(resp.Result))
	for _, t := range resp.Result {
		if t.TokenQuantity == "" || t.TokenQuantity == "0" {
			continue
		}
		decimals, err := strconv.Atoi(t.TokenDivisor)
		if err != nil {
			decimals = 18
		}
		balances = append(balances, types.TokenBalance{
			ChainID:      chain,
			TokenAddress: strings.ToLower(t.TokenAddress),
			Symbol:       t.TokenSymbol,
			Decimals:     decimals,
			Raw:          t.TokenQuantity,
		})
	}
	return balances, nil
}
