package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/beta-portfolio/internal/types"
)

// LlamaClient resolves current USD prices through the DefiLlama coins API,
// keyed by "<platform-slug>:<token-address>". The native asset sentinel
// address is priced the same way.
type LlamaClient struct {
	baseURL string
	http    *httpClient
}

// NewLlamaClient creates a DefiLlama price client.
func NewLlamaClient(baseURL string, opts ClientOptions) *LlamaClient {
	opts.Name = "defillama"
	return &LlamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(opts),
	}
}

type llamaPriceResponse struct {
	Coins map[string]struct {
		Price  float64 `json:"price"`
		Symbol string  `json:"symbol"`
	} `json:"coins"`
}

// GetPrice implements SpotPriceSource. Unknown tokens and chains without a
// DefiLlama slug yield a zero price with no error.
func (c *LlamaClient) GetPrice(ctx context.Context, chain types.ChainID, tokenAddress string) (float64, error) {
	info, ok := types.ChainByID(chain)
	if !ok || info.LlamaSlug == "" {
		return 0, nil
	}

	key := fmt.Sprintf("%s:%s", info.LlamaSlug, strings.ToLower(tokenAddress))
	endpoint := fmt.Sprintf("%s/prices/current/%s", c.baseURL, key)

	var resp llamaPriceResponse
	if err := c.http.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Coins[key].Price, nil
}
