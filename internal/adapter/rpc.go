package adapter

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

// balanceOfSelector is the 4-byte selector of balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// RPCClient reads balances straight from chain nodes over JSON-RPC. It
// backs native-asset discovery, which explorer token endpoints do not cover.
type RPCClient struct {
	endpoints map[types.ChainID]string
	log       zerolog.Logger

	mu      sync.Mutex
	clients map[types.ChainID]*ethclient.Client
}

// NewRPCClient creates a client over the given per-chain endpoints.
// Connections are dialed lazily and reused.
func NewRPCClient(endpoints map[types.ChainID]string, log zerolog.Logger) *RPCClient {
	return &RPCClient{
		endpoints: endpoints,
		log:       log.With().Str("provider", "rpc").Logger(),
		clients:   make(map[types.ChainID]*ethclient.Client),
	}
}

// Close releases all dialed connections.
func (c *RPCClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.clients {
		cl.Close()
	}
	c.clients = make(map[types.ChainID]*ethclient.Client)
}

func (c *RPCClient) client(chain types.ChainID) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[chain]; ok {
		return cl, nil
	}
	endpoint, ok := c.endpoints[chain]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %d", chain)
	}
	cl, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	c.clients[chain] = cl
	return cl, nil
}

// NativeBalance returns the wallet's native asset balance in wei.
func (c *RPCClient) NativeBalance(ctx context.Context, chain types.ChainID, wallet string) (*big.Int, error) {
	cl, err := c.client(chain)
	if err != nil {
		return nil, errors.NewTransportFailureError("rpc", err)
	}

	balance, err := cl.BalanceAt(ctx, common.HexToAddress(wallet), nil)
	if err != nil {
		return nil, errors.NewTransportFailureError("rpc", err)
	}
	return balance, nil
}

// TokenBalance calls balanceOf(wallet) on an ERC-20 contract and returns
// the raw balance in base units.
func (c *RPCClient) TokenBalance(ctx context.Context, chain types.ChainID, tokenAddress, wallet string) (*big.Int, error) {
	cl, err := c.client(chain)
	if err != nil {
		return nil, errors.NewTransportFailureError("rpc", err)
	}

	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(wallet).Bytes(), 32)...)

	to := common.HexToAddress(tokenAddress)
	out, err := cl.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.NewTransportFailureError("rpc", err)
	}
	return new(big.Int).SetBytes(out), nil
}

// IsValidAddress reports whether s looks like a hex EVM address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}
