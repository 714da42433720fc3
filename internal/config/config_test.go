package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beta-portfolio/internal/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Analysis.LookbackDays)
	assert.Equal(t, 10.0, cfg.Analysis.MinUSDValue)
	assert.Equal(t, 5, cfg.Analysis.MaxPositions)
	assert.Equal(t, types.DefaultBenchmarks, cfg.Analysis.Benchmarks)
	assert.Equal(t, "", cfg.Redis.Host)
	assert.Equal(t, 30*time.Second, cfg.Providers.RequestTimeout)
}

func TestLoadConfigDefaultChains(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.ElementsMatch(t, []types.ChainID{
		types.ChainEthereum,
		types.ChainOptimism,
		types.ChainBNB,
		types.ChainBase,
		types.ChainArbitrum,
		types.ChainAvalanche,
	}, cfg.Chains.Enabled)

	for _, id := range cfg.Chains.Enabled {
		assert.NotEmpty(t, cfg.Chains.RPC[id], "chain %d needs a default rpc endpoint", id)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("LOOKBACK_DAYS", "90")
	t.Setenv("MIN_USD_VALUE", "25.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 90, cfg.Analysis.LookbackDays)
	assert.Equal(t, 25.5, cfg.Analysis.MinUSDValue)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigEnabledChainsOverride(t *testing.T) {
	t.Setenv("ENABLED_CHAINS", "1,8453")
	t.Setenv("CHAIN_1_RPC", "https://example.org/eth")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []types.ChainID{types.ChainEthereum, types.ChainBase}, cfg.Chains.Enabled)
	assert.Equal(t, "https://example.org/eth", cfg.Chains.RPC[types.ChainEthereum])
}

func TestLoadConfigRejectsUnknownChain(t *testing.T) {
	t.Setenv("ENABLED_CHAINS", "1,999999")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigBadIntFallsBack(t *testing.T) {
	t.Setenv("LOOKBACK_DAYS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Analysis.LookbackDays)
}
