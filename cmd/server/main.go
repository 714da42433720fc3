package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/beta-portfolio/internal/adapter"
	"github.com/beta-portfolio/internal/api"
	"github.com/beta-portfolio/internal/config"
	"github.com/beta-portfolio/internal/logging"
	"github.com/beta-portfolio/internal/metrics"
	"github.com/beta-portfolio/internal/service"
	"github.com/beta-portfolio/internal/storage"
	"github.com/beta-portfolio/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	opts := func(name string) adapter.ClientOptions {
		return adapter.ClientOptions{
			Name:           name,
			RequestTimeout: cfg.Providers.RequestTimeout,
			RequestsPerSec: cfg.Providers.RequestsPerSec,
			Requests:       met.ProviderRequests,
			Logger:         log.Logger,
		}
	}
	etherscan := adapter.NewEtherscanClient(cfg.Providers.EtherscanBaseURL, cfg.Providers.EtherscanAPIKey, opts("etherscan"))
	covalent := adapter.NewCovalentClient(cfg.Providers.CovalentBaseURL, cfg.Providers.CovalentAPIKey, opts("covalent"))
	gecko := adapter.NewCoinGeckoClient(cfg.Providers.CoinGeckoBaseURL, opts("coingecko"))
	llama := adapter.NewLlamaClient(cfg.Providers.LlamaBaseURL, opts("defillama"))
	rpc := adapter.NewRPCClient(cfg.Chains.RPC, log.Logger)
	defer rpc.Close()

	var tokens adapter.BalanceSource = etherscan
	if covalent.Configured() {
		tokens = covalent
	}
	history := adapter.NewChainedHistorySource(covalent, gecko, log.Logger)

	var store storage.AnalysisStore
	var priceCache storage.PriceCache
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.MaxConnections,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		store = storage.NewRedisStoreFromClient(client, cfg.Redis.StatusTTL, log.Logger)
		priceCache = storage.NewRedisPriceCache(client, cfg.Redis.PriceTTL)
		log.Info().Str("host", cfg.Redis.Host).Msg("using redis state store")
	} else {
		store = storage.NewMemoryStore()
		priceCache = storage.NewMemoryPriceCache(cfg.Redis.PriceTTL)
		log.Info().Msg("using in-memory state store")
	}

	scanner := service.NewScanner(cfg.Chains.Enabled, tokens, rpc, llama, log.Logger)
	analyzer := service.NewAnalyzer(cfg.Analysis, scanner, history, gecko, priceCache, store, met, log.Logger)

	pool := worker.NewPool(cfg.Analysis.Workers, cfg.Analysis.QueueSize, log.Logger)
	pool.Start()

	server := api.NewServer(cfg.Server, analyzer, scanner, pool, met, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	pool.Stop(shutdownCtx)
	log.Info().Msg("server stopped")
}
