// Command analyze runs a one-shot portfolio analysis from the terminal,
// using the same pipeline as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/beta-portfolio/internal/adapter"
	"github.com/beta-portfolio/internal/config"
	"github.com/beta-portfolio/internal/logging"
	"github.com/beta-portfolio/internal/metrics"
	"github.com/beta-portfolio/internal/service"
	"github.com/beta-portfolio/internal/storage"
	"github.com/beta-portfolio/internal/types"
)

func main() {
	var (
		days      int
		minUSD    float64
		maxTokens int
		asJSON    bool
		timeout   time.Duration
	)

	root := &cobra.Command{
		Use:   "analyze <wallet-address>",
		Short: "Estimate a wallet's portfolio beta and stability score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg.Analysis.LookbackDays = days
			cfg.Analysis.MinUSDValue = minUSD
			cfg.Analysis.MaxPositions = maxTokens

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := run(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printReport(result)
			return nil
		},
	}

	root.Flags().IntVar(&days, "days", 30, "price history window in days")
	root.Flags().Float64Var(&minUSD, "min-usd", 10, "minimum position value to consider")
	root.Flags().IntVar(&maxTokens, "max-tokens", 5, "largest positions to analyze")
	root.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	root.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall analysis timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, wallet string) (*storage.Analysis, error) {
	log := logging.Init(cfg.Logging.Level, "text")

	met := metrics.New()
	opts := func(name string) adapter.ClientOptions {
		return adapter.ClientOptions{
			Name:           name,
			RequestTimeout: cfg.Providers.RequestTimeout,
			RequestsPerSec: cfg.Providers.RequestsPerSec,
			Requests:       met.ProviderRequests,
			Logger:         log,
		}
	}
	etherscan := adapter.NewEtherscanClient(cfg.Providers.EtherscanBaseURL, cfg.Providers.EtherscanAPIKey, opts("etherscan"))
	covalent := adapter.NewCovalentClient(cfg.Providers.CovalentBaseURL, cfg.Providers.CovalentAPIKey, opts("covalent"))
	gecko := adapter.NewCoinGeckoClient(cfg.Providers.CoinGeckoBaseURL, opts("coingecko"))
	llama := adapter.NewLlamaClient(cfg.Providers.LlamaBaseURL, opts("defillama"))
	rpc := adapter.NewRPCClient(cfg.Chains.RPC, log)
	defer rpc.Close()

	var tokens adapter.BalanceSource = etherscan
	if covalent.Configured() {
		tokens = covalent
	}
	history := adapter.NewChainedHistorySource(covalent, gecko, log)

	store := storage.NewMemoryStore()
	cache := storage.NewMemoryPriceCache(cfg.Redis.PriceTTL)

	scanner := service.NewScanner(cfg.Chains.Enabled, tokens, rpc, llama, log)
	analyzer := service.NewAnalyzer(cfg.Analysis, scanner, history, gecko, cache, store, met, log)

	record, err := analyzer.Begin(ctx, wallet)
	if err != nil {
		return nil, err
	}
	analyzer.Run(ctx, record.ID, record.Wallet)

	final, err := analyzer.Status(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if final.Status == types.StatusFailed {
		return nil, final.Error
	}
	return final, nil
}

func printReport(a *storage.Analysis) {
	r := a.Result
	if r == nil {
		fmt.Println("no result")
		return
	}

	fmt.Printf("Wallet          %s\n", r.Wallet)
	fmt.Printf("Total value     $%.2f across %d tokens\n", r.TotalValue, r.TokenCount)
	fmt.Printf("Scoring mode    %s\n", r.ScoringMode)
	fmt.Printf("Stability score %.1f / 100\n\n", r.Score)

	if len(r.PortfolioBetas) > 0 {
		keys := make([]string, 0, len(r.PortfolioBetas))
		for k := range r.PortfolioBetas {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("Portfolio beta vs %s: %.4f\n", k, r.PortfolioBetas[types.BenchmarkKey(k)])
		}
		fmt.Println()
	}

	fmt.Println("Top positions:")
	for _, p := range r.Positions {
		fmt.Printf("  %-8s %-14s $%12.2f", p.Symbol, types.ChainName(p.ChainID), p.USDValue)
		for _, k := range []types.BenchmarkKey{types.BenchmarkBTC, types.BenchmarkETH} {
			if b, ok := p.Betas[k]; ok {
				fmt.Printf("  beta(%s)=%.3f", k, b)
			}
		}
		if p.Quality != "" {
			fmt.Printf("  [%s]", p.Quality)
		}
		fmt.Println()
	}
}
