// Package config provides configuration management for the portfolio beta
// scanner. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/beta-portfolio/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Analysis  AnalysisConfig
	Chains    ChainsConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ClientRPS       int // per-client request rate limit
}

// AnalysisConfig holds the tunables of the beta pipeline.
type AnalysisConfig struct {
	LookbackDays int     // historical window for return series
	MinUSDValue  float64 // minimum position value to be eligible
	MaxPositions int     // positions considered per analysis
	Workers      int     // concurrent analyses
	QueueSize    int     // pending analyses before Submit rejects
	Benchmarks   map[types.BenchmarkKey]string
}

// ChainsConfig holds chain configuration
type ChainsConfig struct {
	Enabled []types.ChainID
	RPC     map[types.ChainID]string // JSON-RPC endpoint per chain
}

// RedisConfig holds Redis configuration. An empty Host disables Redis and
// the server falls back to in-memory state.
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	StatusTTL      time.Duration
	PriceTTL       time.Duration
}

// ProvidersConfig holds upstream data provider configuration.
type ProvidersConfig struct {
	EtherscanAPIKey  string
	EtherscanBaseURL string
	CovalentAPIKey   string
	CovalentBaseURL  string
	CoinGeckoBaseURL string
	LlamaBaseURL     string
	RequestTimeout   time.Duration
	RequestsPerSec   float64 // outbound rate limit per provider
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			ClientRPS:       getEnvAsInt("SERVER_CLIENT_RPS", 10),
		},
		Analysis: AnalysisConfig{
			LookbackDays: getEnvAsInt("LOOKBACK_DAYS", 30),
			MinUSDValue:  getEnvAsFloat("MIN_USD_VALUE", 10),
			MaxPositions: getEnvAsInt("MAX_POSITIONS", 5),
			Workers:      getEnvAsInt("ANALYSIS_WORKERS", 4),
			QueueSize:    getEnvAsInt("ANALYSIS_QUEUE_SIZE", 32),
			Benchmarks:   types.DefaultBenchmarks,
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", ""),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			StatusTTL:      getEnvAsDuration("REDIS_STATUS_TTL", time.Hour),
			PriceTTL:       getEnvAsDuration("REDIS_PRICE_TTL", 10*time.Minute),
		},
		Providers: ProvidersConfig{
			EtherscanAPIKey:  getEnv("ETHERSCAN_API_KEY", ""),
			EtherscanBaseURL: getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/v2/api"),
			CovalentAPIKey:   getEnv("COVALENT_KEY", ""),
			CovalentBaseURL:  getEnv("COVALENT_BASE_URL", "https://api.covalenthq.com"),
			CoinGeckoBaseURL: getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com"),
			LlamaBaseURL:     getEnv("LLAMA_BASE_URL", "https://coins.llama.fi"),
			RequestTimeout:   getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
			RequestsPerSec:   getEnvAsFloat("PROVIDER_RPS", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	chains, err := loadChainConfig()
	if err != nil {
		return nil, err
	}
	config.Chains = chains

	return config, nil
}

// loadChainConfig parses the enabled chain list and per-chain RPC endpoints.
func loadChainConfig() (ChainsConfig, error) {
	raw := strings.Split(getEnv("ENABLED_CHAINS", "1,10,56,8453,42161,43114"), ",")

	var enabled []types.ChainID
	rpc := make(map[types.ChainID]string)
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ChainsConfig{}, fmt.Errorf("invalid chain id %q in ENABLED_CHAINS: %w", part, err)
		}
		chainID := types.ChainID(id)
		if _, ok := types.ChainByID(chainID); !ok {
			return ChainsConfig{}, fmt.Errorf("unsupported chain id %d in ENABLED_CHAINS", id)
		}
		enabled = append(enabled, chainID)

		if url := os.Getenv(fmt.Sprintf("CHAIN_%d_RPC", id)); url != "" {
			rpc[chainID] = url
		} else if def, ok := defaultRPCEndpoints[chainID]; ok {
			rpc[chainID] = def
		}
	}

	return ChainsConfig{Enabled: enabled, RPC: rpc}, nil
}

// defaultRPCEndpoints are public endpoints used when no CHAIN_<id>_RPC
// override is configured.
var defaultRPCEndpoints = map[types.ChainID]string{
	types.ChainEthereum:  "https://eth.llamarpc.com",
	types.ChainOptimism:  "https://optimism.llamarpc.com",
	types.ChainBNB:       "https://bsc.llamarpc.com",
	types.ChainBase:      "https://base.llamarpc.com",
	types.ChainArbitrum:  "https://arbitrum.llamarpc.com",
	types.ChainAvalanche: "https://avalanche.llamarpc.com",
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
