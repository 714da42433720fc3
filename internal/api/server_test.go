package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beta-portfolio/internal/config"
	"github.com/beta-portfolio/internal/logging"
	"github.com/beta-portfolio/internal/metrics"
	"github.com/beta-portfolio/internal/service"
	"github.com/beta-portfolio/internal/storage"
	"github.com/beta-portfolio/internal/types"
	"github.com/beta-portfolio/internal/worker"
)

const testWallet = "0x1234567890AbcdEF1234567890aBcdef12345678"

type stubBalances struct {
	balances []types.TokenBalance
}

func (s *stubBalances) GetTokenBalances(_ context.Context, _ string, chain types.ChainID) ([]types.TokenBalance, error) {
	if chain != types.ChainEthereum {
		return nil, nil
	}
	return s.balances, nil
}

type stubSpot struct{ prices map[string]float64 }

func (s *stubSpot) GetPrice(_ context.Context, _ types.ChainID, addr string) (float64, error) {
	return s.prices[addr], nil
}

type stubHistory struct{ series []types.PricePoint }

func (s *stubHistory) GetPriceHistory(context.Context, types.ChainID, string, time.Time, time.Time) ([]types.PricePoint, error) {
	return s.series, nil
}

type stubBench struct{ series []types.PricePoint }

func (s *stubBench) GetBenchmarkHistory(context.Context, string, int) ([]types.PricePoint, error) {
	return s.series, nil
}

func flatSeries(prices ...float64) []types.PricePoint {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = types.PricePoint{Date: start.AddDate(0, 0, i), Price: p}
	}
	return points
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logging.Nop()

	series := flatSeries(100, 110, 99, 108.9)
	balances := &stubBalances{balances: []types.TokenBalance{{
		ChainID:      types.ChainEthereum,
		TokenAddress: "0xtoken",
		Symbol:       "UNI",
		Decimals:     18,
		Raw:          "100000000000000000000",
	}}}
	spot := &stubSpot{prices: map[string]float64{"0xtoken": 5}}

	scanner := service.NewScanner([]types.ChainID{types.ChainEthereum}, balances, nil, spot, log)
	analyzer := service.NewAnalyzer(config.AnalysisConfig{
		LookbackDays: 30,
		MinUSDValue:  10,
		MaxPositions: 5,
		Benchmarks:   types.DefaultBenchmarks,
	}, scanner, &stubHistory{series: series}, &stubBench{series: series}, nil, storage.NewMemoryStore(), metrics.New(), log)

	pool := worker.NewPool(1, 4, log)
	pool.Start()
	t.Cleanup(func() { pool.Stop(context.Background()) })

	return NewServer(config.ServerConfig{
		Host:      "127.0.0.1",
		Port:      "0",
		ClientRPS: 1000,
	}, analyzer, scanner, pool, metrics.New(), log)
}

func postAnalyze(t *testing.T, handler http.Handler, address string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"wallet_address": address})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpointAccepts(t *testing.T) {
	server := newTestServer(t)

	rec := postAnalyze(t, server.Handler(), testWallet)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Equal(t, "pending", resp.Status)
}

func TestAnalyzeEndpointQueueFullFailsRecord(t *testing.T) {
	server := newTestServer(t)
	server.pool.Stop(context.Background())

	rec := postAnalyze(t, server.Handler(), testWallet)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Error struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CAPACITY_EXCEEDED", resp.Error.Code)

	id, _ := resp.Error.Details["analysisId"].(string)
	require.NotEmpty(t, id)

	req := httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil)
	statusRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(statusRec, req)
	require.Equal(t, http.StatusOK, statusRec.Code)

	var status struct {
		Status string `json:"status"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "CAPACITY_EXCEEDED", status.Error.Code)
}

func TestAnalyzeEndpointRejectsInvalidAddress(t *testing.T) {
	server := newTestServer(t)

	rec := postAnalyze(t, server.Handler(), "not-an-address")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_ADDRESS", resp.Error.Code)
}

func TestAnalyzeEndpointRejectsBadBody(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpointLifecycle(t *testing.T) {
	server := newTestServer(t)

	rec := postAnalyze(t, server.Handler(), testWallet)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		AnalysisID string `json:"analysisId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	deadline := time.Now().Add(5 * time.Second)
	var status struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Result   *struct {
			Score       float64 `json:"score"`
			ScoringMode string  `json:"scoringMode"`
			Wallet      string  `json:"wallet"`
		} `json:"result"`
	}
	for {
		req := httptest.NewRequest(http.MethodGet, "/api/status/"+accepted.AnalysisID, nil)
		statusRec := httptest.NewRecorder()
		server.Handler().ServeHTTP(statusRec, req)
		require.Equal(t, http.StatusOK, statusRec.Code)
		require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))

		if status.Status == "completed" || status.Status == "failed" {
			break
		}
		require.True(t, time.Now().Before(deadline), "analysis did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, "completed", status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, testWallet, status.Result.Wallet)
	assert.Equal(t, "beta", status.Result.ScoringMode)
	assert.InDelta(t, 100.0, status.Result.Score, 1e-6)
}

func TestStatusEndpointUnknownID(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChainsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chains", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chains []types.ChainInfo `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chains, 1)
	assert.Equal(t, types.ChainEthereum, resp.Chains[0].ID)
}

func TestChainsEndpointGzip(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chains", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)

	var resp struct {
		Chains []types.ChainInfo `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Chains, 1)
}

func TestBalancesEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/balances/"+testWallet, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Address string `json:"address"`
		Chains  []struct {
			ChainID  types.ChainID        `json:"chainId"`
			Balances []types.TokenBalance `json:"balances"`
		} `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testWallet, resp.Address)
	require.Len(t, resp.Chains, 1)
	require.Len(t, resp.Chains[0].Balances, 1)
	assert.Equal(t, "UNI", resp.Chains[0].Balances[0].Symbol)
}

func TestBalancesEndpointRejectsInvalidAddress(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/balances/junk", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	server := newTestServer(t)

	// rebuild with a tiny limit to force rejection
	limited := NewServer(config.ServerConfig{ClientRPS: 1}, server.analyzer, server.scanner, server.pool, metrics.New(), logging.Nop())

	var got429 bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/chains", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		limited.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	assert.True(t, got429, "expected at least one 429 under burst")
}
