package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/beta-portfolio/internal/adapter"
	"github.com/beta-portfolio/internal/errors"
	"github.com/beta-portfolio/internal/types"
)

type analyzeRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type analyzeResponse struct {
	AnalysisID string               `json:"analysisId"`
	Status     types.AnalysisStatus `json:"status"`
}

type statusResponse struct {
	AnalysisID string               `json:"analysisId"`
	Wallet     string               `json:"wallet"`
	Status     types.AnalysisStatus `json:"status"`
	Progress   int                  `json:"progress"`
	Result     interface{}          `json:"result,omitempty"`
	Error      *types.ServiceError  `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// handleAnalyze accepts a wallet address and queues an analysis run. The
// run id comes back immediately; progress is polled via handleStatus.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewInvalidParameterError("body", "expected JSON object with a wallet_address field"))
		return
	}

	record, err := s.analyzer.Begin(r.Context(), req.WalletAddress)
	if err != nil {
		respondError(w, err)
		return
	}

	id, wallet := record.ID, record.Wallet
	if err := s.pool.Submit(func(ctx context.Context) {
		s.analyzer.Run(ctx, id, wallet)
	}); err != nil {
		// the record is failed rather than left pending forever; the id
		// goes back so the rejection is still inspectable
		s.analyzer.Reject(r.Context(), id, err)
		cat := errors.Categorize(err)
		cat.Details = map[string]interface{}{"analysisId": id}
		respondError(w, cat)
		return
	}

	respondJSON(w, http.StatusAccepted, analyzeResponse{
		AnalysisID: record.ID,
		Status:     record.Status,
	})
}

// handleStatus reports the current state of a run, including the full
// result once completed.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := s.analyzer.Status(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := statusResponse{
		AnalysisID: record.ID,
		Wallet:     record.Wallet,
		Status:     record.Status,
		Progress:   record.Progress,
		Error:      record.Error,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.Result != nil {
		resp.Result = record.Result
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleChains lists the chains the service scans.
func (s *Server) handleChains(w http.ResponseWriter, _ *http.Request) {
	enabled := make(map[types.ChainID]bool, len(s.scanner.Chains()))
	for _, id := range s.scanner.Chains() {
		enabled[id] = true
	}

	chains := make([]types.ChainInfo, 0, len(enabled))
	for _, info := range types.SupportedChains {
		if enabled[info.ID] {
			chains = append(chains, info)
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"chains": chains})
}

type chainBalancesResponse struct {
	ChainID  types.ChainID        `json:"chainId"`
	Chain    string               `json:"chain"`
	Balances []types.TokenBalance `json:"balances"`
}

// handleBalances returns the wallet's raw token balances on every enabled
// chain, without pricing.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !adapter.IsValidAddress(address) {
		respondError(w, errors.NewInvalidAddressError(address))
		return
	}

	byChain, err := s.scanner.Balances(r.Context(), address)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]chainBalancesResponse, 0, len(byChain))
	for _, chain := range s.scanner.Chains() {
		balances, ok := byChain[chain]
		if !ok {
			continue
		}
		if balances == nil {
			balances = []types.TokenBalance{}
		}
		out = append(out, chainBalancesResponse{
			ChainID:  chain,
			Chain:    types.ChainName(chain),
			Balances: balances,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"chains":  out,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.analyzer.Status(r.Context(), "healthcheck"); err != nil {
		if cat := errors.Categorize(err); cat.Category != errors.CategoryNotFound {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
