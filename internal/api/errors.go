package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/beta-portfolio/internal/errors"
)

// errorResponse is the JSON envelope for all error replies.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, err error) {
	cat := errors.Categorize(err)
	respondJSON(w, cat.StatusCode, errorResponse{
		Error: errorBody{
			Code:    cat.Code,
			Message: cat.Message,
			Details: cat.Details,
		},
	})
}
