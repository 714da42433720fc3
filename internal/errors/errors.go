// Package errors defines the categorized error taxonomy shared by the
// analysis pipeline and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/beta-portfolio/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryProvider represents upstream data provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryAnalysis represents analysis outcome errors
	CategoryAnalysis ErrorCategory = "analysis"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid wallet address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid wallet address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewNoEligiblePositionsError is the terminal failure for a run that found no
// position at or above the minimum USD floor on any scanned chain.
func NewNoEligiblePositionsError(minUSD float64, chains int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAnalysis,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "NO_ELIGIBLE_POSITIONS",
		Message:    fmt.Sprintf("no position met the minimum value of $%.2f across all %d scanned chains", minUSD, chains),
		Details: map[string]interface{}{
			"minUsd":        minUSD,
			"chainsScanned": chains,
		},
	}
}

// NewDataUnavailableError marks missing price history for one asset. The
// pipeline absorbs it locally with a fallback beta; it never fails a run.
func NewDataUnavailableError(symbol string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "DATA_UNAVAILABLE",
		Message:    fmt.Sprintf("price history unavailable for %s", symbol),
		Cause:      cause,
		Details: map[string]interface{}{
			"symbol": symbol,
		},
	}
}

// NewTransportFailureError wraps a total collaborator outage.
func NewTransportFailureError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "TRANSPORT_FAILURE",
		Message:    fmt.Sprintf("data provider unreachable: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderRateLimitError creates a provider rate limit error
func NewProviderRateLimitError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "PROVIDER_RATE_LIMIT",
		Message:    fmt.Sprintf("data provider rate limit exceeded: %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewCapacityError is returned when the analysis worker pool cannot accept
// more work.
func NewCapacityError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "CAPACITY_EXCEEDED",
		Message:    message,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error, defaulting to an internal error.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}
	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether an error is worth retrying at the adapter
// layer. The analysis engine itself never retries.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	switch catErr.Category {
	case CategoryProvider, CategoryRateLimit:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}
