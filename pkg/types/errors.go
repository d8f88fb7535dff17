package types

import (
	"errors"
	"fmt"
)

// Sentinel errors returned across the call boundary. Per-request API and transport
// failures are never returned this way; they travel as error Responses.
var (
	ErrMissingAPIKey    = errors.New("API key not found - pass it explicitly or set FINX_API_KEY")
	ErrMissingMethod    = errors.New("api_method cannot be empty")
	ErrAuthTimeout      = errors.New("client not authenticated")
	ErrNotConnected     = errors.New("socket not connected")
	ErrClosed           = errors.New("dispatcher closed")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum size")
	ErrBatchListMethods = errors.New("list_api_functions cannot be batched")
)

// APIError describes an error payload returned by the FinX API or synthesized
// from a transport failure.
type APIError struct {
	CacheKey string // Cache key of the failed request
	Message  string // Error text as reported by the API or the transport
}

func (e *APIError) Error() string {
	if e.CacheKey != "" {
		return fmt.Sprintf("API returned error for %s: %s", e.CacheKey, e.Message)
	}

	return fmt.Sprintf("API returned error: %s", e.Message)
}
