package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

const maxRequestBytes = 1 << 20

// Dispatcher is the subset of the FinX dispatcher the gateway needs.
type Dispatcher interface {
	Do(ctx context.Context, method types.Method, required, optional types.Params) (*types.Response, error)
	ClearCache() error
}

// GatewayHandler forwards flat JSON requests through a shared dispatcher so
// local callers share one cache and one upstream connection.
type GatewayHandler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(d Dispatcher, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{
		dispatcher: d,
		logger:     logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleCall handles POST /api. The body is a flat JSON object carrying
// api_method and the method's fields; any credential in it is ignored.
func (h *GatewayHandler) HandleCall(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var body types.Params
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body == nil {
		h.writeError(w, "request body must be a JSON object", http.StatusBadRequest)
		return
	}

	rawMethod := body.String(types.FieldAPIMethod)
	if rawMethod == "" {
		h.writeError(w, types.ErrMissingMethod.Error(), http.StatusBadRequest)
		return
	}

	method := types.Method(rawMethod)
	if parsed, perr := types.ParseMethod(rawMethod); perr == nil {
		method = parsed
	}

	delete(body, types.FieldAPIMethod)
	delete(body, types.FieldAPIKey)
	delete(body, types.FieldCacheKey)

	h.logger.Debug("gateway-request-received", zap.String("api-method", string(method)))

	resp, err := h.dispatcher.Do(r.Context(), method, body, nil)
	if err != nil {
		h.logger.Warn("gateway-call-failed",
			zap.String("api-method", string(method)),
			zap.Error(err))
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	status := http.StatusOK
	if resp.IsError() {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Finx-Cache-Key", resp.Key)
	w.WriteHeader(status)

	if _, err := w.Write(resp.Data); err != nil {
		h.logger.Error("failed-to-write-response", zap.Error(err))
	}
}

// HandleClearCache handles DELETE /api/cache.
func (h *GatewayHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	err := h.dispatcher.ClearCache()
	if err != nil {
		h.logger.Error("failed-to-clear-cache", zap.Error(err))
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrMissingMethod):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAuthTimeout), errors.Is(err, types.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func (h *GatewayHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
