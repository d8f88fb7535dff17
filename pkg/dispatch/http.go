package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// RoundTripper performs one blocking request. Failures are reported as error
// responses, never as Go errors, so they can be cached like any other result.
type RoundTripper interface {
	RoundTrip(ctx context.Context, key string, body types.Params) *types.Response
}

// HTTPTransport posts flat JSON bodies to the FinX REST endpoint.
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPTransport creates a transport for endpoint.
func NewHTTPTransport(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPTransport{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// RoundTrip posts body and parses the reply.
func (t *HTTPTransport) RoundTrip(ctx context.Context, key string, body types.Params) *types.Response {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewErrorResponse(key, fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return types.NewErrorResponse(key, fmt.Sprintf("create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "finx-go/1.0")

	t.logger.Debug("posting-request",
		zap.String("url", t.endpoint),
		zap.String("api-method", body.String(types.FieldAPIMethod)))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return types.NewErrorResponse(key, fmt.Sprintf("do request: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewErrorResponse(key, fmt.Sprintf("read response body: %v", err))
	}

	HTTPStatusTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	parsed := types.ParseBody(key, data)
	if resp.StatusCode >= http.StatusBadRequest && !parsed.IsError() {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return types.NewErrorResponse(key, fmt.Sprintf("unexpected status code %d: %s", resp.StatusCode, preview))
	}

	return parsed
}
