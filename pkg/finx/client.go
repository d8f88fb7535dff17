// Package finx is the FinX analytics client: typed methods over a cached
// request dispatcher that talks to the API over HTTP or a WebSocket.
package finx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/cache"
	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/dispatch"
	"github.com/fiteanalytics/finx-go/pkg/types"
	"github.com/fiteanalytics/finx-go/pkg/websocket"
)

// Client exposes the FinX API methods.
type Client struct {
	dispatcher *dispatch.Dispatcher
	config     *config.Config
	logger     *zap.Logger
}

// New builds a client for the transport named in cfg. In socket mode the
// connection is opened and the credential sent before New returns; calls made
// before the server acknowledges it wait up to WSAuthTimeout.
func New(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, types.ErrMissingAPIKey
	}

	mode, err := dispatch.ParseMode(cfg.Transport)
	if err != nil {
		return nil, err
	}

	dcfg := dispatch.Config{
		Mode:                   mode,
		APIKey:                 cfg.APIKey,
		IncludeCredentialInKey: cfg.CacheKeyIncludesCredential,
		AuthTimeout:            cfg.WSAuthTimeout,
		ReconnectOnCall:        cfg.WSReconnectOnCall,
		BatchConcurrency:       cfg.BatchConcurrency,
		Logger:                 logger,
	}

	newCache := cache.NewFactory(cache.Config{
		Backend: cfg.CacheBackend,
		Size:    cfg.CacheSize,
		Logger:  logger,
	})

	var d *dispatch.Dispatcher
	if mode == dispatch.ModeSocket {
		url, err := websocket.SocketURL(cfg.APIEndpoint, cfg.WSSSL)
		if err != nil {
			return nil, fmt.Errorf("derive socket url: %w", err)
		}

		stream := websocket.New(websocket.Config{
			URL:                   url,
			APIKey:                cfg.APIKey,
			DialTimeout:           cfg.WSDialTimeout,
			WriteTimeout:          cfg.WSWriteTimeout,
			PingInterval:          cfg.WSPingInterval,
			ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
			ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
			ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
			ReconnectMaxAttempts:  cfg.WSReconnectMaxAttempts,
			Logger:                logger,
		})

		d, err = dispatch.NewStreaming(dcfg, newCache, stream)
	} else {
		transport := dispatch.NewHTTPTransport(cfg.APIEndpoint, cfg.HTTPTimeout, logger)
		d, err = dispatch.NewHTTP(dcfg, newCache, transport)
	}
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	logger.Info("finx-client-created",
		zap.String("endpoint", cfg.APIEndpoint),
		zap.String("transport", string(mode)),
		zap.Int("cache-size", cfg.CacheSize))

	return &Client{dispatcher: d, config: cfg, logger: logger}, nil
}

// NewWithDispatcher wraps an existing dispatcher.
func NewWithDispatcher(d *dispatch.Dispatcher, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{dispatcher: d, logger: logger}
}

// Dispatcher returns the underlying dispatcher.
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// ListAPIFunctions lists the methods the API supports.
func (c *Client) ListAPIFunctions(ctx context.Context) (*types.Response, error) {
	return c.dispatcher.Do(ctx, types.MethodListAPIFunctions, nil, nil)
}

// CoverageCheck reports whether the API covers securityID.
func (c *Client) CoverageCheck(ctx context.Context, securityID string) (*types.Response, error) {
	return c.dispatcher.Do(ctx, types.MethodCoverageCheck, securityParams(securityID), nil)
}

// GetSecurityReferenceData returns reference data for securityID.
func (c *Client) GetSecurityReferenceData(ctx context.Context, securityID string, p ReferenceParams) (*types.Response, error) {
	return c.dispatcher.Do(ctx, types.MethodSecurityReference, securityParams(securityID), p.Params())
}

// GetSecurityAnalytics returns analytics for securityID.
func (c *Client) GetSecurityAnalytics(ctx context.Context, securityID string, p AnalyticsParams) (*types.Response, error) {
	return c.dispatcher.Do(ctx, types.MethodSecurityAnalytics, securityParams(securityID), p.Params())
}

// GetSecurityCashFlows returns projected cash flows for securityID.
func (c *Client) GetSecurityCashFlows(ctx context.Context, securityID string, p CashFlowParams) (*types.Response, error) {
	return c.dispatcher.Do(ctx, types.MethodSecurityCashFlows, securityParams(securityID), p.Params())
}

// Submit issues method without waiting. In socket mode the returned Result
// resolves when the response arrives and cb, if given, runs with it and aux.
func (c *Client) Submit(ctx context.Context, method types.Method, params types.Params, cb dispatch.Callback, aux any) (*dispatch.Result, error) {
	var opts []dispatch.CallOption
	if cb != nil {
		opts = append(opts, dispatch.WithCallback(cb, aux))
	}

	required := types.Params{}
	if id := params.String(types.FieldSecurityID); id != "" {
		required[types.FieldSecurityID] = id
	}

	return c.dispatcher.Call(ctx, method, required, params, opts...)
}

// Batch issues method for every security in requests and waits for all
// responses.
func (c *Client) Batch(ctx context.Context, method types.Method, requests map[string]types.Params, shared types.Params) ([]dispatch.BatchResult, error) {
	results, err := c.dispatcher.Batch(ctx, method, requests, shared)
	if err != nil {
		return nil, err
	}

	err = dispatch.WaitBatch(ctx, results)
	if err != nil {
		return results, err
	}

	return results, nil
}

// BatchCoverageCheck checks coverage for every security id.
func (c *Client) BatchCoverageCheck(ctx context.Context, securityIDs []string) ([]dispatch.BatchResult, error) {
	return c.Batch(ctx, types.MethodCoverageCheck, idsToRequests(securityIDs), nil)
}

// BatchSecurityReference fetches reference data for each security with its
// own parameters.
func (c *Client) BatchSecurityReference(ctx context.Context, requests map[string]ReferenceParams) ([]dispatch.BatchResult, error) {
	m := make(map[string]types.Params, len(requests))
	for id, p := range requests {
		m[id] = p.Params()
	}
	return c.Batch(ctx, types.MethodSecurityReference, m, nil)
}

// BatchSecurityAnalytics fetches analytics for each security with its own
// parameters.
func (c *Client) BatchSecurityAnalytics(ctx context.Context, requests map[string]AnalyticsParams) ([]dispatch.BatchResult, error) {
	m := make(map[string]types.Params, len(requests))
	for id, p := range requests {
		m[id] = p.Params()
	}
	return c.Batch(ctx, types.MethodSecurityAnalytics, m, nil)
}

// BatchSecurityCashFlows fetches cash flows for each security with its own
// parameters.
func (c *Client) BatchSecurityCashFlows(ctx context.Context, requests map[string]CashFlowParams) ([]dispatch.BatchResult, error) {
	m := make(map[string]types.Params, len(requests))
	for id, p := range requests {
		m[id] = p.Params()
	}
	return c.Batch(ctx, types.MethodSecurityCashFlows, m, nil)
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() error {
	return c.dispatcher.ClearCache()
}

// Ready reports whether the client can serve calls without waiting.
func (c *Client) Ready() bool {
	return c.dispatcher.Ready()
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.dispatcher.Close()
}

func securityParams(id string) types.Params {
	return types.Params{types.FieldSecurityID: id}
}

func idsToRequests(ids []string) map[string]types.Params {
	m := make(map[string]types.Params, len(ids))
	for _, id := range ids {
		m[id] = nil
	}
	return m
}
