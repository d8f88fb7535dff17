package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fiteanalytics/finx-go/pkg/cache"
	"github.com/fiteanalytics/finx-go/pkg/types"
	"github.com/fiteanalytics/finx-go/pkg/websocket"
)

// Mode selects how requests reach the API.
type Mode string

// Supported transport modes.
const (
	ModeSync       Mode = "sync"       // blocking HTTP, batches run one at a time
	ModeConcurrent Mode = "concurrent" // blocking HTTP, batches fan out
	ModeSocket     Mode = "socket"     // authenticated WebSocket, results arrive asynchronously
)

// ParseMode validates a transport name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSync, ModeConcurrent, ModeSocket:
		return Mode(s), nil
	case "":
		return ModeSync, nil
	}
	return "", fmt.Errorf("unknown transport %q", s)
}

// Stream is the socket connection used in ModeSocket.
type Stream interface {
	Start(handler websocket.Handler) error
	Send(ctx context.Context, payload any) error
	WaitAuthenticated(ctx context.Context, timeout time.Duration) error
	IsAuthenticated() bool
	IsConnected() bool
	Reconnect(ctx context.Context) error
	Close() error
}

// Config holds dispatcher configuration.
type Config struct {
	Mode                   Mode
	APIKey                 string
	IncludeCredentialInKey bool
	AuthTimeout            time.Duration
	ReconnectOnCall        bool
	BatchConcurrency       int
	PollInterval           time.Duration
	Logger                 *zap.Logger
}

// Dispatcher turns method calls into cached API requests. Every response,
// success or error, is cached under the request's key until evicted or
// ClearCache runs; a cached key is never transmitted again.
type Dispatcher struct {
	config   Config
	logger   *zap.Logger
	keys     *cache.KeyBuilder
	newCache cache.Factory

	mu      sync.Mutex // guards cache and pending
	cache   cache.Cache
	pending map[string]*pendingCall

	rt     RoundTripper
	flight singleflight.Group
	stream Stream

	wg     sync.WaitGroup // callbacks in flight
	closed atomic.Bool
}

// NewHTTP creates a dispatcher that sends requests through rt.
func NewHTTP(cfg Config, newCache cache.Factory, rt RoundTripper) (*Dispatcher, error) {
	if cfg.Mode == ModeSocket {
		return nil, errors.New("socket mode requires NewStreaming")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}

	d, err := newDispatcher(cfg, newCache)
	if err != nil {
		return nil, err
	}
	d.rt = rt

	return d, nil
}

// NewStreaming creates a dispatcher that sends requests over stream and starts
// it. Responses are matched to requests by the cache_key echoed in each frame.
func NewStreaming(cfg Config, newCache cache.Factory, stream Stream) (*Dispatcher, error) {
	cfg.Mode = ModeSocket

	d, err := newDispatcher(cfg, newCache)
	if err != nil {
		return nil, err
	}
	d.stream = stream

	err = stream.Start(d.handleFrame)
	if err != nil {
		d.cache.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return d, nil
}

func newDispatcher(cfg Config, newCache cache.Factory) (*Dispatcher, error) {
	if cfg.APIKey == "" {
		return nil, types.ErrMissingAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 5 * time.Second
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if newCache == nil {
		newCache = cache.NewFactory(cache.Config{Logger: cfg.Logger})
	}

	c, err := newCache()
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Dispatcher{
		config:   cfg,
		logger:   cfg.Logger,
		keys:     cache.NewKeyBuilder(cfg.IncludeCredentialInKey),
		newCache: newCache,
		cache:    c,
		pending:  make(map[string]*pendingCall),
	}, nil
}

// Mode returns the transport mode.
func (d *Dispatcher) Mode() Mode {
	return d.config.Mode
}

// Call issues method with the given parameters. Required parameters override
// optional ones, nil optional values are dropped, and neither may replace
// api_method or the credential.
//
// A cache hit returns a resolved Result without transmitting. In HTTP modes a
// miss blocks for the round trip. In socket mode a miss waits for the socket
// to authenticate, sends the request and returns a pending Result; the only
// error it returns for a live dispatcher is types.ErrAuthTimeout. API and
// transport failures are delivered as error responses.
func (d *Dispatcher) Call(ctx context.Context, method types.Method, required, optional types.Params, opts ...CallOption) (*Result, error) {
	if d.closed.Load() {
		return nil, types.ErrClosed
	}
	if method == "" {
		return nil, types.ErrMissingMethod
	}

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := d.buildRequest(method, required, optional)

	key, err := d.keys.Build(req)
	if err != nil {
		return nil, fmt.Errorf("build cache key: %w", err)
	}

	RequestsTotal.WithLabelValues(string(method), string(d.config.Mode)).Inc()

	d.mu.Lock()
	resp, ok := d.cache.Get(key)
	d.mu.Unlock()

	if ok {
		d.logger.Debug("cache-hit", zap.String("cache-key", key))
		if o.callback != nil {
			o.callback(resp, o.aux)
		}
		return resolvedResult(key, resp), nil
	}

	if d.stream != nil {
		return d.callStream(ctx, key, req, o)
	}

	return d.callHTTP(ctx, method, key, req, o)
}

// Do calls method and waits for the response.
func (d *Dispatcher) Do(ctx context.Context, method types.Method, required, optional types.Params) (*types.Response, error) {
	res, err := d.Call(ctx, method, required, optional)
	if err != nil {
		return nil, err
	}
	return res.Wait(ctx)
}

func (d *Dispatcher) buildRequest(method types.Method, required, optional types.Params) types.Params {
	reserved := []string{types.FieldAPIKey, types.FieldAPIMethod, types.FieldCacheKey}

	req := make(types.Params, len(required)+len(optional)+3)
	req.Merge(optional, reserved...)
	req.Merge(required, reserved...)
	req[types.FieldAPIMethod] = string(method)
	req[types.FieldAPIKey] = d.config.APIKey
	if method == types.MethodSecurityAnalytics {
		req[types.FieldUseKalotayAnalytics] = false
	}

	return req
}

func (d *Dispatcher) callHTTP(ctx context.Context, method types.Method, key string, req types.Params, o callOptions) (*Result, error) {
	v, err, shared := d.flight.Do(key, func() (any, error) {
		// An identical flight may have stored the response since the miss.
		d.mu.Lock()
		cached, ok := d.cache.Get(key)
		d.mu.Unlock()
		if ok {
			return cached, nil
		}

		start := time.Now()
		resp := d.rt.RoundTrip(ctx, key, req)
		RoundTripDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
		TransmissionsTotal.WithLabelValues(string(d.config.Mode)).Inc()

		// A caller giving up is not an answer from the API.
		if resp.IsError() && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if resp.IsError() {
			ErrorResponsesTotal.WithLabelValues(string(method)).Inc()
			d.logger.Warn("api-returned-error",
				zap.String("cache-key", key),
				zap.String("error", resp.ErrorMsg))
		}

		d.mu.Lock()
		d.cache.Set(key, resp)
		d.mu.Unlock()

		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", method, err)
	}
	if shared {
		DuplicateCallsTotal.Inc()
	}

	resp := v.(*types.Response)
	if o.callback != nil {
		o.callback(resp, o.aux)
	}

	return resolvedResult(key, resp), nil
}

func (d *Dispatcher) callStream(ctx context.Context, key string, req types.Params, o callOptions) (*Result, error) {
	if d.config.ReconnectOnCall && !d.stream.IsConnected() {
		err := d.stream.Reconnect(ctx)
		if err != nil {
			d.logger.Warn("socket-reconnect-failed", zap.Error(err))
		}
	}

	if !d.stream.IsAuthenticated() {
		start := time.Now()
		err := d.stream.WaitAuthenticated(ctx, d.config.AuthTimeout)
		AuthWaitDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			d.logger.Warn("socket-not-authenticated",
				zap.String("cache-key", key),
				zap.Error(err))
			return nil, err
		}
	}

	d.mu.Lock()
	if resp, ok := d.cache.Get(key); ok {
		d.mu.Unlock()
		if o.callback != nil {
			o.callback(resp, o.aux)
		}
		return resolvedResult(key, resp), nil
	}

	if p, ok := d.pending[key]; ok {
		if o.callback != nil {
			p.waiters = append(p.waiters, waiter{callback: o.callback, aux: o.aux})
		}
		d.mu.Unlock()
		DuplicateCallsTotal.Inc()
		d.logger.Debug("request-already-pending", zap.String("cache-key", key))
		return p.result, nil
	}

	p := &pendingCall{result: newResult(key)}
	if o.callback != nil {
		p.waiters = append(p.waiters, waiter{callback: o.callback, aux: o.aux})
	}
	d.pending[key] = p
	PendingRequests.Set(float64(len(d.pending)))
	d.mu.Unlock()

	frame := req.Clone()
	frame[types.FieldCacheKey] = key

	TransmissionsTotal.WithLabelValues(string(d.config.Mode)).Inc()

	err := d.stream.Send(ctx, frame)
	if err != nil {
		d.logger.Error("socket-send-failed",
			zap.String("cache-key", key),
			zap.Error(err))
		ErrorResponsesTotal.WithLabelValues(req.String(types.FieldAPIMethod)).Inc()
		d.complete(key, types.NewErrorResponse(key, err.Error()), true)
	}

	return p.result, nil
}

// handleFrame stores a result frame delivered by the socket.
func (d *Dispatcher) handleFrame(f *websocket.Frame) {
	key := f.CacheKey

	var resp *types.Response
	if f.HasError() {
		resp = types.NewErrorResponseRaw(key, []byte(f.Error))
		ErrorResponsesTotal.WithLabelValues("socket").Inc()
		d.logger.Warn("api-returned-error",
			zap.String("cache-key", key),
			zap.String("error", resp.ErrorMsg))
	} else {
		resp = types.NewResponse(key, f.Payload())
	}

	d.complete(key, resp, true)
}

// complete resolves the pending call for key, caching resp first when store is
// set, and schedules its callbacks.
func (d *Dispatcher) complete(key string, resp *types.Response, store bool) {
	d.mu.Lock()
	if store {
		d.cache.Set(key, resp)
	}
	p := d.pending[key]
	delete(d.pending, key)
	PendingRequests.Set(float64(len(d.pending)))
	d.mu.Unlock()

	if p == nil {
		d.logger.Debug("unsolicited-result", zap.String("cache-key", key))
		return
	}

	p.result.resolve(resp)

	for _, w := range p.waiters {
		d.runCallback(key, w, resp)
	}
}

func (d *Dispatcher) runCallback(key string, w waiter, resp *types.Response) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("callback-panicked",
					zap.String("cache-key", key),
					zap.Any("panic", r))
			}
		}()

		w.callback(resp, w.aux)
	}()
}

// Lookup returns the cached response for key.
func (d *Dispatcher) Lookup(key string) (*types.Response, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cache.Get(key)
}

// Poll waits until a response for key is cached, checking every PollInterval.
// It is the fallback for callers that kept only the key of a pending call.
func (d *Dispatcher) Poll(ctx context.Context, key string) (*types.Response, error) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		if resp, ok := d.Lookup(key); ok {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ClearCache replaces the cache with an empty one of the same configuration.
// Requests already pending are stored in the new cache when they complete.
func (d *Dispatcher) ClearCache() error {
	fresh, err := d.newCache()
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	d.mu.Lock()
	old := d.cache
	d.cache = fresh
	d.mu.Unlock()

	old.Close()
	CacheClearsTotal.Inc()
	d.logger.Info("cache-cleared")

	return nil
}

// CacheLen returns the number of cached responses.
func (d *Dispatcher) CacheLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cache.Len()
}

// Pending returns the number of sent requests still waiting for a response.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// Ready reports whether calls can be served without waiting: always for HTTP,
// once authenticated for the socket.
func (d *Dispatcher) Ready() bool {
	if d.closed.Load() {
		return false
	}
	if d.stream != nil {
		return d.stream.IsAuthenticated()
	}
	return true
}

// Close stops the dispatcher. Pending calls resolve with an uncached error
// response and in-flight callbacks are awaited.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.logger.Info("closing-dispatcher")

	var err error
	if d.stream != nil {
		err = d.stream.Close()
	}

	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	d.mu.Unlock()

	for _, key := range keys {
		d.complete(key, types.NewErrorResponse(key, types.ErrClosed.Error()), false)
	}

	d.wg.Wait()

	d.mu.Lock()
	d.cache.Close()
	d.mu.Unlock()

	d.logger.Info("dispatcher-closed")

	if err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}
