package dispatch

import (
	"context"
	"sync"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// Callback receives a response once it is available, together with the
// auxiliary value passed to WithCallback.
type Callback func(resp *types.Response, aux any)

// Result is the handle returned by Call. HTTP calls and cache hits return an
// already resolved Result; streaming calls resolve when the socket delivers the
// response for Key.
type Result struct {
	Key string

	done chan struct{}
	once sync.Once
	resp *types.Response
}

func newResult(key string) *Result {
	return &Result{Key: key, done: make(chan struct{})}
}

func resolvedResult(key string, resp *types.Response) *Result {
	r := newResult(key)
	r.resolve(resp)
	return r
}

func (r *Result) resolve(resp *types.Response) {
	r.once.Do(func() {
		r.resp = resp
		close(r.done)
	})
}

// Done is closed once the response is available.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Ready reports whether the response is available.
func (r *Result) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Response returns the response, or nil while still pending.
func (r *Result) Response() *types.Response {
	if !r.Ready() {
		return nil
	}
	return r.resp
}

// Wait blocks until the response arrives or ctx ends.
func (r *Result) Wait(ctx context.Context) (*types.Response, error) {
	select {
	case <-r.done:
		return r.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type waiter struct {
	callback Callback
	aux      any
}

// pendingCall is a streaming request that was sent and has no response yet.
type pendingCall struct {
	result  *Result
	waiters []waiter
}

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	callback Callback
	aux      any
}

// WithCallback registers cb to run exactly once with the response. aux is
// passed through unchanged.
func WithCallback(cb Callback, aux any) CallOption {
	return func(o *callOptions) {
		o.callback = cb
		o.aux = aux
	}
}
