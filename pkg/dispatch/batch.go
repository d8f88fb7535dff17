package dispatch

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// MaxBatchSize is the largest number of securities accepted by Batch.
const MaxBatchSize = 100

// BatchResult pairs a security with the outcome of its call.
type BatchResult struct {
	SecurityID string
	Result     *Result
	Err        error
}

// Batch issues one call of method per security. requests maps security ids to
// their own parameters; shared parameters apply to every call and lose to the
// per-security ones. Results come back in security id order.
//
// In ModeConcurrent up to BatchConcurrency calls run at once; the other modes
// issue them one after another. Socket results may still be pending on return.
func (d *Dispatcher) Batch(ctx context.Context, method types.Method, requests map[string]types.Params, shared types.Params, opts ...CallOption) ([]BatchResult, error) {
	if method == types.MethodListAPIFunctions {
		return nil, types.ErrBatchListMethods
	}
	if method == "" {
		return nil, types.ErrMissingMethod
	}
	if len(requests) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d requests, limit %d", types.ErrBatchTooLarge, len(requests), MaxBatchSize)
	}

	ids := make([]string, 0, len(requests))
	for id := range requests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	BatchSize.Observe(float64(len(ids)))
	d.logger.Info("batch-dispatching",
		zap.String("api-method", string(method)),
		zap.Int("count", len(ids)),
		zap.String("mode", string(d.config.Mode)))

	results := make([]BatchResult, len(ids))

	call := func(i int) {
		id := ids[i]

		optional := shared.Clone()
		optional.Merge(requests[id])

		res, err := d.Call(ctx, method, types.Params{types.FieldSecurityID: id}, optional, opts...)
		results[i] = BatchResult{SecurityID: id, Result: res, Err: err}
	}

	if d.config.Mode == ModeConcurrent {
		var g errgroup.Group
		g.SetLimit(d.config.BatchConcurrency)

		for i := range ids {
			i := i
			g.Go(func() error {
				call(i)
				return nil
			})
		}

		_ = g.Wait()
	} else {
		for i := range ids {
			call(i)
		}
	}

	return results, nil
}

// WaitBatch blocks until every result in a batch has a response. Results that
// failed to dispatch are skipped.
func WaitBatch(ctx context.Context, results []BatchResult) error {
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		_, err := r.Result.Wait(ctx)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", r.SecurityID, err)
		}
	}
	return nil
}
