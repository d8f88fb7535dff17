package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/internal/storage"
	"github.com/fiteanalytics/finx-go/pkg/finx"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

// BatchSummary describes a completed batch run.
type BatchSummary struct {
	RunID     uuid.UUID
	Total     int
	Succeeded int
	Failed    int
}

// RunBatch issues method for every security in requests, waits for all
// responses and stores one record per security in sink. API errors are stored
// and counted, not returned.
func RunBatch(
	ctx context.Context,
	client *finx.Client,
	sink storage.Storage,
	method types.Method,
	requests map[string]types.Params,
	shared types.Params,
	logger *zap.Logger,
) (*BatchSummary, error) {
	runID := uuid.New()

	logger.Info("batch-run-starting",
		zap.String("run-id", runID.String()),
		zap.String("api-method", string(method)),
		zap.Int("count", len(requests)))

	results, err := client.Batch(ctx, method, requests, shared)
	if err != nil && results == nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	summary := &BatchSummary{RunID: runID, Total: len(results)}

	var storeErrs []error
	for _, r := range results {
		var resp *types.Response
		if r.Result != nil {
			resp = r.Result.Response()
		}
		if r.Err != nil {
			resp = types.NewErrorResponse("", r.Err.Error())
		}

		rec := storage.NewRecord(runID, r.SecurityID, method, resp)
		if rec.Error != "" {
			summary.Failed++
		} else {
			summary.Succeeded++
		}

		if serr := sink.StoreResult(ctx, rec); serr != nil {
			logger.Error("failed-to-store-result",
				zap.String("security-id", r.SecurityID),
				zap.Error(serr))
			storeErrs = append(storeErrs, serr)
		}
	}

	logger.Info("batch-run-complete",
		zap.String("run-id", runID.String()),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))

	if err != nil {
		return summary, fmt.Errorf("wait for batch: %w", err)
	}
	if len(storeErrs) > 0 {
		return summary, fmt.Errorf("store results: %w", errors.Join(storeErrs...))
	}

	return summary, nil
}
