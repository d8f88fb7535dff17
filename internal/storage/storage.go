package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

// Record is one stored result of a batch run.
type Record struct {
	RunID      uuid.UUID
	SecurityID string
	Method     types.Method
	CacheKey   string
	Response   json.RawMessage
	Error      string
	StoredAt   time.Time
}

// NewRecord builds a record from a dispatcher response. A nil response is
// recorded as an error so every security in a run produces a row.
func NewRecord(runID uuid.UUID, securityID string, method types.Method, resp *types.Response) *Record {
	rec := &Record{
		RunID:      runID,
		SecurityID: securityID,
		Method:     method,
		StoredAt:   time.Now().UTC(),
	}

	if resp == nil {
		rec.Response = json.RawMessage("null")
		rec.Error = "no response"
		return rec
	}

	rec.CacheKey = resp.Key
	rec.Response = resp.Data
	rec.Error = resp.ErrorMsg
	return rec
}

// Storage is the interface for persisting batch results.
type Storage interface {
	// StoreResult stores a single result.
	StoreResult(ctx context.Context, rec *Record) error

	// Close flushes and releases the sink.
	Close() error
}

// New creates the sink selected by cfg.SinkMode.
func New(cfg *config.Config, logger *zap.Logger) (Storage, error) {
	switch cfg.SinkMode {
	case "", "console":
		return NewConsoleStorage(logger), nil
	case "csv":
		return NewCSVStorage(cfg.CSVPath, logger)
	case "postgres":
		return NewPostgresStorage(&PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.SinkMode)
	}
}
