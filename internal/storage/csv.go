package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

var csvHeader = []string{"run_id", "security_id", "api_method", "cache_key", "error", "response", "stored_at"}

// CSVStorage appends one row per result to a CSV file.
type CSVStorage struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	logger *zap.Logger
}

// NewCSVStorage opens path for appending, writing the header when the file is new.
func NewCSVStorage(path string, logger *zap.Logger) (*CSVStorage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	logger.Info("csv-storage-initialized", zap.String("path", path))

	return &CSVStorage{
		file:   f,
		writer: w,
		logger: logger,
	}, nil
}

// StoreResult writes a row and flushes it.
func (c *CSVStorage) StoreResult(ctx context.Context, rec *Record) error {
	row := []string{
		rec.RunID.String(),
		rec.SecurityID,
		string(rec.Method),
		rec.CacheKey,
		rec.Error,
		string(rec.Response),
		rec.StoredAt.Format(time.RFC3339),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	c.logger.Debug("result-stored",
		zap.String("security-id", rec.SecurityID),
		zap.String("sink", "csv"))

	return nil
}

// Close flushes and closes the file.
func (c *CSVStorage) Close() error {
	c.logger.Info("closing-csv-storage")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return c.file.Close()
}
