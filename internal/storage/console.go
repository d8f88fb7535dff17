package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	out    io.Writer
	mu     sync.Mutex
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return NewConsoleStorageWriter(os.Stdout, logger)
}

// NewConsoleStorageWriter creates a console storage writing to out.
func NewConsoleStorageWriter(out io.Writer, logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    out,
		logger: logger,
	}
}

// StoreResult pretty-prints a result.
func (c *ConsoleStorage) StoreResult(ctx context.Context, rec *Record) error {
	var body bytes.Buffer
	err := json.Indent(&body, rec.Response, "  ", "  ")
	if err != nil {
		body.Reset()
		body.Write(rec.Response)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, "────────────────────────────────────────")
	fmt.Fprintf(c.out, "Security: %s\n", rec.SecurityID)
	fmt.Fprintf(c.out, "Method:   %s\n", rec.Method)
	if rec.Error != "" {
		fmt.Fprintf(c.out, "Error:    %s\n", rec.Error)
	}
	fmt.Fprintf(c.out, "  %s\n", body.String())

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
