package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fiteanalytics/finx-go/internal/storage"
	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/finx"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

// fakeAPI answers like the FinX REST endpoint: securities starting with "BAD"
// produce an error payload.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		id, _ := req[types.FieldSecurityID].(string)
		w.Header().Set("Content-Type", "application/json")
		if len(id) >= 3 && id[:3] == "BAD" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "security not covered"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"security_id": id, "api_method": req[types.FieldAPIMethod]})
	}))
	t.Cleanup(ts.Close)

	return ts
}

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		LogLevel:         "info",
		HTTPPort:         "0",
		APIKey:           "test-key",
		APIEndpoint:      endpoint,
		Transport:        "sync",
		HTTPTimeout:      5 * time.Second,
		CacheSize:        100,
		CacheBackend:     "lru",
		BatchConcurrency: 4,
		WSAuthTimeout:    time.Second,
	}
}

type memorySink struct {
	mu      sync.Mutex
	records []*storage.Record
	err     error
	closed  bool
}

func (m *memorySink) StoreResult(_ context.Context, rec *storage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	return m.err
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestNew_MissingAPIKey(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.APIKey = ""

	_, err := New(cfg, zap.NewNop(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingAPIKey)
}

func TestApp_RunAndStop(t *testing.T) {
	ts := fakeAPI(t)
	logger := zaptest.NewLogger(t)

	a, err := New(testConfig(ts.URL), logger, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- a.Run()
	}()

	require.Eventually(t, func() bool {
		ok, _ := a.healthChecker.IsReady()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// The gateway answers through the shared client.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api",
		jsonBody(t, map[string]any{"api_method": "coverage_check", "security_id": "9127962F5"}))
	a.httpServer.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "9127962F5")

	a.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	ok, _ := a.healthChecker.IsReady()
	assert.False(t, ok)
	assert.False(t, a.client.Ready(), "client should be closed")
}

func TestRunBatch(t *testing.T) {
	ts := fakeAPI(t)
	logger := zaptest.NewLogger(t)

	client, err := finx.New(testConfig(ts.URL), logger)
	require.NoError(t, err)
	defer client.Close()

	sink := &memorySink{}
	requests := map[string]types.Params{
		"9127962F5": nil,
		"BAD00001":  nil,
		"38141GXZ2": {types.FieldAsOfDate: "2024-01-31"},
	}

	summary, err := RunBatch(context.Background(), client, sink, types.MethodSecurityReference, requests, nil, logger)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, sink.records, 3)
	ids := []string{sink.records[0].SecurityID, sink.records[1].SecurityID, sink.records[2].SecurityID}
	assert.Equal(t, []string{"38141GXZ2", "9127962F5", "BAD00001"}, ids)

	for _, rec := range sink.records {
		assert.Equal(t, summary.RunID, rec.RunID)
		assert.Equal(t, types.MethodSecurityReference, rec.Method)
		assert.NotEmpty(t, rec.CacheKey)
	}
	assert.Equal(t, "security not covered", sink.records[2].Error)
	assert.Contains(t, sink.records[0].CacheKey, "as_of_date:2024-01-31")
}

func TestRunBatch_Rejected(t *testing.T) {
	ts := fakeAPI(t)
	logger := zap.NewNop()

	client, err := finx.New(testConfig(ts.URL), logger)
	require.NoError(t, err)
	defer client.Close()

	sink := &memorySink{}

	_, err = RunBatch(context.Background(), client, sink, types.MethodListAPIFunctions, map[string]types.Params{"X": nil}, nil, logger)
	assert.ErrorIs(t, err, types.ErrBatchListMethods)
	assert.Empty(t, sink.records)
}

func TestRunBatch_StoreError(t *testing.T) {
	ts := fakeAPI(t)
	logger := zap.NewNop()

	client, err := finx.New(testConfig(ts.URL), logger)
	require.NoError(t, err)
	defer client.Close()

	sink := &memorySink{err: errors.New("disk full")}

	summary, err := RunBatch(context.Background(), client, sink, types.MethodCoverageCheck,
		map[string]types.Params{"A": nil, "B": nil}, nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 2, summary.Total)
	assert.Len(t, sink.records, 2)
}
