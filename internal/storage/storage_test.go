package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiteanalytics/finx-go/pkg/config"
	"github.com/fiteanalytics/finx-go/pkg/types"
)

func testRecord(t *testing.T, resp *types.Response) *Record {
	t.Helper()
	return NewRecord(uuid.New(), "9127962F5", types.MethodSecurityReference, resp)
}

func TestNewRecord(t *testing.T) {
	runID := uuid.New()

	tests := []struct {
		name      string
		resp      *types.Response
		wantKey   string
		wantError string
		wantBody  string
	}{
		{
			name:     "success",
			resp:     types.NewResponse("api_method:coverage_check_security_id:X", []byte(`{"covered":true}`)),
			wantKey:  "api_method:coverage_check_security_id:X",
			wantBody: `{"covered":true}`,
		},
		{
			name:      "error-payload",
			resp:      types.NewErrorResponse("k", "not covered"),
			wantKey:   "k",
			wantError: "not covered",
			wantBody:  `{"error":"not covered"}`,
		},
		{
			name:      "nil-response",
			wantError: "no response",
			wantBody:  "null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(runID, "X", types.MethodCoverageCheck, tt.resp)

			if rec.RunID != runID {
				t.Errorf("RunID = %s, want %s", rec.RunID, runID)
			}
			if rec.CacheKey != tt.wantKey {
				t.Errorf("CacheKey = %q, want %q", rec.CacheKey, tt.wantKey)
			}
			if rec.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", rec.Error, tt.wantError)
			}
			if string(rec.Response) != tt.wantBody {
				t.Errorf("Response = %s, want %s", rec.Response, tt.wantBody)
			}
			if rec.StoredAt.IsZero() {
				t.Error("StoredAt is zero")
			}
		})
	}
}

func TestConsoleStorage_StoreResult(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var buf bytes.Buffer
	storage := NewConsoleStorageWriter(&buf, logger)

	err := storage.StoreResult(context.Background(), testRecord(t, types.NewResponse("k", []byte(`{"cusip":"9127962F5","coupon":0}`))))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	output := buf.String()
	for _, want := range []string{"9127962F5", "security_reference", `"coupon": 0`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Error:") {
		t.Error("success record printed an error line")
	}
}

func TestConsoleStorage_StoreResult_Error(t *testing.T) {
	logger := zap.NewNop()

	var buf bytes.Buffer
	storage := NewConsoleStorageWriter(&buf, logger)

	err := storage.StoreResult(context.Background(), testRecord(t, types.NewErrorResponse("k", "security not found")))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "Error:    security not found") {
		t.Errorf("expected error line, got:\n%s", buf.String())
	}

	if err := storage.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestCSVStorage_StoreResult(t *testing.T) {
	logger := zap.NewNop()
	path := filepath.Join(t.TempDir(), "results.csv")

	storage, err := NewCSVStorage(path, logger)
	if err != nil {
		t.Fatalf("NewCSVStorage() error = %v", err)
	}

	ctx := context.Background()
	if err := storage.StoreResult(ctx, testRecord(t, types.NewResponse("k1", []byte(`{"a":"b,c"}`)))); err != nil {
		t.Fatalf("StoreResult() error = %v", err)
	}
	if err := storage.StoreResult(ctx, testRecord(t, types.NewErrorResponse("k2", "bad id"))); err != nil {
		t.Fatalf("StoreResult() error = %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening appends without a second header.
	storage, err = NewCSVStorage(path, logger)
	if err != nil {
		t.Fatalf("NewCSVStorage() reopen error = %v", err)
	}
	if err := storage.StoreResult(ctx, testRecord(t, types.NewResponse("k3", []byte(`1`)))); err != nil {
		t.Fatalf("StoreResult() error = %v", err)
	}
	storage.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4 (header + 3)", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][3] != "k1" || rows[1][5] != `{"a":"b,c"}` || rows[1][4] != "" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][4] != "bad id" {
		t.Errorf("row 2 error = %q, want bad id", rows[2][4])
	}
	if rows[3][3] != "k3" {
		t.Errorf("row 3 = %v", rows[3])
	}
}

func TestCSVStorage_BadPath(t *testing.T) {
	_, err := NewCSVStorage(filepath.Join(t.TempDir(), "missing", "results.csv"), zap.NewNop())
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestPostgresStorage_StoreResult(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{
		db:     db,
		logger: logger,
	}

	rec := testRecord(t, types.NewResponse("api_method:security_reference_security_id:9127962F5", []byte(`{"cusip":"9127962F5"}`)))

	mock.ExpectExec("INSERT INTO finx_results").
		WithArgs(
			rec.RunID.String(),
			"9127962F5",
			"security_reference",
			"api_method:security_reference_security_id:9127962F5",
			nil,
			`{"cusip":"9127962F5"}`,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = storage.StoreResult(context.Background(), rec)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_StoreResult_ErrorPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}
	rec := testRecord(t, types.NewErrorResponse("k", "security not found"))

	mock.ExpectExec("INSERT INTO finx_results").
		WithArgs(
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"k",
			"security not found",
			`{"error":"security not found"}`,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := storage.StoreResult(context.Background(), rec); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_StoreResult_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("INSERT INTO finx_results").
		WillReturnError(sqlmock.ErrCancelled)

	err = storage.StoreResult(context.Background(), testRecord(t, types.NewResponse("k", []byte(`{}`))))
	if err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS finx_results").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := storage.EnsureSchema(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectClose()

	if err := storage.Close(); err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNew_SinkSelection(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		cfg     *config.Config
		want    string
		wantErr bool
	}{
		{
			name: "console",
			cfg:  &config.Config{SinkMode: "console"},
			want: "*storage.ConsoleStorage",
		},
		{
			name: "default-console",
			cfg:  &config.Config{},
			want: "*storage.ConsoleStorage",
		},
		{
			name: "csv",
			cfg:  &config.Config{SinkMode: "csv", CSVPath: filepath.Join(t.TempDir(), "out.csv")},
			want: "*storage.CSVStorage",
		},
		{
			name:    "unknown",
			cfg:     &config.Config{SinkMode: "kafka"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer s.Close()

			got := typeName(s)
			if got != tt.want {
				t.Errorf("New() type = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(s Storage) string {
	switch s.(type) {
	case *ConsoleStorage:
		return "*storage.ConsoleStorage"
	case *CSVStorage:
		return "*storage.CSVStorage"
	case *PostgresStorage:
		return "*storage.PostgresStorage"
	}
	return "unknown"
}

func TestNewPostgresStorage_ConnectionSuccess(t *testing.T) {
	t.Skip("Requires actual PostgreSQL database")

	storage, err := NewPostgresStorage(&PostgresConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "finx",
		Password: "finx",
		Database: "finx",
		SSLMode:  "disable",
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	storage.Close()
}
