package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const createResultsTable = `
	CREATE TABLE IF NOT EXISTS finx_results (
		id          BIGSERIAL PRIMARY KEY,
		run_id      UUID        NOT NULL,
		security_id TEXT        NOT NULL,
		api_method  TEXT        NOT NULL,
		cache_key   TEXT        NOT NULL,
		error       TEXT,
		response    JSONB       NOT NULL,
		stored_at   TIMESTAMPTZ NOT NULL
	)
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage and ensures its table exists.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PostgresStorage{db: db, logger: cfg.Logger}

	err = p.EnsureSchema(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return p, nil
}

// EnsureSchema creates the results table if missing.
func (p *PostgresStorage) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, createResultsTable)
	if err != nil {
		return fmt.Errorf("create results table: %w", err)
	}
	return nil
}

// StoreResult inserts a result row. Error payloads are stored too.
func (p *PostgresStorage) StoreResult(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO finx_results (
			run_id, security_id, api_method, cache_key, error, response, stored_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		rec.RunID.String(),
		rec.SecurityID,
		string(rec.Method),
		rec.CacheKey,
		errText,
		string(rec.Response),
		rec.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	p.logger.Debug("result-stored",
		zap.String("run-id", rec.RunID.String()),
		zap.String("security-id", rec.SecurityID),
		zap.String("sink", "postgres"))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
