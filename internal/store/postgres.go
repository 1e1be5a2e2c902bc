package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"databox/internal/databox"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS databox_tenant_records (
    tenant_id  TEXT PRIMARY KEY,
    version    BIGINT NOT NULL CHECK (version > 0),
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps tenant records in a PostgreSQL table through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the records table if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get writes the tenant record to w.
func (s *PostgresStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	var (
		version int64
		data    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT version, data FROM databox_tenant_records WHERE tenant_id = $1`, string(tenant),
	).Scan(&version, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tenant record: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return 0, fmt.Errorf("writing record: %w", err)
	}
	return version, nil
}

// Version returns the stored version, 0 if the tenant has no record.
func (s *PostgresStore) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT version FROM databox_tenant_records WHERE tenant_id = $1`, string(tenant),
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tenant version: %w", err)
	}
	return version, nil
}

// Put replaces the tenant record if baseVersion is current.
func (s *PostgresStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	data, err := readExactly(r, size)
	if err != nil {
		return 0, err
	}

	next := baseVersion + 1
	var sql string
	var args []any
	if baseVersion == 0 {
		sql = `INSERT INTO databox_tenant_records (tenant_id, version, data) VALUES ($1, $2, $3)
		       ON CONFLICT (tenant_id) DO NOTHING`
		args = []any{string(tenant), next, data}
	} else {
		sql = `UPDATE databox_tenant_records SET version = $2, data = $3, updated_at = now()
		       WHERE tenant_id = $1 AND version = $4`
		args = []any{string(tenant), next, data, baseVersion}
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("writing tenant record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, _ := s.Version(ctx, tenant)
		return 0, staleError(tenant, baseVersion, current)
	}
	return next, nil
}

// ValidateSetup pings the server.
func (s *PostgresStore) ValidateSetup(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ databox.Store = (*PostgresStore)(nil)
