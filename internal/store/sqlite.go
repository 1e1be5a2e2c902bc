package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"databox/internal/databox"
	"databox/internal/store/migrations"
)

// SQLiteStore keeps tenant records in a single SQLite table. The schema is
// managed by the migrations package; Migrate must have run before use.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the database at path (or ":memory:").
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.Up(s.db)
}

// ValidateSetup checks connectivity and the schema version.
func (s *SQLiteStore) ValidateSetup(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	if err := migrations.Check(s.db); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}
	return nil
}

// Get writes the tenant record to w.
func (s *SQLiteStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	var (
		version int64
		data    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, data FROM tenant_records WHERE tenant_id = ?`, string(tenant),
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM tenant_records WHERE tenant_id = ?`, string(tenant),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tenant version: %w", err)
	}
	return version, nil
}

// Put replaces the tenant record if baseVersion is current. The version
// check is part of the write statement, so concurrent writers cannot both win.
func (s *SQLiteStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	data, err := readExactly(r, size)
	if err != nil {
		return 0, err
	}

	next := baseVersion + 1
	now := time.Now().UTC()
	var res sql.Result
	if baseVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO tenant_records (tenant_id, version, data, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (tenant_id) DO NOTHING`,
			string(tenant), next, data, now)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE tenant_records SET version = ?, data = ?, updated_at = ? WHERE tenant_id = ? AND version = ?`,
			next, data, now, string(tenant), baseVersion)
	}
	if err != nil {
		return 0, fmt.Errorf("writing tenant record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking write result: %w", err)
	}
	if n == 0 {
		current, _ := s.Version(ctx, tenant)
		return 0, staleError(tenant, baseVersion, current)
	}
	return next, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ databox.Store = (*SQLiteStore)(nil)
