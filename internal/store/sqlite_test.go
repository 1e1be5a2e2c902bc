package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "databox.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestSQLiteStore_ValidateSetupBeforeMigrate(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "databox.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	err = s.ValidateSetup(context.Background())
	if err == nil {
		t.Fatal("ValidateSetup() expected error before Migrate")
	}
	if !strings.Contains(err.Error(), "databox store migrate") {
		t.Errorf("ValidateSetup() error = %v, want migrate hint", err)
	}

	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := s.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() after Migrate error = %v", err)
	}
}

func TestSQLiteStore_MigrateTwice(t *testing.T) {
	s := newTestSQLiteStore(t)
	if err := s.Migrate(); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "databox.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := s.Put(ctx, "user-1", strings.NewReader("record"), 6, 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	var buf strings.Builder
	version, err := reopened.Get(ctx, "user-1", &buf)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if version != 1 || buf.String() != "record" {
		t.Errorf("Get() = (%d, %q), want (1, %q)", version, buf.String(), "record")
	}
}
