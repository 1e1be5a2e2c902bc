package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_RecordLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	data := `{"projects":[]}`
	if _, err := s.Put(context.Background(), "user-1", strings.NewReader(data), int64(len(data)), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "tenants", "user-1.rec"))
	if err != nil {
		t.Fatalf("reading record file: %v", err)
	}
	if want := "1\n" + data; string(got) != want {
		t.Errorf("record file = %q, want %q", got, want)
	}
	if _, err := s.Put(context.Background(), "user-1", strings.NewReader(data), int64(len(data)), 1); err != nil {
		t.Errorf("second Put() error = %v, want the lock released", err)
	}

	matches, _ := filepath.Glob(filepath.Join(root, "tenants", ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileSystemStore_FailedWriteKeepsRecord(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := s.Put(ctx, "user-1", strings.NewReader("good"), 4, 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.Put(ctx, "user-1", strings.NewReader("bad"), 10, 1); err == nil {
		t.Fatal("Put() expected size mismatch error")
	}

	var buf strings.Builder
	version, err := s.Get(ctx, "user-1", &buf)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if version != 1 || buf.String() != "good" {
		t.Errorf("Get() = (%d, %q), want (1, %q)", version, buf.String(), "good")
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := os.RemoveAll(filepath.Join(root, "tenants")); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error for missing tenant directory")
	}
}
