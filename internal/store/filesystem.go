package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"databox/internal/databox"
)

// FileSystemStore keeps one file per tenant under a root directory:
//
//	<root>/
//	  tenants/
//	    <tenant>.rec     (first line: version, then the record bytes)
//	    <tenant>.lock    (flock target, holds the last writer's pid)
//
// Records are replaced atomically (temp file + rename), so a reader sees
// either the old or the new version, never a mix.
type FileSystemStore struct {
	root      string
	tenantDir string
	mu        sync.Mutex
}

// NewFileSystemStore creates a filesystem store rooted at the given path.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	tenantDir := filepath.Join(root, "tenants")
	if err := os.MkdirAll(tenantDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create tenant directory: %w", err)
	}
	return &FileSystemStore{root: root, tenantDir: tenantDir}, nil
}

func (s *FileSystemStore) path(tenant databox.TenantID, ext string) string {
	return filepath.Join(s.tenantDir, url.PathEscape(string(tenant))+ext)
}

// Get writes the tenant record to w.
func (s *FileSystemStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(s.path(tenant, ".rec"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open record: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	version, err := readVersionLine(br)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(w, br); err != nil {
		return 0, fmt.Errorf("failed to read record: %w", err)
	}
	return version, nil
}

// Version returns the stored version, 0 if the tenant has no record.
func (s *FileSystemStore) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	f, err := os.Open(s.path(tenant, ".rec"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open record: %w", err)
	}
	defer f.Close()
	return readVersionLine(bufio.NewReader(f))
}

// Put replaces the tenant record if baseVersion is current.
func (s *FileSystemStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(tenant)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	current, err := s.Version(ctx, tenant)
	if err != nil {
		return 0, err
	}
	if current != baseVersion {
		return 0, staleError(tenant, baseVersion, current)
	}

	next := baseVersion + 1
	if err := s.writeFile(s.path(tenant, ".rec"), next, r, size); err != nil {
		return 0, err
	}
	return next, nil
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	for _, dir := range []string{s.root, s.tenantDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("store directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", dir)
		}
	}
	return nil
}

func (s *FileSystemStore) Close() error { return nil }

// writeFile writes the version line and data from r to destPath using an
// atomic write (temp file + rename).
func (s *FileSystemStore) writeFile(destPath string, version int64, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := fmt.Fprintf(tmpFile, "%d\n", version); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write version: %w", err)
	}
	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func readVersionLine(br *bufio.Reader) (int64, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("reading version line: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

var _ databox.Store = (*FileSystemStore)(nil)
