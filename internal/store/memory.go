package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"databox/internal/databox"
)

// MemoryStore keeps tenant records in memory. It is safe for concurrent use
// and is mostly useful in tests and for throwaway sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[databox.TenantID][]byte
	versions map[databox.TenantID]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[databox.TenantID][]byte),
		versions: make(map[databox.TenantID]int64),
	}
}

// Get writes the tenant record to w.
func (m *MemoryStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	version := m.versions[tenant]
	if version == 0 {
		return 0, nil
	}
	if _, err := io.Copy(w, bytes.NewReader(m.records[tenant])); err != nil {
		return 0, fmt.Errorf("writing record: %w", err)
	}
	return version, nil
}

// Put replaces the tenant record if baseVersion is current.
func (m *MemoryStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	data, err := readExactly(r, size)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.versions[tenant]; current != baseVersion {
		return 0, staleError(tenant, baseVersion, current)
	}
	m.records[tenant] = data
	m.versions[tenant] = baseVersion + 1
	return baseVersion + 1, nil
}

// Version returns the stored version, 0 if the tenant has no record.
func (m *MemoryStore) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[tenant], nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ databox.Store = (*MemoryStore)(nil)
