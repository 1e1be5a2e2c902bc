package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"databox/internal/databox"
)

// ErrInjected is returned by the failing store wrappers.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a Store and fails calls on demand. The zero value of
// each knob means "behave like the wrapped store".
type FaultyStore struct {
	databox.Store

	mu        sync.Mutex
	failPuts int  // remaining Put calls to fail
	failGets int  // remaining Get calls to fail
	failAll  bool // fail every Put
	block    bool // block Get and Put until the context is done
	puts     int
	gets     int
}

var _ databox.Store = (*FaultyStore)(nil)

func NewFaultyStore(inner databox.Store) *FaultyStore {
	return &FaultyStore{Store: inner}
}

// FailNextPuts makes the next n Put calls fail with ErrInjected.
func (s *FaultyStore) FailNextPuts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPuts = n
}

// FailNextGets makes the next n Get calls fail with ErrInjected.
func (s *FaultyStore) FailNextGets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGets = n
}

// FailAllPuts makes every Put fail until reset with FailAllPuts(false).
func (s *FaultyStore) FailAllPuts(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// Block makes Get and Put wait for their context instead of reaching the store.
func (s *FaultyStore) Block(block bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
}

// Puts returns how many Put calls were made, failed ones included.
func (s *FaultyStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Gets returns how many Get calls were made, failed ones included.
func (s *FaultyStore) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *FaultyStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	s.mu.Lock()
	s.gets++
	block := s.block
	fail := s.failGets > 0
	if fail {
		s.failGets--
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if fail {
		return 0, ErrInjected
	}
	return s.Store.Get(ctx, tenant, w)
}

func (s *FaultyStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	s.mu.Lock()
	s.puts++
	block := s.block
	fail := s.failAll || s.failPuts > 0
	if s.failPuts > 0 {
		s.failPuts--
	}
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if fail {
		return 0, ErrInjected
	}
	return s.Store.Put(ctx, tenant, r, size, baseVersion)
}
