package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"databox/internal/databox"
	"databox/internal/store"
)

// TestTenant is the tenant used by NewTestWorkspace.
const TestTenant databox.TenantID = "user-1"

// WorkspaceEnv bundles a workspace with the fakes behind it.
type WorkspaceEnv struct {
	Workspace *databox.Workspace
	Tenant    databox.TenantID
	Store     *FaultyStore
	Backing   *store.MemoryStore
	Clock     *StubClock
	IDs       *StubIDGenerator
	Tokens    *StubTokenGenerator
	Options   databox.PersistenceOptions

	// Generator replaces Tokens when set.
	Generator databox.TokenGenerator
	// Random feeds project JWT secrets when set.
	Random io.Reader
}

// FastPersistence keeps retries short so failure tests finish quickly.
func FastPersistence() databox.PersistenceOptions {
	return databox.PersistenceOptions{
		Timeout:       200 * time.Millisecond,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	}
}

// NewTestWorkspace returns an opened workspace for TestTenant backed by an
// in-memory store, the test encryptor and deterministic clock, ids and tokens.
func NewTestWorkspace(t *testing.T) *WorkspaceEnv {
	t.Helper()
	return NewTestWorkspaceWith(t, nil)
}

// NewTestWorkspaceOn opens a workspace for tenant over an existing store, so
// several workspaces can share one backend.
func NewTestWorkspaceOn(t *testing.T, backing *store.MemoryStore, tenant databox.TenantID) *WorkspaceEnv {
	t.Helper()
	return NewTestWorkspaceWith(t, func(env *WorkspaceEnv) {
		env.Backing = backing
		env.Tenant = tenant
	})
}

// NewTestWorkspaceWith lets configure replace any of the fakes before the
// workspace is built and opened.
func NewTestWorkspaceWith(t *testing.T, configure func(env *WorkspaceEnv)) *WorkspaceEnv {
	t.Helper()
	env := &WorkspaceEnv{
		Tenant:  TestTenant,
		Backing: store.NewMemoryStore(),
		Clock:   FixedClock(),
		IDs:     NewStubIDGenerator(),
		Tokens:  NewStubTokenGenerator(),
		Options: FastPersistence(),
	}
	if configure != nil {
		configure(env)
	}
	env.Store = NewFaultyStore(env.Backing)

	persistence := databox.NewPersistenceAdapter(
		env.Store,
		NewTestEncryptor(),
		NewTestDecryptionContext(),
		env.Clock,
		databox.NewNopLogger(),
		env.Options,
	)
	var tokens databox.TokenGenerator = env.Tokens
	if env.Generator != nil {
		tokens = env.Generator
	}
	env.Workspace = databox.NewWorkspace(env.Tenant, persistence, tokens, databox.DefaultEndpoints(),
		databox.NewNopLogger(), env.Clock, env.IDs, databox.WithRandom(env.Random))
	if err := env.Workspace.Open(context.Background()); err != nil {
		t.Fatalf("opening test workspace: %v", err)
	}
	return env
}
