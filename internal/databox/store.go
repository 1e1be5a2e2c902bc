package databox

import (
	"context"
	"io"
)

// Store holds one opaque record per tenant together with a version stamp.
//
// Versions start at 0 (no record) and every successful Put produces
// baseVersion+1. A Put whose baseVersion does not match the stored version
// fails with ErrStaleVersion and leaves the record untouched.
type Store interface {
	// Get writes the tenant record to w and returns its version.
	// An absent record writes nothing and returns version 0.
	Get(ctx context.Context, tenant TenantID, w io.Writer) (int64, error)

	// Put replaces the tenant record with size bytes read from r.
	Put(ctx context.Context, tenant TenantID, r io.Reader, size int64, baseVersion int64) (int64, error)

	// Version returns the stored version without reading the record.
	Version(ctx context.Context, tenant TenantID) (int64, error)

	// ValidateSetup checks that the backend is reachable and writable.
	ValidateSetup(ctx context.Context) error

	Close() error
}
