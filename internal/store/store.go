// Package store implements databox.Store on top of the supported backends.
package store

import (
	"fmt"
	"io"

	"databox/internal/databox"
)

// readExactly reads all of r and checks it produced size bytes.
func readExactly(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

func staleError(tenant databox.TenantID, base, current int64) error {
	return fmt.Errorf("tenant %s at version %d, write based on %d: %w", tenant, current, base, databox.ErrStaleVersion)
}
