package encryption

import (
	"fmt"
	"io"

	"databox/internal/databox"
)

// PlainEncryptor stores records as-is. It is the default when encryption is
// not configured.
type PlainEncryptor struct{}

var _ databox.Encryptor = PlainEncryptor{}

func (PlainEncryptor) Setup(string) error { return nil }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (PlainEncryptor) Unlock(string) (databox.DecryptionContext, error) {
	return PlainDecryptionContext{}, nil
}

func (PlainEncryptor) IsConfigured() bool { return true }

// PlainDecryptionContext copies data through unchanged.
type PlainDecryptionContext struct{}

func (PlainDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
