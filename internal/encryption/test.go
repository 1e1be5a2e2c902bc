package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"databox/internal/databox"
)

// testHeader marks records sealed by TestEncryptor.
var testHeader = []byte("DBXTEST\x00")

var errNotTestSealed = errors.New("data was not sealed by the test encryptor")

// TestEncryptor frames records with a fixed header instead of encrypting
// them, so tests can tell sealed bytes from plaintext without key material.
// Once Setup has run, only its passphrase unlocks.
type TestEncryptor struct {
	passphrase string
	configured bool
}

var _ databox.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns a configured TestEncryptor with no passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase, e.configured = passphrase, true
	return nil
}

func (e *TestEncryptor) IsConfigured() bool { return e.configured }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(testHeader), r)); err != nil {
		return fmt.Errorf("sealing record: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (databox.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, errors.New("incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

// TestDecryptionContext opens records framed by TestEncryptor.
type TestDecryptionContext struct{}

var _ databox.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(testHeader))
	if err != nil || !bytes.Equal(head, testHeader) {
		return errNotTestSealed
	}
	if _, err := br.Discard(len(testHeader)); err != nil {
		return err
	}
	if _, err := br.WriteTo(w); err != nil {
		return fmt.Errorf("opening record: %w", err)
	}
	return nil
}
