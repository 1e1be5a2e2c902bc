package testutil

import (
	"databox/internal/databox"
	"databox/internal/encryption"
)

// NewTestEncryptor creates a test encryptor that accepts any passphrase.
func NewTestEncryptor() databox.Encryptor {
	return encryption.NewTestEncryptor()
}

// NewTestDecryptionContext returns the context matching NewTestEncryptor.
func NewTestDecryptionContext() databox.DecryptionContext {
	return &encryption.TestDecryptionContext{}
}
