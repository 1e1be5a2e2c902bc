package encryption

import (
	"fmt"
	"maps"
	"slices"

	"databox/internal/config"
	"databox/internal/databox"
)

var constructors = map[string]func(config.EncryptionConfig) databox.Encryptor{
	"none": func(config.EncryptionConfig) databox.Encryptor { return PlainEncryptor{} },
	"age":  func(c config.EncryptionConfig) databox.Encryptor { return NewAgeEncryptor(c) },
	"test": func(config.EncryptionConfig) databox.Encryptor { return NewTestEncryptor() },
}

// Types lists the accepted encryption types.
func Types() []string {
	return slices.Sorted(maps.Keys(constructors))
}

// NewEncryptorFromConfig builds the encryptor named by cfg.Type. An empty
// type means none.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (databox.Encryptor, error) {
	typ := cfg.Type
	if typ == "" {
		typ = "none"
	}
	newEncryptor, ok := constructors[typ]
	if !ok {
		return nil, fmt.Errorf("unknown encryption type %q (want one of %v)", cfg.Type, Types())
	}
	return newEncryptor(cfg), nil
}

// NeedsPassphrase reports whether unlocking cfg's key asks the user for a
// passphrase.
func NeedsPassphrase(cfg config.EncryptionConfig) bool {
	return cfg.Type == "age"
}
