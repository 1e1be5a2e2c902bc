package app

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"databox/internal/config"
)

// PassphraseEnv overrides every other passphrase source.
const PassphraseEnv = "DATABOX_PASSPHRASE"

const keyringService = "databox"

// PassphraseSource asks the user for the encryption passphrase.
// When confirm is set the passphrase is requested twice and must match.
type PassphraseSource interface {
	Passphrase(prompt string, confirm bool) (string, error)
}

// TerminalPrompt reads passphrases from the controlling terminal without echo.
type TerminalPrompt struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompt prompts on stderr and reads from stdin.
func NewTerminalPrompt() TerminalPrompt {
	return TerminalPrompt{In: os.Stdin, Out: os.Stderr}
}

func (p TerminalPrompt) Passphrase(prompt string, confirm bool) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a passphrase; set %s", PassphraseEnv)
	}
	first, err := p.read(fd, prompt+": ")
	if err != nil {
		return "", err
	}
	if !confirm {
		return first, nil
	}
	second, err := p.read(fd, "Confirm "+prompt+": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

func (p TerminalPrompt) read(fd int, prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("passphrase is required")
	}
	return string(b), nil
}

// keyringUser keys the remembered passphrase by private key so two configs
// on one machine do not share an entry.
func keyringUser(cfg config.EncryptionConfig) string {
	return cfg.PrivateKeyPath
}

// resolvePassphrase looks for the passphrase in the environment, then in the
// system keyring (when enabled), then asks src. prompted reports whether the
// value came from src.
func resolvePassphrase(cfg config.EncryptionConfig, src PassphraseSource) (passphrase string, prompted bool, err error) {
	if v := os.Getenv(PassphraseEnv); v != "" {
		return v, false, nil
	}
	if cfg.UseKeyring {
		v, err := keyring.Get(keyringService, keyringUser(cfg))
		if err == nil && v != "" {
			return v, false, nil
		}
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return "", false, fmt.Errorf("reading keyring: %w", err)
		}
	}
	if src == nil {
		return "", false, fmt.Errorf("passphrase required; set %s", PassphraseEnv)
	}
	v, err := src.Passphrase("Passphrase", false)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// rememberPassphrase stores the passphrase in the system keyring when the
// config asks for it.
func rememberPassphrase(cfg config.EncryptionConfig, passphrase string) error {
	if !cfg.UseKeyring {
		return nil
	}
	if err := keyring.Set(keyringService, keyringUser(cfg), passphrase); err != nil {
		return fmt.Errorf("saving passphrase to keyring: %w", err)
	}
	return nil
}

// ForgetPassphrase drops any remembered passphrase from the system keyring.
func ForgetPassphrase(cfg config.EncryptionConfig) error {
	err := keyring.Delete(keyringService, keyringUser(cfg))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("removing passphrase from keyring: %w", err)
	}
	return nil
}
