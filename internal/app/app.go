package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"databox/internal/config"
	"databox/internal/databox"
	"databox/internal/encryption"
	"databox/internal/identity"
	"databox/internal/store"
)

// Options tune how a DataboxApp talks to the user.
type Options struct {
	// Verbose mirrors log lines to stderr.
	Verbose bool
	// Passphrase is asked when the encryption key is locked and neither the
	// environment nor the keyring has the passphrase. Nil disables prompting.
	Passphrase PassphraseSource
}

// DataboxApp is the application layer between the CLI and the workspace.
// It constructs all dependencies from config, opens the tenant workspace on
// first use and releases everything on Close.
type DataboxApp struct {
	cfg       *config.Config
	opts      Options
	store     databox.Store
	encryptor databox.Encryptor
	identity  *identity.LocalProvider
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File

	ws     *databox.Workspace
	closed bool
}

// NewDataboxApp creates a wired DataboxApp from the given config.
// operation names the CLI command being run (e.g. "CreateProject", "AddRow").
// The caller must call Close when done.
func NewDataboxApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*DataboxApp, error) {
	op := NewOperation(operation, time.Now())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID, parseLevel(cfg.LogLevel), opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	s, err := store.NewStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		s.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	logger.Debug("operation started", "operation", operation, "store", cfg.Store.Type, "encryption", cfg.Encryption.Type)

	return &DataboxApp{
		cfg:       cfg,
		opts:      opts,
		store:     s,
		encryptor: enc,
		identity:  identity.NewLocalProvider(cfg.Identity.Dir, databox.RealClock{}, databox.UUIDGenerator{}),
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Identity returns the local account provider.
func (a *DataboxApp) Identity() *identity.LocalProvider {
	return a.identity
}

// Operation returns the operation this app was created for.
func (a *DataboxApp) Operation() *Operation {
	return a.op
}

// Workspace opens the current tenant's workspace on first call and returns
// the same workspace afterwards. It fails with databox.ErrNoTenant when no
// user is logged in.
func (a *DataboxApp) Workspace(ctx context.Context) (*databox.Workspace, error) {
	if a.ws != nil {
		return a.ws, nil
	}

	if err := a.store.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("store not ready (run 'databox store migrate' for sql stores): %w", err)
	}

	tenant, err := databox.TenantFrom(a.identity)
	if err != nil {
		return nil, err
	}

	dec, err := a.unlock()
	if err != nil {
		return nil, err
	}

	persistence := databox.NewPersistenceAdapter(a.store, a.encryptor, dec, databox.RealClock{}, &slogAdapter{l: a.logger}, databox.PersistenceOptions{
		Timeout:       a.cfg.Persistence.Timeout(),
		MaxRetries:    a.cfg.Persistence.MaxRetries,
		RetryInterval: a.cfg.Persistence.RetryInterval(),
	})
	ws := databox.NewWorkspace(tenant, persistence, databox.JWTTokenGenerator{}, a.endpoints(),
		&slogAdapter{l: a.logger}, databox.RealClock{}, databox.UUIDGenerator{})
	if err := ws.Open(ctx); err != nil {
		return nil, err
	}

	// The selection survives between invocations in the identity session.
	// A project deleted elsewhere simply drops the selection.
	if selected, err := a.identity.SelectedProject(); err == nil && selected != "" {
		if err := ws.SelectProject(selected); err != nil {
			a.logger.Warn("dropping stale project selection", "project", selected, "error", err)
			if err := a.identity.SetSelectedProject(""); err != nil {
				return nil, err
			}
		}
	}

	a.ws = ws
	return ws, nil
}

func (a *DataboxApp) endpoints() databox.Endpoints {
	e := a.cfg.Endpoints
	if e.Host == "" {
		return databox.DefaultEndpoints()
	}
	return databox.Endpoints{
		Host:                e.Host,
		DatabaseScheme:      e.DatabaseScheme,
		DatabaseCredentials: e.DatabaseCredentials,
		DatabasePort:        e.DatabasePort,
	}
}

// unlock returns the decryption context for reading tenant records,
// resolving the passphrase when the encryptor needs one.
func (a *DataboxApp) unlock() (databox.DecryptionContext, error) {
	if !a.encryptor.IsConfigured() {
		return nil, fmt.Errorf("encryption is not set up (run 'databox config init --encryption %s')", a.cfg.Encryption.Type)
	}
	if !encryption.NeedsPassphrase(a.cfg.Encryption) {
		return a.encryptor.Unlock("")
	}
	passphrase, prompted, err := resolvePassphrase(a.cfg.Encryption, a.opts.Passphrase)
	if err != nil {
		return nil, err
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking encryption key: %w", err)
	}
	if prompted {
		if err := rememberPassphrase(a.cfg.Encryption, passphrase); err != nil {
			a.logger.Warn("passphrase not remembered", "error", err)
		}
	}
	return dec, nil
}

// SelectProject makes the project named or identified by ref current, both
// for this workspace and for later invocations.
func (a *DataboxApp) SelectProject(ctx context.Context, ref string) (*databox.Project, error) {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return nil, err
	}
	p, err := ws.FindProject(ref)
	if err != nil {
		return nil, err
	}
	if err := ws.SelectProject(p.ID); err != nil {
		return nil, err
	}
	if err := a.identity.SetSelectedProject(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ErrNoProjectSelected is returned when a command needs a project and none
// was named or selected.
var ErrNoProjectSelected = errors.New("no project selected (run 'databox project use NAME')")

// ResolveProject returns the project named or identified by ref, or the
// current selection when ref is empty.
func (a *DataboxApp) ResolveProject(ctx context.Context, ref string) (*databox.Project, error) {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return nil, err
	}
	if ref != "" {
		return ws.FindProject(ref)
	}
	p, ok := ws.CurrentProject()
	if !ok {
		return nil, ErrNoProjectSelected
	}
	return p, nil
}

// Export writes the whole graph of the current tenant to w.
func (a *DataboxApp) Export(ctx context.Context, w io.Writer, format string) error {
	ws, err := a.Workspace(ctx)
	if err != nil {
		return err
	}
	return Export(w, ws.Snapshot(), format)
}

// Migrate brings a sql store's schema up to date. Other stores need no
// migration.
func (a *DataboxApp) Migrate() (bool, error) {
	m, ok := a.store.(store.Migrator)
	if !ok {
		a.logger.Info("store has no schema to migrate", "store", a.cfg.Store.Type)
		return false, nil
	}
	if err := m.Migrate(); err != nil {
		return false, fmt.Errorf("migrating store: %w", err)
	}
	a.logger.Info("store migrated", "store", a.cfg.Store.Type)
	return true, nil
}

// Fail marks the operation as failed so Close logs the error.
func (a *DataboxApp) Fail(err error) {
	a.op.Fail(err)
}

// Close logs the outcome of the operation and releases the workspace, the
// store and the log file. Closing twice is a no-op.
func (a *DataboxApp) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.op.Failed() {
		a.logger.Error("operation finished", "status", a.op.Status, "error", a.op.Err)
	} else {
		a.logger.Info("operation finished", "status", a.op.Status)
	}

	if a.ws != nil {
		a.ws.Close()
		a.ws = nil
	}

	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupEncryption creates the key pair for cfg, asking src for a new
// passphrase. Encryptors without keys and already configured keys are left
// alone. It reports whether keys were created.
func SetupEncryption(cfg config.EncryptionConfig, src PassphraseSource) (bool, error) {
	if !encryption.NeedsPassphrase(cfg) {
		return false, nil
	}
	enc := encryption.NewAgeEncryptor(cfg)
	if enc.IsConfigured() {
		return false, nil
	}
	passphrase, err := newPassphrase(src, "New passphrase")
	if err != nil {
		return false, err
	}
	if err := enc.Setup(passphrase); err != nil {
		return false, fmt.Errorf("setting up encryption: %w", err)
	}
	if err := rememberPassphrase(cfg, passphrase); err != nil {
		return true, err
	}
	return true, nil
}

// ChangePassphrase re-seals the private key under a new passphrase. The
// current passphrase is resolved like any unlock.
func ChangePassphrase(cfg config.EncryptionConfig, src PassphraseSource) error {
	if !encryption.NeedsPassphrase(cfg) {
		return fmt.Errorf("encryption type %q has no passphrase", cfg.Type)
	}
	enc := encryption.NewAgeEncryptor(cfg)
	if !enc.IsConfigured() {
		return fmt.Errorf("no keys at %s", cfg.PrivateKeyPath)
	}
	current, _, err := resolvePassphrase(cfg, src)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("a prompt is required to enter the new passphrase")
	}
	next, err := src.Passphrase("New passphrase", true)
	if err != nil {
		return err
	}
	if err := enc.ChangePassphrase(current, next); err != nil {
		return fmt.Errorf("changing passphrase: %w", err)
	}
	return rememberPassphrase(cfg, next)
}

func newPassphrase(src PassphraseSource, prompt string) (string, error) {
	if v := os.Getenv(PassphraseEnv); v != "" {
		return v, nil
	}
	if src == nil {
		return "", fmt.Errorf("passphrase required; set %s", PassphraseEnv)
	}
	return src.Passphrase(prompt, true)
}
