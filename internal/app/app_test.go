package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"databox/internal/config"
	"databox/internal/databox"
	"databox/internal/encryption"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Encryption.Type = "test"
	return cfg
}

func openApp(t *testing.T, cfg *config.Config, operation string) *DataboxApp {
	t.Helper()
	a, err := NewDataboxApp(context.Background(), cfg, operation, Options{})
	if err != nil {
		t.Fatalf("NewDataboxApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestDataboxApp_RequiresLogin(t *testing.T) {
	a := openApp(t, newTestConfig(t), "ListProjects")
	if _, err := a.Workspace(context.Background()); !errors.Is(err, databox.ErrNoTenant) {
		t.Fatalf("Workspace() error = %v, want ErrNoTenant", err)
	}
}

func TestDataboxApp_SelectionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	a := openApp(t, cfg, "CreateProject")
	if _, err := a.Identity().Register("ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	ws, err := a.Workspace(ctx)
	if err != nil {
		t.Fatalf("Workspace() error = %v", err)
	}
	p, err := ws.CreateProject(ctx, "Shop", "", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := a.ResolveProject(ctx, ""); !errors.Is(err, ErrNoProjectSelected) {
		t.Errorf("ResolveProject(\"\") error = %v, want ErrNoProjectSelected", err)
	}
	if _, err := a.SelectProject(ctx, "Shop"); err != nil {
		t.Fatalf("SelectProject() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b := openApp(t, cfg, "ShowProject")
	got, err := b.ResolveProject(ctx, "")
	if err != nil {
		t.Fatalf("ResolveProject() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ResolveProject() = %s, want %s", got.ID, p.ID)
	}
	if got.Region != databox.RegionUSEast1 {
		t.Errorf("Region = %q, want default region", got.Region)
	}
}

func TestDataboxApp_StaleSelectionIsDropped(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	a := openApp(t, cfg, "CreateProject")
	if _, err := a.Identity().Register("ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatal(err)
	}
	ws, err := a.Workspace(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ws.CreateProject(ctx, "Shop", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.SelectProject(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := ws.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	a.Close()

	b := openApp(t, cfg, "ShowProject")
	if _, err := b.ResolveProject(ctx, ""); !errors.Is(err, ErrNoProjectSelected) {
		t.Errorf("ResolveProject() error = %v, want ErrNoProjectSelected", err)
	}
	if selected, _ := b.Identity().SelectedProject(); selected != "" {
		t.Errorf("SelectedProject() = %q, want cleared", selected)
	}
}

func TestDataboxApp_ExportAndLog(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	a := openApp(t, cfg, "Export")
	if _, err := a.Identity().Register("ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatal(err)
	}
	ws, err := a.Workspace(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ws.CreateProject(ctx, "Shop", "", ""); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := a.Export(ctx, &buf, "json"); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"name": "Shop"`) {
		t.Errorf("export is missing the project:\n%s", buf.String())
	}

	a.Fail(errors.New("boom"))
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, "databox.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, a.Operation().ID) || !strings.Contains(log, "status=error") {
		t.Errorf("log does not record the failed operation:\n%s", log)
	}
}

func TestDataboxApp_Migrate(t *testing.T) {
	ctx := context.Background()

	t.Run("filesystem has nothing to migrate", func(t *testing.T) {
		a := openApp(t, newTestConfig(t), "Migrate")
		migrated, err := a.Migrate()
		if err != nil || migrated {
			t.Errorf("Migrate() = (%v, %v), want (false, nil)", migrated, err)
		}
	})

	t.Run("sqlite needs migration before use", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Store = config.StoreConfig{Type: "sqlite", SQLitePath: filepath.Join(cfg.BaseDir, "databox.db")}
		a := openApp(t, cfg, "Migrate")
		if _, err := a.Identity().Register("ada@example.com", "secret1", "Ada"); err != nil {
			t.Fatal(err)
		}
		if _, err := a.Workspace(ctx); err == nil {
			t.Fatal("Workspace() on an unmigrated sqlite store should fail")
		}
		migrated, err := a.Migrate()
		if err != nil || !migrated {
			t.Fatalf("Migrate() = (%v, %v), want (true, nil)", migrated, err)
		}
		if _, err := a.Workspace(ctx); err != nil {
			t.Fatalf("Workspace() after migrate error = %v", err)
		}
	})
}

func TestSetupAndChangePassphrase(t *testing.T) {
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "databox.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "databox.key"),
	}

	if created, err := SetupEncryption(config.EncryptionConfig{Type: "none"}, nil); err != nil || created {
		t.Errorf("SetupEncryption(none) = (%v, %v), want (false, nil)", created, err)
	}

	t.Setenv(PassphraseEnv, "")
	created, err := SetupEncryption(cfg, &stubPrompt{value: "first"})
	if err != nil || !created {
		t.Fatalf("SetupEncryption() = (%v, %v), want (true, nil)", created, err)
	}
	if created, err := SetupEncryption(cfg, &stubPrompt{value: "other"}); err != nil || created {
		t.Errorf("second SetupEncryption() = (%v, %v), want existing keys kept", created, err)
	}

	if err := ChangePassphrase(cfg, &stubPrompt{value: "first"}); err != nil {
		t.Fatalf("ChangePassphrase() error = %v", err)
	}

	t.Setenv(PassphraseEnv, "first")
	if err := ChangePassphrase(cfg, &stubPrompt{value: "second"}); err != nil {
		t.Fatalf("ChangePassphrase() error = %v", err)
	}
	enc := encryption.NewAgeEncryptor(cfg)
	if _, err := enc.Unlock("first"); err == nil {
		t.Error("old passphrase still unlocks the key")
	}
	if _, err := enc.Unlock("second"); err != nil {
		t.Errorf("Unlock(new) error = %v", err)
	}
}

func TestDataboxApp_AgeEncryptedWorkspace(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())
	cfg.Encryption.Type = "age"

	t.Setenv(PassphraseEnv, "correct horse")
	if _, err := SetupEncryption(cfg.Encryption, nil); err != nil {
		t.Fatalf("SetupEncryption() error = %v", err)
	}

	a := openApp(t, cfg, "CreateProject")
	if _, err := a.Identity().Register("ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatal(err)
	}
	ws, err := a.Workspace(ctx)
	if err != nil {
		t.Fatalf("Workspace() error = %v", err)
	}
	if _, err := ws.CreateProject(ctx, "Vault", "", ""); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	a.Close()

	t.Setenv(PassphraseEnv, "wrong")
	b := openApp(t, cfg, "ListProjects")
	if _, err := b.Workspace(ctx); err == nil {
		t.Error("Workspace() with the wrong passphrase should fail")
	}
}
