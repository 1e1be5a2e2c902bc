package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/databox")
	original.LogLevel = "debug"
	original.Store = StoreConfig{
		Type:        "redis",
		RedisAddr:   "localhost:6379",
		RedisDB:     2,
		RedisPrefix: "dbx:",
	}
	original.Encryption.Type = "age"
	original.Encryption.UseKeyring = true

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Store != original.Store {
		t.Errorf("Store = %+v, want %+v", got.Store, original.Store)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Persistence != original.Persistence {
		t.Errorf("Persistence = %+v, want %+v", got.Persistence, original.Persistence)
	}
	if got.Endpoints != original.Endpoints {
		t.Errorf("Endpoints = %+v, want %+v", got.Endpoints, original.Endpoints)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() after round trip: %v", err)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/databox")

	if cfg.BaseDir != "/data/databox" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/databox")
	}
	if cfg.LogDir != "/data/databox/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/databox/log")
	}
	if cfg.Store.Type != "filesystem" || cfg.Store.FSRoot != "/data/databox/store" {
		t.Errorf("Store = %+v, want filesystem at /data/databox/store", cfg.Store)
	}
	if cfg.Encryption.Type != "none" {
		t.Errorf("Encryption.Type = %q, want %q", cfg.Encryption.Type, "none")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/databox/keys/databox.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/databox/keys/databox.key")
	}
	if cfg.Identity.Dir != "/data/databox/identity" {
		t.Errorf("Identity.Dir = %q, want %q", cfg.Identity.Dir, "/data/databox/identity")
	}
	if got := cfg.Persistence.Timeout(); got != 10*time.Second {
		t.Errorf("Persistence.Timeout() = %v, want 10s", got)
	}
	if got := cfg.Persistence.RetryInterval(); got != 200*time.Millisecond {
		t.Errorf("Persistence.RetryInterval() = %v, want 200ms", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown store type",
			modify:  func(c *Config) { c.Store.Type = "mongo" },
			wantErr: "Type",
		},
		{
			name:    "sqlite without path",
			modify:  func(c *Config) { c.Store = StoreConfig{Type: "sqlite"} },
			wantErr: "SQLitePath",
		},
		{
			name:    "postgres without url",
			modify:  func(c *Config) { c.Store = StoreConfig{Type: "postgres"} },
			wantErr: "PostgresURL",
		},
		{
			name:    "s3 without bucket",
			modify:  func(c *Config) { c.Store = StoreConfig{Type: "s3"} },
			wantErr: "S3Bucket",
		},
		{
			name: "s3 access key without secret",
			modify: func(c *Config) {
				c.Store = StoreConfig{Type: "s3", S3Bucket: "b", S3AccessKeyID: "AKIA"}
			},
			wantErr: "S3SecretAccessKey",
		},
		{
			name:    "unknown encryption",
			modify:  func(c *Config) { c.Encryption.Type = "rot13" },
			wantErr: "Encryption.Type",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "LogLevel",
		},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.Persistence.MaxRetries = 50 },
			wantErr: "MaxRetries",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Endpoints.DatabasePort = 70000 },
			wantErr: "DatabasePort",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(t.TempDir())
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestManager_Read_FillsDefaults(t *testing.T) {
	input := `
base_dir = "/srv/databox"

[store]
type = "memory"
`
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.LogDir != "/srv/databox/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/srv/databox/log")
	}
	if cfg.Identity.Dir != "/srv/databox/identity" {
		t.Errorf("Identity.Dir = %q, want %q", cfg.Identity.Dir, "/srv/databox/identity")
	}
	if cfg.Persistence.MaxRetries != 3 {
		t.Errorf("Persistence.MaxRetries = %d, want 3", cfg.Persistence.MaxRetries)
	}
	if cfg.Endpoints.Host != "databox.co" {
		t.Errorf("Endpoints.Host = %q, want %q", cfg.Endpoints.Host, "databox.co")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "databox.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "databox.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "databox.toml")
		cfg := NewConfig(dir)
		cfg.Store.Type = "mongo"

		if err := Init(path, cfg); err == nil {
			t.Fatal("Init() expected error for invalid config")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("invalid config was written: stat err = %v", err)
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "databox.toml")
		cfg := NewConfig(dir)
		cfg.Store = StoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Store.Type != "memory" {
			t.Errorf("Store.Type = %q, want %q", got.Store.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/databox.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("rejects invalid file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "databox.toml")
		if err := os.WriteFile(path, []byte("base_dir = \"/x\"\n[store]\ntype = \"sqlite\"\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected validation error")
		}
	})
}
