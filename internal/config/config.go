package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for databox.
type Config struct {
	BaseDir     string            `toml:"base_dir" validate:"required"`
	LogDir      string            `toml:"log_dir" validate:"required"`
	LogLevel    string            `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Store       StoreConfig       `toml:"store"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Persistence PersistenceConfig `toml:"persistence"`
	Endpoints   EndpointsConfig   `toml:"endpoints"`
	Identity    IdentityConfig    `toml:"identity"`
}

// StoreConfig selects the backend holding tenant records.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory filesystem sqlite postgres redis s3"`

	// filesystem
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`

	// sqlite
	SQLitePath string `toml:"sqlite_path,omitempty" validate:"required_if=Type sqlite"`

	// postgres
	PostgresURL string `toml:"postgres_url,omitempty" validate:"required_if=Type postgres"`

	// redis
	RedisAddr     string `toml:"redis_addr,omitempty" validate:"required_if=Type redis"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty" validate:"gte=0"`
	RedisPrefix   string `toml:"redis_prefix,omitempty"`

	// s3
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" validate:"required_with=S3AccessKeyID"`
}

// EncryptionConfig controls encryption of tenant records at rest.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=none age test"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty" validate:"required_if=Type age"`
	PrivateKeyPath string `toml:"private_key_path,omitempty" validate:"required_if=Type age"`
	UseKeyring     bool   `toml:"use_keyring,omitempty"` // remember the passphrase in the system keyring
}

// PersistenceConfig bounds store calls.
type PersistenceConfig struct {
	TimeoutSeconds      int `toml:"timeout_seconds" validate:"gte=0"`
	MaxRetries          int `toml:"max_retries" validate:"gte=0,lte=10"`
	RetryIntervalMillis int `toml:"retry_interval_millis" validate:"gte=0"`
}

// Timeout returns the per-attempt timeout.
func (c PersistenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryInterval returns the initial backoff interval.
func (c PersistenceConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMillis) * time.Millisecond
}

// EndpointsConfig controls how project endpoint URLs are derived.
type EndpointsConfig struct {
	Host                string `toml:"host" validate:"required,hostname"`
	DatabaseScheme      string `toml:"database_scheme" validate:"required"`
	DatabaseCredentials string `toml:"database_credentials"`
	DatabasePort        int    `toml:"database_port" validate:"gte=1,lte=65535"`
}

// IdentityConfig locates the local account store.
type IdentityConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

// NewConfig creates a Config rooted at baseDir with a filesystem store and
// unencrypted records.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Store: StoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "store"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "databox.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "databox.key"),
		},
		Persistence: PersistenceConfig{
			TimeoutSeconds:      10,
			MaxRetries:          3,
			RetryIntervalMillis: 200,
		},
		Endpoints: EndpointsConfig{
			Host:                "databox.co",
			DatabaseScheme:      "mysql",
			DatabaseCredentials: "root:[password]",
			DatabasePort:        3306,
		},
		Identity: IdentityConfig{
			Dir: filepath.Join(baseDir, "identity"),
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints across the whole config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// fillDefaults sets sections that older or hand-written files leave out.
func (c *Config) fillDefaults() {
	defaults := NewConfig(c.BaseDir)
	if c.LogDir == "" {
		c.LogDir = defaults.LogDir
	}
	if c.Identity.Dir == "" {
		c.Identity.Dir = defaults.Identity.Dir
	}
	if c.Persistence == (PersistenceConfig{}) {
		c.Persistence = defaults.Persistence
	}
	if c.Endpoints == (EndpointsConfig{}) {
		c.Endpoints = defaults.Endpoints
	}
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold store credentials.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it to path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
