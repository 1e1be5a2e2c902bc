package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"databox/internal/app"
	"databox/internal/config"
	"databox/internal/encryption"
)

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.LogDir = defaults["log_dir"]

		f := cmd.Flags()
		cfg.Store.Type = stringFlag(cmd, "store", cfg.Store.Type)
		if cfg.Store.Type == "sqlite" {
			cfg.Store.SQLitePath = filepath.Join(cfg.BaseDir, "databox.db")
		}
		cfg.Store.FSRoot = stringFlag(cmd, "fs-root", cfg.Store.FSRoot)
		cfg.Store.SQLitePath = stringFlag(cmd, "sqlite-path", cfg.Store.SQLitePath)
		cfg.Store.PostgresURL = stringFlag(cmd, "postgres-url", cfg.Store.PostgresURL)
		cfg.Store.RedisAddr = stringFlag(cmd, "redis-addr", cfg.Store.RedisAddr)
		cfg.Store.S3Bucket = stringFlag(cmd, "s3-bucket", cfg.Store.S3Bucket)
		cfg.Store.S3Region = stringFlag(cmd, "s3-region", cfg.Store.S3Region)
		cfg.Store.S3Endpoint = stringFlag(cmd, "s3-endpoint", cfg.Store.S3Endpoint)
		cfg.Encryption.Type = stringFlag(cmd, "encryption", cfg.Encryption.Type)
		cfg.Encryption.UseKeyring, _ = f.GetBool("keyring")

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)

		created, err := app.SetupEncryption(cfg.Encryption, app.NewTerminalPrompt())
		if err != nil {
			return fmt.Errorf("failed to set up encryption: %w", err)
		}
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		if created {
			fmt.Printf("Keys written to %s\n", cfg.Encryption.PrivateKeyPath)
		}
		return nil
	},
}

// stringFlag returns the flag value when it was given, otherwise def.
func stringFlag(cmd *cobra.Command, name, def string) string {
	if !cmd.Flags().Changed(name) {
		return def
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Log Level:   %s\n", cfg.LogLevel)
		fmt.Printf("Store:       %s\n", cfg.Store.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Identity:    %s\n", cfg.Identity.Dir)
		fmt.Printf("Endpoints:   %s\n", cfg.Endpoints.Host)
		fmt.Printf("Persistence: timeout=%s retries=%d\n", cfg.Persistence.Timeout(), cfg.Persistence.MaxRetries)
		return nil
	},
}

var configPassphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Change the encryption passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if forget, _ := cmd.Flags().GetBool("forget"); forget {
			if err := app.ForgetPassphrase(cfg.Encryption); err != nil {
				return err
			}
			fmt.Println("Passphrase removed from the keyring.")
			return nil
		}
		if err := app.ChangePassphrase(cfg.Encryption, app.NewTerminalPrompt()); err != nil {
			return err
		}
		fmt.Println("Passphrase changed.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPassphraseCmd)

	f := configInitCmd.Flags()
	f.String("store", "filesystem", "Store type (memory, filesystem, sqlite, postgres, redis, s3)")
	f.String("fs-root", "", "Root directory of the filesystem store")
	f.String("sqlite-path", "", "Path of the sqlite database")
	f.String("postgres-url", "", "Postgres connection URL")
	f.String("redis-addr", "", "Redis address (host:port)")
	f.String("s3-bucket", "", "S3 bucket holding tenant records")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3 endpoint URL for S3-compatible services")
	f.String("encryption", "none", "Encryption of records at rest ("+strings.Join(encryption.Types(), ", ")+")")
	f.Bool("keyring", false, "Remember the passphrase in the system keyring")

	configPassphraseCmd.Flags().Bool("forget", false, "Remove the remembered passphrase instead")

	rootCmd.AddCommand(configCmd)
}
