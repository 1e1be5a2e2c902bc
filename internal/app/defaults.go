package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables that relocate databox files.
const (
	ConfigPathEnv = "DATABOX_CONFIG_PATH" // config file (default $XDG_CONFIG_HOME/databox.toml)
	HomeEnv       = "DATABOX_HOME"        // data directory (default $XDG_DATA_HOME/databox)
)

// LoadEnvFiles reads KEY=VALUE files into the environment. Missing files are
// skipped and variables that are already set are never overridden.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// GetDefaults resolves the config path, the base data directory and the log
// directory under it. Unset XDG variables fall back to ~/.config and
// ~/.local/share.
func GetDefaults() (map[string]string, error) {
	configPath := os.Getenv(ConfigPathEnv)
	if configPath == "" {
		dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "databox.toml")
	}

	baseDir := os.Getenv(HomeEnv)
	if baseDir == "" {
		dir, err := xdgDir("XDG_DATA_HOME", ".local", "share")
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(dir, "databox")
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func xdgDir(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}
