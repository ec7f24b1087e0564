package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FF_CONFIG_PATH: config file location (default: ~/.config/freelanceflow.toml)
//   - FF_HOME: base directory for freelanceflow data (default: ~/.local/share/freelanceflow)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"data_dir":    filepath.Join(baseDir, "data"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("FF_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "freelanceflow.toml"), nil
}

// getBaseDir falls back to the XDG data home when FF_HOME is unset.
func getBaseDir() (string, error) {
	if path := os.Getenv("FF_HOME"); path != "" {
		return path, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "freelanceflow"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "freelanceflow"), nil
}
