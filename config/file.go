package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSettingsFile returns ~/.newsharvest/config.yaml if it exists, or ""
// when there is no such file. Lookup failures other than a missing file are
// returned as errors.
func DefaultSettingsFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".newsharvest", "config.yaml")

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil // File doesn't exist -- not an error
		}
		return "", fmt.Errorf("failed to stat settings file: %w", err)
	}

	return configPath, nil
}
