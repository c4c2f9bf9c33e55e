package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the application paths used when no config overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	VaultRoot  string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PV_CONFIG_PATH: config file location (default: ~/.config/pv.toml)
//   - PV_HOME: base directory for vault data (default: ~/.local/share/pv)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome("PV_CONFIG_PATH", ".config", "pv.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome("PV_HOME", ".local", "share", "pv")
	if err != nil {
		return nil, err
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		VaultRoot:  filepath.Join(baseDir, "vault"),
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env if set, otherwise the path made of
// elems below the user's home directory.
func fromEnvOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
