package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted by GetDefaults.
const (
	EnvConfigPath = "FILMGOV_CONFIG_PATH"
	EnvHome       = "FILMGOV_HOME"
)

// Defaults are the default locations used when no config file exists yet.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	DataDir    string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FILMGOV_CONFIG_PATH: config file location (default: ~/.config/filmgov.toml)
//   - FILMGOV_HOME: base directory for catalog data (default: ~/.local/share/filmgov)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome(EnvConfigPath, ".config", "filmgov.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome(EnvHome, ".local", "share", "filmgov")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		DataDir:    filepath.Join(baseDir, "data"),
	}, nil
}

// fromEnvOrHome returns the value of env if set, otherwise the path under
// the user's home directory.
func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
