package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ncopds/ncopds/internal/constants"
)

// ConfigDirectory returns the directory holding config.ini and .env.
//
// Locations:
//   - Windows: %APPDATA%\ncopds
//   - macOS: ~/Library/Application Support/ncopds
//   - Unix: $XDG_CONFIG_HOME/ncopds or ~/.config/ncopds
func ConfigDirectory() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(home, ".config", constants.AppName)
	}
	return filepath.Join(dir, constants.AppName)
}

// DefaultConfigPath returns NCOPDS_CONFIG or <config dir>/config.ini.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return ExpandHome(p), nil
	}
	return filepath.Join(ConfigDirectory(), "config.ini"), nil
}

// LogDirectory returns the directory for rotating log files.
//   - Windows: %LOCALAPPDATA%\ncopds\logs
//   - Unix: <config dir>/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, constants.AppName, "logs")
		}
	}
	return filepath.Join(ConfigDirectory(), "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// DefaultDownloadDirectory is ~/Downloads/ncopds.
func DefaultDownloadDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.AppName)
	}
	return filepath.Join(home, "Downloads", constants.AppName)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
