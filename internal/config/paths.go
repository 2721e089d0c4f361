// Package config provides configuration management for SpDL: the key/value
// settings file and the track list sources.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spdl/spdl/internal/constants"
)

// LogDirectory returns the directory for the application log file.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\SpDL\logs
//   - Unix: ~/.config/spdl/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "spdl-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, constants.AppName, "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "spdl-logs")
		}
		return filepath.Join(homeDir, ".config", ConfigDir, "logs")
	}
	return filepath.Join(configDir, ConfigDir, "logs")
}

// DefaultLogFile is used by the GUI when no log_file is configured.
func DefaultLogFile() string {
	return filepath.Join(LogDirectory(), "spdl.log")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
