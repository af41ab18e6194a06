package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "ytapi"

// File names inside the config and data directories.
const (
	configFileName        = "config.toml"
	clientSecretsFileName = "client_secret.json"
	databaseFileName      = "credentials.db"
	tokensDirName         = "tokens"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/ytapi).
// On macOS, uses ~/Library/Application Support/ytapi.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for credentials.
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/ytapi).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func xdgDir(env, fallback string) string {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	return joinIfDir(DefaultConfigDir(), configFileName)
}

// DefaultClientSecretsPath is where a client_secret.json is looked for when
// a client section does not name one.
func DefaultClientSecretsPath() string {
	return joinIfDir(DefaultConfigDir(), clientSecretsFileName)
}

// DefaultTokenPath returns the credential file path for a client.
// Format: {dataDir}/tokens/{client}.json
func DefaultTokenPath(client string) string {
	return joinIfDir(DefaultDataDir(), filepath.Join(tokensDirName, client+".json"))
}

// DefaultDatabasePath returns the SQLite credential database path.
func DefaultDatabasePath() string {
	return joinIfDir(DefaultDataDir(), databaseFileName)
}

func joinIfDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
