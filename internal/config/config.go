// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ytapi. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags) and
// any number of named OAuth clients, each in its own [client.<name>] section.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Clients map[string]ClientSection `toml:"client"`
	Auth    AuthConfig               `toml:"auth"`
	Logging LoggingConfig            `toml:"logging"`
	Network NetworkConfig            `toml:"network"`
}

// ClientSection describes one OAuth client identity and the API it targets.
// Empty fields fall back to defaults derived from the section name.
type ClientSection struct {
	ClientSecrets string   `toml:"client_secrets"`
	Scopes        []string `toml:"scopes"`
	TokenFile     string   `toml:"token_file"`
	APIName       string   `toml:"api_name"`
	APIVersion    string   `toml:"api_version"`
}

// AuthConfig selects how consent is obtained and where credentials live.
type AuthConfig struct {
	Flow     string `toml:"flow"`     // "browser" or "device"
	Store    string `toml:"store"`    // "file" or "sqlite"
	Database string `toml:"database"` // sqlite path; empty = data dir default
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
	UserAgent  string `toml:"user_agent"`
	PageSize   int    `toml:"page_size"`
}

// TimeoutDuration parses Timeout. Validation guarantees it parses; a zero
// is returned otherwise.
func (n NetworkConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return 0
	}

	return d
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set".
type CLIOverrides struct {
	ConfigPath    string  // --config flag (empty = use default)
	Client        string  // --client flag (empty = use default)
	ClientSecrets *string // --client-secrets flag
	Flow          *string // --flow flag
}

// ResolvedClient is the fully merged configuration for one client after all
// override layers have been applied. Paths are absolute.
type ResolvedClient struct {
	Name          string
	ClientSecrets string
	Scopes        []string
	TokenFile     string
	APIName       string
	APIVersion    string

	Auth    AuthConfig
	Logging LoggingConfig
	Network NetworkConfig
}
