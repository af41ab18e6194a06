package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns the fully resolved and validated client.
func Resolve(env EnvOverrides, cli CLIOverrides) (*ResolvedClient, error) {
	// 1. Config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Config file (defaults if absent)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Client name: CLI > env > "default"
	name := cli.Client
	if name == "" {
		name = env.Client
	}

	rc, err := ResolveClient(cfg, name)
	if err != nil {
		return nil, err
	}

	// 4. Env overrides
	if env.ClientSecrets != "" {
		rc.ClientSecrets = expandTilde(env.ClientSecrets)
	}

	if env.LogLevel != "" {
		rc.Logging.LogLevel = env.LogLevel
	}

	// 5. CLI overrides (nil = not specified)
	if cli.ClientSecrets != nil {
		rc.ClientSecrets = expandTilde(*cli.ClientSecrets)
	}

	if cli.Flow != nil {
		rc.Auth.Flow = *cli.Flow
	}

	if err := ValidateResolved(rc); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return rc, nil
}

// ResolveClient merges the global sections with one client section and
// fills in per-client defaults. An empty name selects the only configured
// client, or "default". With no clients configured at all a synthetic
// "default" client is used, so the tool works without a config file.
func ResolveClient(cfg *Config, name string) (*ResolvedClient, error) {
	section, name, err := selectClient(cfg, name)
	if err != nil {
		return nil, err
	}

	rc := &ResolvedClient{
		Name:          name,
		ClientSecrets: expandTilde(section.ClientSecrets),
		Scopes:        slices.Clone(section.Scopes),
		TokenFile:     expandTilde(section.TokenFile),
		APIName:       section.APIName,
		APIVersion:    section.APIVersion,
		Auth:          cfg.Auth,
		Logging:       cfg.Logging,
		Network:       cfg.Network,
	}

	if rc.ClientSecrets == "" {
		rc.ClientSecrets = DefaultClientSecretsPath()
	}

	if rc.TokenFile == "" {
		rc.TokenFile = DefaultTokenPath(name)
	}

	if rc.APIName == "" {
		rc.APIName = defaultAPIName
	}

	if rc.APIVersion == "" {
		rc.APIVersion = defaultAPIVersion
	}

	rc.Auth.Database = expandTilde(rc.Auth.Database)
	if rc.Auth.Database == "" {
		rc.Auth.Database = DefaultDatabasePath()
	}

	rc.Logging.LogFile = expandTilde(rc.Logging.LogFile)

	return rc, nil
}

func selectClient(cfg *Config, name string) (ClientSection, string, error) {
	if len(cfg.Clients) == 0 {
		if name == "" {
			name = defaultClientName
		}

		return ClientSection{}, name, nil
	}

	if name == "" {
		if len(cfg.Clients) == 1 {
			for only, section := range cfg.Clients {
				return section, only, nil
			}
		}

		name = defaultClientName
	}

	section, ok := cfg.Clients[name]
	if !ok {
		known := slices.Sorted(maps.Keys(cfg.Clients))
		return ClientSection{}, "", fmt.Errorf("unknown client %q (configured: %s)", name, strings.Join(known, ", "))
	}

	return section, name, nil
}

// ClientNames returns the configured client names in sorted order.
func ClientNames(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Clients))
}
