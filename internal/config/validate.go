package config

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Validation range constants.
const (
	minTimeout    = 1 * time.Second
	maxRetries    = 10
	minPageSize   = 1
	maxPageSize   = 50
	scopeURLStart = "https://"
)

// clientNamePattern restricts client names to what is safe in a file name.
var clientNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// apiNamePattern matches Google API discovery names ("youtube", "youtubeAnalytics").
var apiNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// apiVersionPattern matches API versions ("v3", "v2beta").
var apiVersionPattern = regexp.MustCompile(`^v[0-9]+[A-Za-z0-9]*$`)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	for _, name := range slices.Sorted(maps.Keys(cfg.Clients)) {
		section := cfg.Clients[name]
		errs = append(errs, validateClient(name, &section)...)
	}

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on a fully resolved client, after the
// override chain has been applied.
func ValidateResolved(rc *ResolvedClient) error {
	var errs []error

	if rc.ClientSecrets == "" {
		errs = append(errs, errors.New("client_secrets: no path configured and no default config directory"))
	}

	if rc.TokenFile == "" && rc.Auth.Store == StoreFile {
		errs = append(errs, errors.New("token_file: no path configured and no default data directory"))
	}

	if rc.Auth.Database == "" && rc.Auth.Store == StoreSQLite {
		errs = append(errs, errors.New("database: no path configured and no default data directory"))
	}

	errs = append(errs, validateAuth(&rc.Auth)...)
	errs = append(errs, validateLogLevel(rc.Logging.LogLevel)...)

	return errors.Join(errs...)
}

func validateClient(name string, c *ClientSection) []error {
	var errs []error

	prefix := fmt.Sprintf("client.%s", name)

	if !clientNamePattern.MatchString(name) {
		errs = append(errs, fmt.Errorf("%s: client name must be alphanumeric with '-', '_' or '.'", prefix))
	}

	if c.APIName != "" && !apiNamePattern.MatchString(c.APIName) {
		errs = append(errs, fmt.Errorf("%s.api_name: invalid API name %q", prefix, c.APIName))
	}

	if c.APIVersion != "" && !apiVersionPattern.MatchString(c.APIVersion) {
		errs = append(errs, fmt.Errorf("%s.api_version: invalid API version %q", prefix, c.APIVersion))
	}

	for _, s := range c.Scopes {
		if !strings.HasPrefix(s, scopeURLStart) {
			errs = append(errs, fmt.Errorf("%s.scopes: scope %q must be an https URL", prefix, s))
		}
	}

	return errs
}

var validFlows = map[string]bool{FlowBrowser: true, FlowDevice: true}

var validStores = map[string]bool{StoreFile: true, StoreSQLite: true}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if !validFlows[a.Flow] {
		errs = append(errs, fmt.Errorf("auth.flow: must be one of browser, device; got %q", a.Flow))
	}

	if !validStores[a.Store] {
		errs = append(errs, fmt.Errorf("auth.store: must be one of file, sqlite; got %q", a.Store))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("timeout", n.Timeout, minTimeout)...)

	if n.MaxRetries < 0 || n.MaxRetries > maxRetries {
		errs = append(errs, fmt.Errorf("max_retries: must be between 0 and %d, got %d", maxRetries, n.MaxRetries))
	}

	if n.PageSize < minPageSize || n.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page_size: must be between %d and %d, got %d", minPageSize, maxPageSize, n.PageSize))
	}

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}
