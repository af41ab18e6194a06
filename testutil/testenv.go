// Package testutil provides shared test environment helpers for E2E tests.
// It depends only on stdlib so that E2E tests (which cannot import
// internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist exits the process unless the channel named by
// channelEnvVar appears in YTAPI_ALLOWED_TEST_CHANNELS. Live tests read the
// account they run against, so they must never pick up a personal login.
func ValidateAllowlist(channelEnvVar string) {
	allowlist := os.Getenv("YTAPI_ALLOWED_TEST_CHANNELS")
	if allowlist == "" {
		fmt.Fprintln(os.Stderr, "FATAL: YTAPI_ALLOWED_TEST_CHANNELS not set")
		fmt.Fprintln(os.Stderr, "Example: YTAPI_ALLOWED_TEST_CHANNELS=UCxxxxxxxxxxxxxxxxxxxxxx")
		os.Exit(1)
	}

	channel := os.Getenv(channelEnvVar)
	if channel == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", channelEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == channel {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in YTAPI_ALLOWED_TEST_CHANNELS=%q\n",
		channelEnvVar, channel, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// RequireFile exits the process when path does not exist. hint tells the
// developer how to create it.
func RequireFile(path, hint string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s not found: %v\n", path, err)
		fmt.Fprintln(os.Stderr, hint)
		os.Exit(1)
	}
}
