package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, "unknown_setting = \"value\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), "at top level")
}

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[network]\nmax_retires = 4\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "max_retires" in [network], did you mean "max_retries"?`)
}

func TestLoad_UnknownKey_InClient(t *testing.T) {
	path := writeTestConfig(t, "[client.default]\nscope = [\"https://x\"]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[client.default]")
	assert.Contains(t, err.Error(), `did you mean "scopes"`)
}

func TestLoad_UnknownSectionReportedOnce(t *testing.T) {
	path := writeTestConfig(t, "[loging]\nlog_level = \"debug\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "logging"`)
	assert.Equal(t, 1, strings.Count(err.Error(), "loging"))
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, "[auth]\ncompletely_unrelated_key = true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"scope", "scopes", 1},
		{"max_retires", "max_retries", 2},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "flow", closestMatch("flwo", knownSectionKeys["auth"]))
	assert.Empty(t, closestMatch("zzzzzzzzzz", knownSectionKeys["auth"]))
}
