package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// clientSection is the table holding per-client subtables.
const clientSection = "client"

// knownSectionKeys maps each fixed section to its valid keys.
var knownSectionKeys = map[string][]string{
	"auth":    {"database", "flow", "store"},
	"logging": {"log_file", "log_format", "log_level"},
	"network": {"max_retries", "page_size", "timeout", "user_agent"},
}

// knownClientKeys are the valid keys inside a [client.<name>] section.
var knownClientKeys = []string{"api_name", "api_version", "client_secrets", "scopes", "token_file"}

// knownSections is sorted for deterministic suggestions.
var knownSections = append(slices.Sorted(maps.Keys(knownSectionKeys)), clientSection)

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	// An unknown table and its keys produce the same message.
	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := unknownKeyError(key)
		if seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// unknownKeyError explains one undecoded key based on where it sits.
func unknownKeyError(key toml.Key) error {
	section := key[0]

	switch {
	case section == clientSection && len(key) >= 3:
		return suggest(fmt.Sprintf("in [client.%s]", key[1]), key[2], knownClientKeys)
	case section == clientSection && len(key) == 2:
		return fmt.Errorf("config key %q: client settings belong in a [client.<name>] table", key.String())
	case len(key) >= 2 && knownSectionKeys[section] != nil:
		return suggest(fmt.Sprintf("in [%s]", section), key[1], knownSectionKeys[section])
	default:
		return suggest("at top level", section, knownSections)
	}
}

func suggest(where, field string, known []string) error {
	if s := closestMatch(field, known); s != "" {
		return fmt.Errorf("unknown config key %q %s, did you mean %q?", field, where, s)
	}

	return fmt.Errorf("unknown config key %q %s", field, where)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
