//go:build e2e

// Live tests against the YouTube Data API. They need a config file whose
// client already holds a stored credential (run `ytapi login` with it once):
//
//	YTAPI_E2E_CONFIG=/path/to/config.toml
//	YTAPI_E2E_CHANNEL=UC...            channel the credential belongs to
//	YTAPI_ALLOWED_TEST_CHANNELS=UC...  allowlist guarding against personal accounts
//
// Values may also come from a .env file at the module root.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happycod3r/ytapi/testutil"
)

var (
	binaryPath string
	configPath string
	channelID  string
)

func TestMain(m *testing.M) {
	root := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))
	testutil.ValidateAllowlist("YTAPI_E2E_CHANNEL")

	channelID = os.Getenv("YTAPI_E2E_CHANNEL")
	configPath = os.Getenv("YTAPI_E2E_CONFIG")
	testutil.RequireFile(configPath, "Set YTAPI_E2E_CONFIG to a config file and run `ytapi login --config <file>` once.")

	tmpDir, err := os.MkdirTemp("", "ytapi-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "ytapi")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	fullArgs := append([]string{"--config", configPath, "--flow", "device"}, args...)
	cmd := exec.Command(binaryPath, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

type listResult struct {
	Items []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"items"`
	NextPageToken string `json:"next_page_token"`
}

func listJSON(t *testing.T, args ...string) listResult {
	t.Helper()

	stdout, _ := runCLI(t, append(append([]string{"list"}, args...), "--json")...)

	var out listResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))

	return out
}

func TestE2E_Whoami(t *testing.T) {
	stdout, _ := runCLI(t, "whoami", "--json")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, channelID, out["channel_id"])
	assert.Equal(t, "valid", out["status"])
}

// A listing split by --limit and resumed with the printed token must
// produce the same items as one larger listing.
func TestE2E_SearchContinuation(t *testing.T) {
	whole := listJSON(t, "search", "golang", "--order", "date", "--limit", "6", "--page-size", "3")
	require.Len(t, whole.Items, 6)

	first := listJSON(t, "search", "golang", "--order", "date", "--limit", "3", "--page-size", "3")
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.NextPageToken)

	rest := listJSON(t, "search", "golang", "--order", "date", "--limit", "3", "--page-size", "3",
		"--page-token", first.NextPageToken)
	require.Len(t, rest.Items, 3)

	for i, it := range append(first.Items, rest.Items...) {
		assert.Equal(t, whole.Items[i].ID, it.ID)
	}
}

func TestE2E_ZeroLimit(t *testing.T) {
	out := listJSON(t, "playlists", "--limit", "0")
	assert.Empty(t, out.Items)
	assert.Empty(t, out.NextPageToken)
}

func TestE2E_MyListings(t *testing.T) {
	t.Run("playlists", func(t *testing.T) {
		listJSON(t, "playlists", "--limit", "5")
	})

	t.Run("subscriptions", func(t *testing.T) {
		listJSON(t, "subscriptions", "--limit", "5")
	})
}
