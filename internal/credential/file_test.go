package credential

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredential() *Credential {
	return &Credential{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.force-ssl"},
	}
}

func TestReadFile_NotFound(t *testing.T) {
	cred, meta, err := ReadFile("/nonexistent/path/credential.json")
	assert.Nil(t, cred)
	assert.Nil(t, meta)
	assert.NoError(t, err)
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials", "default.json")
	original := testCredential()

	require.NoError(t, WriteFile(path, original, map[string]string{"channel_id": "UC123"}))

	cred, meta, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original.AccessToken, cred.AccessToken)
	assert.Equal(t, original.RefreshToken, cred.RefreshToken)
	assert.Equal(t, original.TokenType, cred.TokenType)
	assert.True(t, cred.Expiry.Equal(original.Expiry))
	assert.Equal(t, original.Scopes, cred.Scopes)
	assert.Equal(t, "UC123", meta["channel_id"])
}

func TestWriteFile_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials", "default.json")
	require.NoError(t, WriteFile(path, testCredential(), nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPerms), dirInfo.Mode().Perm())
}

func TestWriteFile_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.json")
	require.NoError(t, WriteFile(path, testCredential(), nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "default.json", entries[0].Name())
}

func TestReadFile_MissingCredentialField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"bare"}`), 0o600))

	cred, _, err := ReadFile(path)
	assert.Nil(t, cred)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credential field")
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json"), nil)

	cred, ok := store.Load()
	assert.Nil(t, cred)
	assert.False(t, ok)
	assert.False(t, store.Exists())
}

func TestFileStore_LoadMalformedIsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0o600))

	store := NewFileStore(path, nil)

	cred, ok := store.Load()
	assert.Nil(t, cred)
	assert.False(t, ok)
	assert.True(t, store.Exists(), "malformed file must not be deleted")
}

func TestFileStore_SaveLoad(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	require.NoError(t, store.Save(testCredential()))
	assert.True(t, store.Exists())

	cred, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "access-123", cred.AccessToken)
}

func TestFileStore_SavePreservesMeta(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	require.NoError(t, store.Save(testCredential()))
	require.NoError(t, store.SaveMeta(map[string]string{"channel_title": "Gophers"}))

	refreshed := testCredential()
	refreshed.AccessToken = "access-789"
	require.NoError(t, store.Save(refreshed))

	meta, err := store.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, "Gophers", meta["channel_title"])

	cred, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "access-789", cred.AccessToken)
}

func TestFileStore_SaveMetaMerges(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	require.NoError(t, store.Save(testCredential()))
	require.NoError(t, store.SaveMeta(map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, store.SaveMeta(map[string]string{"b": "3"}))

	meta, err := store.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, meta)
}

func TestFileStore_SaveMetaWithoutCredential(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	assert.Error(t, store.SaveMeta(map[string]string{"a": "1"}))
}

func TestFileStore_SaveNil(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	assert.Error(t, store.Save(nil))
}

func TestFileStore_SaveFailureReported(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// Parent "directory" is a regular file, so MkdirAll fails.
	store := NewFileStore(filepath.Join(blocker, "default.json"), nil)
	assert.Error(t, store.Save(testCredential()))
}

func TestFileStore_Remove(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "default.json"), nil)
	require.NoError(t, store.Save(testCredential()))

	require.NoError(t, store.Remove())
	assert.False(t, store.Exists())

	// Second remove is a no-op.
	require.NoError(t, store.Remove())
}
