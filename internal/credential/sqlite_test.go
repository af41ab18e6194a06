package credential

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(context.Background(), filepath.Join(t.TempDir(), "state", "credentials.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := openTestDB(t).Slot("default")

	cred, ok := store.Load()
	assert.Nil(t, cred)
	assert.False(t, ok)
	assert.False(t, store.Exists())
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openTestDB(t).Slot("default")
	original := testCredential()

	require.NoError(t, store.Save(original))
	assert.True(t, store.Exists())

	cred, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, original.AccessToken, cred.AccessToken)
	assert.Equal(t, original.RefreshToken, cred.RefreshToken)
	assert.Equal(t, original.TokenType, cred.TokenType)
	assert.True(t, cred.Expiry.Equal(original.Expiry))
	assert.Equal(t, original.Scopes, cred.Scopes)
}

func TestSQLiteStore_ZeroExpiryRoundTrip(t *testing.T) {
	store := openTestDB(t).Slot("default")
	require.NoError(t, store.Save(&Credential{AccessToken: "a"}))

	cred, ok := store.Load()
	require.True(t, ok)
	assert.True(t, cred.Expiry.IsZero())
	assert.Empty(t, cred.Scopes)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := openTestDB(t).Slot("default")
	require.NoError(t, store.Save(testCredential()))

	next := testCredential()
	next.AccessToken = "rotated"
	require.NoError(t, store.Save(next))

	cred, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "rotated", cred.AccessToken)
}

func TestSQLiteStore_SlotsAreIndependent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Slot("work").Save(testCredential()))

	_, ok := db.Slot("personal").Load()
	assert.False(t, ok)

	_, ok = db.Slot("work").Load()
	assert.True(t, ok)
}

func TestSQLiteStore_Remove(t *testing.T) {
	store := openTestDB(t).Slot("default")
	require.NoError(t, store.Save(testCredential()))
	require.NoError(t, store.Remove())
	assert.False(t, store.Exists())
	require.NoError(t, store.Remove())
}

func TestSQLiteStore_Meta(t *testing.T) {
	store := openTestDB(t).Slot("default")

	require.Error(t, store.SaveMeta(map[string]string{"a": "1"}), "no row yet")

	require.NoError(t, store.Save(testCredential()))
	require.NoError(t, store.SaveMeta(map[string]string{"a": "1"}))
	require.NoError(t, store.SaveMeta(map[string]string{"b": "2"}))

	// Saving a refreshed credential keeps metadata.
	require.NoError(t, store.Save(testCredential()))

	meta, err := store.LoadMeta()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, meta)
}

func TestOpenDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")

	db, err := OpenDB(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Slot("default").Save(testCredential()))
	require.NoError(t, db.Close())

	db, err = OpenDB(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, ok := db.Slot("default").Load()
	assert.True(t, ok)
}
