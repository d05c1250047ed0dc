package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oddogate/internal/database"
)

func testSQLiteDriver(t *testing.T) *SQLiteDriver {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	driver, err := NewSQLiteDriver(db, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, err)
	return driver
}

func TestSQLiteDriverSetGet(t *testing.T) {
	d := testSQLiteDriver(t)

	require.NoError(t, d.Set("user_1_accounts", []byte(`{"a":1}`), time.Hour))

	doc, err := d.Get("user_1_accounts")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), doc)
}

func TestSQLiteDriverGetAbsent(t *testing.T) {
	d := testSQLiteDriver(t)

	doc, err := d.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSQLiteDriverUpsert(t *testing.T) {
	d := testSQLiteDriver(t)

	require.NoError(t, d.Set("key", []byte("old"), time.Hour))
	require.NoError(t, d.Set("key", []byte("new"), time.Hour))

	doc, err := d.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), doc)

	keys, err := d.Keys("*")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestSQLiteDriverDelete(t *testing.T) {
	d := testSQLiteDriver(t)

	require.NoError(t, d.Set("key", []byte("data"), 0))
	require.NoError(t, d.Delete("key"))
	require.NoError(t, d.Delete("key"))

	exists, err := d.Exists("key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteDriverKeysPattern(t *testing.T) {
	d := testSQLiteDriver(t)

	require.NoError(t, d.Set("user_1_accounts", []byte("a"), 0))
	require.NoError(t, d.Set("user_12_accounts", []byte("b"), 0))
	require.NoError(t, d.Set("global_rates", []byte("c"), 0))

	keys, err := d.Keys("user_1_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1_accounts"}, keys)

	keys, err = d.Keys("user_*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user_1_accounts", "user_12_accounts"}, keys)
}

func TestSQLiteDriverSize(t *testing.T) {
	d := testSQLiteDriver(t)

	require.NoError(t, d.Set("key", []byte("12345"), 0))

	size, err := d.Size("key")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}
