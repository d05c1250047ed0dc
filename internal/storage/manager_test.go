package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) (*Manager, *clockwork.FakeClock, *MemoryDriver) {
	t.Helper()
	driver := NewMemoryDriver()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewManager(driver, "test_", clock, logger), clock, driver
}

func TestManagerStoreRetrieve(t *testing.T) {
	m, _, _ := testManager(t)

	require.NoError(t, m.Store("user_1_accounts", map[string]string{"hello": "world"}, time.Hour))

	data, err := m.Retrieve("user_1_accounts")
	require.NoError(t, err)
	require.NotNil(t, data)

	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "world", out["hello"])
}

func TestManagerRetrieveMiss(t *testing.T) {
	m, _, _ := testManager(t)

	data, err := m.Retrieve("missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestManagerTTLBoundary(t *testing.T) {
	m, clock, _ := testManager(t)

	require.NoError(t, m.Store("key", "value", time.Hour))

	// One second before the deadline the entry is still live.
	clock.Advance(time.Hour - time.Second)
	data, err := m.Retrieve("key")
	require.NoError(t, err)
	assert.NotNil(t, data)

	// At exactly timestamp+ttl the entry is expired.
	clock.Advance(time.Second)
	data, err = m.Retrieve("key")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestManagerExpiredEntryLazyDeleted(t *testing.T) {
	m, clock, driver := testManager(t)

	require.NoError(t, m.Store("key", "value", time.Minute))
	clock.Advance(2 * time.Minute)

	data, err := m.Retrieve("key")
	require.NoError(t, err)
	assert.Nil(t, data)

	// The expired document is gone from the driver, not just masked.
	doc, err := driver.Get("test_key")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestManagerZeroTTLNeverExpires(t *testing.T) {
	m, clock, _ := testManager(t)

	require.NoError(t, m.Store("key", "value", 0))
	clock.Advance(1000 * time.Hour)

	data, err := m.Retrieve("key")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestManagerInfoDoesNotDeleteExpired(t *testing.T) {
	m, clock, driver := testManager(t)

	require.NoError(t, m.Store("key", "value", time.Minute))
	clock.Advance(2 * time.Minute)

	info, err := m.Info("key")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.Expired)
	assert.Equal(t, int64(60), info.TTL)

	// Info is read-only; the entry is still in the driver.
	doc, err := driver.Get("test_key")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestManagerInfoAbsentKey(t *testing.T) {
	m, _, _ := testManager(t)

	info, err := m.Info("missing")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestManagerCorruptEntryIsMiss(t *testing.T) {
	m, _, driver := testManager(t)

	require.NoError(t, driver.Set("test_key", []byte("{not json"), 0))

	data, err := m.Retrieve("key")
	require.NoError(t, err)
	assert.Nil(t, data)

	// Corrupt entries are swept on retrieve.
	doc, err := driver.Get("test_key")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestManagerDeleteIdempotent(t *testing.T) {
	m, _, _ := testManager(t)

	require.NoError(t, m.Store("key", "value", time.Hour))
	require.NoError(t, m.Delete("key"))
	require.NoError(t, m.Delete("key"))

	data, err := m.Retrieve("key")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestManagerClearPattern(t *testing.T) {
	m, _, _ := testManager(t)

	require.NoError(t, m.Store("user_1_accounts", "a", time.Hour))
	require.NoError(t, m.Store("user_1_portfolio", "b", time.Hour))
	require.NoError(t, m.Store("user_2_accounts", "c", time.Hour))
	require.NoError(t, m.Store("global_rates", "d", time.Hour))

	removed, err := m.Clear("user_1_*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	data, err := m.Retrieve("user_2_accounts")
	require.NoError(t, err)
	assert.NotNil(t, data)

	data, err = m.Retrieve("global_rates")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestManagerKeysAreUnprefixed(t *testing.T) {
	m, _, _ := testManager(t)

	require.NoError(t, m.Store("user_1_accounts", "a", time.Hour))

	keys, err := m.Keys("*")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_1_accounts"}, keys)
}

func TestManagerRetrieveInto(t *testing.T) {
	m, _, _ := testManager(t)

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, m.Store("key", payload{Name: "acme"}, time.Hour))

	var out payload
	found, err := m.RetrieveInto("key", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "acme", out.Name)

	found, err = m.RetrieveInto("missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManagerStoreOverwrites(t *testing.T) {
	m, _, _ := testManager(t)

	require.NoError(t, m.Store("key", "old", time.Hour))
	require.NoError(t, m.Store("key", "new", time.Hour))

	var out string
	found, err := m.RetrieveInto("key", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", out)
}
