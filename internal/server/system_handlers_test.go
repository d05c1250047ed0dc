package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	keys []string
}

func (s *stubLister) Keys(string) ([]string, error) {
	return s.keys, nil
}

func TestHandleStatus(t *testing.T) {
	h := NewSystemHandlers(t.TempDir(), &stubLister{}, zerolog.New(nil).Level(zerolog.Disabled))

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, body["version"])
}

func TestHandleDiskUsage(t *testing.T) {
	h := NewSystemHandlers(t.TempDir(), &stubLister{keys: []string{"user_a_accounts", "user_b_accounts"}}, zerolog.New(nil).Level(zerolog.Disabled))

	rec := httptest.NewRecorder()
	h.HandleDiskUsage(rec, httptest.NewRequest(http.MethodGet, "/system/disk", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body DiskUsageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Greater(t, body.TotalMB, float64(0))
	assert.GreaterOrEqual(t, body.UsedPercent, float64(0))
	assert.Equal(t, 2, body.CacheEntries)
}
