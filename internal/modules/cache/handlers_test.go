package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oddogate/internal/domain"
	"oddogate/internal/modules/auth"
	"oddogate/internal/storage"
)

const testSecret = "test-secret-at-least-32-characters-long"

type stubUpstreamAuth struct {
	session domain.Session
}

func (s *stubUpstreamAuth) Login(context.Context, string, string) (domain.Session, error) {
	return s.session, nil
}

func authedRequest(t *testing.T, method, target string, session domain.Session) *http.Request {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	service := auth.NewService(&stubUpstreamAuth{session: session}, testSecret, time.Hour, clock, logger)

	token, err := service.Authenticate(context.Background(), session.Username, "pw")
	require.NoError(t, err)

	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	var out *http.Request
	service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out = r
	})).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, out)
	return out
}

type stubFetcher struct {
	accounts []domain.AccountWithPositions
	err      error
	calls    int
}

func (f *stubFetcher) FetchAccountsWithPositions(context.Context, domain.Session) ([]domain.AccountWithPositions, error) {
	f.calls++
	return f.accounts, f.err
}

func testHandler(t *testing.T, fetcher AccountsFetcher) (*Handler, *Service) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	manager := storage.NewManager(storage.NewMemoryDriver(), "test_", clock, logger)
	service := NewService(manager, time.Hour, clock, logger)
	return NewHandler(service, fetcher, logger), service
}

func TestHandleInfo(t *testing.T) {
	handler, service := testHandler(t, &stubFetcher{})
	session := domain.Session{Username: "alice", Token: "tok"}

	require.NoError(t, service.SetUserAccounts("alice", []domain.AccountWithPositions{{AccountNumber: "FR001"}}, nil))

	rec := httptest.NewRecorder()
	handler.HandleInfo(rec, authedRequest(t, http.MethodGet, "/cache/info", session))

	require.Equal(t, http.StatusOK, rec.Code)

	var info DetailedInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.True(t, info.CacheExists)
	assert.Equal(t, 1, info.AccountsCount)
}

func TestHandleInvalidate(t *testing.T) {
	handler, service := testHandler(t, &stubFetcher{})
	session := domain.Session{Username: "alice", Token: "tok"}

	require.NoError(t, service.SetUserAccounts("alice", []domain.AccountWithPositions{{AccountNumber: "FR001"}}, nil))

	rec := httptest.NewRecorder()
	handler.HandleInvalidate(rec, authedRequest(t, http.MethodDelete, "/cache", session))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["removed"])

	_, found, err := service.GetUserAccounts("alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHandleRefresh(t *testing.T) {
	fetcher := &stubFetcher{accounts: []domain.AccountWithPositions{
		{AccountNumber: "FR001"},
		{AccountNumber: "FR002"},
	}}
	handler, service := testHandler(t, fetcher)
	session := domain.Session{Username: "alice", Token: "tok"}

	rec := httptest.NewRecorder()
	handler.HandleRefresh(rec, authedRequest(t, http.MethodPost, "/cache/refresh", session))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fetcher.calls)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(2), body["accountsCount"])

	accounts, found, err := service.GetUserAccounts("alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, accounts, 2)
}

func TestHandleRefreshExpiredSession(t *testing.T) {
	handler, _ := testHandler(t, &stubFetcher{err: domain.ErrUnauthorized})
	session := domain.Session{Username: "alice", Token: "stale"}

	rec := httptest.NewRecorder()
	handler.HandleRefresh(rec, authedRequest(t, http.MethodPost, "/cache/refresh", session))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRefreshUpstreamFailure(t *testing.T) {
	handler, _ := testHandler(t, &stubFetcher{err: errors.New("timeout")})
	session := domain.Session{Username: "alice", Token: "tok"}

	rec := httptest.NewRecorder()
	handler.HandleRefresh(rec, authedRequest(t, http.MethodPost, "/cache/refresh", session))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
