package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"oddogate/internal/domain"
)

const testSecret = "test-secret-at-least-32-characters-long"

type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) Login(ctx context.Context, username, password string) (domain.Session, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(domain.Session), args.Error(1)
}

func testService(t *testing.T, upstream UpstreamAuthenticator) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewService(upstream, testSecret, time.Hour, clock, logger), clock
}

func TestAuthenticateIssuesValidToken(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "secret").Return(domain.Session{
		Username: "alice",
		Token:    "oddo-token",
		UUID:     "uuid-123",
	}, nil)

	service, _ := testService(t, upstream)

	token, err := service.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	session, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "oddo-token", session.Token)
	assert.Equal(t, "uuid-123", session.UUID)
}

func TestAuthenticatePropagatesUpstreamRejection(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "wrong").Return(domain.Session{}, domain.ErrInvalidCredentials)

	service, _ := testService(t, upstream)

	_, err := service.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "secret").Return(domain.Session{Username: "alice"}, nil)

	service, clock := testService(t, upstream)

	token, err := service.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "secret").Return(domain.Session{Username: "alice"}, nil)

	service, _ := testService(t, upstream)
	other, _ := testService(t, upstream)
	other.secret = []byte("another-secret-also-32-chars-long!!!")

	token, err := service.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	service, _ := testService(t, new(mockUpstream))

	_, err := service.ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "secret").Return(domain.Session{
		Username: "alice",
		Token:    "oddo-token",
	}, nil)

	service, _ := testService(t, upstream)
	token, err := service.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)

	var gotSession domain.Session
	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		gotSession = session
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotSession.Username)
	assert.Equal(t, "oddo-token", gotSession.Token)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	service, _ := testService(t, new(mockUpstream))

	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Missing Bearer token", body["error"])
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	service, _ := testService(t, new(mockUpstream))

	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "secret").Return(domain.Session{
		Username: "alice",
		Token:    "oddo-token",
	}, nil)

	service, _ := testService(t, upstream)
	handler := NewHandler(service, zerolog.New(nil).Level(zerolog.Disabled))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user":"alice","pass":"secret"}`))
	rec := httptest.NewRecorder()
	handler.HandleLogin(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body["jwt"])
}

func TestHandleLoginMissingCredentials(t *testing.T) {
	service, _ := testService(t, new(mockUpstream))
	handler := NewHandler(service, zerolog.New(nil).Level(zerolog.Disabled))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user":"alice"}`))
	rec := httptest.NewRecorder()
	handler.HandleLogin(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	upstream := new(mockUpstream)
	upstream.On("Login", mock.Anything, "alice", "wrong").Return(domain.Session{}, domain.ErrInvalidCredentials)

	service, _ := testService(t, upstream)
	handler := NewHandler(service, zerolog.New(nil).Level(zerolog.Disabled))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user":"alice","pass":"wrong"}`))
	rec := httptest.NewRecorder()
	handler.HandleLogin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
