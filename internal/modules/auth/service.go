// Package auth handles login against the upstream API and issuing the
// service's own JWTs. The JWT carries the upstream session so later
// requests need no server-side session store.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"oddogate/internal/domain"
)

// UpstreamAuthenticator logs a user in against the upstream API.
type UpstreamAuthenticator interface {
	Login(ctx context.Context, username, password string) (domain.Session, error)
}

// Claims is the JWT payload. The upstream token and UUID ride inside
// the JWT so the service stays stateless.
type Claims struct {
	jwt.RegisteredClaims
	Oddo string `json:"oddo"`
	UUID string `json:"uuid"`
}

// Service issues and validates JWTs.
type Service struct {
	upstream UpstreamAuthenticator
	secret   []byte
	ttl      time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger
}

// NewService creates an auth service.
func NewService(upstream UpstreamAuthenticator, secret string, ttl time.Duration, clock clockwork.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		upstream: upstream,
		secret:   []byte(secret),
		ttl:      ttl,
		clock:    clock,
		log:      log.With().Str("service", "auth").Logger(),
	}
}

// Authenticate logs in against the upstream API and returns a signed
// JWT wrapping the resulting session. Returns
// domain.ErrInvalidCredentials when the upstream rejects the login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	session, err := s.upstream.Login(ctx, username, password)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Oddo: session.Token,
		UUID: session.UUID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.Info().Str("username", username).Msg("User authenticated")
	return signed, nil
}

// ValidateToken verifies a JWT and returns the session it wraps.
func (s *Service) ValidateToken(tokenString string) (domain.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return domain.Session{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Session{}, fmt.Errorf("invalid token claims")
	}

	return domain.Session{
		Username: claims.Subject,
		Token:    claims.Oddo,
		UUID:     claims.UUID,
	}, nil
}
