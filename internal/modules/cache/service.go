// Package cache provides the user-level caching policy on top of the
// storage manager: key naming, default TTLs, invalidation and refresh.
package cache

import (
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"oddogate/internal/domain"
	"oddogate/internal/storage"
)

// Service applies the caching policy for per-user account data.
type Service struct {
	manager    *storage.Manager
	defaultTTL time.Duration
	clock      clockwork.Clock
	log        zerolog.Logger
}

// NewService creates a cache service. defaultTTL applies when callers
// pass no explicit TTL; non-positive values fall back to one hour.
func NewService(manager *storage.Manager, defaultTTL time.Duration, clock clockwork.Clock, log zerolog.Logger) *Service {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		manager:    manager,
		defaultTTL: defaultTTL,
		clock:      clock,
		log:        log.With().Str("service", "cache").Logger(),
	}
}

// UserKey builds the cache key for one user's data of the given type.
func UserKey(userID, dataType string) string {
	return fmt.Sprintf("user_%s_%s", userID, dataType)
}

// GetUserAccounts returns the cached accounts for userID, or
// (nil, false, nil) on a miss.
func (s *Service) GetUserAccounts(userID string) ([]domain.AccountWithPositions, bool, error) {
	var accounts []domain.AccountWithPositions
	found, err := s.manager.RetrieveInto(UserKey(userID, "accounts"), &accounts)
	if err != nil || !found {
		return nil, false, err
	}
	return accounts, true, nil
}

// SetUserAccounts caches accounts for userID. A nil ttl uses the
// default.
func (s *Service) SetUserAccounts(userID string, accounts []domain.AccountWithPositions, ttl *time.Duration) error {
	effective := s.defaultTTL
	if ttl != nil {
		effective = *ttl
	}
	return s.manager.Store(UserKey(userID, "accounts"), accounts, effective)
}

// InvalidateUser removes every cached entry belonging to userID and
// returns how many entries were dropped.
func (s *Service) InvalidateUser(userID string) (int, error) {
	return s.manager.Clear(fmt.Sprintf("user_%s_*", userID))
}

// InvalidateAll empties the whole cache.
func (s *Service) InvalidateAll() (int, error) {
	return s.manager.Clear("*")
}

// Info returns storage metadata for one of userID's entries without
// side effects. Returns (nil, nil) when nothing is cached.
func (s *Service) Info(userID, dataType string) (*storage.EntryInfo, error) {
	return s.manager.Info(UserKey(userID, dataType))
}

// RefreshUserAccounts drops the cached entry, fetches fresh data and
// caches it. The fresh data is returned even when the cache write
// fails; a stale cache must never cost the caller a successful fetch.
func (s *Service) RefreshUserAccounts(userID string, fetch func() ([]domain.AccountWithPositions, error), ttl *time.Duration) ([]domain.AccountWithPositions, error) {
	if err := s.manager.Delete(UserKey(userID, "accounts")); err != nil {
		s.log.Warn().Err(err).Str("user", userID).Msg("Failed to drop cache entry before refresh")
	}

	accounts, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := s.SetUserAccounts(userID, accounts, ttl); err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("Failed to cache refreshed accounts")
	}
	return accounts, nil
}

// DetailedInfo describes the cached accounts entry of one user in an
// operator-friendly shape.
type DetailedInfo struct {
	CachePath      string  `json:"cachePath"`
	CacheExists    bool    `json:"cacheExists"`
	CacheTTL       int64   `json:"cacheTtl"`
	CacheTTLHuman  string  `json:"cacheTtlHuman"`
	CacheTimestamp *string `json:"cacheTimestamp"`
	CacheAge       *int64  `json:"cacheAge"`
	CacheAgeHuman  *string `json:"cacheAgeHuman"`
	IsExpired      bool    `json:"isExpired"`
	ExpiresIn      *int64  `json:"expiresIn"`
	ExpiresInHuman *string `json:"expiresInHuman"`
	AccountsCount  int     `json:"accountsCount"`
	FileSizeBytes  int64   `json:"fileSizeBytes"`
	FileSizeHuman  string  `json:"fileSizeHuman"`
}

// GetDetailedInfo builds the cache report for userID's accounts entry.
func (s *Service) GetDetailedInfo(userID string) (*DetailedInfo, error) {
	info, err := s.Info(userID, "accounts")
	if err != nil {
		return nil, err
	}

	report := &DetailedInfo{
		CachePath:     fmt.Sprintf("user_cache_%s", userID),
		CacheTTL:      int64(s.defaultTTL / time.Second),
		CacheTTLHuman: formatDuration(int64(s.defaultTTL / time.Second)),
		FileSizeHuman: formatFileSize(0),
	}
	if info == nil {
		return report, nil
	}

	report.CacheExists = true
	report.IsExpired = info.Expired
	report.FileSizeBytes = info.SizeBytes
	report.FileSizeHuman = formatFileSize(info.SizeBytes)

	timestamp := info.Timestamp.Format(time.RFC3339)
	report.CacheTimestamp = &timestamp

	age := int64(s.clock.Now().Sub(info.Timestamp) / time.Second)
	if age < 0 {
		age = 0
	}
	ageHuman := formatDuration(age)
	report.CacheAge = &age
	report.CacheAgeHuman = &ageHuman

	if info.TTL > 0 {
		expiresIn := info.TTL - age
		if expiresIn < 0 {
			expiresIn = 0
		}
		expiresInHuman := formatDuration(expiresIn)
		report.ExpiresIn = &expiresIn
		report.ExpiresInHuman = &expiresInHuman
	}

	if accounts, found, err := s.GetUserAccounts(userID); err == nil && found {
		report.AccountsCount = len(accounts)
	}

	return report, nil
}

func formatFileSize(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	if bytes < 0 {
		bytes = 0
	}

	pow := 0
	if bytes > 0 {
		pow = int(math.Log(float64(bytes)) / math.Log(1024))
	}
	if pow > len(units)-1 {
		pow = len(units) - 1
	}

	value := float64(bytes) / float64(int64(1)<<(10*pow))
	return fmt.Sprintf("%g %s", math.Round(value*100)/100, units[pow])
}

func formatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
