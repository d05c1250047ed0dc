package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Envelope wraps every cached document with the metadata needed to
// enforce TTLs without driver support.
type Envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	TTL       int64           `json:"ttl"` // seconds; 0 means no expiry
}

// EntryInfo describes a cached entry without touching its payload.
type EntryInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	TTL       int64     `json:"ttl"`
	Expired   bool      `json:"expired"`
	SizeBytes int64     `json:"size_bytes"`
}

// Manager layers key prefixing and TTL envelope handling on top of a
// Driver. Expiry is decided here from the envelope timestamp; expired
// entries are deleted lazily when Retrieve observes them.
type Manager struct {
	driver Driver
	prefix string
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewManager creates a Manager over driver. All keys are stored with
// the given prefix so multiple deployments can share one backend.
func NewManager(driver Driver, prefix string, clock clockwork.Clock, logger zerolog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		driver: driver,
		prefix: prefix,
		clock:  clock,
		logger: logger.With().Str("component", "storage_manager").Logger(),
	}
}

// Store marshals value into an envelope stamped with the current time
// and persists it under the prefixed key. A zero ttl stores the entry
// without expiry.
func (m *Manager) Store(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	env := Envelope{
		Timestamp: m.clock.Now().UTC(),
		Data:      data,
		TTL:       int64(ttl / time.Second),
	}
	doc, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	return m.driver.Set(m.prefix+key, doc, ttl)
}

// Retrieve returns the raw cached payload, or (nil, nil) on a miss.
// Expired and corrupt entries count as misses and are deleted in
// passing.
func (m *Manager) Retrieve(key string) (json.RawMessage, error) {
	fullKey := m.prefix + key

	doc, err := m.driver.Get(fullKey)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var env Envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		m.logger.Warn().Str("key", key).Err(err).Msg("Discarding corrupt cache entry")
		if delErr := m.driver.Delete(fullKey); delErr != nil {
			m.logger.Error().Str("key", key).Err(delErr).Msg("Failed to delete corrupt cache entry")
		}
		return nil, nil
	}

	if m.expired(env) {
		if delErr := m.driver.Delete(fullKey); delErr != nil {
			m.logger.Error().Str("key", key).Err(delErr).Msg("Failed to delete expired cache entry")
		}
		return nil, nil
	}

	return env.Data, nil
}

// RetrieveInto retrieves the cached payload and unmarshals it into out.
// Returns false on a miss.
func (m *Manager) RetrieveInto(key string, out interface{}) (bool, error) {
	data, err := m.Retrieve(key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		m.logger.Warn().Str("key", key).Err(err).Msg("Cached payload does not match expected shape")
		return false, nil
	}
	return true, nil
}

// Info returns metadata for key without deleting anything, so expired
// entries remain inspectable until a Retrieve or an explicit Delete.
// Returns (nil, nil) when key is absent.
func (m *Manager) Info(key string) (*EntryInfo, error) {
	fullKey := m.prefix + key

	doc, err := m.driver.Get(fullKey)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	size, err := m.driver.Size(fullKey)
	if err != nil {
		return nil, err
	}

	info := &EntryInfo{Key: key, SizeBytes: size}

	var env Envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		// Corrupt entries report as expired so operators can spot them.
		info.Expired = true
		return info, nil
	}

	info.Timestamp = env.Timestamp
	info.TTL = env.TTL
	info.Expired = m.expired(env)
	return info, nil
}

// Delete removes key. Deleting an absent key succeeds.
func (m *Manager) Delete(key string) error {
	return m.driver.Delete(m.prefix + key)
}

// Exists reports whether key is present, expired or not.
func (m *Manager) Exists(key string) (bool, error) {
	return m.driver.Exists(m.prefix + key)
}

// Keys lists unprefixed keys matching pattern ('*' wildcard).
func (m *Manager) Keys(pattern string) ([]string, error) {
	fullKeys, err := m.driver.Keys(m.prefix + pattern)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(fullKeys))
	for _, k := range fullKeys {
		keys = append(keys, k[len(m.prefix):])
	}
	return keys, nil
}

// Clear deletes every key matching pattern and returns how many were
// removed. A failed delete stops the sweep.
func (m *Manager) Clear(pattern string) (int, error) {
	keys, err := m.Keys(pattern)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := m.Delete(key); err != nil {
			return i, fmt.Errorf("failed to clear cache key %s: %w", key, err)
		}
	}
	return len(keys), nil
}

// Close closes the underlying driver.
func (m *Manager) Close() error {
	return m.driver.Close()
}

// expired reports whether the envelope's TTL has elapsed. An entry
// expires at timestamp+ttl exactly; a zero TTL never expires.
func (m *Manager) expired(env Envelope) bool {
	if env.TTL <= 0 {
		return false
	}
	deadline := env.Timestamp.Add(time.Duration(env.TTL) * time.Second)
	return !m.clock.Now().Before(deadline)
}
