package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"oddogate/internal/database"
)

// SQLiteDriver persists documents in a single cache_storage table. The
// expires_at column mirrors the ttl hint so expired rows can be swept
// opportunistically, but reads return whatever is stored and leave
// expiry to the Manager.
type SQLiteDriver struct {
	db     *database.DB
	logger zerolog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_storage (
	cache_key  TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now')),
	expires_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_cache_storage_expires ON cache_storage(expires_at);
`

// NewSQLiteDriver creates the sqlite driver and its table.
func NewSQLiteDriver(db *database.DB, logger zerolog.Logger) (*SQLiteDriver, error) {
	if _, err := db.Conn().Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &SQLiteDriver{
		db:     db,
		logger: logger.With().Str("component", "storage_sqlite").Logger(),
	}, nil
}

func (d *SQLiteDriver) Set(key string, doc []byte, ttl time.Duration) error {
	var expiresAt sql.NullString
	if ttl > 0 {
		expiresAt = sql.NullString{
			String: time.Now().UTC().Add(ttl).Format(time.RFC3339),
			Valid:  true,
		}
	}

	_, err := d.db.Conn().Exec(`
		INSERT INTO cache_storage (cache_key, data, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = datetime('now')`,
		key, doc, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) Get(key string) ([]byte, error) {
	var data []byte
	err := d.db.Conn().QueryRow(
		`SELECT data FROM cache_storage WHERE cache_key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, nil
}

func (d *SQLiteDriver) Delete(key string) error {
	if _, err := d.db.Conn().Exec(
		`DELETE FROM cache_storage WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) Exists(key string) (bool, error) {
	var one int
	err := d.db.Conn().QueryRow(
		`SELECT 1 FROM cache_storage WHERE cache_key = ?`, key).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *SQLiteDriver) Keys(pattern string) ([]string, error) {
	// '*' wildcards become SQL LIKE '%' wildcards
	like := strings.ReplaceAll(pattern, "%", "\\%")
	like = strings.ReplaceAll(like, "_", "\\_")
	like = strings.ReplaceAll(like, "*", "%")

	rows, err := d.db.Conn().Query(
		`SELECT cache_key FROM cache_storage WHERE cache_key LIKE ? ESCAPE '\'`, like)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (d *SQLiteDriver) Size(key string) (int64, error) {
	var size int64
	err := d.db.Conn().QueryRow(
		`SELECT length(data) FROM cache_storage WHERE cache_key = ?`, key).Scan(&size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return size, nil
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}
