package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FileDriver persists documents as JSON files in a single directory.
// Keys map to file names with path separators replaced, so a hostile
// key cannot escape the cache directory.
type FileDriver struct {
	dir    string
	logger zerolog.Logger
}

// NewFileDriver creates a file driver rooted at dir, creating the
// directory if needed.
func NewFileDriver(dir string, logger zerolog.Logger) (*FileDriver, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileDriver{
		dir:    absDir,
		logger: logger.With().Str("component", "storage_file").Logger(),
	}, nil
}

// path maps a key to its file path. Separators in the key are replaced
// with underscores.
func (d *FileDriver) path(key string) string {
	sanitized := strings.NewReplacer("/", "_", "\\", "_").Replace(key)
	return filepath.Join(d.dir, sanitized+".json")
}

// Set writes the document via a temp file and rename, so readers never
// observe a partially written entry. The ttl is ignored; expiry is
// enforced by the Manager from the envelope timestamp.
func (d *FileDriver) Set(key string, doc []byte, _ time.Duration) error {
	target := d.path(key)

	tmp, err := os.CreateTemp(d.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (d *FileDriver) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, nil
}

func (d *FileDriver) Delete(key string) error {
	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (d *FileDriver) Exists(key string) (bool, error) {
	_, err := os.Stat(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *FileDriver) Keys(pattern string) ([]string, error) {
	sanitized := strings.NewReplacer("/", "_", "\\", "_").Replace(pattern)
	matches, err := filepath.Glob(filepath.Join(d.dir, sanitized+".json"))
	if err != nil {
		return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, err)
	}

	keys := make([]string, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

func (d *FileDriver) Size(key string) (int64, error) {
	info, err := os.Stat(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func (d *FileDriver) Close() error {
	return nil
}
