package storage

import (
	"path"
	"sync"
	"time"
)

// MemoryDriver is a map-backed driver guarded by a RWMutex. It is the
// default for tests and works for single-process deployments where the
// cache does not need to survive a restart.
type MemoryDriver struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{data: make(map[string][]byte)}
}

func (d *MemoryDriver) Set(key string, doc []byte, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := make([]byte, len(doc))
	copy(stored, doc)
	d.data[key] = stored
	return nil
}

func (d *MemoryDriver) Get(key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (d *MemoryDriver) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, key)
	return nil
}

func (d *MemoryDriver) Exists(key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.data[key]
	return ok, nil
}

func (d *MemoryDriver) Keys(pattern string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var keys []string
	for key := range d.data {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (d *MemoryDriver) Size(key string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.data[key])), nil
}

func (d *MemoryDriver) Close() error {
	return nil
}
