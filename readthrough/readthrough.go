// Package readthrough is a small on-disk byte cache, keyed by request URL.
// The musicbrainz client uses it so a re-crawl of an artist does not burn
// through the 1-request-per-second budget a second time.
package readthrough

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

type Cache struct {
	dir string
}

// Get returns the cached bytes for key, or false on a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	bs, err := os.ReadFile(c.filename(key))
	if err != nil {
		return nil, false
	}
	return bs, true
}

// Set stores bytes under key, creating the cache directory if necessary.
func (c *Cache) Set(key string, bs []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("error creating cache dir '%s': %w", c.dir, err)
	}
	filename := c.filename(key)
	if err := os.WriteFile(filename, bs, 0o644); err != nil {
		return fmt.Errorf("error writing cache file '%s': %w", filename, err)
	}
	return nil
}

// Remove drops the entry for key, if present.
func (c *Cache) Remove(key string) error {
	if err := os.Remove(c.filename(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing cache file for '%s': %w", key, err)
	}
	return nil
}

func (c *Cache) filename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}
