package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache maps a content fingerprint to the public URL of a previously
// uploaded asset. Identical bytes always resolve to the same entry, so
// re-encountering the same inline image never re-uploads. There is no
// eviction; entries live for the process lifetime.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty content cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]string),
	}
}

// Fingerprint returns the deterministic content hash used as cache key
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached public URL for a fingerprint, if any
func (c *Cache) Lookup(fingerprint string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.entries[fingerprint]
	return url, ok
}

// Insert stores the public URL for a fingerprint
func (c *Cache) Insert(fingerprint, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = url
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
