package geocode

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CacheEntry is one stored geocode result. Entries are never evicted; a key
// collision overwrites.
type CacheEntry struct {
	Coordinates Coordinates `json:"coordinates"`
	DisplayName string      `json:"display_name"`
	CachedAt    time.Time   `json:"cached_at"`
}

// Cache is the process-wide geocode cache, loaded once at startup and flushed
// explicitly after batches that added entries. All methods are safe for
// concurrent use.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]CacheEntry
	dirty   bool
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9_]`)

// CacheKey builds the lookup key for an address + ZIP pair: lowercased,
// trimmed, every other character collapsed to underscore.
func CacheKey(address, zipCode string) string {
	key := strings.ToLower(strings.TrimSpace(address)) + "_" + zipCode
	return nonKeyChars.ReplaceAllString(key, "_")
}

// LoadCache reads the cache file at path. A missing or corrupt file is not
// fatal; the cache starts empty.
func LoadCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).WithField("path", path).Warn("could not read geocode cache")
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.WithError(err).WithField("path", path).Warn("geocode cache corrupt, starting empty")
		c.entries = make(map[string]CacheEntry)
		return c
	}
	log.WithField("entries", len(c.entries)).Info("loaded geocode cache")
	return c
}

func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) Put(key string, e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush persists the cache if anything changed since the last flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return err
	}
	c.dirty = false
	log.WithField("entries", len(c.entries)).Info("saved geocode cache")
	return nil
}
