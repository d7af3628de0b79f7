package tracker

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// NameCache keeps display names of users and projects for task population.
// Entries expire after ttl so renames on other instances show up eventually.
type NameCache struct {
	cache *lru.LRU[string, string]
}

// NewNameCache creates a cache holding at most size names
func NewNameCache(size int, ttl time.Duration) *NameCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NameCache{
		cache: lru.NewLRU[string, string](size, nil, ttl),
	}
}

func userKey(id string) string    { return "user:" + id }
func projectKey(id string) string { return "project:" + id }

func (c *NameCache) get(key string) (string, bool) {
	return c.cache.Get(key)
}

func (c *NameCache) add(key, name string) {
	c.cache.Add(key, name)
}

// Forget drops a cached name after a rename
func (c *NameCache) Forget(key string) {
	c.cache.Remove(key)
}

// Len returns the number of cached names
func (c *NameCache) Len() int {
	return c.cache.Len()
}
