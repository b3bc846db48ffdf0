package pagemill

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CacheTTL bounds the staleness of post-list lookups between explicit
// invalidations.
const CacheTTL = 15 * time.Minute

// Cache keys for post-list queries. Limits vary per call site, so the keys
// embed them and writes invalidate whole families by prefix.
const (
	recentPostsPrefix   = "blog_recent_posts_"
	featuredPostsPrefix = "blog_featured_posts_"
)

func recentPostsKey(limit int) string   { return fmt.Sprintf("%s%d", recentPostsPrefix, limit) }
func featuredPostsKey(limit int) string { return fmt.Sprintf("%s%d", featuredPostsPrefix, limit) }
func relatedPostsKey(id int64) string   { return fmt.Sprintf("blog_related_posts_%d", id) }

// QueryCache is a best-effort, short-TTL cache for post-list queries.
// Implementations never fail reads: backend errors surface as misses.
// Callers must not mutate returned slices.
type QueryCache interface {
	Get(key string) ([]BlogPost, bool)
	Set(key string, posts []BlogPost)
	Delete(keys ...string)
	DeletePrefix(prefixes ...string)
	Close() error
}

// memoryCache is the default in-process backend: a mutex-guarded map with
// lazy expiry on read and a periodic sweep.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	posts   []BlogPost
	expires time.Time
}

// NewMemoryCache creates the in-process cache backend and starts its sweep
// goroutine. Close stops the sweeper.
func NewMemoryCache(ttl time.Duration) QueryCache {
	c := &memoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *memoryCache) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expires) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

func (c *memoryCache) Get(key string) ([]BlogPost, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.posts, true
}

func (c *memoryCache) Set(key string, posts []BlogPost) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{posts: posts, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *memoryCache) Delete(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
}

func (c *memoryCache) DeletePrefix(prefixes ...string) {
	c.mu.Lock()
	for k := range c.entries {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				delete(c.entries, k)
				break
			}
		}
	}
	c.mu.Unlock()
}

func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
