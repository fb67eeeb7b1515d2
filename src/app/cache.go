package app

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	categoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallserv_category_cache_hits_total",
		Help: "Distinct-category lookups served from cache.",
	})
	categoryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallserv_category_cache_misses_total",
		Help: "Distinct-category lookups that went to the store.",
	})
	orphanedObjects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallserv_orphaned_objects_total",
		Help: "Object-store deletes that failed while removing image metadata.",
	})
)

const categoriesKey = "categories"

// categoryCache holds the distinct category list for a short TTL. A cache
// without an LRU disables caching. Every purge starts a new generation, and a
// list read from the store before a purge is never stored after it.
type categoryCache struct {
	lru *expirable.LRU[string, []string]

	mu         sync.Mutex
	generation uint64
}

func newCategoryCache(ttl time.Duration) *categoryCache {
	if ttl <= 0 {
		return &categoryCache{}
	}
	return &categoryCache{lru: expirable.NewLRU[string, []string](1, nil, ttl)}
}

// get returns the cached list, or on a miss the generation a later set must
// present.
func (c *categoryCache) get() ([]string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru == nil {
		return nil, c.generation, false
	}
	categories, ok := c.lru.Get(categoriesKey)
	if ok {
		categoryCacheHits.Inc()
		return append([]string{}, categories...), c.generation, true
	}
	categoryCacheMisses.Inc()
	return nil, c.generation, false
}

func (c *categoryCache) set(generation uint64, categories []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil && generation == c.generation {
		c.lru.Add(categoriesKey, append([]string{}, categories...))
	}
}

func (c *categoryCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.lru != nil {
		c.lru.Purge()
	}
}
