package codegen

import (
	"sync"

	"github.com/leapstack-labs/ui4t/pkg/spec"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes artifacts by Key. It is safe for concurrent use;
// concurrent compiles of the same key share one result.
type Cache struct {
	mu     sync.RWMutex
	items  map[Key]*Artifact
	group  singleflight.Group
	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[Key]*Artifact)}
}

// Compile returns the cached artifact for v on d, compiling it on a miss.
// Errors are not cached. A miss is counted once per compile; callers served
// by the cache or by a concurrent compile of the same key count as hits.
func (c *Cache) Compile(v *spec.Validated, d Dialect, opts Options) (*Artifact, error) {
	key := KeyFor(v, d, opts)

	c.mu.Lock()
	if a, ok := c.items[key]; ok {
		c.hits++
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	compiled := false
	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		a, ok := c.items[key]
		c.mu.RUnlock()
		if ok {
			return a, nil
		}
		compiled = true
		a, err := Compile(v, d, opts)
		c.mu.Lock()
		c.misses++
		if err == nil {
			c.items[key] = a
		}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	if !compiled {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return res.(*Artifact), nil
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
