package geocode

import (
	"context"
	"sync"
)

// MemCache layers a bounded in-memory LRU over the persistent cache so
// hot coordinate pairs skip the database read. Writes go through to the
// persistent cache first; the memory layer never holds a name that is
// not durably stored.
type MemCache struct {
	inner Cache

	maxEntries int
	mu         sync.Mutex
	entries    map[coordKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type coordKey struct {
	lat, lon float64
}

type entry struct {
	key  coordKey
	name string
	prev *entry
	next *entry
}

// NewMemCache wraps inner with an LRU holding at most maxEntries names.
func NewMemCache(inner Cache, maxEntries int) *MemCache {
	return &MemCache{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[coordKey]*entry),
	}
}

func (c *MemCache) LookupPlace(ctx context.Context, lat, lon float64) (string, bool) {
	key := coordKey{lat, lon}
	if name, ok := c.get(key); ok {
		return name, true
	}
	name, ok := c.inner.LookupPlace(ctx, lat, lon)
	if ok {
		c.put(key, name)
	}
	return name, ok
}

func (c *MemCache) StorePlace(ctx context.Context, lat, lon float64, name string) error {
	if err := c.inner.StorePlace(ctx, lat, lon, name); err != nil {
		return err
	}
	c.put(coordKey{lat, lon}, name)
	return nil
}

func (c *MemCache) get(key coordKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.name, true
}

func (c *MemCache) put(key coordKey, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.name = name
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, name: name}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *MemCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *MemCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *MemCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.remove(evicted)
	delete(c.entries, evicted.key)
}
