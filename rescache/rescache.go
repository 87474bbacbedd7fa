// Package rescache memoizes encoded result frames by request fingerprint
// so that byte-identical task submissions return instantly without
// re-running the worker pool (spec §4.E).
package rescache

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cppla/computesrv/protocol"
)

// entry is the bookkeeping kept alongside the payload stored in the
// underlying go-cache instance, used to drive cost-bounded eviction.
type entry struct {
	fingerprint protocol.Fingerprint
	frame       []byte
	cost        int
}

// Cache maps a request fingerprint to a previously produced encoded
// result frame. go-cache provides the actual key/value storage (no
// expiration is used — entries live until evicted); Cache layers an
// approximate-LRU, cost-bounded eviction index on top, since go-cache
// itself has no notion of a total size budget.
type Cache struct {
	mu       sync.Mutex
	store    *cache.Cache
	order    *list.List // front = most-recently-used
	elems    map[protocol.Fingerprint]*list.Element
	maxCost  int
	curCost  int
}

// New creates a cache that evicts least-recently-used entries once the
// sum of stored costs would exceed maxCost.
func New(maxCost int) *Cache {
	return &Cache{
		store:   cache.New(cache.NoExpiration, 10*time.Minute),
		order:   list.New(),
		elems:   make(map[protocol.Fingerprint]*list.Element),
		maxCost: maxCost,
	}
}

func key(fp protocol.Fingerprint) string {
	return strconv.FormatUint(uint64(fp), 36)
}

// Lookup returns the encoded result frame for fp, if present, and moves
// the entry to most-recently-used.
func (c *Cache) Lookup(fp protocol.Fingerprint) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.elems[fp]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).frame, true
}

// Insert stores frame under fp with the given cost (its byte size),
// evicting least-recently-used entries until the cache is back under
// its cost budget. Re-inserting an existing fingerprint refreshes its
// recency and cost.
func (c *Cache) Insert(fp protocol.Fingerprint, frame []byte, cost int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.elems[fp]; ok {
		old := elem.Value.(*entry)
		c.curCost -= old.cost
		c.order.Remove(elem)
		delete(c.elems, fp)
		c.store.Delete(key(fp))
	}

	e := &entry{fingerprint: fp, frame: frame, cost: cost}
	elem := c.order.PushFront(e)
	c.elems[fp] = elem
	c.curCost += cost
	c.store.SetDefault(key(fp), frame)

	for c.curCost > c.maxCost && c.order.Len() > 0 {
		back := c.order.Back()
		victim := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.elems, victim.fingerprint)
		c.store.Delete(key(victim.fingerprint))
		c.curCost -= victim.cost
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
