package route

import (
	"sync"
	"time"

	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/models"
)

// Cache memoizes recent route lookups. Entries are keyed by destination
// with a small epsilon tolerance, since the destination (counterpart or
// airport) is the stable end of a request. Origin equivalence is governed
// by the drift floor, which subsumes the epsilon for the moving end.
//
// An entry is reused only while BOTH floors hold: elapsed time under the
// TTL and origin drift under the drift floor. Exceeding either forces a
// fresh provider request.
type Cache struct {
	mu      sync.Mutex
	entries []cacheEntry

	ttl     time.Duration
	drift   float64 // meters
	epsilon float64 // meters

	now func() time.Time
}

type cacheEntry struct {
	origin      models.Coord
	destination models.Coord
	route       Route
	insertedAt  time.Time
}

func NewCache(ttl time.Duration, driftMeters, epsilonMeters float64) *Cache {
	return &Cache{ttl: ttl, drift: driftMeters, epsilon: epsilonMeters, now: time.Now}
}

// Get returns the cached route for an equivalent request while the entry
// is still fresh. A stale entry stays in place until Set replaces it, so
// a failed refresh can fall back to the prior route.
func (c *Cache) Get(origin, destination models.Coord) (Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.find(destination)
	if i < 0 {
		return Route{}, false
	}
	e := c.entries[i]
	if c.now().Sub(e.insertedAt) >= c.ttl {
		return Route{}, false
	}
	if geo.Distance(origin, e.origin) >= c.drift {
		return Route{}, false
	}
	return e.route, true
}

// Set stores a route, replacing any entry for an equivalent destination.
func (c *Cache) Set(origin, destination models.Coord, r Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cacheEntry{origin: origin, destination: destination, route: r, insertedAt: c.now()}
	if i := c.find(destination); i >= 0 {
		c.entries[i] = e
		return
	}
	c.entries = append(c.entries, e)
}

// find locates the entry whose destination lies within epsilon of the
// request's. Called with the mutex held.
func (c *Cache) find(destination models.Coord) int {
	for i, e := range c.entries {
		if geo.Distance(destination, e.destination) <= c.epsilon {
			return i
		}
	}
	return -1
}
