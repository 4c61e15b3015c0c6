package geostore

import (
	"context"
	"sync"
	"time"

	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/models"
)

// EventKind enumerates geo query event types.
type EventKind string

const (
	EventEntered EventKind = "entered"
	EventExited  EventKind = "exited"
	EventMoved   EventKind = "moved"
	EventReady   EventKind = "ready"
	EventError   EventKind = "error"
)

// Event is one geofence observation for a tracked key.
type Event struct {
	Kind  EventKind
	Key   string
	Coord models.Coord
	Err   error
}

// Query is a live radius subscription. Events stop after Close.
type Query interface {
	Events() <-chan Event
	Close()
}

// Store is the remote keyed-location publish/subscribe capability.
// Keys are single-writer by convention but read by both participants;
// readers must tolerate absent keys.
type Store interface {
	SetLocation(ctx context.Context, key string, c models.Coord) error
	RemoveLocation(ctx context.Context, key string) error
	// GetLocation returns ok=false when the key has not been published.
	GetLocation(ctx context.Context, key string) (models.Coord, bool, error)
	// SubscribeGeoQuery watches a radius around center and reports
	// enter/exit/move events for every published key crossing it.
	SubscribeGeoQuery(ctx context.Context, center models.Coord, radiusKm float64) Query
}

// MemoryStore is an in-process Store used in tests and single-node runs.
type MemoryStore struct {
	mu        sync.Mutex
	locations map[string]models.LocationRecord
	queries   map[int]*memoryQuery
	nextID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locations: make(map[string]models.LocationRecord),
		queries:   make(map[int]*memoryQuery),
	}
}

func (m *MemoryStore) SetLocation(_ context.Context, key string, c models.Coord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[key] = models.LocationRecord{Key: key, Coord: c, UpdatedAt: time.Now()}
	for _, q := range m.queries {
		q.observe(key, c)
	}
	return nil
}

func (m *MemoryStore) RemoveLocation(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, key)
	for _, q := range m.queries {
		q.forget(key)
	}
	return nil
}

func (m *MemoryStore) GetLocation(_ context.Context, key string) (models.Coord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.locations[key]
	if !ok {
		return models.Coord{}, false, nil
	}
	return rec.Coord, true, nil
}

func (m *MemoryStore) SubscribeGeoQuery(_ context.Context, center models.Coord, radiusKm float64) Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q := &memoryQuery{
		store:  m,
		id:     m.nextID,
		center: center,
		radius: radiusKm * 1000,
		inside: make(map[string]bool),
		events: make(chan Event, 64),
	}
	m.queries[q.id] = q
	// Seed with keys already inside the radius, then signal readiness.
	for key, rec := range m.locations {
		q.observe(key, rec.Coord)
	}
	q.send(Event{Kind: EventReady})
	return q
}

type memoryQuery struct {
	store  *MemoryStore
	id     int
	center models.Coord
	radius float64 // meters
	inside map[string]bool
	events chan Event
	closed bool
}

func (q *memoryQuery) Events() <-chan Event { return q.events }

func (q *memoryQuery) Close() {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	delete(q.store.queries, q.id)
	close(q.events)
}

// observe is called with the store mutex held.
func (q *memoryQuery) observe(key string, c models.Coord) {
	within := geo.Distance(q.center, c) <= q.radius
	was := q.inside[key]
	switch {
	case within && !was:
		q.inside[key] = true
		q.send(Event{Kind: EventEntered, Key: key, Coord: c})
	case within && was:
		q.send(Event{Kind: EventMoved, Key: key, Coord: c})
	case !within && was:
		delete(q.inside, key)
		q.send(Event{Kind: EventExited, Key: key})
	}
}

// forget is called with the store mutex held.
func (q *memoryQuery) forget(key string) {
	if q.inside[key] {
		delete(q.inside, key)
		q.send(Event{Kind: EventExited, Key: key})
	}
}

// send never blocks a writer; slow consumers lose events rather than
// stalling location publishing.
func (q *memoryQuery) send(e Event) {
	if q.closed {
		return
	}
	select {
	case q.events <- e:
	default:
	}
}
