package geostore

import (
	"context"
	"testing"
	"time"

	"github.com/example/rendezvous/internal/models"
)

// north returns base shifted n meters due north.
func north(base models.Coord, n float64) models.Coord {
	return models.Coord{Lat: base.Lat + n/111194.9, Lng: base.Lng}
}

func TestMemoryStoreSetGetRemove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.GetLocation(ctx, models.KeyDriverLocation); ok || err != nil {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	c := models.Coord{Lat: 12.97, Lng: 77.59}
	if err := s.SetLocation(ctx, models.KeyDriverLocation, c); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.GetLocation(ctx, models.KeyDriverLocation)
	if err != nil || !ok || got != c {
		t.Fatalf("get: got %+v ok=%v err=%v", got, ok, err)
	}

	if err := s.RemoveLocation(ctx, models.KeyDriverLocation); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := s.GetLocation(ctx, models.KeyDriverLocation); ok {
		t.Fatal("expected key removed")
	}
}

func nextEvent(t *testing.T, q Query) Event {
	t.Helper()
	select {
	case e, ok := <-q.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribeGeoQuerySeedsExistingKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	center := models.Coord{Lat: 10, Lng: 20}
	_ = s.SetLocation(ctx, models.KeyPilotLocation, north(center, 50))

	q := s.SubscribeGeoQuery(ctx, center, 0.1)
	defer q.Close()

	e := nextEvent(t, q)
	if e.Kind != EventEntered || e.Key != models.KeyPilotLocation {
		t.Fatalf("expected seeded enter, got %+v", e)
	}
	if e = nextEvent(t, q); e.Kind != EventReady {
		t.Fatalf("expected ready after seed, got %+v", e)
	}
}

func TestSubscribeGeoQueryLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	center := models.Coord{Lat: 10, Lng: 20}

	q := s.SubscribeGeoQuery(ctx, center, 0.1)
	defer q.Close()
	if e := nextEvent(t, q); e.Kind != EventReady {
		t.Fatalf("expected ready, got %+v", e)
	}

	// outside the 100m radius: no event
	_ = s.SetLocation(ctx, models.KeyDriverLocation, north(center, 200))

	// crossing in
	inside := north(center, 50)
	_ = s.SetLocation(ctx, models.KeyDriverLocation, inside)
	if e := nextEvent(t, q); e.Kind != EventEntered || e.Key != models.KeyDriverLocation || e.Coord != inside {
		t.Fatalf("expected enter, got %+v", e)
	}

	// moving while inside
	_ = s.SetLocation(ctx, models.KeyDriverLocation, north(center, 60))
	if e := nextEvent(t, q); e.Kind != EventMoved {
		t.Fatalf("expected move, got %+v", e)
	}

	// crossing out
	_ = s.SetLocation(ctx, models.KeyDriverLocation, north(center, 300))
	if e := nextEvent(t, q); e.Kind != EventExited {
		t.Fatalf("expected exit, got %+v", e)
	}
}

func TestRemoveLocationEmitsExit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	center := models.Coord{Lat: 10, Lng: 20}

	q := s.SubscribeGeoQuery(ctx, center, 0.1)
	defer q.Close()
	nextEvent(t, q) // ready

	_ = s.SetLocation(ctx, models.KeyDriverLocation, north(center, 10))
	nextEvent(t, q) // enter

	_ = s.RemoveLocation(ctx, models.KeyDriverLocation)
	if e := nextEvent(t, q); e.Kind != EventExited {
		t.Fatalf("expected exit on removal, got %+v", e)
	}
}

func TestQueryCloseStopsEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	q := s.SubscribeGeoQuery(ctx, models.Coord{}, 0.1)
	nextEvent(t, q) // ready
	q.Close()
	q.Close() // idempotent

	if _, ok := <-q.Events(); ok {
		t.Fatal("expected closed channel")
	}
	// writes after close must not panic
	_ = s.SetLocation(ctx, models.KeyDriverLocation, models.Coord{Lat: 0.0001})
}
