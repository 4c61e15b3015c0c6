package trip

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/rendezvous/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// north returns base shifted n meters due north.
func north(base models.Coord, n float64) models.Coord {
	return models.Coord{Lat: base.Lat + n/111194.9, Lng: base.Lng}
}

func newTestRecorder() (*Recorder, *MemoryLocal, *MemoryRemote) {
	local := NewMemoryLocal()
	remote := NewMemoryRemote()
	r := NewRecorder(local, remote, 3, testLogger())
	return r, local, remote
}

func TestAppendPointDedupsBelowMinimumDistance(t *testing.T) {
	r, _, _ := newTestRecorder()
	ctx := context.Background()
	r.Start(ctx)

	base := models.Coord{Lat: 12.97, Lng: 77.59}
	// offsets in meters from base; only moves of >= 3m from the last
	// stored point are kept
	offsets := []float64{0, 1, 4, 6, 16, 16.5}
	want := []bool{true, false, true, false, true, false}
	for i, off := range offsets {
		got := r.AppendPoint(ctx, north(base, off), float64(i))
		if got != want[i] {
			t.Fatalf("point %d (offset %.1fm): stored=%v want %v", i, off, got, want[i])
		}
	}

	cur := r.Current()
	if len(cur.Coordinates) != 3 {
		t.Fatalf("expected 3 stored points, got %d", len(cur.Coordinates))
	}
	if len(cur.Speeds) != len(cur.Coordinates) {
		t.Fatalf("speeds out of lockstep: %d vs %d", len(cur.Speeds), len(cur.Coordinates))
	}
}

func TestAppendPointStoresExactMinimumDistance(t *testing.T) {
	r, _, _ := newTestRecorder()
	ctx := context.Background()
	r.Start(ctx)

	base := models.Coord{Lat: 0, Lng: 0}
	r.AppendPoint(ctx, base, 0)
	if !r.AppendPoint(ctx, north(base, 3), 1) {
		t.Fatal("a point exactly at the sampling distance must be stored")
	}
}

func TestAppendPointWithoutTrip(t *testing.T) {
	r, _, _ := newTestRecorder()
	if r.AppendPoint(context.Background(), models.Coord{Lat: 1}, 0) {
		t.Fatal("expected no-op without a current trip")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r, _, _ := newTestRecorder()
	if got := r.Stop(context.Background()); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestStartAssignsUniqueIDs(t *testing.T) {
	r, _, _ := newTestRecorder()
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		tr := r.Start(ctx)
		if tr.TripID == "" || seen[tr.TripID] {
			t.Fatalf("trip id %q not unique", tr.TripID)
		}
		seen[tr.TripID] = true
		r.Stop(ctx)
	}
}

func TestStopClosesAndMirrorsFinalSnapshot(t *testing.T) {
	r, local, remote := newTestRecorder()
	ctx := context.Background()
	started := r.Start(ctx)
	r.AppendPoint(ctx, models.Coord{Lat: 1, Lng: 2}, 5)

	final := r.Stop(ctx)
	if final == nil || final.EndTime == nil {
		t.Fatalf("expected closed trip, got %+v", final)
	}
	if r.Current() != nil {
		t.Fatal("expected no current trip after stop")
	}
	if _, ok, _ := local.Load(); ok {
		t.Fatal("expected local slot cleared after stop")
	}

	trips, err := remote.List(ctx)
	if err != nil || len(trips) != 1 {
		t.Fatalf("expected one mirrored trip, got %d err=%v", len(trips), err)
	}
	if trips[0].TripID != started.TripID || !trips[0].Ended() {
		t.Fatalf("unexpected mirrored trip %+v", trips[0])
	}
}

func TestRecorderRestoresUnfinishedTrip(t *testing.T) {
	local := NewMemoryLocal()
	remote := NewMemoryRemote()
	first := NewRecorder(local, remote, 3, testLogger())
	ctx := context.Background()
	started := first.Start(ctx)
	first.AppendPoint(ctx, models.Coord{Lat: 1, Lng: 2}, 5)

	// a new recorder over the same local store picks the trip back up
	second := NewRecorder(local, remote, 3, testLogger())
	cur := second.Current()
	if cur == nil || cur.TripID != started.TripID {
		t.Fatalf("expected restored trip %s, got %+v", started.TripID, cur)
	}
	if len(cur.Coordinates) != 1 {
		t.Fatalf("expected restored coordinates, got %d", len(cur.Coordinates))
	}
}

func TestRecorderDoesNotRestoreEndedTrip(t *testing.T) {
	local := NewMemoryLocal()
	end := time.Now().UnixMilli()
	_ = local.Save(&models.Trip{TripID: "t1", EndTime: &end})

	r := NewRecorder(local, NewMemoryRemote(), 3, testLogger())
	if r.Current() != nil {
		t.Fatal("an ended trip must not be restored as current")
	}
}

func TestArrivalFlagsMonotonic(t *testing.T) {
	r, _, _ := newTestRecorder()
	ctx := context.Background()
	r.Start(ctx)

	r.MarkArrivedAtPilot(ctx)
	r.MarkArrivedAtPilot(ctx)
	r.MarkArrivedAtAirport(ctx)

	cur := r.Current()
	if !cur.ArrivedAtPilot || !cur.ArrivedAtAirport {
		t.Fatalf("expected both flags set, got %+v", cur)
	}
}

func TestArrivalFlagsWithoutTrip(t *testing.T) {
	r, _, _ := newTestRecorder()
	// must not panic or create a trip
	r.MarkArrivedAtPilot(context.Background())
	r.MarkArrivedAtAirport(context.Background())
	if r.Current() != nil {
		t.Fatal("flags without a trip must stay a no-op")
	}
}

type failingRemote struct{}

func (failingRemote) Save(context.Context, *models.Trip) error { return errors.New("backend down") }
func (failingRemote) List(context.Context) ([]*models.Trip, error) {
	return nil, errors.New("backend down")
}
func (failingRemote) Delete(context.Context, string) error { return errors.New("backend down") }

func TestHistoryFailureYieldsEmpty(t *testing.T) {
	r := NewRecorder(NewMemoryLocal(), failingRemote{}, 3, testLogger())
	if trips := r.History(context.Background()); trips != nil {
		t.Fatalf("expected nil history on failure, got %v", trips)
	}
}

func TestDeleteReportsFailure(t *testing.T) {
	r := NewRecorder(NewMemoryLocal(), failingRemote{}, 3, testLogger())
	if r.Delete(context.Background(), "t1") {
		t.Fatal("expected delete to report failure")
	}
}

func TestDeleteRemovesTrip(t *testing.T) {
	r, _, remote := newTestRecorder()
	ctx := context.Background()
	started := r.Start(ctx)
	r.Stop(ctx)

	if !r.Delete(ctx, started.TripID) {
		t.Fatal("expected delete to succeed")
	}
	trips, _ := remote.List(ctx)
	if len(trips) != 0 {
		t.Fatalf("expected empty history, got %d", len(trips))
	}
}
