package trip

import (
	"path/filepath"
	"testing"

	"github.com/example/rendezvous/internal/models"
)

func TestFileLocalRoundTrip(t *testing.T) {
	f := NewFileLocal(filepath.Join(t.TempDir(), "trip.json"))

	if _, ok, err := f.Load(); ok || err != nil {
		t.Fatalf("expected empty slot, got ok=%v err=%v", ok, err)
	}

	in := &models.Trip{
		TripID:      "abc123",
		StartTime:   1700000000000,
		Coordinates: []models.Coord{{Lat: 1, Lng: 2}},
		Speeds:      []float64{3.5},
		StartTrip:   true,
	}
	if err := f.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, ok, err := f.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if out.TripID != in.TripID || len(out.Coordinates) != 1 || out.Coordinates[0] != in.Coordinates[0] {
		t.Fatalf("got %+v want %+v", out, in)
	}

	if err := f.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := f.Load(); ok {
		t.Fatal("expected cleared slot")
	}
	// clearing an empty slot is fine
	if err := f.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
