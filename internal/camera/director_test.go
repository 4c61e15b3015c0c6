package camera

import (
	"math"
	"testing"

	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/models"
)

func TestDeriveDriverWithoutRouteFallsBack(t *testing.T) {
	pos := models.Coord{Lat: 12.97, Lng: 77.59}
	d, err := Derive(Input{Role: models.RoleDriver, Position: pos})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Pose == nil || d.Fit != nil {
		t.Fatalf("expected pose directive, got %+v", d)
	}
	if d.Pose.Zoom != fallbackZoom || d.Pose.Bearing != nil || d.Pose.Target != pos {
		t.Fatalf("unexpected fallback pose %+v", d.Pose)
	}
}

func TestDeriveDriverOrientsTowardNextWaypoint(t *testing.T) {
	wps := []models.Coord{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
		{Lat: 0.001, Lng: 0.001},
	}
	// nearest is index 1, so bearing points at index 2
	pos := models.Coord{Lat: 0, Lng: 0.0011}
	d, err := Derive(Input{Role: models.RoleDriver, Position: pos, Waypoints: wps})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Pose == nil || d.Pose.Bearing == nil {
		t.Fatalf("expected oriented pose, got %+v", d)
	}
	if d.Pose.Zoom != driverZoom {
		t.Fatalf("expected zoom %v, got %v", driverZoom, d.Pose.Zoom)
	}
	want := geo.InitialBearing(pos, wps[2])
	if math.Abs(*d.Pose.Bearing-want) > 1e-9 {
		t.Fatalf("bearing %f, want %f", *d.Pose.Bearing, want)
	}
}

func TestDeriveDriverClampsAtFinalWaypoint(t *testing.T) {
	wps := []models.Coord{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.001},
	}
	pos := models.Coord{Lat: 0, Lng: 0.001}
	d, err := Derive(Input{Role: models.RoleDriver, Position: pos, Waypoints: wps})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := geo.InitialBearing(pos, wps[1])
	if math.Abs(*d.Pose.Bearing-want) > 1e-9 {
		t.Fatalf("bearing %f, want %f (clamped to final waypoint)", *d.Pose.Bearing, want)
	}
}

func TestDeriveDriverPrefersSensorBearing(t *testing.T) {
	sensor := 123.5
	wps := []models.Coord{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}
	d, err := Derive(Input{
		Role:          models.RoleDriver,
		Position:      models.Coord{Lat: 0, Lng: 0},
		Waypoints:     wps,
		SensorBearing: &sensor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *d.Pose.Bearing != sensor {
		t.Fatalf("expected sensor bearing %f, got %f", sensor, *d.Pose.Bearing)
	}
}

func TestDerivePilotRequiresCounterpart(t *testing.T) {
	_, err := Derive(Input{Role: models.RolePilot, Position: models.Coord{Lat: 1}})
	if err != ErrCounterpartUnknown {
		t.Fatalf("expected ErrCounterpartUnknown, got %v", err)
	}
}

func TestDerivePilotFramesTriad(t *testing.T) {
	counterpart := models.Coord{Lat: 2, Lng: -1}
	airport := models.Coord{Lat: -1, Lng: 3}
	d, err := Derive(Input{
		Role:        models.RolePilot,
		Position:    models.Coord{Lat: 0, Lng: 0},
		Counterpart: &counterpart,
		Airport:     &airport,
		PreZoom:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Fit == nil || d.Pose != nil {
		t.Fatalf("expected fit directive, got %+v", d)
	}
	want := geo.Bounds{SouthWest: models.Coord{Lat: -1, Lng: -1}, NorthEast: models.Coord{Lat: 2, Lng: 3}}
	if d.Fit.Bounds != want {
		t.Fatalf("bounds %+v, want %+v", d.Fit.Bounds, want)
	}
	if d.Fit.Padding != fitPadding {
		t.Fatalf("padding %d, want %d", d.Fit.Padding, fitPadding)
	}
	if d.Fit.ZoomOut != 1.0 {
		t.Fatalf("expected initial zoom-out 1.0, got %f", d.Fit.ZoomOut)
	}
}

func TestDerivePilotZoomOutAfterFirstFit(t *testing.T) {
	counterpart := models.Coord{Lat: 1, Lng: 1}
	d, err := Derive(Input{
		Role:        models.RolePilot,
		Position:    models.Coord{Lat: 0, Lng: 0},
		Counterpart: &counterpart,
		PreZoom:     false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Fit.ZoomOut != 0.7 {
		t.Fatalf("expected settled zoom-out 0.7, got %f", d.Fit.ZoomOut)
	}
}

func TestDeriveUnknownRole(t *testing.T) {
	if _, err := Derive(Input{Role: "SOMETHING"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
