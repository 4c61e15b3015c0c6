package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/rendezvous/internal/models"
)

func TestSelectBestPrefersFastest(t *testing.T) {
	// 0.25*1000 + 0.75*100 = 325 beats 0.25*2000 + 0.75*50 = 537.5
	routes := []Route{
		{DistanceMeters: 1000, DurationSeconds: 100},
		{DistanceMeters: 2000, DurationSeconds: 50},
	}
	best, ok := SelectBest(routes)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if best.DistanceMeters != 1000 {
		t.Fatalf("expected first route, got %+v", best)
	}
}

func TestSelectBestTieBreaksOnDuration(t *testing.T) {
	// both score 250; the lower raw duration wins
	routes := []Route{
		{DistanceMeters: 400, DurationSeconds: 200},
		{DistanceMeters: 1000, DurationSeconds: 0},
	}
	best, ok := SelectBest(routes)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if best.DurationSeconds != 0 {
		t.Fatalf("expected zero-duration route, got %+v", best)
	}
}

func TestSelectBestEmpty(t *testing.T) {
	if _, ok := SelectBest(nil); ok {
		t.Fatal("expected ok=false for empty candidates")
	}
}

func TestSelectBestDeterministic(t *testing.T) {
	routes := []Route{
		{DistanceMeters: 1200, DurationSeconds: 80},
		{DistanceMeters: 900, DurationSeconds: 120},
		{DistanceMeters: 1500, DurationSeconds: 60},
	}
	first, _ := SelectBest(routes)
	for i := 0; i < 5; i++ {
		again, _ := SelectBest(routes)
		if again.DistanceMeters != first.DistanceMeters || again.DurationSeconds != first.DurationSeconds {
			t.Fatalf("selection changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestHTTPClientGetRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/direction" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("origin_lat") == "" || q.Get("destination_lng") == "" || q.Get("api_key") != "k1" {
			t.Errorf("missing query params: %v", q)
		}
		w.Write([]byte(`{"success":true,"data":[{"distance_meters":1200,"duration_seconds":300,"waypoints":[{"lat":1,"lng":2},{"lat":3,"lng":4}]}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k1")
	routes, err := c.GetRoutes(context.Background(), models.Coord{Lat: 1, Lng: 2}, models.Coord{Lat: 3, Lng: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routes) != 1 || routes[0].DistanceMeters != 1200 || len(routes[0].Waypoints) != 2 {
		t.Fatalf("unexpected routes %+v", routes)
	}
}

func TestHTTPClientGetRoutesNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if _, err := c.GetRoutes(context.Background(), models.Coord{}, models.Coord{Lat: 1}); err == nil {
		t.Fatal("expected error for unsuccessful response")
	}
}

func TestHTTPClientGetRoutesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	if _, err := c.GetRoutes(context.Background(), models.Coord{}, models.Coord{Lat: 1}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
