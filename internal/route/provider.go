package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/rendezvous/internal/models"
)

// Purpose tags which rendezvous leg a route serves.
type Purpose string

const (
	PurposePrimary   Purpose = "primary"   // driver <-> pilot
	PurposeSecondary Purpose = "secondary" // pilot <-> airport
)

// Route is one candidate path between two coordinates.
type Route struct {
	DistanceMeters  int            `json:"distance_meters"`
	DurationSeconds int            `json:"duration_seconds"`
	Waypoints       []models.Coord `json:"waypoints"`
}

// Provider returns candidate routes between two coordinates.
type Provider interface {
	GetRoutes(ctx context.Context, origin, destination models.Coord) ([]Route, error)
}

// Score is the weighted selection metric. Duration dominates distance,
// favoring fastest over shortest.
func Score(r Route) float64 {
	const distanceWeight = 0.25
	const durationWeight = 0.75
	return float64(r.DistanceMeters)*distanceWeight + float64(r.DurationSeconds)*durationWeight
}

// SelectBest picks the candidate with the minimum score, ties broken by
// lower raw duration. ok is false for an empty candidate list.
func SelectBest(routes []Route) (Route, bool) {
	if len(routes) == 0 {
		return Route{}, false
	}
	best := routes[0]
	for _, r := range routes[1:] {
		s, bs := Score(r), Score(best)
		if s < bs || (s == bs && r.DurationSeconds < best.DurationSeconds) {
			best = r
		}
	}
	return best, true
}

// HTTPClient performs direction lookups against the routing backend.
type HTTPClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: 5 * time.Second}}
}

type directionResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		DistanceMeters  int    `json:"distance_meters"`
		DistanceText    string `json:"distance_text"`
		DurationSeconds int    `json:"duration_seconds"`
		DurationText    string `json:"duration_text"`
		Waypoints       []struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"waypoints"`
	} `json:"data"`
}

func (c *HTTPClient) GetRoutes(ctx context.Context, origin, destination models.Coord) ([]Route, error) {
	url := fmt.Sprintf("%s/direction?origin_lat=%.6f&origin_lng=%.6f&destination_lat=%.6f&destination_lng=%.6f&api_key=%s",
		c.Endpoint, origin.Lat, origin.Lng, destination.Lat, destination.Lng, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("direction backend status %d", resp.StatusCode)
	}
	var out directionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || len(out.Data) == 0 {
		return nil, fmt.Errorf("direction backend: no route")
	}
	routes := make([]Route, 0, len(out.Data))
	for _, d := range out.Data {
		r := Route{DistanceMeters: d.DistanceMeters, DurationSeconds: d.DurationSeconds}
		r.Waypoints = make([]models.Coord, 0, len(d.Waypoints))
		for _, w := range d.Waypoints {
			r.Waypoints = append(r.Waypoints, models.Coord{Lat: w.Lat, Lng: w.Lng})
		}
		routes = append(routes, r)
	}
	return routes, nil
}
