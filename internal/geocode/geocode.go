package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/rendezvous/internal/models"
)

// Client performs forward/reverse geocoding and free-text place search
// against the routing backend. Same endpoint family and failure taxonomy
// as the direction API; consumed by airport selection.
type Client struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: 5 * time.Second}}
}

// Result is one resolved place.
type Result struct {
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Coord   models.Coord `json:"coord"`
}

type searchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Name    string  `json:"name"`
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	} `json:"data"`
}

type reverseResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Address string `json:"address"`
	} `json:"data"`
}

// Geocode resolves a free-text address to a coordinate.
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	q := url.Values{"address": {address}, "api_key": {c.APIKey}}
	var out searchResponse
	if err := c.get(ctx, "/geocode", q, &out); err != nil {
		return Result{}, err
	}
	if !out.Success || len(out.Data) == 0 {
		return Result{}, fmt.Errorf("geocode: no result for %q", address)
	}
	d := out.Data[0]
	return Result{Name: d.Name, Address: d.Address, Coord: models.Coord{Lat: d.Lat, Lng: d.Lng}}, nil
}

// ReverseGeocode resolves a coordinate to a display address.
func (c *Client) ReverseGeocode(ctx context.Context, coord models.Coord) (string, error) {
	q := url.Values{
		"lat":     {fmt.Sprintf("%.6f", coord.Lat)},
		"lng":     {fmt.Sprintf("%.6f", coord.Lng)},
		"api_key": {c.APIKey},
	}
	var out reverseResponse
	if err := c.get(ctx, "/reverse_geocode", q, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("reverse geocode: backend reported failure")
	}
	return out.Data.Address, nil
}

// TextSearch finds places matching a query, biased toward a location.
func (c *Client) TextSearch(ctx context.Context, query string, near models.Coord) ([]Result, error) {
	q := url.Values{
		"query":   {query},
		"lat":     {fmt.Sprintf("%.6f", near.Lat)},
		"lng":     {fmt.Sprintf("%.6f", near.Lng)},
		"api_key": {c.APIKey},
	}
	var out searchResponse
	if err := c.get(ctx, "/text_search", q, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("text search: backend reported failure")
	}
	results := make([]Result, 0, len(out.Data))
	for _, d := range out.Data {
		results = append(results, Result{Name: d.Name, Address: d.Address, Coord: models.Coord{Lat: d.Lat, Lng: d.Lng}})
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode backend status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
