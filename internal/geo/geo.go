package geo

import (
	"math"

	"github.com/example/rendezvous/internal/models"
)

const earthRadiusMeters = 6371000.0

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Distance is Haversine over coordinate values.
func Distance(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// InitialBearing computes the initial great-circle bearing from one
// coordinate toward another, in degrees clockwise from true north,
// normalized to [0, 360).
func InitialBearing(from, to models.Coord) float64 {
	fromLat := toRad(from.Lat)
	toLat := toRad(to.Lat)
	dLng := toRad(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(toLat)
	x := math.Cos(fromLat)*math.Sin(toLat) - math.Sin(fromLat)*math.Cos(toLat)*math.Cos(dLng)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Bounds is an axis-aligned lat/lng region enclosing a set of points.
type Bounds struct {
	SouthWest models.Coord `json:"south_west"`
	NorthEast models.Coord `json:"north_east"`
}

// BoundsOf returns the smallest bounds enclosing all points.
// ok is false when no points were given.
func BoundsOf(points ...models.Coord) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b.SouthWest = points[0]
	b.NorthEast = points[0]
	for _, p := range points[1:] {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b, true
}

// NearestWaypointIndex returns the index of the waypoint closest to pos,
// ties broken by the earliest index.
func NearestWaypointIndex(pos models.Coord, waypoints []models.Coord) int {
	nearest := 0
	min := Distance(pos, waypoints[0])
	for i := 1; i < len(waypoints); i++ {
		if d := Distance(pos, waypoints[i]); d < min {
			min = d
			nearest = i
		}
	}
	return nearest
}
