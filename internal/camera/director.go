package camera

import (
	"errors"

	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/models"
)

// ErrCounterpartUnknown is returned in PILOT mode when the driver's
// position has not been resolved yet; guessing a viewport would clip
// markers, so no directive is emitted.
var ErrCounterpartUnknown = errors.New("camera: counterpart position unknown")

const (
	driverZoom   = 19.0
	fallbackZoom = 18.0
	fitPadding   = 8
)

// Pose is a first-person camera placement.
type Pose struct {
	Target  models.Coord `json:"target"`
	Zoom    float64      `json:"zoom"`
	Bearing *float64     `json:"bearing,omitempty"`
}

// Fit frames a bounding region, then applies a secondary zoom-out step
// once the fit animation settles so the initial fit never clips markers.
type Fit struct {
	Bounds  geo.Bounds `json:"bounds"`
	Padding int        `json:"padding"`
	ZoomOut float64    `json:"zoom_out"`
}

// Directive carries exactly one of Pose or Fit.
type Directive struct {
	Pose *Pose `json:"pose,omitempty"`
	Fit  *Fit  `json:"fit,omitempty"`
}

// Input is everything camera derivation may consult. No network or
// storage access happens here.
type Input struct {
	Role        models.Role
	Position    models.Coord
	Counterpart *models.Coord
	Airport     *models.Coord
	Waypoints   []models.Coord
	// Live compass bearing, preferred over the route-computed one.
	SensorBearing *float64
	// PreZoom selects the larger zoom-out step used on the first fit.
	PreZoom bool
}

// Derive computes the camera directive for the current state.
func Derive(in Input) (Directive, error) {
	switch in.Role {
	case models.RoleDriver:
		return deriveDriver(in), nil
	case models.RolePilot:
		return derivePilot(in)
	default:
		return Directive{}, errors.New("camera: unknown role")
	}
}

// deriveDriver targets the current position oriented along the route.
func deriveDriver(in Input) Directive {
	if len(in.Waypoints) < 2 {
		// No usable route yet: recenter without orientation.
		return Directive{Pose: &Pose{Target: in.Position, Zoom: fallbackZoom}}
	}
	nearest := geo.NearestWaypointIndex(in.Position, in.Waypoints)
	next := nearest + 1
	if next > len(in.Waypoints)-1 {
		next = len(in.Waypoints) - 1
	}
	bearing := geo.InitialBearing(in.Position, in.Waypoints[next])
	if in.SensorBearing != nil {
		bearing = *in.SensorBearing
	}
	return Directive{Pose: &Pose{Target: in.Position, Zoom: driverZoom, Bearing: &bearing}}
}

// derivePilot frames self, counterpart, and airport in one viewport.
func derivePilot(in Input) (Directive, error) {
	if in.Counterpart == nil {
		return Directive{}, ErrCounterpartUnknown
	}
	points := []models.Coord{in.Position, *in.Counterpart}
	if in.Airport != nil {
		points = append(points, *in.Airport)
	}
	bounds, _ := geo.BoundsOf(points...)
	zoomOut := 0.7
	if in.PreZoom {
		zoomOut = 1.0
	}
	return Directive{Fit: &Fit{Bounds: bounds, Padding: fitPadding, ZoomOut: zoomOut}}, nil
}
