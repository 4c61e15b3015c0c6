package models

import "time"

// Role identifies which rendezvous participant this device represents.
type Role string

const (
	RoleDriver Role = "DRIVER"
	RolePilot  Role = "PILOT"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleDriver || r == RolePilot }

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleDriver {
		return RolePilot
	}
	return RoleDriver
}

// Well-known location keys in the geo store. Each key has a single
// writer: the device holding the matching role, or for the airport,
// whichever participant last set it.
const (
	KeyDriverLocation  = "driver_location"
	KeyPilotLocation   = "pilot_location"
	KeyAirportLocation = "airport_location"
)

// LocationKeyFor returns the geo store key owned by a role.
func LocationKeyFor(r Role) string {
	if r == RolePilot {
		return KeyPilotLocation
	}
	return KeyDriverLocation
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationRecord is one published (key, coordinate) pair. Last writer wins.
type LocationRecord struct {
	Key       string    `json:"key"`
	Coord     Coord     `json:"coord"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PositionUpdate is a raw fix from the device, as ingested over HTTP or Kafka.
type PositionUpdate struct {
	Coord Coord   `json:"coord"`
	Speed float64 `json:"speed"`
	// Unix millis at the source; zero means "stamp on arrival".
	Timestamp int64 `json:"timestamp"`
}

// Trip is the single in-progress (or completed) trip record. Coordinates
// and speeds grow in lockstep; the arrival flags are monotonic while the
// trip is running.
type Trip struct {
	TripID           string    `json:"tripId"`
	StartTime        int64     `json:"startTime"`
	EndTime          *int64    `json:"endTime"`
	Coordinates      []Coord   `json:"coordinates"`
	Speeds           []float64 `json:"speeds"`
	StartTrip        bool      `json:"startTrip"`
	ArrivedAtPilot   bool      `json:"arrivedAtPilot"`
	ArrivedAtAirport bool      `json:"arrivedAtAirport"`
}

// Ended reports whether the trip has been closed.
func (t *Trip) Ended() bool { return t != nil && t.EndTime != nil }
