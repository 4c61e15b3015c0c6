package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/rendezvous/internal/coordinator"
	"github.com/example/rendezvous/internal/dispatch"
	"github.com/example/rendezvous/internal/geocode"
	"github.com/example/rendezvous/internal/models"
	"github.com/example/rendezvous/internal/trip"
)

type Server struct {
	Coordinator *coordinator.Coordinator
	Recorder    *trip.Recorder
	Geocoder    *geocode.Client // optional
	WSReg       *dispatch.WSRegistry
	logger      *slog.Logger
	mux         *mux.Router
}

func NewServer(logger *slog.Logger, coord *coordinator.Coordinator, rec *trip.Recorder,
	gc *geocode.Client, wsreg *dispatch.WSRegistry) *Server {
	s := &Server{
		Coordinator: coord,
		Recorder:    rec,
		Geocoder:    gc,
		WSReg:       wsreg,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/position", s.handlePosition).Methods("POST")
	s.mux.HandleFunc("/api/v1/bearing", s.handleBearing).Methods("POST")
	s.mux.HandleFunc("/api/v1/role", s.handleGetRole).Methods("GET")
	s.mux.HandleFunc("/api/v1/role", s.handleLogin).Methods("POST")
	s.mux.HandleFunc("/api/v1/role/switch", s.handleSwitchRole).Methods("POST")
	s.mux.HandleFunc("/api/v1/airport", s.handleSetAirport).Methods("POST")
	s.mux.HandleFunc("/api/v1/airport/search", s.handleAirportSearch).Methods("GET")
	s.mux.HandleFunc("/api/v1/camera/auto_follow", s.handleAutoFollow).Methods("POST")
	s.mux.HandleFunc("/api/v1/camera/animation_done", s.handleAnimationDone).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/start", s.handleStartTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/stop", s.handleStopTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/current", s.handleCurrentTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips", s.handleTripHistory).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleDeleteTrip).Methods("DELETE")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{client_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var u models.PositionUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.Coordinator.OnPositionUpdate(r.Context(), u.Coord, u.Speed)
	w.WriteHeader(204)
}

func (s *Server) handleBearing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Bearing float64 `json:"bearing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.Coordinator.SetBearing(body.Bearing)
	w.WriteHeader(204)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"role": s.Coordinator.Role()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if !body.Role.Valid() {
		http.Error(w, "role must be DRIVER or PILOT", 400)
		return
	}
	s.Coordinator.LoginAs(body.Role)
	writeJSON(w, map[string]any{"role": body.Role})
}

func (s *Server) handleSwitchRole(w http.ResponseWriter, r *http.Request) {
	s.Coordinator.SwitchRole()
	writeJSON(w, map[string]any{"role": s.Coordinator.Role()})
}

func (s *Server) handleSetAirport(w http.ResponseWriter, r *http.Request) {
	var c models.Coord
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.Coordinator.SetAirport(r.Context(), c); err != nil {
		http.Error(w, "setting airport failed", 502)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleAirportSearch(w http.ResponseWriter, r *http.Request) {
	if s.Geocoder == nil {
		http.Error(w, "search not configured", 503)
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", 400)
		return
	}
	var near models.Coord
	// Bias toward the device's last position when known.
	if t := s.Recorder.Current(); t != nil && len(t.Coordinates) > 0 {
		near = t.Coordinates[len(t.Coordinates)-1]
	}
	results, err := s.Geocoder.TextSearch(r.Context(), query, near)
	if err != nil {
		http.Error(w, "search failed", 502)
		return
	}
	writeJSON(w, map[string]any{"results": results})
}

func (s *Server) handleAutoFollow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.Coordinator.SetAutoFollow(body.Enabled)
	w.WriteHeader(204)
}

func (s *Server) handleAnimationDone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.Coordinator.CameraAnimationDone(body.Completed)
	w.WriteHeader(204)
}

func (s *Server) handleStartTrip(w http.ResponseWriter, r *http.Request) {
	t := s.Coordinator.StartTrip(r.Context())
	writeJSON(w, t)
}

func (s *Server) handleStopTrip(w http.ResponseWriter, r *http.Request) {
	t := s.Coordinator.StopTrip(r.Context())
	if t == nil {
		w.WriteHeader(204)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleCurrentTrip(w http.ResponseWriter, r *http.Request) {
	t := s.Recorder.Current()
	if t == nil {
		http.Error(w, "no current trip", 404)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleTripHistory(w http.ResponseWriter, r *http.Request) {
	trips := s.Recorder.History(r.Context())
	if trips == nil {
		trips = []*models.Trip{}
	}
	writeJSON(w, map[string]any{"trips": trips})
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["trip_id"]
	ok := s.Recorder.Delete(r.Context(), id)
	writeJSON(w, map[string]any{"deleted": ok})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["client_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.WSReg.Add(id, conn)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
