package dispatch

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/rendezvous/internal/camera"
	"github.com/example/rendezvous/internal/models"
)

// Frame is one presentation update pushed to connected clients.
type Frame struct {
	Type      string            `json:"type"` // "camera" or "route"
	Camera    *camera.Directive `json:"camera,omitempty"`
	Waypoints []models.Coord    `json:"waypoints,omitempty"`
}

// WSSession represents one connected presentation client.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(f)
}

// WSRegistry fans coordinator output out to every connected client.
// It is the coordinator's Sink in the server process.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(clientID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[clientID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, clientID)
}

func (r *WSRegistry) PublishCamera(d camera.Directive) {
	r.broadcast(Frame{Type: "camera", Camera: &d})
}

func (r *WSRegistry) PublishRoute(waypoints []models.Coord) {
	r.broadcast(Frame{Type: "route", Waypoints: waypoints})
}

func (r *WSRegistry) broadcast(f Frame) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sessions {
		if err := s.Send(f); err != nil {
			log.Printf("ws send error for %s: %v", id, err)
		}
	}
}
