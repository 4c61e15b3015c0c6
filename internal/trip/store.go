package trip

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/example/rendezvous/internal/models"
)

// LocalStore is the durable on-device slot for the single current trip.
type LocalStore interface {
	Save(t *models.Trip) error
	// Load returns ok=false when no trip is stored.
	Load() (*models.Trip, bool, error)
	Clear() error
}

// RemoteStore mirrors trips to the shared history backend.
type RemoteStore interface {
	Save(ctx context.Context, t *models.Trip) error
	List(ctx context.Context) ([]*models.Trip, error)
	Delete(ctx context.Context, tripID string) error
}

// MemoryLocal is an in-process LocalStore for tests and ephemeral runs.
type MemoryLocal struct {
	mu   sync.Mutex
	trip *models.Trip
}

func NewMemoryLocal() *MemoryLocal { return &MemoryLocal{} }

func (m *MemoryLocal) Save(t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trip = &cp
	return nil
}

func (m *MemoryLocal) Load() (*models.Trip, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trip == nil {
		return nil, false, nil
	}
	cp := *m.trip
	return &cp, true, nil
}

func (m *MemoryLocal) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trip = nil
	return nil
}

// FileLocal persists the current trip as JSON at a fixed path so it
// survives process death.
type FileLocal struct {
	mu   sync.Mutex
	path string
}

func NewFileLocal(path string) *FileLocal { return &FileLocal{path: path} }

func (f *FileLocal) Save(t *models.Trip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o644)
}

func (f *FileLocal) Load() (*models.Trip, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var t models.Trip
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

func (f *FileLocal) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryRemote is an in-process RemoteStore for tests and single-node runs.
type MemoryRemote struct {
	mu    sync.Mutex
	trips map[string]*models.Trip
}

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{trips: make(map[string]*models.Trip)}
}

func (m *MemoryRemote) Save(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.TripID] = &cp
	return nil
}

func (m *MemoryRemote) List(_ context.Context) ([]*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRemote) Delete(_ context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trips, tripID)
	return nil
}
