package session

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/example/rendezvous/internal/models"
)

// Settings is the durable per-device session state: active role, last
// fetched coordinate, and whether a trip is running. It replaces ambient
// preference access with an explicit injectable object.
type Settings struct {
	Role          models.Role   `json:"role,omitempty"`
	LastCoord     *models.Coord `json:"last_coord,omitempty"`
	TripRunning   bool          `json:"trip_running"`
	AutoFollow    bool          `json:"auto_follow"`
	AutoFollowSet bool          `json:"auto_follow_set"`
}

// Store loads and saves session settings.
type Store interface {
	Load() (Settings, bool, error)
	Save(Settings) error
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	settings Settings
	saved    bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.saved, nil
}

func (m *MemoryStore) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	m.saved = true
	return nil
}

// FileStore persists settings as JSON at a fixed path.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Load() (Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, err
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return Settings{}, false, err
	}
	return s, true, nil
}

func (f *FileStore) Save(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o644)
}
