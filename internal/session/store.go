package session

import (
	"context"
	"sync"
)

// Keys persisted per browser session
const (
	KeyAuthToken    = "auth_token"
	KeyAuthEmail    = "auth_email"
	KeyIsAdmin      = "is_admin"
	KeyVisitedPaths = "visited_paths"

	// KeyLastPath is the last view entered, used to ignore no-op navigations
	KeyLastPath = "last_path"

	KeyLoginState = "login_state"
	KeyLoginEmail = "login_email"
	KeyLoginFlow  = "login_flow"
)

// AllKeys lists everything cleared on logout
var AllKeys = []string{
	KeyAuthToken,
	KeyAuthEmail,
	KeyIsAdmin,
	KeyVisitedPaths,
	KeyLastPath,
	KeyLoginState,
	KeyLoginEmail,
	KeyLoginFlow,
}

// Store is a durable key/value store scoped by session id. Writes to several
// keys are not atomic; readers may observe a partially updated session.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, bool, error)
	Set(ctx context.Context, sid, key, value string) error
	Remove(ctx context.Context, sid string, keys ...string) error
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.sessions[sid][key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sessions[sid]
	if !ok {
		values = make(map[string]string)
		s.sessions[sid] = values
	}
	values[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, sid string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(values, key)
	}
	if len(values) == 0 {
		delete(s.sessions, sid)
	}
	return nil
}
