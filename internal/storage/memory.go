package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/newton/pkg/models"
)

// MemorySessionStore keeps the session in process memory.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *models.Session
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Save(ctx context.Context, session *models.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("session is required")
	}
	clone := *session
	s.mu.Lock()
	s.session = &clone
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Load(ctx context.Context) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, ErrNotFound
	}
	clone := *s.session
	return &clone, nil
}

func (s *MemorySessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Close() error { return nil }
