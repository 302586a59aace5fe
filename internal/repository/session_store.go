package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nightloom/internal/domain"
)

// ErrSessionNotFound indica que el id no corresponde a ninguna sesión.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists indica una colisión de id en Create.
var ErrSessionExists = errors.New("session already exists")

// SessionStore provee almacenamiento mutable por id de sesión. No ofrece
// semántica de sincronización más allá del get/put individual: la
// serialización por sesión es responsabilidad del orquestador.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
}

// MemorySessionStore guarda sesiones serializadas en memoria. Guardar bytes
// y no punteros aísla a cada caller de mutaciones ajenas, igual que harían
// las variantes redis/postgres.
type MemorySessionStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{items: make(map[string][]byte)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[session.ID]; ok {
		return ErrSessionExists
	}
	s.items[session.ID] = data
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	data, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *MemorySessionStore) Update(_ context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[session.ID]; !ok {
		return ErrSessionNotFound
	}
	s.items[session.ID] = data
	return nil
}
