package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nightloom/internal/domain"
)

// RedisSessionStore guarda cada sesión como un valor JSON bajo un prefijo,
// con TTL para que las sesiones abandonadas expiren solas.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		client: client,
		prefix: "session:",
		ttl:    ttl,
	}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// XX: sólo sobreescribe claves existentes; el TTL se renueva en cada update.
	ok, err := s.client.SetXX(ctx, s.key(session.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}
