package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"area-bot/internal/domain/entity"
	"area-bot/internal/domain/port"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepository хранит сессии в Redis с ограниченным временем жизни.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository создаёт хранилище поверх готового клиента.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func (r *RedisSessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get читает сессию по ID
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var session entity.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	return &session, nil
}

// Save записывает сессию и продлевает её TTL
func (r *RedisSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	return r.client.Set(ctx, sessionKeyPrefix+session.ID, data, r.ttl).Err()
}

// Delete удаляет сессию
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (r *RedisSessionRepository) Close() error {
	return r.client.Close()
}

var _ port.SessionRepository = (*RedisSessionRepository)(nil)
