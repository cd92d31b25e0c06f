package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "renovate:session:"
	redisUpdateRetries = 5
)

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a connected client. A zero ttl stores keys without
// expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return redisKeyPrefix + id
}

// CreateSession stores a new session. An existing key is not overwritten.
func (s *RedisStore) CreateSession(ctx context.Context, input Session) (Session, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(input.ID()), data, s.ttl).Result()
	if err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return Session{}, fmt.Errorf("store session: %s already exists", input.ID())
	}
	return input, nil
}

// GetSession loads one session.
func (s *RedisStore) GetSession(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return decodeSession(data)
}

// UpdateSession applies fn inside a WATCH transaction and retries when a
// concurrent writer touched the key first.
func (s *RedisStore) UpdateSession(ctx context.Context, id string, fn UpdateFunc) (Session, error) {
	key := sessionKey(id)
	var next Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		current, err := decodeSession(data)
		if err != nil {
			return err
		}
		next, err = fn(current)
		if err != nil {
			return err
		}
		next.Conversation.ID = id

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return next, nil
	}
	return Session{}, fmt.Errorf("update session %s: too much contention", id)
}

// DeleteSession removes a session by ID.
func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}
