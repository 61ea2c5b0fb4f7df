package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisStore keeps session credentials in Redis as JSON under session:{id}.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed credential store. Stored credentials
// expire after ttl; a non-positive ttl keeps them forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get returns the credential for sessionID, or nil if none is stored.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Credential, error) {
	if sessionID == "" {
		return nil, nil
	}

	data, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	c.SessionID = sessionID
	if c.Token == "" {
		return nil, nil
	}
	return &c, nil
}

// Put stores c, refreshing its TTL.
func (s *RedisStore) Put(ctx context.Context, c Credential) error {
	if !c.Valid() {
		return errors.New("session id and token are required")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+c.SessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete removes the credential for sessionID.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// ForSession returns a Provider reading sessionID's credential.
func (s *RedisStore) ForSession(sessionID string) Provider {
	return ProviderFunc(func(ctx context.Context) (*Credential, error) {
		return s.Get(ctx, sessionID)
	})
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
