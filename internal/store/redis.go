package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/civicvoice/civicvoice/client-go/internal/models"
)

// RedisStore persists the session in Redis so several headless client
// instances can share one logged-in session. Keys are stored as JSON under
// "<prefix>auth:tokens" and "<prefix>auth:user".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed session store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "civicvoice:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string { return s.prefix + "auth:" + name }

func (s *RedisStore) set(ctx context.Context, name string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(name), b, 0).Err()
}

func (s *RedisStore) get(ctx context.Context, name string, v interface{}) (bool, error) {
	b, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	return s.set(ctx, "tokens", pair)
}

func (s *RedisStore) LoadTokens(ctx context.Context) (models.TokenPair, bool, error) {
	var pair models.TokenPair
	ok, err := s.get(ctx, "tokens", &pair)
	return pair, ok, err
}

func (s *RedisStore) SaveUser(ctx context.Context, u *models.UserIdentity) error {
	return s.set(ctx, "user", u)
}

func (s *RedisStore) LoadUser(ctx context.Context) (*models.UserIdentity, bool, error) {
	var u models.UserIdentity
	ok, err := s.get(ctx, "user", &u)
	if !ok || err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key("tokens"), s.key("user")).Err()
}
