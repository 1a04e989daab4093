package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/newton/pkg/models"
)

const redisKeyPrefix = "newton:session:"

// RedisSessionStore keeps the session under one key per profile, expiring
// with the token.
type RedisSessionStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(client *redis.Client, profile string) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		key:    redisKeyPrefix + profileOrDefault(profile),
		now:    time.Now,
	}
}

// OpenRedis connects to url (redis://host:port/db) and pings it.
func OpenRedis(ctx context.Context, url, profile string) (*RedisSessionStore, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisSessionStore(client, profile), nil
}

// Key returns the redis key the session is stored under.
func (s *RedisSessionStore) Key() string { return s.key }

func (s *RedisSessionStore) Save(ctx context.Context, session *models.Session) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("session is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("session already expired")
		}
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context) (*models.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
