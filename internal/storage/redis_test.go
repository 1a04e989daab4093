package storage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisSessionStore_Key(t *testing.T) {
	store := NewRedisSessionStore(unreachableRedis(), "")
	defer store.Close()
	if store.Key() != "newton:session:default" {
		t.Errorf("Key() = %q", store.Key())
	}
}

func TestRedisSessionStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store := NewRedisSessionStore(unreachableRedis(), "work")
	defer store.Close()

	if err := store.Save(ctx, testSession("tok")); err == nil {
		t.Error("Save() should fail against an unreachable server")
	}
	if _, err := store.Load(ctx); err == nil {
		t.Error("Load() should fail against an unreachable server")
	}
	if err := store.Clear(ctx); err == nil {
		t.Error("Clear() should fail against an unreachable server")
	}
}

func TestRedisSessionStore_RejectsExpired(t *testing.T) {
	store := NewRedisSessionStore(unreachableRedis(), "work")
	defer store.Close()

	session := testSession("tok")
	session.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.Save(context.Background(), session); err == nil {
		t.Error("Save() should reject an expired session")
	}
}

func TestOpenRedis_Errors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := OpenRedis(ctx, "", "p"); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := OpenRedis(ctx, "http://nope", "p"); err == nil {
		t.Error("expected error for non-redis scheme")
	}
	if _, err := OpenRedis(ctx, "redis://127.0.0.1:1/0?dial_timeout=50ms&max_retries=-1", "p"); err == nil {
		t.Error("expected ping error for unreachable server")
	}
}
