package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/newton/pkg/models"
)

func testSession(token string) *models.Session {
	return &models.Session{
		Token:     token,
		TenantID:  "tenant-1",
		User:      models.User{ID: "u1", Email: "ana@example.com", Name: "Ana", Role: "agent"},
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// exerciseSessionStore runs the shared save/load/clear contract.
func exerciseSessionStore(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() on empty store error = %v, want ErrNotFound", err)
	}
	if err := store.Save(ctx, nil); err == nil {
		t.Fatal("Save(nil) should fail")
	}

	first := testSession("tok-1")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Token != "tok-1" || got.TenantID != "tenant-1" || got.User.Email != "ana@example.com" {
		t.Errorf("Load() = %+v", got)
	}
	if !got.ExpiresAt.Equal(first.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, first.ExpiresAt)
	}

	if err := store.Save(ctx, testSession("tok-2")); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Token != "tok-2" {
		t.Errorf("Token after overwrite = %q", got.Token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Clear error = %v, want ErrNotFound", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestMemorySessionStore(t *testing.T) {
	exerciseSessionStore(t, NewMemorySessionStore())
}

func TestMemorySessionStore_ReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	session := testSession("tok")
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	session.Token = "mutated"

	got, _ := store.Load(ctx)
	if got.Token != "tok" {
		t.Errorf("stored session changed through caller pointer: %q", got.Token)
	}
}

func TestProfileOrDefault(t *testing.T) {
	if got := profileOrDefault("  "); got != DefaultProfile {
		t.Errorf("profileOrDefault(blank) = %q", got)
	}
	if got := profileOrDefault(" work "); got != "work" {
		t.Errorf("profileOrDefault(work) = %q", got)
	}
}
