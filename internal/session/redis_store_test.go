package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestSaveAndLookupSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	err := store.Save(ctx, "hash-1", Record{Role: "admin", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	record, err := store.Lookup(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if record.Role != "admin" {
		t.Errorf("expected role admin, got %s", record.Role)
	}
}

func TestSessionHasNoExpiry(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "hash-1", Record{Role: "viewer", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A persisted session is valid until logout, however much time passes.
	s.FastForward(365 * 24 * time.Hour)

	record, err := store.Lookup(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Lookup after a year failed: %v", err)
	}
	if record.Role != "viewer" {
		t.Errorf("expected role viewer, got %s", record.Role)
	}
}

func TestLookupMissingSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Lookup(context.Background(), "no-such-hash")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCorruptSessionReadsAsAbsent(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	s.Set("session:bad-json", "{not json")
	if _, err := store.Lookup(context.Background(), "bad-json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("corrupt record: expected ErrNotFound, got %v", err)
	}

	s.Set("session:no-role", `{"created_at":"2024-01-01T00:00:00Z"}`)
	if _, err := store.Lookup(context.Background(), "no-role"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record without role: expected ErrNotFound, got %v", err)
	}
}

func TestRevokeSessionIsIdempotent(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "hash-1", Record{Role: "admin", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Revoke(ctx, "hash-1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.Lookup(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}

	// Second revoke of the same token must not error.
	if err := store.Revoke(ctx, "hash-1"); err != nil {
		t.Errorf("second Revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "never-existed"); err != nil {
		t.Errorf("Revoke of unknown token failed: %v", err)
	}
}
