package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/nextcart/platform/internal/domain/identity"
	"github.com/nextcart/platform/internal/storage"
)

func newTestStore(t *testing.T) (*CacheStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheStore(client), mr
}

func TestIncrementWindowSetsExpiryWithFirstHit(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	count, err := store.IncrementWindow(ctx, "ratelimit:10.0.0.1", time.Minute)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	// The very first increment must leave the key with a deadline; a counter
	// without one would rate-limit its client forever.
	if ttl := mr.TTL("ratelimit:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl in (0, 1m], got %v", ttl)
	}

	count, err = store.IncrementWindow(ctx, "ratelimit:10.0.0.1", time.Minute)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestIncrementWindowResetsAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.IncrementWindow(ctx, "ratelimit:host", time.Minute); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	mr.FastForward(time.Minute + time.Second)

	count, err := store.IncrementWindow(ctx, "ratelimit:host", time.Minute)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh window to start at 1, got %d", count)
	}
}

func TestIncrementWindowKeepsOriginalDeadline(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.IncrementWindow(ctx, "ratelimit:host", time.Minute); err != nil {
		t.Fatalf("increment: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if _, err := store.IncrementWindow(ctx, "ratelimit:host", time.Minute); err != nil {
		t.Fatalf("increment: %v", err)
	}

	// Later hits must not slide the window forward.
	if ttl := mr.TTL("ratelimit:host"); ttl > 30*time.Second {
		t.Fatalf("window deadline moved, ttl %v", ttl)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := identity.Session{UserID: "u1", Role: "admin", CreatedAt: time.Now().UTC()}
	if err := store.PutSession(ctx, "tok-1", sess, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != "u1" || got.Role != "admin" {
		t.Fatalf("unexpected session %+v", got)
	}

	// The raw token must not appear as a key.
	for _, key := range mr.Keys() {
		if key == "session:tok-1" {
			t.Fatal("session stored under unhashed token")
		}
	}

	if err := store.DeleteSession(ctx, "tok-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.GetSession(ctx, "tok-1"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRefreshSessionExtendsDeadline(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := identity.Session{UserID: "u1", Role: "user", CreatedAt: time.Now().UTC()}
	if err := store.PutSession(ctx, "tok-1", sess, time.Minute); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.RefreshSession(ctx, "tok-1", time.Hour); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	mr.FastForward(30 * time.Minute)
	if _, err := store.GetSession(ctx, "tok-1"); err != nil {
		t.Fatalf("session expired despite refresh: %v", err)
	}

	if err := store.RefreshSession(ctx, "missing", time.Hour); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown token, got %v", err)
	}
}
