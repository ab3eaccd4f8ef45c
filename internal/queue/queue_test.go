package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextcart/platform/internal/logging"
)

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{20, 5 * time.Minute},
	}
	for _, tc := range cases {
		if got := Backoff(time.Second, 5*time.Minute, tc.attempt); got != tc.want {
			t.Fatalf("Backoff(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestMemoryStoreClaimIsExclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		if err := store.Enqueue(ctx, Envelope{ID: fmt.Sprintf("job-%d", i), Kind: KindEmail}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				env, ok, err := store.Claim(ctx)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				seen[env.ID]++
				mu.Unlock()
				if err := store.Ack(ctx, env); err != nil {
					t.Errorf("ack: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("expected %d distinct jobs claimed, got %d", jobs, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %s claimed %d times", id, n)
		}
	}
}

func TestMemoryStoreDelayedPromotion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.EnqueueDelayed(ctx, Envelope{ID: "later", Kind: KindEmail}, time.Minute); err != nil {
		t.Fatalf("enqueue delayed: %v", err)
	}

	if _, ok, _ := store.Claim(ctx); ok {
		t.Fatal("delayed job must not be claimable before its delay elapses")
	}

	now = now.Add(2 * time.Minute)
	env, ok, err := store.Claim(ctx)
	if err != nil || !ok {
		t.Fatalf("expected job after delay, ok=%v err=%v", ok, err)
	}
	if env.ID != "later" {
		t.Fatalf("unexpected job %s", env.ID)
	}
}

func TestPoolDeadLettersAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var attempts int32
	pool := NewPool(store, PoolConfig{
		Workers:     1,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
		IdleWait:    time.Millisecond,
	}, logging.NewNop())
	if err := pool.Register(KindEmail, func(context.Context, json.RawMessage) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("provider down")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.Enqueue(ctx, Envelope{ID: "doomed", Kind: KindEmail}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.DeadLetters()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	dead := store.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected exactly one dead letter, got %d", len(dead))
	}
	if dead[0].ID != "doomed" {
		t.Fatalf("unexpected dead letter %s", dead[0].ID)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts before dead-letter, got %d", got)
	}
}

func TestPoolAcksSuccessfulJob(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done := make(chan json.RawMessage, 1)
	pool := NewPool(store, PoolConfig{Workers: 1, IdleWait: time.Millisecond}, logging.NewNop())
	if err := pool.Register(KindAnalytics, func(_ context.Context, payload json.RawMessage) error {
		done <- payload
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := NewProducer(store).Enqueue(ctx, KindAnalytics, map[string]string{"event": "order_created"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop(context.Background())

	select {
	case payload := <-done:
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if decoded["event"] != "order_created" {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job was never processed")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		depths, err := store.Depths(ctx)
		if err != nil {
			t.Fatalf("depths: %v", err)
		}
		if depths[StateProcessing] == 0 && depths[StatePending] == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job was never acked")
}

func TestPoolRecoversFromHandlerPanic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	pool := NewPool(store, PoolConfig{
		Workers:     1,
		MaxAttempts: 1,
		IdleWait:    time.Millisecond,
	}, logging.NewNop())
	if err := pool.Register(KindEmail, func(context.Context, json.RawMessage) error {
		panic("handler bug")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.Enqueue(ctx, Envelope{ID: "panicky", Kind: KindEmail}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.DeadLetters()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if len(store.DeadLetters()) != 1 {
		t.Fatal("panicking handler must dead-letter the job, not kill the worker")
	}
}

func TestRegisterRejectsDuplicateKind(t *testing.T) {
	pool := NewPool(NewMemoryStore(), PoolConfig{}, logging.NewNop())
	handler := func(context.Context, json.RawMessage) error { return nil }

	if err := pool.Register(KindEmail, handler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := pool.Register(KindEmail, handler); err == nil {
		t.Fatal("duplicate register must fail")
	}
}
