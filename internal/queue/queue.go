// Package queue implements the durable background job queue: at-least-once
// delivery, exclusive claims, retry with exponential backoff and a
// dead-letter terminal state.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Job kinds dispatched by the platform.
const (
	KindEmail     = "email"
	KindAnalytics = "analytics"
)

// Queue states reported by Depths.
const (
	StatePending    = "pending"
	StateDelayed    = "delayed"
	StateProcessing = "processing"
	StateDead       = "dead"
)

// Envelope is one unit of deferred work. Immutable once enqueued; Attempt
// increments on each retry.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempt    int             `json:"attempt"`
}

// Store is the durable backing for the queue. Claim is exclusive: a given
// envelope is handed to at most one caller until it is acked, retried or
// dead-lettered.
type Store interface {
	Enqueue(ctx context.Context, env Envelope) error
	EnqueueDelayed(ctx context.Context, env Envelope, delay time.Duration) error

	// Claim returns the next available envelope. The boolean is false when
	// the queue is empty. Implementations may block briefly while waiting.
	Claim(ctx context.Context) (Envelope, bool, error)

	// Ack removes a claimed envelope after successful processing.
	Ack(ctx context.Context, env Envelope) error

	// Retry releases a claimed envelope back to the delayed set.
	Retry(ctx context.Context, env Envelope, delay time.Duration) error

	// DeadLetter moves a claimed envelope to the dead-letter log.
	DeadLetter(ctx context.Context, env Envelope) error

	// Depths reports the number of envelopes per state.
	Depths(ctx context.Context) (map[string]int64, error)
}

// Backoff computes the retry delay for an attempt: base * 2^attempt, capped.
func Backoff(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if cap > 0 && delay >= cap {
			return cap
		}
	}
	if cap > 0 && delay > cap {
		return cap
	}
	return delay
}
