package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Producer builds envelopes and hands them to the store. Handlers enqueue
// through it so request latency stays bounded to synchronous work.
type Producer struct {
	store Store
}

// NewProducer creates a Producer on the given store.
func NewProducer(store Store) *Producer {
	return &Producer{store: store}
}

// Enqueue marshals payload and appends a fresh envelope.
func (p *Producer) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.store.Enqueue(ctx, Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	})
}
