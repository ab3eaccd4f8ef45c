// Package jobs binds queue kinds to their handler functions.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextcart/platform/internal/queue"
	"github.com/nextcart/platform/internal/services/analytics"
	"github.com/nextcart/platform/internal/services/notification"
)

// RegisterAll wires every job kind into the pool.
func RegisterAll(pool *queue.Pool, notifications *notification.Service, events *analytics.Service) error {
	if err := pool.Register(queue.KindEmail, EmailHandler(notifications)); err != nil {
		return err
	}
	if err := pool.Register(queue.KindAnalytics, AnalyticsHandler(events)); err != nil {
		return err
	}
	return nil
}

// EmailHandler decodes an email payload and delivers it.
func EmailHandler(notifications *notification.Service) queue.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var msg notification.Email
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return notifications.SendEmail(ctx, msg)
	}
}

// AnalyticsHandler decodes an event payload and records it.
func AnalyticsHandler(events *analytics.Service) queue.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var event analytics.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode analytics payload: %w", err)
		}
		return events.Record(ctx, event)
	}
}
