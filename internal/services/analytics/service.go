// Package analytics records business events into the search/analytics index
// and serves aggregated summaries.
package analytics

import (
	"context"
	"strings"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage"
)

// Event is a queued analytics job payload.
type Event struct {
	Name   string                 `json:"event"`
	Fields map[string]interface{} `json:"data,omitempty"`
}

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Index storage.SearchIndex
	Log   *logging.Logger
}

// Service aggregates analytics events.
type Service struct {
	index storage.SearchIndex
	log   *logging.Logger
}

// New wires the service.
func New(deps Dependencies) (*Service, error) {
	if deps.Index == nil {
		return nil, apperrors.Internal("analytics service: search index is required", nil)
	}
	if deps.Log == nil {
		deps.Log = logging.NewDefault("analytics-service")
	}
	return &Service{index: deps.Index, log: deps.Log}, nil
}

// Record persists one event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Name) == "" {
		return apperrors.Validation("event name is required")
	}
	if err := s.index.RecordEvent(ctx, event.Name, event.Fields); err != nil {
		return apperrors.Dependency("searchIndex", err)
	}
	return nil
}

// Summary returns per-event totals.
func (s *Service) Summary(ctx context.Context) (map[string]int64, error) {
	counts, err := s.index.EventCounts(ctx)
	if err != nil {
		return nil, apperrors.Dependency("searchIndex", err)
	}
	return counts, nil
}
