package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nextcart/platform/internal/domain/product"
	"github.com/nextcart/platform/internal/storage"
)

const (
	productKeyPrefix = "search:product:"
	termKeyPrefix    = "search:term:"
	eventCountsKey   = "analytics:event_counts"
	recentEventsKey  = "analytics:recent"
	recentEventsMax  = 1000
)

// SearchStore implements product search and analytics aggregation on Redis
// term sets.
type SearchStore struct {
	client *redis.Client
}

var _ storage.SearchIndex = (*SearchStore)(nil)
var _ storage.Pinger = (*SearchStore)(nil)

// OpenSearchStore connects to the search backend and verifies the connection.
func OpenSearchStore(opts Options) (*SearchStore, error) {
	client, err := connect(opts)
	if err != nil {
		return nil, err
	}
	return &SearchStore{client: client}, nil
}

// NewSearchStore wraps an existing client. Intended for tests.
func NewSearchStore(client *redis.Client) *SearchStore {
	return &SearchStore{client: client}
}

func (s *SearchStore) Name() string { return "searchIndex" }

func (s *SearchStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *SearchStore) Close() error { return s.client.Close() }

// IndexProduct stores the document and registers it under every searchable
// term from its name and tags.
func (s *SearchStore) IndexProduct(ctx context.Context, p product.Product) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, productKeyPrefix+p.ID, body, 0)
	for _, term := range tokenize(p.Name, p.Description, strings.Join(p.Tags, " ")) {
		pipe.SAdd(ctx, termKeyPrefix+term, p.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// SearchProducts intersects the term sets for every token in the query.
func (s *SearchStore) SearchProducts(ctx context.Context, query string, limit int) ([]product.Product, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	keys := make([]string, len(terms))
	for i, term := range terms {
		keys[i] = termKeyPrefix + term
	}

	ids, err := s.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		body, err := s.client.Get(ctx, productKeyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var p product.Product
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// RecordEvent bumps the per-kind counter and keeps a bounded trail of raw
// events for inspection.
func (s *SearchStore) RecordEvent(ctx context.Context, kind string, fields map[string]interface{}) error {
	entry := map[string]interface{}{"kind": kind, "at": time.Now().UTC()}
	for k, v := range fields {
		entry[k] = v
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, eventCountsKey, kind, 1)
	pipe.LPush(ctx, recentEventsKey, body)
	pipe.LTrim(ctx, recentEventsKey, 0, recentEventsMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SearchStore) EventCounts(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, eventCountsKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for kind, count := range raw {
		var n int64
		if err := json.Unmarshal([]byte(count), &n); err == nil {
			out[kind] = n
		}
	}
	return out, nil
}

func tokenize(parts ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range parts {
		for _, field := range strings.Fields(strings.ToLower(part)) {
			field = strings.Trim(field, ".,;:!?\"'()")
			if len(field) < 2 {
				continue
			}
			if _, dup := seen[field]; dup {
				continue
			}
			seen[field] = struct{}{}
			out = append(out, field)
		}
	}
	return out
}
