package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	pendingKey    = "queue:pending"
	delayedKey    = "queue:delayed"
	processingKey = "queue:processing"
	deadKey       = "queue:dead"

	claimBlock = time.Second
)

// RedisStore is the production queue store. Pending jobs live in a list,
// delayed jobs in a sorted set scored by ready time, claimed jobs in a
// processing list. Claims rely on RPOPLPUSH atomicity for exclusivity.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a queue store on the given connection.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Enqueue(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.client.LPush(ctx, pendingKey, body).Err()
}

func (s *RedisStore) EnqueueDelayed(ctx context.Context, env Envelope, delay time.Duration) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	score := float64(time.Now().Add(delay).UnixMilli())
	return s.client.ZAdd(ctx, delayedKey, &redis.Z{Score: score, Member: body}).Err()
}

func (s *RedisStore) Claim(ctx context.Context) (Envelope, bool, error) {
	if err := s.promoteDue(ctx); err != nil {
		return Envelope{}, false, err
	}

	body, err := s.client.BRPopLPush(ctx, pendingKey, processingKey, claimBlock).Result()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, false, nil
	}
	if err != nil {
		return Envelope{}, false, err
	}

	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		// Unparseable entries cannot be retried; park them for inspection.
		s.client.LRem(ctx, processingKey, 1, body)
		s.client.LPush(ctx, deadKey, body)
		return Envelope{}, false, err
	}
	return env, true, nil
}

func (s *RedisStore) Ack(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.client.LRem(ctx, processingKey, 1, string(body)).Err()
}

func (s *RedisStore) Retry(ctx context.Context, env Envelope, delay time.Duration) error {
	claimed, err := json.Marshal(env)
	if err != nil {
		return err
	}

	retried := env
	retried.Attempt++
	body, err := json.Marshal(retried)
	if err != nil {
		return err
	}

	score := float64(time.Now().Add(delay).UnixMilli())
	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, string(claimed))
	pipe.ZAdd(ctx, delayedKey, &redis.Z{Score: score, Member: body})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) DeadLetter(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, string(body))
	pipe.LPush(ctx, deadKey, body)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Depths(ctx context.Context) (map[string]int64, error) {
	pipe := s.client.Pipeline()
	pending := pipe.LLen(ctx, pendingKey)
	delayed := pipe.ZCard(ctx, delayedKey)
	processing := pipe.LLen(ctx, processingKey)
	dead := pipe.LLen(ctx, deadKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return map[string]int64{
		StatePending:    pending.Val(),
		StateDelayed:    delayed.Val(),
		StateProcessing: processing.Val(),
		StateDead:       dead.Val(),
	}, nil
}

// promoteDue moves delayed envelopes whose ready time has passed into the
// pending list. ZRem reports whether this promoter won the entry, so
// concurrent promoters never duplicate a job.
func (s *RedisStore) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := s.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		return err
	}

	for _, body := range due {
		removed, err := s.client.ZRem(ctx, delayedKey, body).Result()
		if err != nil {
			return err
		}
		if removed == 1 {
			if err := s.client.LPush(ctx, pendingKey, body).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
