// Package redis implements the cache/session adapter and the search/analytics
// adapter on Redis.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nextcart/platform/internal/domain/identity"
	"github.com/nextcart/platform/internal/storage"
)

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// CacheStore backs sessions and rate-limit counters. Every mutation is a
// single command or a MULTI/EXEC pipeline, so it is atomic at the store level.
type CacheStore struct {
	client *redis.Client
}

var _ storage.SessionStore = (*CacheStore)(nil)
var _ storage.Counter = (*CacheStore)(nil)
var _ storage.Pinger = (*CacheStore)(nil)

// OpenCacheStore connects to Redis and verifies the connection.
func OpenCacheStore(opts Options) (*CacheStore, error) {
	client, err := connect(opts)
	if err != nil {
		return nil, err
	}
	return &CacheStore{client: client}, nil
}

// NewCacheStore wraps an existing client. Intended for tests.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

func (s *CacheStore) Name() string { return "cache" }

func (s *CacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *CacheStore) Close() error { return s.client.Close() }

// Client exposes the underlying connection for the job queue store, which
// shares the cache backend.
func (s *CacheStore) Client() *redis.Client { return s.client }

// --- SessionStore ------------------------------------------------------------

func sessionKey(token string) string {
	// Tokens are stored hashed so a cache dump cannot be replayed.
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}

func (s *CacheStore) PutSession(ctx context.Context, token string, sess identity.Session, ttl time.Duration) error {
	body, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(token), body, ttl).Err()
}

func (s *CacheStore) GetSession(ctx context.Context, token string) (identity.Session, error) {
	body, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return identity.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return identity.Session{}, err
	}

	var sess identity.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return identity.Session{}, err
	}
	return sess, nil
}

func (s *CacheStore) RefreshSession(ctx context.Context, token string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKey(token), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (s *CacheStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// --- Counter -----------------------------------------------------------------

func (s *CacheStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	// SET NX seeds the bucket together with its expiry inside one MULTI/EXEC,
	// so a counter key can never exist without a window deadline.
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func connect(opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
