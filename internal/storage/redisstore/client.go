// Package redisstore keeps tile, meta and index blobs in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
	"github.com/mohammed-shakir/tzwhere/internal/storage/keys"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  5 * time.Second, // tile blobs can be several MB
		WriteTimeout: 5 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("redis_ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns storage.ErrNotFound for missing keys.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("redis_get", nil, time.Since(start).Seconds())
		return nil, fmt.Errorf("redis GET %q: %w", key, storage.ErrNotFound)
	}
	observability.ObserveStoreOp("redis_get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, nil
}

// Set stores val without expiry; blobs live until replaced.
func (c *Client) Set(ctx context.Context, key string, val []byte) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, val, 0).Err()
	observability.ObserveStoreOp("redis_set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	observability.ObserveStoreOp("redis_del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// Store adapts a Client to storage.Source/Sink under one namespace.
type Store struct {
	cli       *Client
	namespace string
}

var _ storage.ReadWriter = (*Store)(nil)

func NewStore(cli *Client, namespace string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	return &Store{cli: cli, namespace: namespace}
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	b, err := s.cli.Get(ctx, keys.BlobKey(s.namespace, name))
	if err != nil {
		return nil, fmt.Errorf("redisstore read %q: %w", name, err)
	}
	return b, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := s.cli.Set(ctx, keys.BlobKey(s.namespace, name), data); err != nil {
		return fmt.Errorf("redisstore write %q: %w", name, err)
	}
	return nil
}

// Purge deletes every blob of the namespace.
func (s *Store) Purge(ctx context.Context) (int, error) {
	var found []string
	iter := s.cli.rdb.Scan(ctx, 0, keys.NamespacePattern(s.namespace), 256).Iterator()
	for iter.Next(ctx) {
		found = append(found, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redisstore scan: %w", err)
	}
	if len(found) == 0 {
		return 0, nil
	}
	if err := s.cli.Del(ctx, found...); err != nil {
		return 0, err
	}
	return len(found), nil
}
