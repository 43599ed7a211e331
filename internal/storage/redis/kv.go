// Package redis stores snapshots in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV is a storage.KV on a Redis client. Keys get a prefix so several
// storefronts can share a database, and an optional TTL lets abandoned
// carts expire; every Put refreshes it.
type KV struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Options configures a KV.
type Options struct {
	Prefix string
	// TTL of every key. Zero keeps keys forever.
	TTL time.Duration
}

// New wraps client.
func New(client goredis.UniversalClient, opts Options) *KV {
	return &KV{client: client, prefix: opts.Prefix, ttl: opts.TTL}
}

// Dial parses a redis:// URL and connects.
func Dial(ctx context.Context, url string, opts Options) (*KV, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := goredis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return New(client, opts), nil
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot %q: %w", key, err)
	}
	return value, nil
}

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("putting snapshot %q: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", key, err)
	}
	return nil
}

func (s *KV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *KV) Close() error {
	return s.client.Close()
}
