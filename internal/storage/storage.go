// Package storage defines the key-value persistence boundary used to keep
// cart and wishlist snapshots across restarts.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by KV.Get when no value is stored under the key.
var ErrNotFound = errors.New("snapshot not found")

// KV stores opaque snapshot blobs under string keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// CartKey returns the storage key of a session's cart snapshot.
func CartKey(session string) string {
	return "cart:" + session
}

// WishlistKey returns the storage key of a session's wishlist snapshot.
func WishlistKey(session string) string {
	return "wishlist:" + session
}
