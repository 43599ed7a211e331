// Package wishlist keeps a de-duplicated list of saved product ids.
package wishlist

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/storage"
)

// SnapshotVersion is the schema version of persisted wishlists.
const SnapshotVersion = 1

// Config holds the collaborators of a Store.
type Config struct {
	// Storage and Key locate the persisted snapshot. A nil Storage keeps
	// the wishlist in memory only.
	Storage storage.KV
	Key     string
	Logger  *zap.Logger
}

// Store is a wishlist state container, safe for concurrent use.
type Store struct {
	kv  storage.KV
	key string
	lg  *zap.Logger

	mu      sync.Mutex
	items   []string
	subs    map[int]func([]string)
	nextSub int

	notifyMu sync.Mutex
}

// NewStore creates a Store and restores the persisted snapshot.
func NewStore(ctx context.Context, cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Store{
		kv:   cfg.Storage,
		key:  cfg.Key,
		lg:   cfg.Logger.With(zap.String("wishlist", cfg.Key)),
		subs: make(map[int]func([]string)),
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	if s.kv == nil {
		return
	}
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.lg.Error("Load wishlist snapshot", zap.Error(err))
		}
		return
	}

	items, err := decodeSnapshot(data)
	if err != nil {
		s.lg.Warn("Resetting wishlist: unusable snapshot", zap.Error(err))
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.lg.Error("Delete wishlist snapshot", zap.Error(err))
		}
		return
	}
	s.items = items
}

func encodeSnapshot(items []string) []byte {
	return storage.EncodeSnapshot(SnapshotVersion, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("items")
		e.ArrStart()
		for _, id := range items {
			e.Str(id)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// decodeSnapshot drops empty and repeated ids so a hand-edited snapshot
// still yields a valid set.
func decodeSnapshot(data []byte) ([]string, error) {
	var items []string
	err := storage.DecodeSnapshot(data, SnapshotVersion, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "items" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				if err != nil {
					return err
				}
				if id != "" && !slices.Contains(items, id) {
					items = append(items, id)
				}
				return nil
			})
		})
	})
	return items, err
}

func (s *Store) mutate(ctx context.Context, fn func() bool) bool {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return false
	}

	if s.kv != nil {
		if err := s.kv.Put(ctx, s.key, encodeSnapshot(s.items)); err != nil {
			s.lg.Error("Persist wishlist snapshot", zap.Error(err))
		}
	}
	items := slices.Clone(s.items)
	subs := make([]func([]string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range subs {
		fn(items)
	}
	return true
}

// Add appends productID unless it is already present. It reports whether
// the wishlist changed.
func (s *Store) Add(ctx context.Context, productID string) bool {
	if productID == "" {
		return false
	}
	return s.mutate(ctx, func() bool {
		if slices.Contains(s.items, productID) {
			return false
		}
		s.items = append(s.items, productID)
		return true
	})
}

// Remove deletes productID. It reports whether the wishlist changed.
func (s *Store) Remove(ctx context.Context, productID string) bool {
	return s.mutate(ctx, func() bool {
		i := slices.Index(s.items, productID)
		if i < 0 {
			return false
		}
		s.items = slices.Delete(s.items, i, i+1)
		return true
	})
}

// Clear empties the wishlist.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func() bool {
		if len(s.items) == 0 {
			return false
		}
		s.items = nil
		return true
	})
}

func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.items, productID)
}

// Items returns the product ids in the order they were added.
func (s *Store) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn to receive the item list after every change.
// fn must not call mutating Store methods.
func (s *Store) Subscribe(fn func(items []string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
