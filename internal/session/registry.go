// Package session maps shopper session ids to their cart and wishlist
// stores.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/wishlist"
)

// ErrInvalidID is returned for session ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid session id")

// Session holds the stores of one shopper.
type Session struct {
	ID       string
	Cart     *cart.Store
	Wishlist *wishlist.Store
}

type entry struct {
	session  *Session
	lastSeen time.Time
	// holds counts Acquire callers that have not released yet. A held
	// entry is never evicted.
	holds int
}

// Options configures a Registry.
type Options struct {
	// Cart is the template for every cart; Storage, Key and Logger are
	// filled in per session.
	Cart    cart.Config
	Storage storage.KV
	// IdleTTL evicts sessions not used for this long and not held by
	// Acquire. Evicted stores are rebuilt from their snapshots on the next
	// request.
	IdleTTL time.Duration
	Logger  *zap.Logger
}

// Registry creates stores lazily, once per session id.
type Registry struct {
	opts  Options
	lg    *zap.Logger
	now   func() time.Time
	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	return &Registry{
		opts:     opts,
		lg:       opts.Logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Get returns the session for id, restoring its stores from storage on
// first use. Concurrent first requests share one restore.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	if s, ok := r.lookup(id); ok {
		return s, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if s, ok := r.lookup(id); ok {
			return s, nil
		}
		s := r.build(context.WithoutCancel(ctx), id)

		r.mu.Lock()
		r.sessions[id] = &entry{session: s, lastSeen: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Acquire is like Get but keeps the session out of eviction until the
// returned release func is called. Release is idempotent and restarts the
// idle timer.
func (r *Registry) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	for {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if e := r.hold(id, s); e != nil {
			var once sync.Once
			return s, func() { once.Do(func() { r.unhold(e) }) }, nil
		}
		// Evicted between Get and hold; build it again.
	}
}

func (r *Registry) hold(id string, s *Session) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.session != s {
		return nil
	}
	e.holds++
	e.lastSeen = r.now()
	return e
}

func (r *Registry) unhold(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.holds--
	e.lastSeen = r.now()
}

func (r *Registry) build(ctx context.Context, id string) *Session {
	lg := r.lg.With(zap.String("session", id))

	cfg := r.opts.Cart
	cfg.Storage = r.opts.Storage
	cfg.Key = storage.CartKey(id)
	cfg.Logger = lg

	lg.Debug("Restoring session")
	return &Session{
		ID:   id,
		Cart: cart.NewStore(ctx, cfg),
		Wishlist: wishlist.NewStore(ctx, wishlist.Config{
			Storage: r.opts.Storage,
			Key:     storage.WishlistKey(id),
			Logger:  lg,
		}),
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// cleanup evicts unheld sessions idle for at least IdleTTL and returns how
// many were removed.
func (r *Registry) cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if e.holds == 0 && now.Sub(e.lastSeen) >= r.opts.IdleTTL {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = r.opts.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := r.cleanup(now); n > 0 {
				r.lg.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
