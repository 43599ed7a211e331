// Package cart implements the shopping cart state container: line items,
// the applied promotion, shipping selection and tax rate, with totals
// derived on read.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/storage"
)

var (
	// ErrOutOfStock is returned when adding a product that is not in stock.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrMissingProductID is returned when adding a product without an id.
	ErrMissingProductID = errors.New("product id is required")
	// ErrInvalidQuantity is returned when adding fewer than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrItemNotFound is returned when no cart line matches.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidTaxRate is returned for a negative tax rate.
	ErrInvalidTaxRate = errors.New("tax rate must not be negative")
)

// Config holds the collaborators of a Store.
type Config struct {
	Promotions promotion.Lookup
	Rates      shipping.Lookup
	// Inventory defaults to FixedCapPolicy.
	Inventory InventoryPolicy
	// Storage and Key locate the persisted snapshot. A nil Storage keeps
	// the cart in memory only.
	Storage storage.KV
	Key     string
	// TaxRate of a new or reset cart. Unset means DefaultTaxRate; a valid
	// zero rate is kept.
	TaxRate decimal.NullDecimal
	Logger  *zap.Logger
}

// Snapshot is a consistent, detached copy of the cart with its totals.
type Snapshot struct {
	State  State
	Totals Totals
}

// AddResult reports the line produced by AddItem.
type AddResult struct {
	Item Item
	// Clamped is set when the requested quantity exceeded the line cap.
	Clamped bool
}

// Store is a cart state container. All methods are safe for concurrent use;
// each operation is atomic and subscribers observe snapshots in the order
// the operations were applied.
type Store struct {
	promos    promotion.Lookup
	rates     shipping.Lookup
	inventory InventoryPolicy
	kv        storage.KV
	key       string
	lg        *zap.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]func(Snapshot)
	nextSub int

	// notifyMu keeps subscriber callbacks ordered; it is taken before mu is
	// released so a later mutation cannot notify first.
	notifyMu sync.Mutex
}

// NewStore creates a Store and synchronously restores the persisted
// snapshot. Any load failure leaves an empty cart.
func NewStore(ctx context.Context, cfg Config) *Store {
	if cfg.Inventory == nil {
		cfg.Inventory = FixedCapPolicy{InStock: DefaultLineCap}
	}
	taxRate := DefaultTaxRate
	if cfg.TaxRate.Valid {
		taxRate = cfg.TaxRate.Decimal
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Store{
		promos:    cfg.Promotions,
		rates:     cfg.Rates,
		inventory: cfg.Inventory,
		kv:        cfg.Storage,
		key:       cfg.Key,
		lg:        cfg.Logger.With(zap.String("cart", cfg.Key)),
		state:     NewState(taxRate),
		subs:      make(map[int]func(Snapshot)),
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
			s.lg.Error("Load cart snapshot", zap.Error(err))
		}
		return
	}

	st, err := decodeSnapshot(data, s.promos, s.lg)
	if err != nil {
		s.lg.Warn("Resetting cart: unusable snapshot", zap.Error(err))
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.lg.Error("Delete cart snapshot", zap.Error(err))
		}
		return
	}
	s.state = st
}

// mutate runs fn under the lock. When fn reports a change, the new state is
// persisted and subscribers are notified. fn must leave the state untouched
// when it returns an error.
func (s *Store) mutate(ctx context.Context, fn func(st *State) (bool, error)) error {
	s.mu.Lock()
	changed, err := fn(&s.state)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}

	s.persistLocked(ctx)
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Put(ctx, s.key, encodeSnapshot(s.state)); err != nil {
		s.lg.Error("Persist cart snapshot", zap.Error(err))
	}
}

func (s *Store) snapshotLocked() Snapshot {
	st := s.state.Clone()
	return Snapshot{State: st, Totals: ComputeTotals(st, s.rates)}
}

func indexOf(items []Item, key Key) int {
	for i, it := range items {
		if it.Key == key {
			return i
		}
	}
	return -1
}

// AddItem adds qty units of p in the given variant. Adding to an existing
// line raises its quantity; the result is clamped to the inventory cap and
// the clamp is reported in AddResult rather than as an error. Prices, name
// and image are copied from p only when the line is created.
func (s *Store) AddItem(ctx context.Context, p product.Product, size, color string, qty int) (AddResult, error) {
	switch {
	case p.ID == "":
		return AddResult{}, ErrMissingProductID
	case !p.InStock:
		return AddResult{}, ErrOutOfStock
	case qty < 1:
		return AddResult{}, ErrInvalidQuantity
	}

	limit := s.inventory.Cap(p)
	if limit <= 0 {
		return AddResult{}, ErrOutOfStock
	}

	var res AddResult
	err := s.mutate(ctx, func(st *State) (bool, error) {
		key := Key{ProductID: p.ID, Size: size, Color: color}
		if i := indexOf(st.Items, key); i >= 0 {
			it := &st.Items[i]
			// Compare against the headroom so a huge qty cannot overflow.
			room := max(limit-it.Quantity, 0)
			it.MaxQuantity = limit
			it.Quantity = min(it.Quantity+min(qty, room), limit)
			res = AddResult{Item: *it, Clamped: qty > room}
			return true, nil
		}

		it := Item{
			Key:         key,
			Name:        p.Name,
			Image:       p.FirstImage(),
			Price:       p.Price,
			SalePrice:   p.SalePrice,
			Quantity:    min(qty, limit),
			MaxQuantity: limit,
		}
		st.Items = append(st.Items, it)
		res = AddResult{Item: it, Clamped: qty > limit}
		return true, nil
	})
	if err != nil {
		return AddResult{}, err
	}

	if res.Clamped {
		s.lg.Warn("Quantity clamped to line cap",
			zap.String("product", p.ID),
			zap.Int("requested", qty),
			zap.Int("quantity", res.Item.Quantity),
			zap.Int("cap", limit),
		)
	}
	return res, nil
}

// RemoveItem removes the line with exactly this key. It reports whether a
// line was removed.
func (s *Store) RemoveItem(ctx context.Context, key Key) bool {
	var removed bool
	_ = s.mutate(ctx, func(st *State) (bool, error) {
		i := indexOf(st.Items, key)
		if i < 0 {
			return false, nil
		}
		st.Items = append(st.Items[:i:i], st.Items[i+1:]...)
		removed = true
		return true, nil
	})
	return removed
}

// RemoveProduct removes every line of the product regardless of variant and
// returns how many lines were removed.
func (s *Store) RemoveProduct(ctx context.Context, productID string) int {
	var removed int
	_ = s.mutate(ctx, func(st *State) (bool, error) {
		kept := make([]Item, 0, len(st.Items))
		for _, it := range st.Items {
			if it.ProductID == productID {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		if removed == 0 {
			return false, nil
		}
		st.Items = kept
		return true, nil
	})
	return removed
}

// UpdateItemQuantity sets the quantity of the line with this key, clamped
// to [1, MaxQuantity].
func (s *Store) UpdateItemQuantity(ctx context.Context, key Key, qty int) error {
	return s.mutate(ctx, func(st *State) (bool, error) {
		i := indexOf(st.Items, key)
		if i < 0 {
			return false, ErrItemNotFound
		}
		it := &st.Items[i]
		it.Quantity = clampQuantity(qty, it.MaxQuantity)
		return true, nil
	})
}

// UpdateProductQuantity sets the quantity of every line of the product,
// each clamped to its own [1, MaxQuantity].
func (s *Store) UpdateProductQuantity(ctx context.Context, productID string, qty int) error {
	return s.mutate(ctx, func(st *State) (bool, error) {
		matched := false
		for i := range st.Items {
			if st.Items[i].ProductID != productID {
				continue
			}
			st.Items[i].Quantity = clampQuantity(qty, st.Items[i].MaxQuantity)
			matched = true
		}
		if !matched {
			return false, ErrItemNotFound
		}
		return true, nil
	})
}

// ClearCart empties the cart and drops the applied promotion. Shipping
// method and tax rate are kept.
func (s *Store) ClearCart(ctx context.Context) {
	_ = s.mutate(ctx, func(st *State) (bool, error) {
		st.Items = nil
		st.Promotion = nil
		return true, nil
	})
}

// Take returns the current snapshot and empties the cart in one step, so
// no mutation can land between reading and clearing. An empty cart is left
// as is.
func (s *Store) Take(ctx context.Context) Snapshot {
	var snap Snapshot
	_ = s.mutate(ctx, func(st *State) (bool, error) {
		snap = Snapshot{State: st.Clone(), Totals: ComputeTotals(*st, s.rates)}
		if len(st.Items) == 0 {
			return false, nil
		}
		st.Items = nil
		st.Promotion = nil
		return true, nil
	})
	return snap
}

// SetShippingMethod selects a rate from the shipping table.
func (s *Store) SetShippingMethod(ctx context.Context, id string) error {
	if _, ok := s.rates.Find(id); !ok {
		return shipping.ErrUnknownMethod
	}
	return s.mutate(ctx, func(st *State) (bool, error) {
		if st.ShippingMethod == id {
			return false, nil
		}
		st.ShippingMethod = id
		return true, nil
	})
}

// ShippingCost returns the current shipping charge.
func (s *Store) ShippingCost() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ShippingCost(s.state, Subtotal(s.state.Items), s.rates)
}

// ApplyPromotion looks code up case-insensitively and, if the cart qualifies,
// replaces any applied promotion with it. On error nothing changes.
func (s *Store) ApplyPromotion(ctx context.Context, code string) (promotion.Promotion, error) {
	var applied promotion.Promotion
	err := s.mutate(ctx, func(st *State) (bool, error) {
		p, err := s.promos.Validate(code, promotion.Facts{
			Subtotal:       Subtotal(st.Items),
			ItemCount:      TotalItems(st.Items),
			ShippingMethod: st.ShippingMethod,
		})
		if err != nil {
			return false, err
		}
		applied = p
		st.Promotion = &p
		return true, nil
	})
	if err != nil {
		s.lg.Debug("Promotion rejected", zap.String("code", code), zap.Error(err))
		return promotion.Promotion{}, err
	}
	return applied, nil
}

// RemovePromotion drops the applied promotion, if any.
func (s *Store) RemovePromotion(ctx context.Context) {
	_ = s.mutate(ctx, func(st *State) (bool, error) {
		if st.Promotion == nil {
			return false, nil
		}
		st.Promotion = nil
		return true, nil
	})
}

// UpdateTaxRate replaces the tax rate.
func (s *Store) UpdateTaxRate(ctx context.Context, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidTaxRate
	}
	return s.mutate(ctx, func(st *State) (bool, error) {
		st.TaxRate = rate
		return true, nil
	})
}

// Snapshot returns the current state and totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that cancels the subscription. fn runs synchronously
// on the mutating goroutine and must not call mutating Store methods.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
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
