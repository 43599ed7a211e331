package cart

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func testProduct(id, price string) product.Product {
	return product.Product{
		ID:      id,
		Slug:    id,
		Name:    "Product " + id,
		Price:   dec(price),
		Images:  []string{"/" + id + ".jpg"},
		InStock: true,
	}
}

func newTestStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	return NewStore(context.Background(), Config{
		Promotions: promotion.DefaultTable(),
		Rates:      shipping.DefaultTable(),
		Storage:    kv,
		Key:        storage.CartKey("test"),
		Logger:     zaptest.NewLogger(t),
	})
}

func TestStore_Totals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	_, err := s.AddItem(ctx, testProduct("p1", "50"), "M", "black", 2)
	require.NoError(t, err)
	_, err = s.ApplyPromotion(ctx, "welcome10")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Totals.TotalItems)
	assertDec(t, "100", snap.Totals.Subtotal)
	assertDec(t, "10", snap.Totals.Discount)
	assertDec(t, "7", snap.Totals.Tax)
	assertDec(t, "4.99", snap.Totals.Shipping)
	assertDec(t, "101.99", snap.Totals.Total)
	assertDec(t, "4.99", s.ShippingCost())
}

func TestStore_ApplyPromotion(t *testing.T) {
	ctx := context.Background()

	t.Run("MinimumNotMet", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "80"), "", "", 1)
		require.NoError(t, err)

		_, err = s.ApplyPromotion(ctx, "SUMMER25")
		require.ErrorIs(t, err, promotion.ErrMinimumNotMet)
		assert.Nil(t, s.Snapshot().State.Promotion)
	})
	t.Run("Unknown", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.ApplyPromotion(ctx, "NOPE")
		require.ErrorIs(t, err, promotion.ErrInvalidPromotion)
	})
	t.Run("RejectionKeepsPrevious", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "80"), "", "", 1)
		require.NoError(t, err)
		_, err = s.ApplyPromotion(ctx, "WELCOME10")
		require.NoError(t, err)

		_, err = s.ApplyPromotion(ctx, "SUMMER25")
		require.Error(t, err)
		require.NotNil(t, s.Snapshot().State.Promotion)
		assert.Equal(t, "WELCOME10", s.Snapshot().State.Promotion.Code)
	})
	t.Run("Replace", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "120"), "", "", 1)
		require.NoError(t, err)
		_, err = s.ApplyPromotion(ctx, "WELCOME10")
		require.NoError(t, err)
		p, err := s.ApplyPromotion(ctx, "summer25")
		require.NoError(t, err)
		assert.Equal(t, "SUMMER25", p.Code)
		assertDec(t, "30", s.Snapshot().Totals.Discount)

		s.RemovePromotion(ctx)
		assert.Nil(t, s.Snapshot().State.Promotion)
		assertDec(t, "0", s.Snapshot().Totals.Discount)
	})
	t.Run("Eligibility", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 4)
		require.NoError(t, err)
		_, err = s.ApplyPromotion(ctx, "BULK20")
		require.ErrorIs(t, err, promotion.ErrNotEligible)

		_, err = s.AddItem(ctx, testProduct("p2", "10"), "", "", 1)
		require.NoError(t, err)
		_, err = s.ApplyPromotion(ctx, "BULK20")
		require.NoError(t, err)
		assertDec(t, "10", s.Snapshot().Totals.Discount)
	})
}

func TestStore_FreeShipping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	_, err := s.AddItem(ctx, testProduct("p1", "30"), "", "", 2)
	require.NoError(t, err)
	require.NoError(t, s.SetShippingMethod(ctx, "express"))
	_, err = s.ApplyPromotion(ctx, "FREESHIP")
	require.NoError(t, err)
	assertDec(t, "0", s.ShippingCost())

	// Dropping below the minimum brings the charge back without removing
	// the promotion.
	require.NoError(t, s.UpdateItemQuantity(ctx, Key{ProductID: "p1"}, 1))
	assertDec(t, "14.99", s.ShippingCost())
	assert.NotNil(t, s.Snapshot().State.Promotion)
}

func TestStore_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("Errors", func(t *testing.T) {
		s := newTestStore(t, nil)
		out := testProduct("p1", "10")
		out.InStock = false

		_, err := s.AddItem(ctx, out, "", "", 1)
		require.ErrorIs(t, err, ErrOutOfStock)
		_, err = s.AddItem(ctx, product.Product{}, "", "", 1)
		require.ErrorIs(t, err, ErrMissingProductID)
		_, err = s.AddItem(ctx, testProduct("p1", "10"), "", "", 0)
		require.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Empty(t, s.Snapshot().State.Items)
	})
	t.Run("MergesSameVariant", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "10"), "M", "red", 2)
		require.NoError(t, err)
		res, err := s.AddItem(ctx, testProduct("p1", "10"), "M", "red", 3)
		require.NoError(t, err)
		assert.False(t, res.Clamped)
		assert.Equal(t, 5, res.Item.Quantity)
		assert.Len(t, s.Snapshot().State.Items, 1)
	})
	t.Run("SeparateVariants", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "10"), "M", "red", 1)
		require.NoError(t, err)
		_, err = s.AddItem(ctx, testProduct("p1", "10"), "L", "red", 1)
		require.NoError(t, err)
		assert.Len(t, s.Snapshot().State.Items, 2)
	})
	t.Run("Clamped", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 8)
		require.NoError(t, err)
		res, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 5)
		require.NoError(t, err)
		assert.True(t, res.Clamped)
		assert.Equal(t, DefaultLineCap, res.Item.Quantity)
	})
	t.Run("HugeQuantityOnExistingLine", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 1)
		require.NoError(t, err)
		res, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", math.MaxInt)
		require.NoError(t, err)
		assert.True(t, res.Clamped)
		assert.Equal(t, DefaultLineCap, res.Item.Quantity)
		assertDec(t, "100", s.Snapshot().Totals.Subtotal)
	})
	t.Run("SnapshotsSalePrice", func(t *testing.T) {
		s := newTestStore(t, nil)
		p := testProduct("p1", "100")
		p.SalePrice = decimal.NewNullDecimal(dec("75"))
		res, err := s.AddItem(ctx, p, "", "", 2)
		require.NoError(t, err)
		assert.Equal(t, "/p1.jpg", res.Item.Image)
		assertDec(t, "150", s.Snapshot().Totals.Subtotal)
	})
	t.Run("CountedInventory", func(t *testing.T) {
		s := NewStore(ctx, Config{
			Promotions: promotion.DefaultTable(),
			Rates:      shipping.DefaultTable(),
			Inventory:  CountedPolicy{Ceiling: 10},
		})
		p := testProduct("p1", "10")
		three := 3
		p.Inventory = &three
		res, err := s.AddItem(ctx, p, "", "", 5)
		require.NoError(t, err)
		assert.True(t, res.Clamped)
		assert.Equal(t, 3, res.Item.Quantity)

		zero := 0
		p.Inventory = &zero
		_, err = s.AddItem(ctx, p, "S", "", 1)
		require.ErrorIs(t, err, ErrOutOfStock)
	})
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	for _, size := range []string{"S", "M"} {
		_, err := s.AddItem(ctx, testProduct("p1", "10"), size, "", 1)
		require.NoError(t, err)
	}
	_, err := s.AddItem(ctx, testProduct("p2", "10"), "", "", 1)
	require.NoError(t, err)

	assert.False(t, s.RemoveItem(ctx, Key{ProductID: "p1", Size: "L"}))
	assert.True(t, s.RemoveItem(ctx, Key{ProductID: "p1", Size: "S"}))
	assert.Equal(t, 1, s.RemoveProduct(ctx, "p1"))
	assert.Equal(t, 0, s.RemoveProduct(ctx, "p1"))

	items := s.Snapshot().State.Items
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestStore_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.AddItem(ctx, testProduct("p1", "10"), "S", "", 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, testProduct("p1", "10"), "M", "", 2)
	require.NoError(t, err)

	tests := []struct {
		name string
		qty  int
		want int
	}{
		{name: "Set", qty: 4, want: 4},
		{name: "BelowOne", qty: 0, want: 1},
		{name: "Negative", qty: -3, want: 1},
		{name: "AboveCap", qty: 99, want: DefaultLineCap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.UpdateItemQuantity(ctx, Key{ProductID: "p1", Size: "S"}, tt.qty))
			assert.Equal(t, tt.want, s.Snapshot().State.Items[0].Quantity)
		})
	}

	require.NoError(t, s.UpdateProductQuantity(ctx, "p1", 3))
	for _, it := range s.Snapshot().State.Items {
		assert.Equal(t, 3, it.Quantity)
	}

	require.ErrorIs(t, s.UpdateItemQuantity(ctx, Key{ProductID: "p9"}, 1), ErrItemNotFound)
	require.ErrorIs(t, s.UpdateProductQuantity(ctx, "p9", 1), ErrItemNotFound)
}

func TestStore_ClearCart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.AddItem(ctx, testProduct("p1", "60"), "", "", 1)
	require.NoError(t, err)
	require.NoError(t, s.SetShippingMethod(ctx, "overnight"))
	require.NoError(t, s.UpdateTaxRate(ctx, dec("0.1")))
	_, err = s.ApplyPromotion(ctx, "WELCOME10")
	require.NoError(t, err)

	s.ClearCart(ctx)

	snap := s.Snapshot()
	assert.Empty(t, snap.State.Items)
	assert.Nil(t, snap.State.Promotion)
	assert.Equal(t, "overnight", snap.State.ShippingMethod)
	assertDec(t, "0.1", snap.State.TaxRate)
	assertDec(t, "0", snap.Totals.Subtotal)
}

func TestStore_ShippingAndTax(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	require.ErrorIs(t, s.SetShippingMethod(ctx, "teleport"), shipping.ErrUnknownMethod)
	assert.Equal(t, shipping.DefaultMethod, s.Snapshot().State.ShippingMethod)

	require.ErrorIs(t, s.UpdateTaxRate(ctx, dec("-0.01")), ErrInvalidTaxRate)
	assertDec(t, "0.07", s.Snapshot().State.TaxRate)

	require.NoError(t, s.UpdateTaxRate(ctx, decimal.Zero))
	assertDec(t, "0", s.Snapshot().State.TaxRate)
}

func TestStore_ConfiguredTaxRate(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		rate decimal.NullDecimal
		want string
	}{
		{name: "Unset", want: "0.07"},
		{name: "Zero", rate: decimal.NewNullDecimal(decimal.Zero), want: "0"},
		{name: "Custom", rate: decimal.NewNullDecimal(dec("0.2")), want: "0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(ctx, Config{
				Promotions: promotion.DefaultTable(),
				Rates:      shipping.DefaultTable(),
				TaxRate:    tt.rate,
			})
			assertDec(t, tt.want, s.Snapshot().State.TaxRate)

			_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 1)
			require.NoError(t, err)
			s.ClearCart(ctx)
			assertDec(t, tt.want, s.Snapshot().State.TaxRate)
		})
	}
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	var (
		mu     sync.Mutex
		counts []int
	)
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, snap.Totals.TotalItems)
	})

	_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 1)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, testProduct("p1", "10"), "", "", 2)
	require.NoError(t, err)
	// Failed and no-op mutations do not notify.
	_, err = s.AddItem(ctx, testProduct("p1", "10"), "", "", 0)
	require.Error(t, err)
	s.RemovePromotion(ctx)

	cancel()
	cancel()
	s.ClearCart(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 3}, counts)
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.AddItem(ctx, testProduct("p1", "10"), "", "", 1)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.State.Items[0].Quantity = 9

	assert.Equal(t, 1, s.Snapshot().State.Items[0].Quantity)
}

func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		kv := memory.NewKV()
		s := newTestStore(t, kv)
		p := testProduct("p1", "50.00")
		p.SalePrice = decimal.NewNullDecimal(dec("45.50"))
		_, err := s.AddItem(ctx, p, "M", "black", 2)
		require.NoError(t, err)
		require.NoError(t, s.SetShippingMethod(ctx, "express"))
		_, err = s.ApplyPromotion(ctx, "WELCOME10")
		require.NoError(t, err)

		restored := newTestStore(t, kv)
		assert.Equal(t, s.Snapshot().State.Items, restored.Snapshot().State.Items)
		assert.Equal(t, "express", restored.Snapshot().State.ShippingMethod)
		require.NotNil(t, restored.Snapshot().State.Promotion)
		assert.Equal(t, "WELCOME10", restored.Snapshot().State.Promotion.Code)
		assert.True(t, s.Snapshot().Totals.Total.Equal(restored.Snapshot().Totals.Total))
	})
	t.Run("VersionMismatch", func(t *testing.T) {
		kv := memory.NewKV()
		key := storage.CartKey("test")
		require.NoError(t, kv.Put(ctx, key, []byte(`{"version":0,"state":{"items":[]}}`)))

		s := newTestStore(t, kv)
		assert.Empty(t, s.Snapshot().State.Items)
		assert.Equal(t, shipping.DefaultMethod, s.Snapshot().State.ShippingMethod)

		_, err := kv.Get(ctx, key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
	t.Run("Corrupt", func(t *testing.T) {
		kv := memory.NewKV()
		require.NoError(t, kv.Put(ctx, storage.CartKey("test"), []byte(`{not json`)))

		s := newTestStore(t, kv)
		assert.Empty(t, s.Snapshot().State.Items)
	})
	t.Run("BrokenInvariant", func(t *testing.T) {
		kv := memory.NewKV()
		data := `{"version":1,"state":{"items":[
			{"productId":"p1","quantity":2,"maxQuantity":10,"price":"1"},
			{"productId":"p1","quantity":1,"maxQuantity":10,"price":"1"}
		],"shippingMethod":"standard","promotion":null,"taxRate":"0.07"}}`
		require.NoError(t, kv.Put(ctx, storage.CartKey("test"), []byte(data)))

		s := newTestStore(t, kv)
		assert.Empty(t, s.Snapshot().State.Items)
	})
	t.Run("UnknownPromotionDropped", func(t *testing.T) {
		kv := memory.NewKV()
		data := `{"version":1,"state":{"items":[
			{"productId":"p1","name":"A","image":"","price":"20.00","salePrice":null,"quantity":1,"maxQuantity":10}
		],"shippingMethod":"standard","promotion":"RETIRED","taxRate":"0.07"}}`
		require.NoError(t, kv.Put(ctx, storage.CartKey("test"), []byte(data)))

		s := newTestStore(t, kv)
		snap := s.Snapshot()
		require.Len(t, snap.State.Items, 1)
		assert.Nil(t, snap.State.Promotion)
		assertDec(t, "20", snap.Totals.Subtotal)
	})
}

func TestStore_Take(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	empty := s.Take(ctx)
	assert.Empty(t, empty.State.Items)

	_, err := s.AddItem(ctx, testProduct("p1", "20"), "", "", 2)
	require.NoError(t, err)
	_, err = s.ApplyPromotion(ctx, "WELCOME10")
	require.NoError(t, err)

	snap := s.Take(ctx)
	require.Len(t, snap.State.Items, 1)
	require.NotNil(t, snap.State.Promotion)
	assertDec(t, "4", snap.Totals.Discount)

	after := s.Snapshot()
	assert.Empty(t, after.State.Items)
	assert.Nil(t, after.State.Promotion)
}
