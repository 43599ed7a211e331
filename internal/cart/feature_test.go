package cart

import (
	"context"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promotion"
	"github.com/xenking/storefront/internal/domain/shipping"
)

type cartFeature struct {
	store   *Store
	lastAdd AddResult
	err     error
}

func (c *cartFeature) anEmptyCart(ctx context.Context) error {
	c.store = NewStore(ctx, Config{
		Promotions: promotion.DefaultTable(),
		Rates:      shipping.DefaultTable(),
	})
	c.lastAdd = AddResult{}
	c.err = nil
	return nil
}

func (c *cartFeature) add(ctx context.Context, p product.Product, size, color string, qty int) {
	c.lastAdd, c.err = c.store.AddItem(ctx, p, size, color, qty)
}

func featureProduct(id, price string) (product.Product, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{ID: id, Slug: id, Name: id, Price: d, Images: []string{"/" + id}, InStock: true}, nil
}

func (c *cartFeature) iAddOfPriced(ctx context.Context, qty int, id, price string) error {
	p, err := featureProduct(id, price)
	if err != nil {
		return err
	}
	c.add(ctx, p, "", "", qty)
	return nil
}

func (c *cartFeature) iAddVariant(ctx context.Context, qty int, id, price, size, color string) error {
	p, err := featureProduct(id, price)
	if err != nil {
		return err
	}
	c.add(ctx, p, size, color, qty)
	return nil
}

func (c *cartFeature) iAddOutOfStock(ctx context.Context, qty int, id string) error {
	p, err := featureProduct(id, "10")
	if err != nil {
		return err
	}
	p.InStock = false
	c.add(ctx, p, "", "", qty)
	return nil
}

func (c *cartFeature) iApplyPromotion(ctx context.Context, code string) error {
	_, c.err = c.store.ApplyPromotion(ctx, code)
	return nil
}

func (c *cartFeature) iChooseShipping(ctx context.Context, id string) error {
	c.err = c.store.SetShippingMethod(ctx, id)
	return nil
}

func (c *cartFeature) iClearTheCart(ctx context.Context) error {
	c.store.ClearCart(ctx)
	return nil
}

func checkAmount(name, want string, got decimal.Decimal) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !w.Equal(got) {
		return errors.Errorf("%s: want %s, got %s", name, w, got)
	}
	return nil
}

func (c *cartFeature) amountStep(name string, pick func(Totals) decimal.Decimal) func(string) error {
	return func(want string) error {
		if c.err != nil {
			return errors.Wrap(c.err, "unexpected error")
		}
		return checkAmount(name, want, pick(c.store.Snapshot().Totals))
	}
}

func (c *cartFeature) theCartHoldsItems(n int) error {
	if got := c.store.Snapshot().Totals.TotalItems; got != n {
		return errors.Errorf("want %d items, got %d", n, got)
	}
	return nil
}

func (c *cartFeature) theLastAddWasClamped() error {
	if !c.lastAdd.Clamped {
		return errors.New("add was not clamped")
	}
	return nil
}

func (c *cartFeature) theLastOperationFailsWith(msg string) error {
	if c.err == nil {
		return errors.New("expected an error")
	}
	if !strings.Contains(c.err.Error(), msg) {
		return errors.Errorf("error %q does not contain %q", c.err, msg)
	}
	return nil
}

func (c *cartFeature) noPromotionIsApplied() error {
	if p := c.store.Snapshot().State.Promotion; p != nil {
		return errors.Errorf("promotion %s is applied", p.Code)
	}
	return nil
}

func initializeCartScenario(sc *godog.ScenarioContext) {
	c := &cartFeature{}

	sc.Step(`^an empty cart$`, c.anEmptyCart)
	sc.Step(`^I add (\d+) of "([^"]*)" priced (\d+\.\d+)$`, c.iAddOfPriced)
	sc.Step(`^I add (\d+) of "([^"]*)" priced (\d+\.\d+) in size "([^"]*)" and color "([^"]*)"$`, c.iAddVariant)
	sc.Step(`^I add (\d+) of out of stock "([^"]*)"$`, c.iAddOutOfStock)
	sc.Step(`^I apply promotion "([^"]*)"$`, c.iApplyPromotion)
	sc.Step(`^I choose shipping "([^"]*)"$`, c.iChooseShipping)
	sc.Step(`^I clear the cart$`, c.iClearTheCart)

	sc.Step(`^the subtotal is (\d+\.\d+)$`, c.amountStep("subtotal", func(t Totals) decimal.Decimal { return t.Subtotal }))
	sc.Step(`^the discount is (\d+\.\d+)$`, c.amountStep("discount", func(t Totals) decimal.Decimal { return t.Discount }))
	sc.Step(`^the tax is (\d+\.\d+)$`, c.amountStep("tax", func(t Totals) decimal.Decimal { return t.Tax }))
	sc.Step(`^the shipping is (\d+\.\d+)$`, c.amountStep("shipping", func(t Totals) decimal.Decimal { return t.Shipping }))
	sc.Step(`^the total is (\d+\.\d+)$`, c.amountStep("total", func(t Totals) decimal.Decimal { return t.Total }))
	sc.Step(`^the cart holds (\d+) items$`, c.theCartHoldsItems)
	sc.Step(`^the last add was clamped$`, c.theLastAddWasClamped)
	sc.Step(`^the last operation fails with "([^"]*)"$`, c.theLastOperationFailsWith)
	sc.Step(`^no promotion is applied$`, c.noPromotionIsApplied)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"testdata/cart.feature"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
