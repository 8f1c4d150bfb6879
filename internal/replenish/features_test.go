package replenish

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/ahinestrog/frontcounter/internal/model"
)

type replenishTestContext struct {
	catalog fakeCatalog
	store   *fakeStore
	flow    *Flow
	conf    model.StockConfirmation
	err     error
}

func (c *replenishTestContext) reset() {
	c.catalog = fakeCatalog{}
	c.store = &fakeStore{stock: map[string]int64{}}
	c.flow = New(c.catalog, c.store, Config{})
	c.conf = model.StockConfirmation{}
	c.err = nil
}

func (c *replenishTestContext) theCatalogHasProductWithStock(id string, stock int) error {
	c.catalog[id] = product(id, int64(stock))
	c.store.stock[id] = int64(stock)
	return nil
}

func (c *replenishTestContext) theStoreRejectsIncrements() error {
	c.store.err = fmt.Errorf("constraint failed: %w", model.ErrStore)
	return nil
}

func (c *replenishTestContext) theCodeIsScanned(raw string) error {
	c.flow.HandleScan(context.Background(), scanEvent(raw))
	return nil
}

func (c *replenishTestContext) theOperatorEnters(text string) error {
	_, _ = c.flow.SetQuantity(text)
	return nil
}

func (c *replenishTestContext) theIncrementIsSubmitted() error {
	c.conf, c.err = c.flow.Submit(context.Background())
	return nil
}

func (c *replenishTestContext) theProjectedStockIs(n int) error {
	v := c.flow.View()
	if v.Projected == nil {
		return errors.New("no projection")
	}
	if *v.Projected != int64(n) {
		return fmt.Errorf("expected projection %d, got %d", n, *v.Projected)
	}
	return nil
}

func (c *replenishTestContext) theStoreConfirmsStock(n int) error {
	if c.err != nil {
		return c.err
	}
	if c.conf.NewStock != int64(n) {
		return fmt.Errorf("expected stock %d, got %d", n, c.conf.NewStock)
	}
	return nil
}

func (c *replenishTestContext) noProductIsResolved() error {
	if p := c.flow.View().Product; p != nil {
		return fmt.Errorf("product %s still resolved", p.ProductID)
	}
	return nil
}

func (c *replenishTestContext) theSubmissionFailsWith(kind string) error {
	if c.err == nil {
		return errors.New("submission succeeded")
	}
	if got := model.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %q, got %q", kind, got)
	}
	return nil
}

func (c *replenishTestContext) productIsStillResolvedWithQuantity(id, qty string) error {
	v := c.flow.View()
	if v.Product == nil || v.Product.ProductID != id {
		return fmt.Errorf("expected %s to be resolved, view %+v", id, v)
	}
	if v.Quantity != qty {
		return fmt.Errorf("expected quantity %q, got %q", qty, v.Quantity)
	}
	return nil
}

func (c *replenishTestContext) theStoreReceivedIncrements(n int) error {
	if got := len(c.store.calls); got != n {
		return fmt.Errorf("expected %d increments, got %d", n, got)
	}
	return nil
}

func (c *replenishTestContext) theLastNoticeIs(kind string) error {
	active := c.flow.Notices().Active()
	if len(active) == 0 {
		return errors.New("no notices")
	}
	if got := active[len(active)-1].Kind; string(got) != kind {
		return fmt.Errorf("expected notice %q, got %q", kind, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &replenishTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the catalog has product "([^"]*)" with stock (\d+)$`, tc.theCatalogHasProductWithStock)
	ctx.Step(`^the store rejects increments$`, tc.theStoreRejectsIncrements)

	ctx.Step(`^the code "([^"]*)" is scanned$`, tc.theCodeIsScanned)
	ctx.Step(`^the operator enters "([^"]*)"$`, tc.theOperatorEnters)
	ctx.Step(`^the increment is submitted$`, tc.theIncrementIsSubmitted)

	ctx.Step(`^the projected stock is (\d+)$`, tc.theProjectedStockIs)
	ctx.Step(`^the store confirms stock (\d+)$`, tc.theStoreConfirmsStock)
	ctx.Step(`^no product is resolved$`, tc.noProductIsResolved)
	ctx.Step(`^the submission fails with "([^"]*)"$`, tc.theSubmissionFailsWith)
	ctx.Step(`^product "([^"]*)" is still resolved with quantity "([^"]*)"$`, tc.productIsStillResolvedWithQuantity)
	ctx.Step(`^the store received (\d+) increments$`, tc.theStoreReceivedIncrements)
	ctx.Step(`^the last notice is "([^"]*)"$`, tc.theLastNoticeIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/replenish.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
