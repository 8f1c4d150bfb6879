package checkout

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/frontcounter/internal/catalog"
	"github.com/ahinestrog/frontcounter/internal/events"
	"github.com/ahinestrog/frontcounter/internal/model"
	"github.com/ahinestrog/frontcounter/internal/notice"
	"github.com/ahinestrog/frontcounter/internal/store"
)

func lastNotice(t *testing.T, f *Flow) notice.Notice {
	t.Helper()
	active := f.Notices().Active()
	require.NotEmpty(t, active)
	return active[len(active)-1]
}

func TestScansStopAtStockCeiling(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P1", DisplayName: "Widget", UnitPrice: decimal.NewFromInt(100), AvailableStock: 3})

	for i := 0; i < 3; i++ {
		h.scan("identifier: P1")
	}
	v := h.flow.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, int64(3), v.Items[0].Quantity)
	assert.True(t, v.Total.Equal(decimal.NewFromInt(300)))

	h.scan("identifier: P1")
	assert.Equal(t, model.KindExceedsAvailable, lastNotice(t, h.flow).Kind)
	assert.Equal(t, int64(3), h.flow.View().Items[0].Quantity)
}

func TestScanFailuresBecomeNotices(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P0", DisplayName: "Ghost", UnitPrice: decimal.NewFromInt(5), AvailableStock: 0})

	h.scan("identifier: P404")
	assert.Equal(t, model.KindNotFound, lastNotice(t, h.flow).Kind)

	h.scan("identifier:   ")
	assert.Equal(t, model.KindNotFound, lastNotice(t, h.flow).Kind)

	h.scan("P0")
	n := lastNotice(t, h.flow)
	assert.Equal(t, model.KindOutOfStock, n.Kind)
	assert.Equal(t, notice.Error, n.Level)
	assert.Empty(t, h.flow.View().Items)
}

func TestSetQuantityAndRemove(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P1", DisplayName: "Widget", UnitPrice: decimal.RequireFromString("2.50"), AvailableStock: 5})
	h.scan("P1")

	v, err := h.flow.SetQuantity("P1", 4)
	require.NoError(t, err)
	assert.True(t, v.Total.Equal(decimal.NewFromInt(10)))

	v, err = h.flow.SetQuantity("P1", 6)
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
	assert.Equal(t, int64(4), v.Items[0].Quantity)

	v, err = h.flow.SetQuantity("P1", 0)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.True(t, v.Total.IsZero())

	h.scan("P1")
	v = h.flow.Remove("P1")
	assert.Empty(t, v.Items)
	v = h.flow.Remove("P1")
	assert.Empty(t, v.Items)
}

func TestFinalizeEmptyBillMakesNoCall(t *testing.T) {
	h := newHarness()
	before := h.flow.View().BillNumber

	_, err := h.flow.Finalize(context.Background())
	assert.ErrorIs(t, err, model.ErrEmptyCart)
	assert.Equal(t, 0, h.store.callCount())
	assert.Equal(t, before, h.flow.View().BillNumber)
}

func TestFinalizeFailureLeavesBillUntouched(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P1", DisplayName: "Widget", UnitPrice: decimal.NewFromInt(100), AvailableStock: 3})
	h.catalog.put(model.CatalogSnapshot{ProductID: "P2", DisplayName: "Gadget", UnitPrice: decimal.RequireFromString("9.99"), AvailableStock: 9})
	h.scan("P1")
	h.scan("P2")
	h.scan("P1")
	h.flow.SetCustomer(" Ana ", "555")
	before := h.flow.View()

	h.store.err = fmt.Errorf("connection refused: %w", model.ErrNetwork)
	_, err := h.flow.Finalize(context.Background())
	require.ErrorIs(t, err, model.ErrNetwork)

	after := h.flow.View()
	assert.Equal(t, before.BillNumber, after.BillNumber)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.Total.Equal(after.Total))
	assert.Equal(t, "Ana", after.CustomerName)
	assert.Empty(t, h.cache.ids)

	n := lastNotice(t, h.flow)
	assert.Equal(t, model.KindNetwork, n.Kind)
	assert.Equal(t, h.clock.Now().Add(5*time.Second), n.ExpiresAt)

	_, ok := h.flow.LastReceipt()
	assert.False(t, ok)
}

func TestFinalizeSuccessStartsNewBill(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P1", DisplayName: "Widget", UnitPrice: decimal.NewFromInt(100), AvailableStock: 3})
	h.catalog.put(model.CatalogSnapshot{ProductID: "P2", DisplayName: "Gadget", UnitPrice: decimal.RequireFromString("9.99"), AvailableStock: 9})
	h.scan("P1")
	h.scan("P2")
	h.flow.SetCustomer("Ana", "555")
	before := h.flow.View()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, err := h.flow.Finalize(ctx)
	require.NoError(t, err)
	assert.NoError(t, h.store.ctxErr)

	assert.Equal(t, before.BillNumber, rec.Snapshot.BillNumber)
	assert.Equal(t, "Ana", rec.Snapshot.CustomerName)
	assert.True(t, rec.Snapshot.Total.Equal(decimal.RequireFromString("109.99")))
	assert.Equal(t, "order-1", rec.Confirmation.OrderID)
	assert.Equal(t, before.BillNumber+" order-1 109.99", rec.Text)
	assert.Equal(t, []string{"P1", "P2"}, h.cache.ids)

	after := h.flow.View()
	assert.NotEqual(t, before.BillNumber, after.BillNumber)
	assert.Empty(t, after.Items)
	assert.Empty(t, after.CustomerName)
	assert.True(t, after.Total.IsZero())

	last, ok := h.flow.LastReceipt()
	require.True(t, ok)
	assert.Equal(t, rec.Text, last.Text)
	assert.Equal(t, notice.Success, lastNotice(t, h.flow).Level)
}

func TestClearAssignsNewNumber(t *testing.T) {
	h := newHarness()
	h.catalog.put(model.CatalogSnapshot{ProductID: "P1", DisplayName: "Widget", UnitPrice: decimal.NewFromInt(1), AvailableStock: 1})
	h.scan("P1")
	before := h.flow.View().BillNumber

	v := h.flow.Clear()
	assert.NotEqual(t, before, v.BillNumber)
	assert.Empty(t, v.Items)
}

// lostResponseStore commits through next but reports the first drop
// successful submits as network failures, as when the reply never arrives.
type lostResponseStore struct {
	next Store
	drop int
}

func (s *lostResponseStore) SubmitOrder(ctx context.Context, snap model.BillSnapshot) (model.OrderConfirmation, error) {
	conf, err := s.next.SubmitOrder(ctx, snap)
	if err == nil && s.drop > 0 {
		s.drop--
		return model.OrderConfirmation{}, fmt.Errorf("deadline exceeded: %w", model.ErrNetwork)
	}
	return conf, err
}

func newStoreBackedFlow(t *testing.T, drop int) (*Flow, *store.Repository) {
	t.Helper()
	repo, err := store.NewRepository(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Seed(context.Background()))
	svc := store.NewService(repo, events.Nop{}, zerolog.Nop())
	f := New(catalog.ResolverFunc(svc.LookupProduct), &lostResponseStore{next: svc, drop: drop}, textRenderer{}, Config{})
	return f, repo
}

func scanInto(f *Flow, raw string) {
	f.HandleScan(context.Background(), model.ScanEvent{RawPayload: raw, ObservedAt: time.Now()})
}

func TestFinalizeRetryOfEditedBillAfterLostReply(t *testing.T) {
	f, repo := newStoreBackedFlow(t, 1)
	ctx := context.Background()

	scanInto(f, "identifier: P1002")
	number := f.View().BillNumber
	_, err := f.Finalize(ctx)
	require.ErrorIs(t, err, model.ErrNetwork)

	scanInto(f, "identifier: P1003")
	scanInto(f, "identifier: P1003")
	_, err = f.Finalize(ctx)
	require.Error(t, err)
	assert.Equal(t, model.KindStore, model.KindOf(err))

	v := f.View()
	assert.Equal(t, number, v.BillNumber)
	require.Len(t, v.Items, 2)
	assert.Equal(t, int64(2), v.Items[1].Quantity)
	_, ok := f.LastReceipt()
	assert.False(t, ok)

	lamp, err := repo.GetProduct(ctx, "P1003")
	require.NoError(t, err)
	assert.Equal(t, int64(6), lamp.AvailableStock)
	o, err := repo.GetOrder(ctx, number)
	require.NoError(t, err)
	assert.Len(t, o.Items, 1)
}

func TestFinalizeRetryOfUnchangedBillAfterLostReply(t *testing.T) {
	f, repo := newStoreBackedFlow(t, 1)
	ctx := context.Background()

	scanInto(f, "identifier: P1002")
	number := f.View().BillNumber
	_, err := f.Finalize(ctx)
	require.ErrorIs(t, err, model.ErrNetwork)

	rec, err := f.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, number, rec.Confirmation.BillNumber)
	assert.Empty(t, f.View().Items)

	pen, err := repo.GetProduct(ctx, "P1002")
	require.NoError(t, err)
	assert.Equal(t, int64(119), pen.AvailableStock)
}
