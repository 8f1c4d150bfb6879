package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahinestrog/frontcounter/internal/bill"
	"github.com/ahinestrog/frontcounter/internal/model"
)

type fakeCatalog struct {
	mu    sync.Mutex
	items map[string]model.CatalogSnapshot
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{items: map[string]model.CatalogSnapshot{}}
}

func (c *fakeCatalog) put(s model.CatalogSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.ProductID] = s
}

func (c *fakeCatalog) Lookup(_ context.Context, id string) (model.CatalogSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	if !ok {
		return model.CatalogSnapshot{}, fmt.Errorf("%s: %w", id, model.ErrNotFound)
	}
	return s, nil
}

type fakeStore struct {
	mu     sync.Mutex
	calls  int
	err    error
	got    []model.BillSnapshot
	ctxErr error
}

func (s *fakeStore) SubmitOrder(ctx context.Context, snap model.BillSnapshot) (model.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ctxErr = ctx.Err()
	s.got = append(s.got, snap)
	if s.err != nil {
		return model.OrderConfirmation{}, s.err
	}
	return model.OrderConfirmation{
		OrderID:    fmt.Sprintf("order-%d", s.calls),
		BillNumber: snap.BillNumber,
		Total:      snap.Total,
		CreatedAt:  snap.TakenAt,
	}, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type textRenderer struct{}

func (textRenderer) Render(snap model.BillSnapshot, conf model.OrderConfirmation) string {
	return fmt.Sprintf("%s %s %s", snap.BillNumber, conf.OrderID, snap.Total.StringFixed(2))
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) {
	r.ids = append(r.ids, ids...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.UnixMilli(1760000000000)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	clock   *clock
	catalog *fakeCatalog
	store   *fakeStore
	cache   *recordingInvalidator
	flow    *Flow
}

func newHarness() *harness {
	h := &harness{
		clock:   newClock(),
		catalog: newFakeCatalog(),
		store:   &fakeStore{},
		cache:   &recordingInvalidator{},
	}
	h.flow = New(h.catalog, h.store, textRenderer{}, Config{},
		WithClock(h.clock.Now),
		WithNumbers(bill.NewNumberGenerator(bill.DefaultPrefix, h.clock.Now)),
		WithInvalidator(h.cache),
	)
	return h
}

func (h *harness) scan(raw string) {
	h.flow.HandleScan(context.Background(), model.ScanEvent{RawPayload: raw, ObservedAt: h.clock.Now()})
}
