// Package checkout runs the sale flow: accepted scans are resolved against the
// catalog and added to the live bill; Finalize commits the bill to the store
// all-or-nothing.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahinestrog/frontcounter/internal/bill"
	"github.com/ahinestrog/frontcounter/internal/catalog"
	"github.com/ahinestrog/frontcounter/internal/model"
	"github.com/ahinestrog/frontcounter/internal/notice"
	"github.com/ahinestrog/frontcounter/internal/scan"
)

var tracer = otel.Tracer("github.com/ahinestrog/frontcounter/internal/checkout")

// Store persists an order and decrements stock atomically on its side.
type Store interface {
	SubmitOrder(ctx context.Context, snap model.BillSnapshot) (model.OrderConfirmation, error)
}

type Renderer interface {
	Render(snap model.BillSnapshot, conf model.OrderConfirmation) string
}

// Invalidator drops cached catalog snapshots, see catalog.CachedResolver.
type Invalidator interface {
	Invalidate(ctx context.Context, productIDs ...string)
}

type Receipt struct {
	Snapshot     model.BillSnapshot      `json:"snapshot"`
	Confirmation model.OrderConfirmation `json:"confirmation"`
	Text         string                  `json:"text"`
}

// View is a read-only copy of the live bill.
type View struct {
	BillNumber    string           `json:"bill_number"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	Items         []model.LineItem `json:"items"`
	Total         decimal.Decimal  `json:"total"`
}

type Config struct {
	ScanLabel  string
	NoticeTTL  time.Duration
	FailureTTL time.Duration
}

type Flow struct {
	resolver catalog.Resolver
	store    Store
	render   Renderer
	notices  *notice.Board
	cfg      Config
	cache    Invalidator
	now      func() time.Time
	log      zerolog.Logger

	// mu serializes every bill mutation, including the whole of Finalize.
	mu   sync.Mutex
	bill *bill.Bill
	last *Receipt
}

type Option func(*Flow)

func WithInvalidator(c Invalidator) Option       { return func(f *Flow) { f.cache = c } }
func WithLogger(l zerolog.Logger) Option         { return func(f *Flow) { f.log = l } }
func WithClock(now func() time.Time) Option      { return func(f *Flow) { f.now = now } }
func WithNotices(b *notice.Board) Option         { return func(f *Flow) { f.notices = b } }
func WithNumbers(g *bill.NumberGenerator) Option { return func(f *Flow) { f.bill = bill.New(g) } }

func New(resolver catalog.Resolver, store Store, render Renderer, cfg Config, opts ...Option) *Flow {
	if cfg.ScanLabel == "" {
		cfg.ScanLabel = scan.DefaultLabel
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = 3 * time.Second
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = 5 * time.Second
	}
	f := &Flow{
		resolver: resolver,
		store:    store,
		render:   render,
		cfg:      cfg,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.notices == nil {
		f.notices = notice.NewBoard(f.now)
	}
	if f.bill == nil {
		f.bill = bill.New(bill.NewNumberGenerator(bill.DefaultPrefix, f.now))
	}
	f.log = f.log.With().Str("flow", "checkout").Logger()
	return f
}

func (f *Flow) Notices() *notice.Board { return f.notices }

// HandleScan resolves one accepted scan and adds a unit to the bill. Every
// failure ends as a notice; nothing is returned to the scan loop.
func (f *Flow) HandleScan(ctx context.Context, ev model.ScanEvent) {
	ctx, span := tracer.Start(ctx, "checkout.scan")
	defer span.End()

	id, ok := scan.ParsePayload(ev.RawPayload, f.cfg.ScanLabel)
	if !ok {
		f.reject(fmt.Errorf("unreadable code %q: %w", ev.RawPayload, model.ErrNotFound), "")
		return
	}
	span.SetAttributes(attribute.String("product.id", id))

	snap, err := f.resolver.Lookup(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		f.reject(err, id)
		return
	}
	if !snap.InStock() {
		f.reject(fmt.Errorf("%s: %w", snap.DisplayName, model.ErrOutOfStock), id)
		return
	}

	f.mu.Lock()
	item, err := f.bill.AddOrIncrement(snap)
	number := f.bill.Number()
	f.mu.Unlock()
	if err != nil {
		f.reject(err, id)
		return
	}
	f.log.Info().Str("product_id", id).Str("bill_number", number).Int64("qty", item.Quantity).Msg("scan applied")
	f.notices.Post(notice.Success, fmt.Sprintf("%s x%d", item.DisplayName, item.Quantity), f.cfg.NoticeTTL)
}

func (f *Flow) reject(err error, productID string) {
	f.log.Warn().Err(err).Str("product_id", productID).Str("kind", string(model.KindOf(err))).Msg("scan rejected")
	f.notices.Fail(err, f.cfg.NoticeTTL)
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() View {
	name, phone := f.bill.Customer()
	return View{
		BillNumber:    f.bill.Number(),
		CustomerName:  name,
		CustomerPhone: phone,
		Items:         f.bill.Items(),
		Total:         f.bill.Total(),
	}
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (f *Flow) SetQuantity(productID string, qty int64) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.bill.SetQuantity(productID, qty); err != nil {
		f.notices.Fail(err, f.cfg.NoticeTTL)
		return f.viewLocked(), err
	}
	f.log.Info().Str("product_id", productID).Int64("qty", qty).Str("bill_number", f.bill.Number()).Msg("quantity set")
	return f.viewLocked(), nil
}

func (f *Flow) Remove(productID string) View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bill.Remove(productID)
	return f.viewLocked()
}

func (f *Flow) SetCustomer(name, phone string) View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bill.SetCustomer(name, phone)
	return f.viewLocked()
}

// Clear discards the bill and starts a new one.
func (f *Flow) Clear() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.bill.Number()
	f.bill.Clear()
	f.log.Info().Str("bill_number", old).Str("next_bill_number", f.bill.Number()).Msg("bill cleared")
	return f.viewLocked()
}

// Finalize submits a snapshot of the bill. On success the receipt is rendered
// and the bill replaced by an empty one; on failure the bill is left exactly
// as it was. The submit is not cancelled with ctx.
func (f *Flow) Finalize(ctx context.Context) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	number := f.bill.Number()
	if f.bill.IsEmpty() {
		err := fmt.Errorf("bill %s: %w", number, model.ErrEmptyCart)
		f.notices.Fail(err, f.cfg.NoticeTTL)
		return Receipt{}, err
	}

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "checkout.finalize")
	defer span.End()
	span.SetAttributes(attribute.String("bill.number", number))

	snap := f.bill.Snapshot(f.now())
	f.log.Info().Str("bill_number", number).Int("lines", len(snap.Items)).Str("total", snap.Total.StringFixed(2)).Msg("finalize")

	conf, err := f.store.SubmitOrder(ctx, snap)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		f.log.Error().Err(err).Str("bill_number", number).Str("kind", string(model.KindOf(err))).Msg("finalize failed")
		f.notices.Fail(err, f.cfg.FailureTTL)
		return Receipt{}, err
	}

	rec := Receipt{Snapshot: snap, Confirmation: conf, Text: f.render.Render(snap, conf)}
	f.last = &rec

	if f.cache != nil {
		ids := make([]string, 0, len(snap.Items))
		for _, it := range snap.Items {
			ids = append(ids, it.ProductID)
		}
		f.cache.Invalidate(ctx, ids...)
	}
	f.bill.Clear()

	f.log.Info().Str("bill_number", number).Str("order_id", conf.OrderID).Str("next_bill_number", f.bill.Number()).Msg("order committed")
	f.notices.Post(notice.Success, fmt.Sprintf("Order %s saved", number), f.cfg.NoticeTTL)
	return rec, nil
}

// LastReceipt returns the receipt of the most recent successful Finalize.
func (f *Flow) LastReceipt() (Receipt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Receipt{}, false
	}
	return *f.last, true
}
