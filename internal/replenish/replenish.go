// Package replenish runs the add-to-stock flow: one scanned product, an
// operator-entered quantity, one additive update at the store.
package replenish

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahinestrog/frontcounter/internal/catalog"
	"github.com/ahinestrog/frontcounter/internal/model"
	"github.com/ahinestrog/frontcounter/internal/notice"
	"github.com/ahinestrog/frontcounter/internal/scan"
)

var tracer = otel.Tracer("github.com/ahinestrog/frontcounter/internal/replenish")

type Store interface {
	IncrementStock(ctx context.Context, req model.StockIncrementRequest) (model.StockConfirmation, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, productIDs ...string)
}

// View is what the replenishment screen shows. Projected is only a display
// hint; the store's answer is authoritative.
type View struct {
	Product   *model.CatalogSnapshot `json:"product"`
	Quantity  string                 `json:"quantity"`
	Projected *int64                 `json:"projected,omitempty"`
}

type Config struct {
	ScanLabel  string
	NoticeTTL  time.Duration
	FailureTTL time.Duration
}

type Flow struct {
	resolver catalog.Resolver
	store    Store
	notices  *notice.Board
	cfg      Config
	cache    Invalidator
	log      zerolog.Logger

	mu      sync.Mutex
	product *model.CatalogSnapshot
	qty     string
	last    *model.StockConfirmation
}

type Option func(*Flow)

func WithInvalidator(c Invalidator) Option { return func(f *Flow) { f.cache = c } }
func WithLogger(l zerolog.Logger) Option   { return func(f *Flow) { f.log = l } }
func WithNotices(b *notice.Board) Option   { return func(f *Flow) { f.notices = b } }

func New(resolver catalog.Resolver, store Store, cfg Config, opts ...Option) *Flow {
	if cfg.ScanLabel == "" {
		cfg.ScanLabel = scan.DefaultLabel
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = 3 * time.Second
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = 5 * time.Second
	}
	f := &Flow{resolver: resolver, store: store, cfg: cfg, log: zerolog.Nop()}
	for _, o := range opts {
		o(f)
	}
	if f.notices == nil {
		f.notices = notice.NewBoard(nil)
	}
	f.log = f.log.With().Str("flow", "replenish").Logger()
	return f
}

func (f *Flow) Notices() *notice.Board { return f.notices }

// HandleScan resolves an accepted scan. A resolved product replaces the
// previous one and resets the entered quantity; a failed scan changes nothing.
func (f *Flow) HandleScan(ctx context.Context, ev model.ScanEvent) {
	ctx, span := tracer.Start(ctx, "replenish.scan")
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

	f.mu.Lock()
	f.product = &snap
	f.qty = ""
	f.mu.Unlock()

	f.log.Info().Str("product_id", id).Int64("stock", snap.AvailableStock).Msg("product resolved")
	f.notices.Post(notice.Info, fmt.Sprintf("%s: %d in stock", snap.DisplayName, snap.AvailableStock), f.cfg.NoticeTTL)
}

func (f *Flow) reject(err error, productID string) {
	f.log.Warn().Err(err).Str("product_id", productID).Str("kind", string(model.KindOf(err))).Msg("scan rejected")
	f.notices.Fail(err, f.cfg.NoticeTTL)
}

// ParseQuantity accepts a whole number of at least one.
func ParseQuantity(text string) (int64, error) {
	s := strings.TrimSpace(text)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("quantity %q must be a whole number of at least 1: %w", s, model.ErrValidation)
	}
	return n, nil
}

// quantityFor parses text and checks that adding it to stock stays within
// int64. With no product only the text is checked.
func quantityFor(p *model.CatalogSnapshot, text string) (int64, error) {
	n, err := ParseQuantity(text)
	if err != nil {
		return 0, err
	}
	if p != nil && n > math.MaxInt64-p.AvailableStock {
		return 0, fmt.Errorf("quantity %d would overflow stock %d of %s: %w", n, p.AvailableStock, p.ProductID, model.ErrValidation)
	}
	return n, nil
}

// SetQuantity records the operator's text as typed. The text is kept even when
// it is invalid; the returned error says why it cannot be submitted.
func (f *Flow) SetQuantity(text string) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qty = text
	_, err := quantityFor(f.product, text)
	return f.viewLocked(), err
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() View {
	v := View{Quantity: f.qty}
	if f.product == nil {
		return v
	}
	p := *f.product
	v.Product = &p
	if n, err := quantityFor(f.product, f.qty); err == nil {
		projected := p.AvailableStock + n
		v.Projected = &projected
	}
	return v
}

// Submit sends the increment. Validation happens before any network call.
// On success the flow is ready for the next scan; on failure the product and
// quantity stay for a retry.
func (f *Flow) Submit(ctx context.Context) (model.StockConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.product == nil {
		err := fmt.Errorf("scan a product first: %w", model.ErrValidation)
		f.notices.Fail(err, f.cfg.NoticeTTL)
		return model.StockConfirmation{}, err
	}
	n, err := quantityFor(f.product, f.qty)
	if err != nil {
		f.notices.Fail(err, f.cfg.NoticeTTL)
		return model.StockConfirmation{}, err
	}

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "replenish.submit")
	defer span.End()
	req := model.StockIncrementRequest{ProductID: f.product.ProductID, QuantityToAdd: n}
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int64("quantity", n))

	conf, err := f.store.IncrementStock(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		f.log.Error().Err(err).Str("product_id", req.ProductID).Int64("qty", n).Msg("stock increment failed")
		f.notices.Fail(err, f.cfg.FailureTTL)
		return model.StockConfirmation{}, err
	}

	name := f.product.DisplayName
	f.product, f.qty = nil, ""
	f.last = &conf
	if f.cache != nil {
		f.cache.Invalidate(ctx, req.ProductID)
	}
	f.log.Info().Str("product_id", req.ProductID).Int64("qty", n).Int64("new_stock", conf.NewStock).Msg("stock incremented")
	f.notices.Post(notice.Success, fmt.Sprintf("%s stock is now %d", name, conf.NewStock), f.cfg.NoticeTTL)
	return conf, nil
}

// Reset drops the resolved product and entered quantity.
func (f *Flow) Reset() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.product, f.qty = nil, ""
	return f.viewLocked()
}

// LastConfirmation returns the store's answer to the most recent successful Submit.
func (f *Flow) LastConfirmation() (model.StockConfirmation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return model.StockConfirmation{}, false
	}
	return *f.last, true
}
