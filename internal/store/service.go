package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahinestrog/frontcounter/internal/events"
	"github.com/ahinestrog/frontcounter/internal/model"
)

var tracer = otel.Tracer("github.com/ahinestrog/frontcounter/internal/store")

const publishTimeout = 3 * time.Second

// Service is the store's use-case layer: repository calls plus event publication.
// Events go out after commit; a failed publish is logged and never undoes the write.
type Service struct {
	repo  *Repository
	pub   events.Publisher
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewService(repo *Repository, pub events.Publisher, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:  repo,
		pub:   pub,
		log:   log.With().Str("component", "store").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Service) LookupProduct(ctx context.Context, productID string) (model.CatalogSnapshot, error) {
	return s.repo.GetProduct(ctx, productID)
}

func (s *Service) SubmitOrder(ctx context.Context, snap model.BillSnapshot) (model.OrderConfirmation, error) {
	ctx, span := tracer.Start(ctx, "store.submit_order")
	defer span.End()
	span.SetAttributes(attribute.String("bill.number", snap.BillNumber), attribute.Int("bill.lines", len(snap.Items)))

	conf, created, err := s.repo.CreateOrder(ctx, snap, s.newID(), s.now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn().Err(err).Str("bill_number", snap.BillNumber).Msg("order rejected")
		return model.OrderConfirmation{}, err
	}
	if !created {
		s.log.Info().Str("bill_number", conf.BillNumber).Str("order_id", conf.OrderID).Msg("order already recorded")
		return conf, nil
	}
	s.log.Info().Str("bill_number", conf.BillNumber).Str("order_id", conf.OrderID).Str("total", conf.Total.StringFixed(2)).Msg("order created")

	evt := events.OrderCreated{
		OrderID:    conf.OrderID,
		BillNumber: conf.BillNumber,
		Total:      conf.Total,
		CreatedAt:  conf.CreatedAt,
	}
	for _, it := range snap.Items {
		evt.Items = append(evt.Items, events.OrderItemEvt{
			ProductID: it.ProductID,
			Qty:       it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal(),
		})
	}
	s.publish(ctx, evt)
	return conf, nil
}

func (s *Service) IncrementStock(ctx context.Context, req model.StockIncrementRequest) (model.StockConfirmation, error) {
	ctx, span := tracer.Start(ctx, "store.increment_stock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int64("quantity", req.QuantityToAdd))

	conf, err := s.repo.IncrementStock(ctx, req.ProductID, req.QuantityToAdd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.StockConfirmation{}, err
	}
	s.log.Info().Str("product_id", conf.ProductID).Int64("added", req.QuantityToAdd).Int64("new_stock", conf.NewStock).Msg("stock incremented")
	s.publish(ctx, events.StockIncremented{
		ProductID: conf.ProductID,
		Added:     req.QuantityToAdd,
		NewStock:  conf.NewStock,
		At:        s.now().UTC(),
	})
	return conf, nil
}

func (s *Service) GetOrder(ctx context.Context, billNumber string) (model.Order, error) {
	return s.repo.GetOrder(ctx, billNumber)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("routing_key", ev.RoutingKey()).Str("key", ev.Key()).Msg("publish failed")
	}
}
