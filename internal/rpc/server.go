package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ahinestrog/frontcounter/internal/model"
	"github.com/ahinestrog/frontcounter/internal/store"
)

// Server adapts store.Service to StoreServer.
type Server struct {
	svc *store.Service
}

func NewServer(svc *store.Service) *Server { return &Server{svc: svc} }

func (s *Server) LookupProduct(ctx context.Context, req *LookupRequest) (*model.CatalogSnapshot, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id required")
	}
	p, err := s.svc.LookupProduct(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &p, nil
}

func (s *Server) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*model.OrderConfirmation, error) {
	c, err := s.svc.SubmitOrder(ctx, req.Bill)
	if err != nil {
		return nil, toStatus(err)
	}
	return &c, nil
}

func (s *Server) IncrementStock(ctx context.Context, req *model.StockIncrementRequest) (*model.StockConfirmation, error) {
	c, err := s.svc.IncrementStock(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &c, nil
}

func (s *Server) GetOrder(ctx context.Context, req *GetOrderRequest) (*model.Order, error) {
	o, err := s.svc.GetOrder(ctx, req.BillNumber)
	if err != nil {
		return nil, toStatus(err)
	}
	return &o, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrBillConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrEmptyCart):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		ev := log.Info()
		if code != codes.OK && code != codes.NotFound {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).Str("code", code.String()).Dur("took", time.Since(start)).Msg("rpc")
		return resp, err
	}
}
