package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// DefaultTimeout bounds each call when the client is built with a zero timeout.
const DefaultTimeout = 4 * time.Second

// Client talks to the store. It satisfies catalog.Resolver.
type Client struct {
	cc      *grpc.ClientConn
	timeout time.Duration
}

// Dial builds a client for target. Extra options are appended after the defaults.
func Dial(target string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	cc, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial store %s: %w", target, err)
	}
	return &Client{cc: cc, timeout: timeout}, nil
}

func (c *Client) Close() error { return c.cc.Close() }

// Ping asks the store's health service whether it is serving.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.cc).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fromStatus(err, model.ErrStore)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("store is %s: %w", resp.GetStatus(), model.ErrNetwork)
	}
	return nil
}

func (c *Client) Lookup(ctx context.Context, productID string) (model.CatalogSnapshot, error) {
	var out model.CatalogSnapshot
	if err := c.invoke(ctx, "LookupProduct", &LookupRequest{ProductID: productID}, &out); err != nil {
		return model.CatalogSnapshot{}, fromStatus(err, model.ErrNotFound)
	}
	return out, nil
}

func (c *Client) SubmitOrder(ctx context.Context, snap model.BillSnapshot) (model.OrderConfirmation, error) {
	var out model.OrderConfirmation
	if err := c.invoke(ctx, "SubmitOrder", &SubmitOrderRequest{Bill: snap}, &out); err != nil {
		return model.OrderConfirmation{}, fromStatus(err, model.ErrStore)
	}
	return out, nil
}

func (c *Client) IncrementStock(ctx context.Context, req model.StockIncrementRequest) (model.StockConfirmation, error) {
	var out model.StockConfirmation
	if err := c.invoke(ctx, "IncrementStock", &req, &out); err != nil {
		return model.StockConfirmation{}, fromStatus(err, model.ErrNotFound)
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, billNumber string) (model.Order, error) {
	var out model.Order
	if err := c.invoke(ctx, "GetOrder", &GetOrderRequest{BillNumber: billNumber}, &out); err != nil {
		return model.Order{}, fromStatus(err, model.ErrOrderNotFound)
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(CodecName))
}

// fromStatus maps a gRPC failure back onto the error taxonomy. notFound is the
// sentinel used for codes.NotFound, which differs per call.
func fromStatus(err error, notFound error) error {
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%v: %w", err, model.ErrNetwork)
		}
		return fmt.Errorf("%v: %w", err, model.ErrStore)
	}
	msg := st.Message()
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", msg, notFound)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w", msg, model.ErrValidation)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%s: %w", msg, model.ErrNetwork)
	default:
		return fmt.Errorf("%s: %w", msg, model.ErrStore)
	}
}
