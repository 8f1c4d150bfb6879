package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ahinestrog/frontcounter/internal/model"
)

const serviceName = "frontcounter.store.v1.Store"

type LookupRequest struct {
	ProductID string `json:"product_id"`
}

type SubmitOrderRequest struct {
	Bill model.BillSnapshot `json:"bill"`
}

type GetOrderRequest struct {
	BillNumber string `json:"bill_number"`
}

// StoreServer is the server side of the store service.
type StoreServer interface {
	LookupProduct(context.Context, *LookupRequest) (*model.CatalogSnapshot, error)
	SubmitOrder(context.Context, *SubmitOrderRequest) (*model.OrderConfirmation, error)
	IncrementStock(context.Context, *model.StockIncrementRequest) (*model.StockConfirmation, error)
	GetOrder(context.Context, *GetOrderRequest) (*model.Order, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("LookupProduct", StoreServer.LookupProduct),
		unary("SubmitOrder", StoreServer.SubmitOrder),
		unary("IncrementStock", StoreServer.IncrementStock),
		unary("GetOrder", StoreServer.GetOrder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "frontcounter/store.json",
}

func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

func unary[Req, Resp any](name string, call func(StoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StoreServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StoreServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
