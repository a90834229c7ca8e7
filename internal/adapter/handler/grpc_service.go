package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

const pointOfSaleService = "pos.v1.PointOfSale"

type AddToCartRequest struct {
	TerminalID string `json:"terminal_id"`
	ItemID     string `json:"item_id"`
}

type SetQuantityRequest struct {
	TerminalID string `json:"terminal_id"`
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
}

type GetCartRequest struct {
	TerminalID string `json:"terminal_id"`
}

type CartReply struct {
	TerminalID string            `json:"terminal_id"`
	Lines      []domain.CartLine `json:"lines"`
	Total      string            `json:"total"`
	Added      bool              `json:"added"`
}

type CheckoutRequest struct {
	TerminalID    string `json:"terminal_id"`
	CashierID     string `json:"cashier_id"`
	PaymentMethod string `json:"payment_method"`
	RequestID     string `json:"request_id"`
}

type CheckoutReply struct {
	Sale *domain.Sale `json:"sale"`
}

type PointOfSaleServer interface {
	AddToCart(context.Context, *AddToCartRequest) (*CartReply, error)
	SetQuantity(context.Context, *SetQuantityRequest) (*CartReply, error)
	GetCart(context.Context, *GetCartRequest) (*CartReply, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutReply, error)
}

func RegisterPointOfSaleServer(s grpc.ServiceRegistrar, srv PointOfSaleServer) {
	s.RegisterService(&pointOfSaleServiceDesc, srv)
}

var pointOfSaleServiceDesc = grpc.ServiceDesc{
	ServiceName: pointOfSaleService,
	HandlerType: (*PointOfSaleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddToCart", Handler: unaryHandler("AddToCart", PointOfSaleServer.AddToCart)},
		{MethodName: "SetQuantity", Handler: unaryHandler("SetQuantity", PointOfSaleServer.SetQuantity)},
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", PointOfSaleServer.GetCart)},
		{MethodName: "Checkout", Handler: unaryHandler("Checkout", PointOfSaleServer.Checkout)},
	},
	Streams: []grpc.StreamDesc{},
}

func fullMethod(name string) string {
	return "/" + pointOfSaleService + "/" + name
}

func unaryHandler[Req, Resp any](name string, call func(PointOfSaleServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PointOfSaleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PointOfSaleServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PointOfSaleClient calls the service over any connection; every call uses
// the JSON codec.
type PointOfSaleClient struct {
	cc grpc.ClientConnInterface
}

func NewPointOfSaleClient(cc grpc.ClientConnInterface) *PointOfSaleClient {
	return &PointOfSaleClient{cc: cc}
}

func (c *PointOfSaleClient) AddToCart(ctx context.Context, in *AddToCartRequest, opts ...grpc.CallOption) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "AddToCart", in, out, opts)
}

func (c *PointOfSaleClient) SetQuantity(ctx context.Context, in *SetQuantityRequest, opts ...grpc.CallOption) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "SetQuantity", in, out, opts)
}

func (c *PointOfSaleClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartReply, error) {
	out := new(CartReply)
	return out, c.invoke(ctx, "GetCart", in, out, opts)
}

func (c *PointOfSaleClient) Checkout(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutReply, error) {
	out := new(CheckoutReply)
	return out, c.invoke(ctx, "Checkout", in, out, opts)
}

func (c *PointOfSaleClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
