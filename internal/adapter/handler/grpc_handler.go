package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
)

type GRPCHandler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
}

func NewGRPCHandler(carts *service.CartService, checkout *service.CheckoutService) *GRPCHandler {
	return &GRPCHandler{carts: carts, checkout: checkout}
}

func (h *GRPCHandler) AddToCart(ctx context.Context, req *AddToCartRequest) (*CartReply, error) {
	cart, added, err := h.carts.AddItem(ctx, req.TerminalID, req.ItemID)
	if err != nil {
		return nil, toStatus(err)
	}
	reply := newCartReply(req.TerminalID, cart)
	reply.Added = added
	return reply, nil
}

func (h *GRPCHandler) SetQuantity(ctx context.Context, req *SetQuantityRequest) (*CartReply, error) {
	cart, err := h.carts.SetQuantity(ctx, req.TerminalID, req.ItemID, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return newCartReply(req.TerminalID, cart), nil
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *GetCartRequest) (*CartReply, error) {
	cart, err := h.carts.Get(ctx, req.TerminalID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newCartReply(req.TerminalID, cart), nil
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutReply, error) {
	sale, err := h.checkout.Checkout(ctx, service.CheckoutRequest{
		TerminalID:    req.TerminalID,
		CashierID:     req.CashierID,
		PaymentMethod: req.PaymentMethod,
		RequestID:     req.RequestID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &CheckoutReply{Sale: sale}, nil
}

func newCartReply(terminalID string, cart *domain.Cart) *CartReply {
	return &CartReply{
		TerminalID: terminalID,
		Lines:      cart.Lines(),
		Total:      cart.Total().StringFixed(2),
	}
}

func toStatus(err error) error {
	_, code := classify(err)
	return status.Error(code, err.Error())
}

// NewGRPCServer registers the PointOfSale service and the standard health
// service. limiter throttles Checkout only and may be nil.
func NewGRPCServer(h *GRPCHandler, limiter *rate.Limiter, log *zap.Logger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = zap.NewNop()
	}
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(log.Named("grpc")),
			checkoutLimitInterceptor(limiter),
		),
	)
	RegisterPointOfSaleServer(server, h)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(pointOfSaleService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil && status.Code(err) == codes.Internal {
			log.Error("rpc failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("rpc handled", fields...)
		}
		return resp, err
	}
}

func checkoutLimitInterceptor(limiter *rate.Limiter) grpc.UnaryServerInterceptor {
	checkout := fullMethod("Checkout")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter != nil && info.FullMethod == checkout && !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "too many checkout requests")
		}
		return handler(ctx, req)
	}
}
