package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

type CheckoutRequest struct {
	TerminalID    string
	CashierID     string
	PaymentMethod string
	// RequestID is optional; when set, a repeated checkout with the same id
	// is rejected with domain.ErrDuplicateRequest.
	RequestID string
}

type CheckoutService struct {
	catalog   port.CatalogRepository
	committer port.SaleCommitter
	carts     port.CartRepository
	cache     port.CacheRepository
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCheckoutService wires the checkout engine. cache may be nil, in which
// case request ids are not deduplicated.
func NewCheckoutService(
	catalog port.CatalogRepository,
	committer port.SaleCommitter,
	carts port.CartRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		catalog:   catalog,
		committer: committer,
		carts:     carts,
		cache:     cache,
		logger:    logger.Named("checkout"),
		tracer:    otel.Tracer("retail-pos/checkout"),
		now:       time.Now,
	}
}

// Commit turns cart into a sale. Every line is checked against current stock
// and priced at the current unit price; the ledger append and all stock
// decrements are applied atomically by the committer. The cart is cleared
// only on success.
func (s *CheckoutService) Commit(ctx context.Context, cart *domain.Cart, cashierID string, method domain.PaymentMethod) (*domain.Sale, error) {
	lineCount := 0
	if cart != nil {
		lineCount = cart.Len()
	}
	ctx, span := s.tracer.Start(ctx, "checkout.commit",
		trace.WithAttributes(
			attribute.String("cashier.id", cashierID),
			attribute.Int("cart.lines", lineCount),
		),
	)
	defer span.End()

	if cart == nil || cart.IsEmpty() {
		return nil, recordFailure(span, domain.ErrEmptyCart)
	}
	if strings.TrimSpace(cashierID) == "" {
		return nil, recordFailure(span, domain.Invalid("cashier id is required"))
	}
	method, err := domain.ParsePaymentMethod(string(method))
	if err != nil {
		return nil, recordFailure(span, err)
	}

	lines := make([]domain.SaleLine, 0, cart.Len())
	for _, line := range cart.Lines() {
		product, err := s.catalog.FindByID(ctx, line.ItemID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, recordFailure(span, domain.Invalid("unknown item %s", line.ItemID))
		}
		if err != nil {
			return nil, recordFailure(span, fmt.Errorf("load product %s: %w", line.ItemID, err))
		}
		if line.Quantity > product.Stock {
			return nil, recordFailure(span, &domain.StockError{
				ItemID:    line.ItemID,
				Requested: line.Quantity,
				Available: product.Stock,
			})
		}
		lines = append(lines, domain.SaleLine{
			ItemID:    product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice,
		})
	}

	sale, err := domain.NewSale(cashierID, method, lines, s.now())
	if err != nil {
		return nil, recordFailure(span, err)
	}

	if err := s.committer.CommitSale(ctx, sale); err != nil {
		s.logger.Warn("sale commit rejected",
			zap.String("sale_id", sale.ID),
			zap.String("cashier_id", cashierID),
			zap.Error(err),
		)
		return nil, recordFailure(span, fmt.Errorf("commit sale: %w", err))
	}

	cart.Clear()

	span.SetAttributes(
		attribute.String("sale.id", sale.ID),
		attribute.String("sale.total", sale.TotalAmount.StringFixed(2)),
	)
	s.logger.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.String("cashier_id", cashierID),
		zap.Int("lines", len(sale.Lines)),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
	)
	return &sale, nil
}

// Checkout commits the cart stored for req.TerminalID and discards it on
// success. On failure the stored cart is left as it was.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Sale, error) {
	if strings.TrimSpace(req.TerminalID) == "" {
		return nil, domain.Invalid("terminal id is required")
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.LoadCart(ctx, req.TerminalID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	var idempotencyKey string
	if req.RequestID != "" && s.cache != nil {
		idempotencyKey = fmt.Sprintf("checkout:%s:%s", req.TerminalID, req.RequestID)
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	sale, err := s.Commit(ctx, cart, req.CashierID, method)
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.cache.ReleaseIdempotency(ctx, idempotencyKey); releaseErr != nil {
				s.logger.Error("failed to release idempotency key",
					zap.String("key", idempotencyKey), zap.Error(releaseErr))
			}
		}
		return nil, err
	}

	if err := s.carts.DeleteCart(ctx, req.TerminalID); err != nil {
		s.logger.Error("sale committed but cart not cleared",
			zap.String("terminal_id", req.TerminalID),
			zap.String("sale_id", sale.ID),
			zap.Error(err),
		)
	}
	return sale, nil
}

func recordFailure(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
