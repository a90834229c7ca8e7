package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

// CartService keeps one cart per cashier terminal. Each mutation re-reads
// the product so clamping always uses the stock as it is now.
type CartService struct {
	catalog port.CatalogRepository
	carts   port.CartRepository
	logger  *zap.Logger
}

func NewCartService(catalog port.CatalogRepository, carts port.CartRepository, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{catalog: catalog, carts: carts, logger: logger.Named("cart")}
}

func (s *CartService) Get(ctx context.Context, terminalID string) (*domain.Cart, error) {
	if err := requireTerminal(terminalID); err != nil {
		return nil, err
	}
	cart, err := s.carts.LoadCart(ctx, terminalID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

// AddItem adds one unit of itemID. The returned flag is false when the add
// was clamped away because no further stock is available; a line held above
// current stock is still brought down and saved.
func (s *CartService) AddItem(ctx context.Context, terminalID, itemID string) (*domain.Cart, bool, error) {
	cart, product, err := s.load(ctx, terminalID, itemID)
	if err != nil {
		return nil, false, err
	}

	before := cart.Quantity(itemID)
	added := cart.AddLine(product)
	if !added {
		s.logger.Debug("add clamped at stock",
			zap.String("terminal_id", terminalID),
			zap.String("item_id", itemID),
			zap.Int("stock", product.Stock),
		)
		if cart.Quantity(itemID) == before {
			return cart, false, nil
		}
	}

	if err := s.carts.SaveCart(ctx, terminalID, cart); err != nil {
		return nil, false, fmt.Errorf("save cart: %w", err)
	}
	return cart, added, nil
}

// SetQuantity sets the line quantity, clamped to current stock. Zero or less
// removes the line without consulting the catalog.
func (s *CartService) SetQuantity(ctx context.Context, terminalID, itemID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, terminalID, itemID)
	}

	cart, product, err := s.load(ctx, terminalID, itemID)
	if err != nil {
		return nil, err
	}

	if got := cart.SetQuantity(product, quantity); got != quantity {
		s.logger.Debug("quantity clamped",
			zap.String("terminal_id", terminalID),
			zap.String("item_id", itemID),
			zap.Int("requested", quantity),
			zap.Int("held", got),
		)
	}

	if err := s.carts.SaveCart(ctx, terminalID, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, terminalID, itemID string) (*domain.Cart, error) {
	if err := requireTerminal(terminalID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, domain.Invalid("item id is required")
	}

	cart, err := s.carts.LoadCart(ctx, terminalID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !cart.Remove(itemID) {
		return cart, nil
	}
	if err := s.carts.SaveCart(ctx, terminalID, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, terminalID string) error {
	if err := requireTerminal(terminalID); err != nil {
		return err
	}
	if err := s.carts.DeleteCart(ctx, terminalID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (s *CartService) load(ctx context.Context, terminalID, itemID string) (*domain.Cart, domain.Product, error) {
	if err := requireTerminal(terminalID); err != nil {
		return nil, domain.Product{}, err
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, domain.Product{}, domain.Invalid("item id is required")
	}

	product, err := s.catalog.FindByID(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Product{}, fmt.Errorf("%w: unknown item %s: %w", domain.ErrValidation, itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Product{}, fmt.Errorf("load product: %w", err)
	}

	cart, err := s.carts.LoadCart(ctx, terminalID)
	if err != nil {
		return nil, domain.Product{}, fmt.Errorf("load cart: %w", err)
	}
	return cart, product, nil
}

func requireTerminal(terminalID string) error {
	if strings.TrimSpace(terminalID) == "" {
		return domain.Invalid("terminal id is required")
	}
	return nil
}
