package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type SeedProduct struct {
	ID       string
	Name     string
	Category string
	Price    string
	Stock    int
}

// SampleProducts is the demo catalog loaded into an empty store.
func SampleProducts() []SeedProduct {
	return []SeedProduct{
		{"prod1", "Cola", "Beverages", "1.50", 150},
		{"prod2", "Burger", "Fast Food", "5.00", 80},
		{"prod3", "Fries", "Fast Food", "2.50", 120},
		{"prod4", "Potato Chips", "Snacks", "1.20", 200},
		{"prod5", "Milk 1L", "Grocery", "2.00", 50},
		{"prod6", "Bread", "Grocery", "2.20", 60},
		{"prod7", "Orange Juice", "Beverages", "3.00", 75},
		{"prod8", "Chicken Sandwich", "Fast Food", "6.50", 40},
		{"prod9", "Chocolate Bar", "Snacks", "1.80", 300},
		{"prod10", "Water Bottle", "Beverages", "1.00", 5},
	}
}

// SeedIfEmpty creates products only when the catalog has none, and reports
// how many were created.
func (s *CatalogService) SeedIfEmpty(ctx context.Context, products []SeedProduct) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, sp := range products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return i, domain.Invalid("seed product %s: bad price %q", sp.ID, sp.Price)
		}
		p, err := domain.NewProduct(sp.ID, sp.Name, sp.Category, price, sp.Stock)
		if err != nil {
			return i, err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return i, fmt.Errorf("seed product %s: %w", sp.ID, err)
		}
	}
	s.logger.Info("catalog seeded", zap.Int("products", len(products)))
	return len(products), nil
}
