package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

type ProductFilter struct {
	Query       string
	Category    string
	InStockOnly bool
}

func (f ProductFilter) matches(p domain.Product) bool {
	if f.InStockOnly && !p.InStock() {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, p.Category) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

type CatalogService struct {
	repo   port.CatalogRepository
	logger *zap.Logger
}

func NewCatalogService(repo port.CatalogRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger.Named("catalog")}
}

func (s *CatalogService) Create(ctx context.Context, id, name, category string, unitPrice decimal.Decimal, stock int) (domain.Product, error) {
	product, err := domain.NewProduct(id, name, category, unitPrice, stock)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created", zap.String("item_id", product.ID), zap.Int("stock", product.Stock))
	return product, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, update domain.ProductUpdate) (domain.Product, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product: %w", err)
	}
	updated, err := update.Apply(current)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.Update(ctx, updated); err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	updated.Version++
	s.logger.Info("product updated", zap.String("item_id", id))
	return updated, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.Info("product deleted", zap.String("item_id", id))
	return nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

// Search filters by case-insensitive name substring and exact category.
func (s *CatalogService) Search(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// LowStock returns products whose stock is below threshold.
func (s *CatalogService) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock < threshold {
			out = append(out, p)
		}
	}
	return out, nil
}
