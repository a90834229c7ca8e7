package port

import (
	"context"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type CatalogRepository interface {
	// List returns every product ordered by name
	List(ctx context.Context) ([]domain.Product, error)

	// FindByID returns domain.ErrNotFound for unknown ids
	FindByID(ctx context.Context, id string) (domain.Product, error)

	// Create returns domain.ErrAlreadyExists when the id is taken
	Create(ctx context.Context, product domain.Product) error

	// Update succeeds only if product.Version matches the stored version,
	// otherwise it returns domain.ErrConflict. The stored version is bumped.
	Update(ctx context.Context, product domain.Product) error

	Delete(ctx context.Context, id string) error

	// DecrementStock subtracts amount only if stock >= amount, otherwise it
	// returns domain.ErrNegativeStock and leaves stock unchanged
	DecrementStock(ctx context.Context, id string, amount int) error
}
