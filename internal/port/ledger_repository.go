package port

import (
	"context"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// LedgerRepository is append-only: sales are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, sale domain.Sale) error

	// ListAll returns sales in insertion order
	ListAll(ctx context.Context) ([]domain.Sale, error)

	// ListBetween returns sales with from <= timestamp < to in insertion order
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error)
}

type SaleCommitter interface {
	// CommitSale appends the sale and decrements stock for every line as one
	// atomic unit. A line whose stock is short fails the whole commit with
	// domain.ErrNegativeStock and nothing is applied.
	CommitSale(ctx context.Context, sale domain.Sale) error
}
