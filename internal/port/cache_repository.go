package port

import (
	"context"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency claims a key, returns false if already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type CartRepository interface {
	// LoadCart returns an empty cart when the terminal has none
	LoadCart(ctx context.Context, terminalID string) (*domain.Cart, error)

	SaveCart(ctx context.Context, terminalID string, cart *domain.Cart) error

	DeleteCart(ctx context.Context, terminalID string) error
}
