package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

const (
	cartKeyPrefix        = "cart:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	defaultCartTTL       = 12 * time.Hour
)

// RedisAdapter stores terminal carts and checkout idempotency keys so that
// several server instances can share them.
type RedisAdapter struct {
	client         *redis.Client
	cartTTL        time.Duration
	idempotencyTTL time.Duration
}

// NewRedisAdapter applies the package defaults to non-positive TTLs.
func NewRedisAdapter(client *redis.Client, cartTTL, idempotencyTTL time.Duration) *RedisAdapter {
	if cartTTL <= 0 {
		cartTTL = defaultCartTTL
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = idempotencyKeyTTL
	}
	return &RedisAdapter{client: client, cartTTL: cartTTL, idempotencyTTL: idempotencyTTL}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: set idempotency key: %w", domain.ErrPersistence, err)
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: release idempotency key: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *RedisAdapter) LoadCart(ctx context.Context, terminalID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+terminalID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get cart: %w", domain.ErrPersistence, err)
	}

	cart := domain.NewCart()
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", terminalID, err)
	}
	return cart, nil
}

func (r *RedisAdapter) SaveCart(ctx context.Context, terminalID string, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return r.DeleteCart(ctx, terminalID)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", terminalID, err)
	}
	if err := r.client.Set(ctx, cartKeyPrefix+terminalID, data, r.cartTTL).Err(); err != nil {
		return fmt.Errorf("%w: set cart: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *RedisAdapter) DeleteCart(ctx context.Context, terminalID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+terminalID).Err(); err != nil {
		return fmt.Errorf("%w: delete cart: %w", domain.ErrPersistence, err)
	}
	return nil
}
