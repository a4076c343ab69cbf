package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

// CartCache holds read-through copies of carts. Every Delete bumps the
// cart's version; Set only stores a cart read at the current version, so a
// fill that raced an invalidation is dropped.
type CartCache interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Version(ctx context.Context, cartID string) (int64, error)
	Set(ctx context.Context, cartID string, cart *domain.Cart, version int64) error
	Delete(ctx context.Context, cartID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache is used when no Redis is configured; every read misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error)      { return nil, ErrCacheMiss }
func (NopCache) Version(context.Context, string) (int64, error)      { return 0, nil }
func (NopCache) Set(context.Context, string, *domain.Cart, int64) error { return nil }
func (NopCache) Delete(context.Context, string) error                  { return nil }
