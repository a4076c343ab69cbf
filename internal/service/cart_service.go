package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lineitem"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	locker   lock.Locker
	logger   *slog.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	cartCache cache.CartCache,
	locker lock.Locker,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cartCache,
		locker:   locker,
		logger:   logger,
	}
}

func (s *CartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	cart := &domain.Cart{Items: []domain.CartItem{}}
	if err := s.carts.CreateCart(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "repo create cart error", "error", err)
		return nil, err
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, cartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cache get error", "cart_id", cartID, "error", err)
		}

		// the version is read before the store so a write landing in
		// between makes the fill below a no-op
		version, errVer := s.cache.Version(ctx, cartID)

		cart, err = s.carts.GetCart(ctx, cartID)
		if err != nil {
			return nil, err
		}

		if errVer != nil {
			s.logger.WarnContext(ctx, "cache version error", "cart_id", cartID, "error", errVer)
		} else {
			go func(c *domain.Cart) {
				if errSet := s.cache.Set(context.Background(), cartID, c, version); errSet != nil {
					s.logger.Warn("cache set error", "cart_id", cartID, "error", errSet)
				}
			}(cart.Clone())
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a singleflight result must not share its slice
	return v.(*domain.Cart).Clone(), nil
}

// GetCartView resolves every item against the catalog. A product that
// vanished since it was added shows up with a nil Product instead of
// failing the read; checkout is where a missing product is fatal.
func (s *CartService) GetCartView(ctx context.Context, cartID string) (*domain.CartView, error) {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		ID:        cart.ID,
		Items:     make([]domain.CartViewItem, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, it := range cart.Items {
		p, err := s.products.GetProduct(ctx, it.ProductID)
		if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		view.Items = append(view.Items, domain.CartViewItem{ProductID: it.ProductID, Product: p, Quantity: it.Quantity})
	}
	return view, nil
}

func (s *CartService) AddItem(ctx context.Context, cartID, productID, identity string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) ([]domain.CartItem, error) {
		p, err := s.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		return lineitem.AddOrIncrement(cart.Items, *p, identity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) ([]domain.CartItem, error) {
		if _, err := s.products.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
		return lineitem.Remove(cart.Items, productID)
	})
}

func (s *CartService) SetQuantity(ctx context.Context, cartID, productID string, quantity float64) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) ([]domain.CartItem, error) {
		if _, err := s.products.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
		return lineitem.SetQuantity(cart.Items, productID, quantity)
	})
}

func (s *CartService) ReplaceItems(ctx context.Context, cartID string, candidates []lineitem.Candidate) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(*domain.Cart) ([]domain.CartItem, error) {
		return lineitem.ReplaceAll(candidates, func(productID string) (bool, error) {
			_, err := s.products.GetProduct(ctx, productID)
			if errors.Is(err, domain.ErrProductNotFound) {
				return false, nil
			}
			return err == nil, err
		})
	})
}

func (s *CartService) ClearCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, func(cart *domain.Cart) ([]domain.CartItem, error) {
		return lineitem.Clear(cart.Items), nil
	})
}

// mutate runs one locked load, apply, replace cycle on a cart.
func (s *CartService) mutate(ctx context.Context, cartID string, apply func(*domain.Cart) ([]domain.CartItem, error)) (*domain.Cart, error) {
	unlock, err := s.locker.Lock(ctx, cartID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	items, err := apply(cart)
	if err != nil {
		return nil, err
	}

	updated, err := s.carts.ReplaceItems(ctx, cartID, items)
	if err != nil {
		s.logger.ErrorContext(ctx, "repo replace items error", "cart_id", cartID, "error", err)
		return nil, err
	}

	invalidateCache(s.cache, s.logger, cartID)
	return updated, nil
}

func invalidateCache(c cache.CartCache, logger *slog.Logger, cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Delete(ctx, cartID); err != nil {
		logger.Warn("cache invalidate error", "cart_id", cartID, "error", err)
	}
}
