// Package circuitbreaker guards the catalog so a failing store sheds
// load quickly instead of tying up every checkout.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		Interval:         time.Minute,
	}
}

// ProductRepository decorates a catalog store with a circuit breaker.
// Not-found, stale-stock and validation answers come from a healthy
// store and never count as failures.
type ProductRepository struct {
	next repository.ProductRepository
	cb   *gobreaker.CircuitBreaker[any]
}

func NewProductRepository(next repository.ProductRepository, s Settings, logger *slog.Logger) *ProductRepository {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrProductNotFound) ||
				errors.Is(err, domain.ErrStockConflict) ||
				errors.Is(err, domain.ErrValidation) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &ProductRepository{next: next, cb: cb}
}

func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	v, err := r.cb.Execute(func() (any, error) {
		return r.next.GetProduct(ctx, productID)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return v.(*domain.Product), nil
}

func (r *ProductRepository) UpdateStock(ctx context.Context, productID string, expected, newStock int) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.next.UpdateStock(ctx, productID, expected, newStock)
	})
	return unavailable(err)
}

func (r *ProductRepository) State() gobreaker.State {
	return r.cb.State()
}

func unavailable(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: catalog: %w", domain.ErrUnavailable, err)
	}
	return err
}
