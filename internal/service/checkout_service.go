package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/checkout"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/metrics"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/fjod/go_cart/cart-checkout/internal/ticketcode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxStockAttempts bounds how often a single line item re-reads stock
// after losing a conditional update.
const MaxStockAttempts = 3

// DefaultCommitTimeout bounds a purchase once its first stock debit may
// have happened. From that point the caller's cancellation is ignored.
const DefaultCommitTimeout = 30 * time.Second

type CheckoutService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	tickets  repository.TicketRepository
	cache    cache.CartCache
	locker   lock.Locker
	codes    ticketcode.Generator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	commitTimeout time.Duration
}

type CheckoutDeps struct {
	Carts    repository.CartRepository
	Products repository.ProductRepository
	Tickets  repository.TicketRepository
	Cache    cache.CartCache
	Locker   lock.Locker
	Codes    ticketcode.Generator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	CommitTimeout time.Duration
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	if d.CommitTimeout <= 0 {
		d.CommitTimeout = DefaultCommitTimeout
	}
	return &CheckoutService{
		carts:    d.Carts,
		products: d.Products,
		tickets:  d.Tickets,
		cache:    d.Cache,
		locker:   d.Locker,
		codes:    d.Codes,
		metrics:  d.Metrics,
		logger:   d.Logger,
		tracer:   otel.Tracer("github.com/fjod/go_cart/cart-checkout/internal/service"),
		now:      func() time.Time { return time.Now().UTC() },

		commitTimeout: d.CommitTimeout,
	}
}

// Purchase buys whatever the current stock allows. Items that do not fit
// stay in the cart; the rest are debited, priced and written to a new
// ticket. A product missing from the catalog aborts the purchase, and
// debits already made for earlier items are not undone. Cancelling ctx
// only stops a purchase that has not loaded its cart yet.
func (s *CheckoutService) Purchase(ctx context.Context, cartID, identity string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Purchase",
		trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer span.End()

	ticket, skipped, err := s.purchase(ctx, cartID, identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "purchase failed", "cart_id", cartID, "kind", domain.Classify(err).String(), "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ticket.code", ticket.Code),
		attribute.Int("ticket.items", len(ticket.Products)),
		attribute.Int("cart.skipped_items", skipped),
	)
	s.metrics.ObservePurchase(len(ticket.Products), skipped)
	s.logger.InfoContext(ctx, "purchase completed",
		"cart_id", cartID,
		"ticket", ticket.Code,
		"purchased", len(ticket.Products),
		"skipped", skipped,
		"amount", ticket.Amount.String())
	return ticket, nil
}

func (s *CheckoutService) purchase(ctx context.Context, cartID, identity string) (*domain.Ticket, int, error) {
	unlock, err := s.locker.Lock(ctx, cartID)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, 0, err
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	// Debits, the residual cart and the ticket belong together: a caller
	// hanging up halfway must not leave stock taken with no ticket.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	outcome, err := checkout.Fold(ctx, cart.Items, s.debit)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.carts.ReplaceItems(ctx, cartID, outcome.Residual); err != nil {
		return nil, 0, fmt.Errorf("failed to store residual cart: %w", err)
	}
	invalidateCache(s.cache, s.logger, cartID)

	ticket := &domain.Ticket{
		Code:             s.codes.Generate(),
		Products:         outcome.Purchased,
		Amount:           outcome.Amount,
		Purchaser:        identity,
		PurchaseDatetime: s.now(),
	}
	if err := s.tickets.CreateTicket(ctx, ticket); err != nil {
		return nil, 0, fmt.Errorf("failed to store ticket: %w", err)
	}

	return ticket, len(outcome.Residual), nil
}

// debit is the per-item step of a purchase. It reads the product, skips
// the item when stock is short, and otherwise takes the stock with a
// conditional update, re-reading when another writer got there first.
func (s *CheckoutService) debit(ctx context.Context, item domain.CartItem) (checkout.Step, error) {
	for attempt := 1; ; attempt++ {
		p, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return checkout.Step{}, err
		}
		if item.Quantity > p.Stock {
			return checkout.Step{}, nil
		}

		err = s.products.UpdateStock(ctx, p.ID, p.Stock, p.Stock-item.Quantity)
		if err == nil {
			return checkout.Step{Bought: true, Price: p.Price}, nil
		}
		if !errors.Is(err, domain.ErrStockConflict) || attempt >= MaxStockAttempts {
			return checkout.Step{}, err
		}
		s.metrics.ObserveStockConflict()
		s.logger.DebugContext(ctx, "stock moved, retrying", "product_id", p.ID, "attempt", attempt)
	}
}

// GetTicket returns a ticket to its purchaser only.
func (s *CheckoutService) GetTicket(ctx context.Context, code, identity string) (*domain.Ticket, error) {
	t, err := s.tickets.GetTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	if t.Purchaser != identity {
		return nil, fmt.Errorf("%w: ticket %s belongs to another purchaser", domain.ErrForbidden, code)
	}
	return t, nil
}
