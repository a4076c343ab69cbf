package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, cart *domain.Cart) error
	// ReplaceItems overwrites the whole item list and returns the stored cart.
	ReplaceItems(ctx context.Context, cartID string, items []domain.CartItem) (*domain.Cart, error)
}

// ProductRepository is the catalog as seen by carts and checkout.
type ProductRepository interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	// UpdateStock sets stock to newStock only if it still equals expected.
	// A stale expected value yields domain.ErrStockConflict.
	UpdateStock(ctx context.Context, productID string, expected, newStock int) error
}

// TicketRepository is append-only.
type TicketRepository interface {
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	GetTicket(ctx context.Context, code string) (*domain.Ticket, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

type OutboxEvent struct {
	ID          int
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}
