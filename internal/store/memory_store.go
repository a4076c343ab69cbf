package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements the cart, catalog and ticket repositories with
// in-memory storage. Every value is copied on the way in and out so
// callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	carts    map[string]*domain.Cart    // cartID -> cart
	products map[string]*domain.Product // productID -> product
	tickets  map[string]*domain.Ticket  // code -> ticket
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts:    make(map[string]*domain.Cart),
		products: make(map[string]*domain.Product),
		tickets:  make(map[string]*domain.Ticket),
	}
}

func (s *MemoryStore) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[cartID]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", domain.ErrCartNotFound, cartID)
	}
	return cart.Clone(), nil
}

func (s *MemoryStore) CreateCart(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cart.ID == "" {
		cart.ID = uuid.New().String()
	}
	if _, exists := s.carts[cart.ID]; exists {
		return fmt.Errorf("cart %s already exists", cart.ID)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	now := time.Now().UTC()
	cart.CreatedAt = now
	cart.UpdatedAt = now

	s.carts[cart.ID] = cart.Clone()
	return nil
}

func (s *MemoryStore) ReplaceItems(_ context.Context, cartID string, items []domain.CartItem) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[cartID]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", domain.ErrCartNotFound, cartID)
	}

	cart.Items = make([]domain.CartItem, len(items))
	copy(cart.Items, items)
	cart.UpdatedAt = time.Now().UTC()
	return cart.Clone(), nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", domain.ErrProductNotFound, productID)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateStock(_ context.Context, productID string, expected, newStock int) error {
	if newStock < 0 {
		return fmt.Errorf("%w: stock for %s cannot go below zero", domain.ErrValidation, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("%w: id=%s", domain.ErrProductNotFound, productID)
	}
	if p.Stock != expected {
		return fmt.Errorf("%w: id=%s expected=%d", domain.ErrStockConflict, productID, expected)
	}
	p.Stock = newStock
	return nil
}

// SetProduct creates or replaces a catalog entry (restock, seeding).
func (s *MemoryStore) SetProduct(p domain.Product) error {
	if p.ID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrValidation)
	}
	if p.Stock < 0 || p.Price.IsNegative() {
		return fmt.Errorf("%w: product %s has negative stock or price", domain.ErrValidation, p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
	return nil
}

// DeleteProduct removes a catalog entry; carts may still reference it.
func (s *MemoryStore) DeleteProduct(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

func (s *MemoryStore) CreateTicket(_ context.Context, ticket *domain.Ticket) error {
	if ticket.Code == "" {
		return fmt.Errorf("%w: ticket code is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tickets[ticket.Code]; exists {
		return fmt.Errorf("%w: code=%s", domain.ErrDuplicateTicket, ticket.Code)
	}
	s.tickets[ticket.Code] = cloneTicket(ticket)
	return nil
}

func (s *MemoryStore) GetTicket(_ context.Context, code string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[code]
	if !ok {
		return nil, fmt.Errorf("%w: code=%s", domain.ErrTicketNotFound, code)
	}
	return cloneTicket(t), nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	cp.Products = make([]domain.TicketItem, len(t.Products))
	copy(cp.Products, t.Products)
	return &cp
}
