package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/metrics"
	"github.com/fjod/go_cart/cart-checkout/internal/store"
	"github.com/fjod/go_cart/cart-checkout/internal/ticketcode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	m        sync.RWMutex
	carts    map[string]*domain.Cart
	versions map[string]int64
	err      error
	deletes  int
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart), versions: make(map[string]int64)}
}

func (m *mockCache) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[cartID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c.Clone(), nil
}

func (m *mockCache) Version(_ context.Context, cartID string) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.versions[cartID], m.err
}

func (m *mockCache) Set(_ context.Context, cartID string, cart *domain.Cart, version int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.versions[cartID] == version {
		m.carts[cartID] = cart.Clone()
	}
	return m.err
}

func (m *mockCache) Delete(_ context.Context, cartID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, cartID)
	m.versions[cartID]++
	m.deletes++
	return m.err
}

func (m *mockCache) has(cartID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[cartID]
	return ok
}

// countingStore records every write that reaches the store.
type countingStore struct {
	*store.MemoryStore
	mu           sync.Mutex
	replaces     int
	stockUpdates int
	tickets      int
}

func (c *countingStore) ReplaceItems(ctx context.Context, cartID string, items []domain.CartItem) (*domain.Cart, error) {
	c.mu.Lock()
	c.replaces++
	c.mu.Unlock()
	return c.MemoryStore.ReplaceItems(ctx, cartID, items)
}

func (c *countingStore) UpdateStock(ctx context.Context, productID string, expected, newStock int) error {
	c.mu.Lock()
	c.stockUpdates++
	c.mu.Unlock()
	return c.MemoryStore.UpdateStock(ctx, productID, expected, newStock)
}

func (c *countingStore) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	c.mu.Lock()
	c.tickets++
	c.mu.Unlock()
	return c.MemoryStore.CreateTicket(ctx, t)
}

func (c *countingStore) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaces + c.stockUpdates + c.tickets
}

// racingCatalog lets another buyer take stock between our read and our
// conditional write, `races` times.
type racingCatalog struct {
	*store.MemoryStore
	races int
	taken int
}

func (r *racingCatalog) UpdateStock(ctx context.Context, productID string, expected, newStock int) error {
	if r.races > 0 {
		r.races--
		if err := r.MemoryStore.UpdateStock(ctx, productID, expected, expected-r.taken); err != nil {
			return err
		}
	}
	return r.MemoryStore.UpdateStock(ctx, productID, expected, newStock)
}

// invalidatingCarts runs a concurrent writer's cache invalidation in the
// window between a reader's store read and its cache fill.
type invalidatingCarts struct {
	*store.MemoryStore
	cache cache.CartCache
}

func (i *invalidatingCarts) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	c, err := i.MemoryStore.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := i.cache.Delete(ctx, cartID); err != nil {
		return nil, err
	}
	return c, nil
}

// hangUpCatalog cancels the caller's context right after the first
// successful stock debit, as a client disconnecting mid-purchase would.
type hangUpCatalog struct {
	*store.MemoryStore
	cancel context.CancelFunc
	once   sync.Once
}

func (h *hangUpCatalog) UpdateStock(ctx context.Context, productID string, expected, newStock int) error {
	err := h.MemoryStore.UpdateStock(ctx, productID, expected, newStock)
	if err == nil {
		h.once.Do(h.cancel)
	}
	return err
}

type fixedCodes struct {
	codes []string
	i     int
}

func (f *fixedCodes) Generate() string {
	c := f.codes[f.i%len(f.codes)]
	f.i++
	return c
}

type testEnv struct {
	store    *countingStore
	cache    *mockCache
	carts    *CartService
	checkout *CheckoutService
	metrics  *metrics.Metrics
}

const (
	seller = "seller@shop"
	buyer  = "buyer@shop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := &countingStore{MemoryStore: store.NewMemoryStore()}
	c := newMockCache()
	locker := lock.NewLocalLocker()
	m := metrics.New(prometheus.NewRegistry())
	logger := discardLogger()

	return &testEnv{
		store: st,
		cache: c,
		carts: NewCartService(st, st, c, locker, logger),
		checkout: NewCheckoutService(CheckoutDeps{
			Carts:    st,
			Products: st,
			Tickets:  st,
			Cache:    c,
			Locker:   locker,
			Codes:    ticketcode.NewGenerator(),
			Metrics:  m,
			Logger:   logger,
		}),
		metrics: m,
	}
}

func (e *testEnv) product(t *testing.T, id, price string, stock int) {
	t.Helper()
	require.NoError(t, e.store.SetProduct(domain.Product{
		ID:    id,
		Title: "product " + id,
		Owner: seller,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}))
}

func (e *testEnv) cart(t *testing.T, items ...domain.CartItem) string {
	t.Helper()
	c, err := e.carts.CreateCart(context.Background())
	require.NoError(t, err)
	if len(items) > 0 {
		_, err = e.store.MemoryStore.ReplaceItems(context.Background(), c.ID, items)
		require.NoError(t, err)
	}
	return c.ID
}

func (e *testEnv) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (e *testEnv) items(t *testing.T, cartID string) []domain.CartItem {
	t.Helper()
	c, err := e.store.GetCart(context.Background(), cartID)
	require.NoError(t, err)
	return c.Items
}
