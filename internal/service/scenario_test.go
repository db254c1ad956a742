package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solumart/cartcheckout/internal/catalog"
	"github.com/solumart/cartcheckout/internal/domain"
	"github.com/solumart/cartcheckout/internal/repository"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

// memCartRepo is an in-memory CartRepository with real version semantics,
// used to exercise the cart and order services together.
type memCartRepo struct {
	mu    sync.Mutex
	carts map[string][]byte
	vers  map[string]int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: map[string][]byte{}, vers: map[string]int{}}
}

func (r *memCartRepo) Get(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.carts[userID]
	if !ok {
		return nil, apperrors.NotFound("cart", userID)
	}
	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, err
	}
	cart.Version = r.vers[userID]
	return &cart, nil
}

func (r *memCartRepo) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store(cart)
}

func (r *memCartRepo) SaveIfVersion(_ context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vers[cart.UserID] != expectedVersion {
		return false, nil
	}
	return true, r.store(cart)
}

func (r *memCartRepo) store(cart *domain.Cart) error {
	r.vers[cart.UserID]++
	cart.Version = r.vers[cart.UserID]
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	r.carts[cart.UserID] = raw
	return nil
}

// memOrderRepo is an in-memory OrderRepository.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]domain.Order{}}
}

func (r *memOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) GetByIDAndUser(_ context.Context, id, userID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return nil, apperrors.NotFound("order", id)
	}
	return &o, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, filter repository.ListOrdersFilter) ([]domain.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == filter.UserID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r *memOrderRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return apperrors.NotFound("order", id)
	}
	delete(r.orders, id)
	return nil
}

// staticCatalog resolves from a fixed price list.
type staticCatalog map[string]catalog.Product

func (c staticCatalog) Lookup(_ context.Context, productID string) (*catalog.Product, error) {
	p, ok := c[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	return &p, nil
}

func TestCartToOrderFlow(t *testing.T) {
	ctx := context.Background()
	cartRepo := newMemCartRepo()
	orderRepo := newMemOrderRepo()
	locks := NewUserLocks()
	producer := newTestProducer()
	logger := newTestLogger()

	cat := staticCatalog{
		"p1": {ID: "p1", Name: "Widget", UnitPrice: 1000},
		"p2": {ID: "p2", Name: "Gadget", UnitPrice: 500},
	}

	cartSvc := NewCartService(cartRepo, cat, producer, locks, logger)
	orderSvc := NewOrderService(cartRepo, orderRepo, producer, locks, logger)

	// Empty cart, then p1 x2 at 10.00 keeps a 20.00 total.
	cart, err := cartSvc.AddItem(ctx, "user-1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), cart.Total)

	// Merging p1 x1 brings the single line to qty 3, total 30.00.
	cart, err = cartSvc.AddItem(ctx, "user-1", "p1", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(3000), cart.Total)

	// Adding p2 x1 at 5.00 yields 35.00.
	cart, err = cartSvc.AddItem(ctx, "user-1", "p2", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, int64(3500), cart.Total)

	// Checkout freezes the snapshot and resets the cart.
	order, err := orderSvc.Checkout(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(3500), order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "p1", order.Items[0].ProductID)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, int64(1000), order.Items[0].UnitPrice)
	assert.Equal(t, "p2", order.Items[1].ProductID)
	assert.Equal(t, 1, order.Items[1].Quantity)
	assert.Equal(t, int64(500), order.Items[1].UnitPrice)

	after, err := cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.Equal(t, int64(0), after.Total)

	// A second checkout hits the now-empty cart.
	_, err = orderSvc.Checkout(ctx, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmptyCart)

	// The order is visible to its owner and only its owner.
	got, err := orderSvc.GetOrder(ctx, "user-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = orderSvc.GetOrder(ctx, "user-2", order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	list, total, err := orderSvc.ListOrders(ctx, "user-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)

	foreign, _, err := orderSvc.ListOrders(ctx, "user-2", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestConcurrentAdds_NoLostUpdate(t *testing.T) {
	ctx := context.Background()
	cartRepo := newMemCartRepo()
	locks := NewUserLocks()
	producer := newTestProducer()

	cat := staticCatalog{"p1": {ID: "p1", Name: "Widget", UnitPrice: 100}}
	cartSvc := NewCartService(cartRepo, cat, producer, locks, newTestLogger())

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cartSvc.AddItem(ctx, "user-1", "p1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := cartSvc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, workers, cart.Items[0].Quantity)
	assert.Equal(t, int64(workers*100), cart.Total)
}
