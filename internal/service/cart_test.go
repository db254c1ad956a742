package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/solumart/cartcheckout/internal/catalog"
	"github.com/solumart/cartcheckout/internal/domain"
	"github.com/solumart/cartcheckout/internal/event"
	"github.com/solumart/cartcheckout/internal/repository"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
	pkgkafka "github.com/solumart/cartcheckout/pkg/kafka"
)

// --- Mocks ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	args := m.Called(ctx, cart, expectedVersion)
	return args.Bool(0), args.Error(1)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, filter repository.ListOrdersFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Lookup(ctx context.Context, productID string) (*catalog.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() *event.Producer {
	logger := newTestLogger()
	// The producer points at an unreachable broker; publish failures are
	// logged, never surfaced to the caller.
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func newTestCartService(repo *mockCartRepository, cat *mockCatalog) *CartService {
	return NewCartService(repo, cat, newTestProducer(), NewUserLocks(), newTestLogger())
}

func newCartWithLine(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:     "cart-123",
		UserID: userID,
		Items: []domain.CartLine{
			{
				ProductID:   "prod-1",
				ProductName: "Test Product",
				Quantity:    2,
				UnitPrice:   1000,
			},
		},
		Total:     2000,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- GetCart ---

func TestGetCart_Existing(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)

	cart, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, existing, cart)
	repo.AssertExpectations(t)
}

func TestGetCart_CreatesAndPersistsWhenAbsent(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 0).Return(true, nil)

	cart, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)
	assert.NotEmpty(t, cart.ID)
	repo.AssertExpectations(t)
}

func TestGetCart_Idempotent_SecondCallReturnsSameCart(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)

	first, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	repo.AssertNotCalled(t, "SaveIfVersion")
}

func TestGetCart_EmptyUserID(t *testing.T) {
	svc := newTestCartService(new(mockCartRepository), new(mockCatalog))

	_, err := svc.GetCart(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- AddItem ---

func TestAddItem_NewLine(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	cat.On("Lookup", ctx, "prod-2").Return(&catalog.Product{ID: "prod-2", Name: "Gadget", UnitPrice: 500}, nil)
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 1).Return(true, nil)

	cart, err := svc.AddItem(ctx, "user-1", "prod-2", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Gadget", cart.Items[1].ProductName)
	assert.Equal(t, int64(500), cart.Items[1].UnitPrice)
	assert.Equal(t, int64(2500), cart.Total)
	repo.AssertExpectations(t)
	cat.AssertExpectations(t)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1") // prod-1 qty 2 at 1000
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 1).Return(true, nil)

	cart, err := svc.AddItem(ctx, "user-1", "prod-1", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(5000), cart.Total)

	// The merge keeps the first-addition snapshot; the catalog is not consulted.
	cat.AssertNotCalled(t, "Lookup")
	repo.AssertExpectations(t)
}

func TestAddItem_MergeKeepsPriceSnapshot(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	existing.Items[0].UnitPrice = 750 // price at first addition
	existing.Total = 1500
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 1).Return(true, nil)

	cart, err := svc.AddItem(ctx, "user-1", "prod-1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(750), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(2250), cart.Total)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	cat.On("Lookup", ctx, "ghost").Return(nil, apperrors.NotFound("product", "ghost"))

	_, err := svc.AddItem(ctx, "user-1", "ghost", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertNotCalled(t, "SaveIfVersion")
}

func TestAddItem_Validation(t *testing.T) {
	svc := newTestCartService(new(mockCartRepository), new(mockCatalog))
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		productID string
		quantity  int
	}{
		{"empty user", "", "prod-1", 1},
		{"empty product", "user-1", "", 1},
		{"zero quantity", "user-1", "prod-1", 0},
		{"negative quantity", "user-1", "prod-1", -3},
		{"excessive quantity", "user-1", "prod-1", MaxQuantityPerLine + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, tt.userID, tt.productID, tt.quantity)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestAddItem_Conflict(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 1).Return(false, nil)

	_, err := svc.AddItem(ctx, "user-1", "prod-1", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// --- RemoveItem ---

func TestRemoveItem_Success(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Cart"), 1).Return(true, nil)

	cart, err := svc.RemoveItem(ctx, "user-1", "prod-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)
	repo.AssertExpectations(t)
}

func TestRemoveItem_AbsentLine(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)

	_, err := svc.RemoveItem(ctx, "user-1", "prod-99")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Cart left untouched.
	assert.Len(t, existing.Items, 1)
	assert.Equal(t, int64(2000), existing.Total)
	repo.AssertNotCalled(t, "SaveIfVersion")
}

func TestRemoveItem_NoCart(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	_, err := svc.RemoveItem(ctx, "user-1", "prod-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertNotCalled(t, "SaveIfVersion")
}

// --- ClearCart ---

func TestClearCart_Success(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	existing := newCartWithLine("user-1")
	repo.On("Get", ctx, "user-1").Return(existing, nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.ClearCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)
	repo.AssertExpectations(t)
}

func TestClearCart_IdempotentOnEmptyCart(t *testing.T) {
	repo := new(mockCartRepository)
	cat := new(mockCatalog)
	svc := newTestCartService(repo, cat)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.ClearCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)
}
