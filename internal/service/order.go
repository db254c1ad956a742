package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solumart/cartcheckout/internal/domain"
	"github.com/solumart/cartcheckout/internal/event"
	"github.com/solumart/cartcheckout/internal/repository"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

// OrderService converts carts into immutable orders and serves order reads.
type OrderService struct {
	carts    repository.CartRepository
	orders   repository.OrderRepository
	producer *event.Producer
	locks    *UserLocks
	logger   *slog.Logger
}

// NewOrderService creates a new order service. The lock set must be the same
// instance the cart service uses.
func NewOrderService(carts repository.CartRepository, orders repository.OrderRepository, producer *event.Producer, locks *UserLocks, logger *slog.Logger) *OrderService {
	return &OrderService{
		carts:    carts,
		orders:   orders,
		producer: producer,
		locks:    locks,
		logger:   logger,
	}
}

// Checkout snapshots the user's cart into a new pending order and resets the
// cart. The read-snapshot-reset span runs under the per-user lock; the cart
// version check catches writers outside this process. If the cart reset loses
// the version race after the order row was committed, the order is deleted
// again (compensation) so a failed checkout never leaves an order behind.
func (s *OrderService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.EmptyCart(userID)
		}
		return nil, fmt.Errorf("get cart for checkout: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.EmptyCart(userID)
	}

	expectedVersion := cart.Version
	order := orderFromCart(cart)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	cart.Clear()
	cart.UpdatedAt = order.CreatedAt

	ok, err := s.carts.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		s.compensate(ctx, order, err)
		return nil, fmt.Errorf("reset cart: %w", err)
	}
	if !ok {
		s.compensate(ctx, order, nil)
		return nil, apperrors.Conflict("cart was modified during checkout, please retry")
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.Int64("total", order.Total),
		slog.Int("lines", len(order.Items)),
	)

	return order, nil
}

// ListOrders returns the user's orders newest-first along with the total count.
func (s *OrderService) ListOrders(ctx context.Context, userID string, page, perPage int) ([]domain.Order, int, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("user id is required")
	}

	orders, total, err := s.orders.ListByUser(ctx, repository.ListOrdersFilter{
		UserID:  userID,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// GetOrder retrieves one of the user's orders. An order belonging to another
// user yields the same not-found error as a nonexistent one.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	order, err := s.orders.GetByIDAndUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// compensate deletes an order whose cart reset did not commit, so no observer
// ever sees the order alongside the unreset cart.
func (s *OrderService) compensate(ctx context.Context, order *domain.Order, cause error) {
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		// The order is now visible without its cart reset. This needs
		// operator attention; log everything we know.
		s.logger.ErrorContext(ctx, "checkout compensation failed, order left without cart reset",
			slog.String("order_id", order.ID),
			slog.String("user_id", order.UserID),
			slog.String("delete_error", err.Error()),
			slog.Any("cause", cause),
		)
		return
	}

	s.logger.WarnContext(ctx, "checkout rolled back, order deleted",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
	)
}

// orderFromCart deep-copies the cart's lines and total into a new pending order.
func orderFromCart(cart *domain.Cart) *domain.Order {
	orderID := uuid.New().String()
	items := make([]domain.OrderLine, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = domain.OrderLine{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
	}

	return &domain.Order{
		ID:        orderID,
		UserID:    cart.UserID,
		Items:     items,
		Total:     cart.CalculateTotal(),
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
