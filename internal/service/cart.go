package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solumart/cartcheckout/internal/catalog"
	"github.com/solumart/cartcheckout/internal/domain"
	"github.com/solumart/cartcheckout/internal/event"
	"github.com/solumart/cartcheckout/internal/repository"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerLine is the maximum quantity allowed for a single cart line.
	MaxQuantityPerLine = 100
	// MaxLinesPerCart is the maximum number of distinct lines allowed in a cart.
	MaxLinesPerCart = 50
)

// CartService implements the business logic for cart operations.
type CartService struct {
	repo     repository.CartRepository
	catalog  catalog.Catalog
	producer *event.Producer
	locks    *UserLocks
	logger   *slog.Logger
}

// NewCartService creates a new cart service. The lock set must be shared with
// the order service so checkout serializes against cart mutations.
func NewCartService(repo repository.CartRepository, cat catalog.Catalog, producer *event.Producer, locks *UserLocks, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  cat,
		producer: producer,
		locks:    locks,
		logger:   logger,
	}
}

// GetCart retrieves the cart for a user, creating and persisting an empty one
// on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.repo.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	// Re-check under the lock; another request may have created it.
	cart, err = s.repo.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart = newEmptyCart(userID)
	ok, err := s.repo.SaveIfVersion(ctx, cart, 0)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if !ok {
		// Another process created the cart between our reads.
		cart, err = s.repo.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get cart after create race: %w", err)
		}
		return cart, nil
	}

	s.logger.InfoContext(ctx, "cart created",
		slog.String("user_id", userID),
		slog.String("cart_id", cart.ID),
	)

	return cart, nil
}

// AddItem adds a product to the user's cart. If a line with the same product
// already exists, its quantity is incremented; the stored name and unit price
// snapshot is kept from the first addition and is not refreshed.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if quantity > MaxQuantityPerLine {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerLine))
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	expectedVersion := cart.Version

	if idx := cart.FindLineIndex(productID); idx >= 0 {
		newQty := cart.Items[idx].Quantity + quantity
		if newQty > MaxQuantityPerLine {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerLine))
		}
		cart.Items[idx].Quantity = newQty
	} else {
		if len(cart.Items) >= MaxLinesPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d lines", MaxLinesPerCart))
		}

		// Resolve the product before touching cart state so an unknown id
		// leaves the cart untouched.
		product, err := s.catalog.Lookup(ctx, productID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("product", productID)
			}
			return nil, fmt.Errorf("lookup product: %w", err)
		}

		cart.Items = append(cart.Items, domain.CartLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.UnitPrice,
		})
	}

	cart.Total = cart.CalculateTotal()
	cart.UpdatedAt = time.Now().UTC()

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem removes the line for the given product from the cart. Fails with
// a not-found error when the cart is empty or the product is not in it.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart item", productID)
		}
		return nil, fmt.Errorf("get cart for remove: %w", err)
	}

	expectedVersion := cart.Version

	idx := cart.FindLineIndex(productID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	cart.Total = cart.CalculateTotal()
	cart.UpdatedAt = time.Now().UTC()

	ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart was modified concurrently, please retry")
	}

	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)

	return cart, nil
}

// ClearCart empties the user's cart and persists it. Idempotent: clearing an
// already-empty (or never-created) cart succeeds and yields the empty cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Clear()
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return cart, nil
}

// getOrCreateCart retrieves the cart for a user, building an empty in-memory
// one (version 0, not yet persisted) if none exists. Callers persist it with
// their own write.
func (s *CartService) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// newEmptyCart creates a new empty cart for the given user.
func newEmptyCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     []domain.CartLine{},
		Total:     0,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
