package repository

import (
	"context"

	"github.com/solumart/cartcheckout/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its user ID.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists a cart to the store, overwriting any existing cart for
	// the user and bumping its version.
	Save(ctx context.Context, cart *domain.Cart) error

	// SaveIfVersion persists a cart only if the stored version still equals
	// expectedVersion. Returns false (and no error) when the version has
	// advanced, meaning another writer got there first. An expectedVersion
	// of 0 allows creating a cart that does not exist yet.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)
}

// ListOrdersFilter defines filter criteria for listing a user's orders.
type ListOrdersFilter struct {
	UserID  string
	Page    int
	PerPage int
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items into the store atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByIDAndUser retrieves an order by ID, scoped to the given user.
	// An order belonging to another user is indistinguishable from a
	// nonexistent one.
	GetByIDAndUser(ctx context.Context, id, userID string) (*domain.Order, error)

	// ListByUser returns the user's orders sorted by creation time
	// descending, along with the total count.
	ListByUser(ctx context.Context, filter ListOrdersFilter) ([]domain.Order, int, error)

	// Delete removes an order and its items. Used only to compensate a
	// checkout whose cart reset lost the version race.
	Delete(ctx context.Context, id string) error
}
