package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solumart/cartcheckout/internal/catalog"
	"github.com/solumart/cartcheckout/pkg/database"
	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

// Catalog implements catalog.Catalog against a local products table.
type Catalog struct {
	pool database.DBTX
}

// NewCatalog creates a new PostgreSQL-backed catalog.
func NewCatalog(pool database.DBTX) *Catalog {
	return &Catalog{pool: pool}
}

// Lookup resolves a product ID from the products table.
func (c *Catalog) Lookup(ctx context.Context, productID string) (*catalog.Product, error) {
	query := `SELECT id, name, unit_price FROM products WHERE id = $1`

	var p catalog.Product
	err := c.pool.QueryRow(ctx, query, productID).Scan(&p.ID, &p.Name, &p.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", productID)
		}
		return nil, fmt.Errorf("query product: %w", err)
	}

	return &p, nil
}
