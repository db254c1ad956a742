package catalog

import "context"

// Product is a priced snapshot of a catalog entry at lookup time.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
}

// Catalog resolves product IDs to priced snapshots. Lookups are read-only;
// callers must not cache results so that every cart addition reflects the
// price at the moment of addition.
type Catalog interface {
	// Lookup resolves a product ID. Returns a not-found error for unknown IDs.
	Lookup(ctx context.Context, productID string) (*Product, error)
}
