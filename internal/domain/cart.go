package domain

import "time"

// Cart represents a user's shopping cart. Exactly one cart exists per user;
// it is created lazily on first access and cleared rather than deleted.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartLine `json:"items"`
	Total     int64      `json:"total"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLine represents a single line in the cart. Name and unit price are a
// snapshot taken when the product was first added; merging quantities does
// not refresh them.
type CartLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// LineTotal returns the total price for this line (in cents).
func (l *CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// CalculateTotal sums all line totals (in cents). Returns 0 for an empty cart.
func (c *Cart) CalculateTotal() int64 {
	var total int64
	for i := range c.Items {
		total += c.Items[i].LineTotal()
	}
	return total
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int {
	var count int
	for i := range c.Items {
		count += c.Items[i].Quantity
	}
	return count
}

// FindLineIndex returns the index of the cart line matching the given product ID.
// Returns -1 if not found.
func (c *Cart) FindLineIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Clear empties the cart's items and resets the total to zero.
func (c *Cart) Clear() {
	c.Items = []CartLine{}
	c.Total = 0
}
