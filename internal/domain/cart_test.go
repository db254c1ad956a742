package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTotal(t *testing.T) {
	tests := []struct {
		name     string
		items    []CartLine
		expected int64
	}{
		{
			name:     "empty cart",
			items:    []CartLine{},
			expected: 0,
		},
		{
			name: "single line",
			items: []CartLine{
				{ProductID: "p1", Quantity: 2, UnitPrice: 1000},
			},
			expected: 2000,
		},
		{
			name: "multiple lines",
			items: []CartLine{
				{ProductID: "p1", Quantity: 3, UnitPrice: 1000},
				{ProductID: "p2", Quantity: 1, UnitPrice: 500},
			},
			expected: 3500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &Cart{Items: tt.items}
			assert.Equal(t, tt.expected, cart.CalculateTotal())
		})
	}
}

func TestCalculateTotal_Idempotent(t *testing.T) {
	cart := &Cart{Items: []CartLine{
		{ProductID: "p1", Quantity: 7, UnitPrice: 333},
		{ProductID: "p2", Quantity: 13, UnitPrice: 199},
		{ProductID: "p3", Quantity: 1, UnitPrice: 99999},
	}}

	first := cart.CalculateTotal()
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, cart.CalculateTotal())
	}
}

func TestFindLineIndex(t *testing.T) {
	cart := &Cart{Items: []CartLine{
		{ProductID: "p1"},
		{ProductID: "p2"},
	}}

	assert.Equal(t, 0, cart.FindLineIndex("p1"))
	assert.Equal(t, 1, cart.FindLineIndex("p2"))
	assert.Equal(t, -1, cart.FindLineIndex("p3"))
}

func TestClear(t *testing.T) {
	cart := &Cart{
		Items: []CartLine{{ProductID: "p1", Quantity: 2, UnitPrice: 1000}},
		Total: 2000,
	}

	cart.Clear()

	assert.Empty(t, cart.Items)
	assert.NotNil(t, cart.Items)
	assert.Equal(t, int64(0), cart.Total)
}

func TestItemCount(t *testing.T) {
	cart := &Cart{Items: []CartLine{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 1},
	}}

	assert.Equal(t, 4, cart.ItemCount())
}

func TestOrderLine_LineTotal(t *testing.T) {
	line := OrderLine{Quantity: 3, UnitPrice: 1000}
	assert.Equal(t, int64(3000), line.LineTotal())
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range ValidStatuses() {
		assert.True(t, IsValidStatus(s))
	}
	assert.False(t, IsValidStatus("refunded"))
	assert.False(t, IsValidStatus(""))
}
