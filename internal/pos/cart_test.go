package pos

import (
	"math/rand"
	"testing"

	"fz-pos-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddFirstProduct(t *testing.T) {
	c := NewCart()

	require.NoError(t, c.Add(model.CatalogProduct{ID: 1, Name: "Tee", Stock: 5, Price: 1000}))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, 1000.0, c.Total())
}

func TestCart_SecondAddHitsCeiling(t *testing.T) {
	c := NewCart()
	p := product(7, "FZ-7", 3, 2, 500)

	require.NoError(t, c.Add(p))
	line, _ := c.Line(7)
	assert.Equal(t, 1, line.Quantity)

	err := c.Add(p)
	require.Error(t, err)
	assert.True(t, IsCartError(err, CodeQuantityCeiling))

	line, _ = c.Line(7)
	assert.Equal(t, 1, line.Quantity)
}

func TestCart_AddUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		product model.CatalogProduct
		code    CartErrorCode
	}{
		{"ready stock exhausted", product(1, "A", 2, 2, 10), CodeOutOfStock},
		{"over-reserved", product(2, "B", 1, 3, 10), CodeOutOfStock},
		{"pre-order quota full", model.CatalogProduct{ID: 3, Name: "PO", ProductType: model.ProductPreOrder, Stock: 4, ReservedQty: 4}, CodeQuotaFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCart()
			err := c.Add(tt.product)
			assert.True(t, IsCartError(err, tt.code), "got %v", err)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.Add(product(1, "A", 3, 0, 10)))

	require.NoError(t, c.UpdateQuantity(1, 2))
	line, _ := c.Line(1)
	assert.Equal(t, 3, line.Quantity)

	err := c.UpdateQuantity(1, 1)
	var ce *CartError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeQuantityCeiling, ce.Code)
	assert.Equal(t, 3, ce.Available)
	assert.Equal(t, "only 3 of Product A available", ce.Error())

	line, _ = c.Line(1)
	assert.Equal(t, 3, line.Quantity)
}

func TestCart_DecrementBelowOneIsNoop(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.Add(product(1, "A", 3, 0, 10)))

	require.NoError(t, c.UpdateQuantity(1, -1))
	require.NoError(t, c.UpdateQuantity(1, -5))

	line, ok := c.Line(1)
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
}

func TestCart_UpdateMissingLine(t *testing.T) {
	c := NewCart()
	assert.True(t, IsCartError(c.UpdateQuantity(42, 1), CodeNotInCart))
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.Add(product(1, "A", 3, 0, 10)))
	require.NoError(t, c.Add(product(2, "B", 3, 0, 20)))
	require.NoError(t, c.Add(product(3, "C", 3, 0, 30)))

	assert.True(t, c.Remove(2))
	assert.False(t, c.Remove(2))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, int64(3), lines[1].ProductID)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Zero(t, c.Total())
}

func TestCart_TotalIsStable(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.Add(product(1, "A", 5, 0, 1500)))
	require.NoError(t, c.Add(product(2, "B", 5, 0, 250)))
	require.NoError(t, c.UpdateQuantity(1, 2))

	first := c.Total()
	assert.Equal(t, first, c.Total())
	assert.Equal(t, 3*1500.0+250.0, first)
}

func TestCart_QuantityNeverExceedsAvailable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 50; round++ {
		avail := rng.Intn(6)
		p := product(1, "A", avail+rng.Intn(3), 0, 10)
		p.ReservedQty = p.Stock - avail
		c := NewCart()

		for step := 0; step < 40; step++ {
			if rng.Intn(2) == 0 {
				_ = c.Add(p)
			} else {
				_ = c.UpdateQuantity(p.ID, rng.Intn(7)-3)
			}
			if line, ok := c.Line(p.ID); ok {
				require.LessOrEqual(t, line.Quantity, avail)
				require.GreaterOrEqual(t, line.Quantity, 1)
			}
		}
	}
}

func TestCart_LinesIsACopy(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.Add(product(1, "A", 5, 0, 10)))

	lines := c.Lines()
	lines[0].Quantity = 99

	line, _ := c.Line(1)
	assert.Equal(t, 1, line.Quantity)
}
