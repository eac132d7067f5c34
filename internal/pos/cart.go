package pos

import (
	"sync"

	"fz-pos-api/internal/model"
)

// Cart is the authoritative in-memory cart of one POS screen. Every
// mutation keeps each line's quantity between 1 and its available stock.
type Cart struct {
	mu    sync.RWMutex
	lines []model.CartLine
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add puts one unit of p into the cart. A product already in the cart is
// incremented by one under the same ceiling as UpdateQuantity.
func (c *Cart) Add(p model.CatalogProduct) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(p.ID); i >= 0 {
		return c.updateLocked(i, 1)
	}

	if p.Available() <= 0 {
		code := CodeOutOfStock
		if p.IsPreOrder() {
			code = CodeQuotaFull
		}
		return &CartError{Code: code, ProductID: p.ID, Name: p.Name}
	}

	c.lines = append(c.lines, model.NewCartLine(p))
	return nil
}

// UpdateQuantity changes a line's quantity by delta. Results below 1 are
// ignored; results above the available quantity are rejected.
func (c *Cart) UpdateQuantity(productID int64, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(productID)
	if i < 0 {
		return &CartError{Code: CodeNotInCart, ProductID: productID}
	}
	return c.updateLocked(i, delta)
}

func (c *Cart) updateLocked(i, delta int) error {
	line := &c.lines[i]
	newQty := line.Quantity + delta
	if newQty < 1 {
		return nil
	}
	if avail := line.Available(); newQty > avail {
		return &CartError{
			Code:      CodeQuantityCeiling,
			ProductID: line.ProductID,
			Name:      line.Name,
			Available: avail,
		}
	}
	line.Quantity = newQty
	return nil
}

// Remove deletes a line. It reports whether the line existed.
func (c *Cart) Remove(productID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Total returns the sum of price times quantity over all lines.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	for i := range c.lines {
		total += c.lines[i].Subtotal()
	}
	return total
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []model.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID.
func (c *Cart) Line(productID int64) (model.CartLine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(productID); i >= 0 {
		return c.lines[i], true
	}
	return model.CartLine{}, false
}

// Len returns the number of distinct products in the cart.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

func (c *Cart) indexLocked(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
