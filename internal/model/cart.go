package model

// CartLine is one distinct product in a POS cart.
type CartLine struct {
	ProductID   int64       `json:"product_id"`
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	ProductType ProductType `json:"product_type"`
	Stock       int         `json:"stock"`
	ReservedQty int         `json:"reserved_qty"`
	Quantity    int         `json:"quantity"`
}

// Available returns the quantity ceiling for this line.
func (l *CartLine) Available() int {
	return available(l.Stock, l.ReservedQty)
}

// Subtotal returns price times quantity.
func (l *CartLine) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// NewCartLine creates a line with quantity 1 from a catalog product.
func NewCartLine(p CatalogProduct) CartLine {
	return CartLine{
		ProductID:   p.ID,
		Name:        p.Name,
		Price:       p.Price,
		ProductType: p.ProductType,
		Stock:       p.Stock,
		ReservedQty: p.ReservedQty,
		Quantity:    1,
	}
}
