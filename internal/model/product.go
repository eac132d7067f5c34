package model

// ProductType distinguishes ready-stock from pre-order products.
type ProductType string

const (
	ProductReady    ProductType = "ready"
	ProductPreOrder ProductType = "po"
)

// CatalogProduct is a product as returned by the admin catalog search.
type CatalogProduct struct {
	ID          int64       `json:"id"`
	SKU         string      `json:"sku"`
	QRCode      string      `json:"qr_code"`
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	ProductType ProductType `json:"product_type"`
	Stock       int         `json:"stock"`
	ReservedQty int         `json:"reserved_qty"`
}

// Available returns stock minus reserved quantity, never below zero.
// For pre-order products stock carries the configured quota.
func (p *CatalogProduct) Available() int {
	return available(p.Stock, p.ReservedQty)
}

// IsPreOrder reports whether the product is sold against a pre-order quota.
func (p *CatalogProduct) IsPreOrder() bool {
	return p.ProductType == ProductPreOrder
}

func available(stock, reserved int) int {
	if n := stock - reserved; n > 0 {
		return n
	}
	return 0
}
