package model

import "strings"

// OrderItem is one line of an order creation request.
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest is the body sent to POST /admin/pos/orders.
type OrderRequest struct {
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
	PaymentMethod string      `json:"payment_method"`
	POPaymentType string      `json:"po_payment_type"`
	Notes         string      `json:"notes"`
}

// Order is the subset of an order the POS cares about.
type Order struct {
	ID            int64  `json:"id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentURL    string `json:"payment_url,omitempty"`
}

// NeedsConfirmation reports whether the order waits for an external payment.
func (o *Order) NeedsConfirmation() bool {
	return o.PaymentURL != ""
}

// IsSettled reports whether the order reached a paid outcome.
func (o *Order) IsSettled() bool {
	switch strings.ToLower(o.PaymentStatus) {
	case "paid", "settlement", "success", "completed":
		return true
	}
	switch strings.ToLower(o.Status) {
	case "paid", "completed":
		return true
	}
	return false
}

// IsFailed reports whether the payment reached a terminal failed outcome.
func (o *Order) IsFailed() bool {
	switch strings.ToLower(o.PaymentStatus) {
	case "failed", "expired", "cancelled", "canceled", "deny":
		return true
	}
	return false
}
