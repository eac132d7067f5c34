package pos

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchInFlight is returned when a scan batch is already being resolved.
	ErrBatchInFlight = errors.New("scan batch already in progress")
	// ErrCheckInFlight is returned when a payment status check is already running.
	ErrCheckInFlight = errors.New("payment check already in progress")
	// ErrNoPendingPayment is returned when no order is waiting for payment.
	ErrNoPendingPayment = errors.New("no payment is pending")
	// ErrEmptyCart is returned on checkout of an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrProductNotListed is returned when a search-click names a product
	// that is not in the current search results.
	ErrProductNotListed = errors.New("product is not in the current search results")
)

// CartErrorCode classifies a rejected cart mutation.
type CartErrorCode int

const (
	CodeOutOfStock CartErrorCode = iota
	CodeQuotaFull
	CodeQuantityCeiling
	CodeNotInCart
)

func (c CartErrorCode) String() string {
	switch c {
	case CodeOutOfStock:
		return "OUT_OF_STOCK"
	case CodeQuotaFull:
		return "QUOTA_FULL"
	case CodeQuantityCeiling:
		return "QUANTITY_CEILING"
	case CodeNotInCart:
		return "NOT_IN_CART"
	default:
		return "UNKNOWN"
	}
}

// CartError is a rejected cart mutation. The cart is unchanged.
type CartError struct {
	Code      CartErrorCode
	ProductID int64
	Name      string
	Available int
}

func (e *CartError) Error() string {
	switch e.Code {
	case CodeOutOfStock:
		return fmt.Sprintf("%s is out of stock", e.Name)
	case CodeQuotaFull:
		return fmt.Sprintf("pre-order quota for %s is full", e.Name)
	case CodeQuantityCeiling:
		return fmt.Sprintf("only %d of %s available", e.Available, e.Name)
	case CodeNotInCart:
		return fmt.Sprintf("product %d is not in the cart", e.ProductID)
	default:
		return "cart update rejected"
	}
}

// IsCartError reports whether err is a *CartError with the given code.
func IsCartError(err error, code CartErrorCode) bool {
	var ce *CartError
	return errors.As(err, &ce) && ce.Code == code
}
