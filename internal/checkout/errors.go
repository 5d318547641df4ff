package checkout

import "errors"

var (
	ErrUnauthenticated       = errors.New("authentication required")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrAddressNotFound       = errors.New("shipping address not found")
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrPriceMismatch         = errors.New("price mismatch")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)
