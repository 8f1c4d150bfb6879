package model

import "errors"

// Error taxonomy of the counter. Callers wrap these with detail and test with errors.Is.
var (
	ErrNotFound         = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOutOfStock       = errors.New("product out of stock")
	ErrExceedsAvailable = errors.New("quantity exceeds available stock")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrValidation       = errors.New("invalid input")
	ErrNetwork          = errors.New("store unreachable")
	ErrStore            = errors.New("store rejected request")
)

// Kind is a stable code for an error of the taxonomy.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindOutOfStock       Kind = "out_of_stock"
	KindExceedsAvailable Kind = "exceeds_available"
	KindEmptyCart        Kind = "empty_cart"
	KindValidation       Kind = "validation_error"
	KindNetwork          Kind = "network_error"
	KindStore            Kind = "store_error"
	KindInternal         Kind = "internal_error"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrOrderNotFound, KindNotFound},
	{ErrOutOfStock, KindOutOfStock},
	{ErrExceedsAvailable, KindExceedsAvailable},
	{ErrEmptyCart, KindEmptyCart},
	{ErrValidation, KindValidation},
	{ErrNetwork, KindNetwork},
	{ErrStore, KindStore},
}

// KindOf maps err to its taxonomy code. Unknown errors are internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
