package domain

import (
	"context"
	"errors"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("product not found in cart")
	ErrTicketNotFound  = errors.New("ticket not found")

	ErrValidation      = errors.New("validation failed")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	ErrSelfPurchase = errors.New("you cannot buy your own products")
	ErrForbidden    = errors.New("forbidden")

	ErrStockConflict   = errors.New("stock changed concurrently")
	ErrDuplicateTicket = errors.New("ticket code already exists")
	ErrLockTimeout     = errors.New("cart is busy with another operation")

	ErrUnavailable = errors.New("dependency unavailable")
)

// Kind is the coarse category an error belongs to. Transports map kinds
// to their own status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindForbidden
	KindConflict
	KindUnavailable
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Classify maps an error chain to its Kind. Anything unrecognised is
// internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrTicketNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidQuantity):
		return KindValidation
	case errors.Is(err, ErrSelfPurchase), errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrStockConflict),
		errors.Is(err, ErrDuplicateTicket),
		errors.Is(err, ErrLockTimeout):
		return KindConflict
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}
