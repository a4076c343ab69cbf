// Package lineitem holds the pure cart mutations. Every operation returns
// a fresh slice and leaves its input untouched, so callers decide when the
// result is persisted.
package lineitem

import (
	"fmt"
	"math"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

// Candidate is one entry of a replace-all request. Quantity is a pointer
// so a missing field can be told apart from zero.
type Candidate struct {
	ProductID string   `json:"product"`
	Quantity  *float64 `json:"quantity"`
}

// LookupFunc reports whether a product exists in the catalog.
type LookupFunc func(productID string) (bool, error)

// ParseQuantity accepts only positive integers that fit in an int32.
func ParseQuantity(q float64) (int, error) {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 || q != math.Trunc(q) || q > math.MaxInt32 {
		return 0, fmt.Errorf("%w: got %v", domain.ErrInvalidQuantity, q)
	}
	return int(q), nil
}

// AddOrIncrement bumps the quantity of product by one, or appends it with
// quantity one when the cart does not reference it yet.
func AddOrIncrement(items []domain.CartItem, product domain.Product, identity string) ([]domain.CartItem, error) {
	if product.Owner == identity {
		return nil, fmt.Errorf("%w: product=%s", domain.ErrSelfPurchase, product.ID)
	}

	out := clone(items)
	for i := range out {
		if out[i].ProductID == product.ID {
			out[i].Quantity++
			return out, nil
		}
	}
	return append(out, domain.CartItem{ProductID: product.ID, Quantity: 1}), nil
}

// Remove drops every entry that references productID.
func Remove(items []domain.CartItem, productID string) ([]domain.CartItem, error) {
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	if len(out) == len(items) {
		return nil, fmt.Errorf("%w: product=%s", domain.ErrItemNotFound, productID)
	}
	return out, nil
}

// SetQuantity overwrites the quantity of the first entry for productID.
func SetQuantity(items []domain.CartItem, productID string, quantity float64) ([]domain.CartItem, error) {
	q, err := ParseQuantity(quantity)
	if err != nil {
		return nil, err
	}

	out := clone(items)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = q
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: product=%s", domain.ErrItemNotFound, productID)
}

// ReplaceAll validates every candidate and, when all pass, returns them
// verbatim as the new item list. Duplicates are kept as given. The first
// invalid entry fails the whole call and names its index.
func ReplaceAll(candidates []Candidate, lookup LookupFunc) ([]domain.CartItem, error) {
	out := make([]domain.CartItem, 0, len(candidates))
	for i, c := range candidates {
		if c.ProductID == "" || c.Quantity == nil {
			return nil, fmt.Errorf("%w: products[%d] needs product and quantity", domain.ErrValidation, i)
		}

		q, err := ParseQuantity(*c.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: products[%d] (%s): %w", domain.ErrValidation, i, c.ProductID, err)
		}

		exists, err := lookup(c.ProductID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: products[%d]: product %s does not exist", domain.ErrValidation, i, c.ProductID)
		}

		out = append(out, domain.CartItem{ProductID: c.ProductID, Quantity: q})
	}
	return out, nil
}

// Clear empties the cart. Clearing an empty cart is a no-op.
func Clear([]domain.CartItem) []domain.CartItem {
	return []domain.CartItem{}
}

func clone(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
