package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry. Owner holds the identity of the seller;
// an identity may not add its own products to a cart.
type Product struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Owner string          `json:"owner"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}
