// Package checkout reduces a cart's items into a purchase outcome.
package checkout

import (
	"context"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

// Step is the verdict for a single line item. Price is only meaningful
// when Bought is true.
type Step struct {
	Bought bool
	Price  decimal.Decimal
}

// StepFunc decides one line item. It owns every side effect (stock
// debits); Fold itself only accumulates.
type StepFunc func(ctx context.Context, item domain.CartItem) (Step, error)

type Outcome struct {
	Residual  []domain.CartItem
	Purchased []domain.TicketItem
	Amount    decimal.Decimal
}

// Fold walks items in order. Bought items are removed from the residual
// by product id and appended to Purchased; skipped items stay behind.
// An error from step stops the walk and is returned as is. Fold never
// stops on its own between items: once a step has debited stock the
// walk must reach the end so the outcome can be recorded.
func Fold(ctx context.Context, items []domain.CartItem, step StepFunc) (Outcome, error) {
	out := Outcome{
		Residual:  make([]domain.CartItem, len(items)),
		Purchased: []domain.TicketItem{},
		Amount:    decimal.Zero,
	}
	copy(out.Residual, items)

	for _, item := range items {
		s, err := step(ctx, item)
		if err != nil {
			return Outcome{}, err
		}
		if !s.Bought {
			continue
		}

		out.Residual = without(out.Residual, item.ProductID)
		bought := domain.TicketItem{ProductID: item.ProductID, Price: s.Price, Quantity: item.Quantity}
		out.Purchased = append(out.Purchased, bought)
		out.Amount = out.Amount.Add(bought.Subtotal())
	}

	return out, nil
}

func without(items []domain.CartItem, productID string) []domain.CartItem {
	kept := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	return kept
}
