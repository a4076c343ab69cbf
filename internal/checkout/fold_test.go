package checkout

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stockStep buys an item when the in-memory stock covers it.
func stockStep(stock map[string]int, prices map[string]string) StepFunc {
	return func(_ context.Context, item domain.CartItem) (Step, error) {
		s, ok := stock[item.ProductID]
		if !ok {
			return Step{}, domain.ErrProductNotFound
		}
		if item.Quantity > s {
			return Step{}, nil
		}
		stock[item.ProductID] = s - item.Quantity
		return Step{Bought: true, Price: decimal.RequireFromString(prices[item.ProductID])}, nil
	}
}

func TestFold_PartialPurchase(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 5},
		{ProductID: "c", Quantity: 1},
	}
	stock := map[string]int{"a": 3, "b": 4, "c": 1}
	prices := map[string]string{"a": "10", "b": "1.5", "c": "0.25"}

	out, err := Fold(context.Background(), items, stockStep(stock, prices))
	require.NoError(t, err)

	assert.Equal(t, []domain.CartItem{{ProductID: "b", Quantity: 5}}, out.Residual)
	require.Len(t, out.Purchased, 2)
	assert.Equal(t, "a", out.Purchased[0].ProductID)
	assert.Equal(t, "c", out.Purchased[1].ProductID)
	assert.True(t, decimal.RequireFromString("20.25").Equal(out.Amount), "amount was %s", out.Amount)
	assert.Equal(t, map[string]int{"a": 1, "b": 4, "c": 0}, stock)
	assert.Len(t, items, 3, "input must not be modified")
}

func TestFold_NothingBought(t *testing.T) {
	items := []domain.CartItem{{ProductID: "a", Quantity: 9}}

	out, err := Fold(context.Background(), items, stockStep(map[string]int{"a": 1}, nil))
	require.NoError(t, err)

	assert.Equal(t, items, out.Residual)
	assert.Empty(t, out.Purchased)
	assert.True(t, out.Amount.IsZero())
}

func TestFold_EmptyCart(t *testing.T) {
	out, err := Fold(context.Background(), nil, stockStep(nil, nil))
	require.NoError(t, err)

	assert.Empty(t, out.Residual)
	assert.NotNil(t, out.Purchased)
	assert.True(t, out.Amount.IsZero())
}

func TestFold_StepErrorAborts(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: "a", Quantity: 1},
		{ProductID: "gone", Quantity: 1},
		{ProductID: "c", Quantity: 1},
	}
	stock := map[string]int{"a": 1, "c": 1}

	_, err := Fold(context.Background(), items, stockStep(stock, map[string]string{"a": "1", "c": "1"}))

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 0, stock["a"], "earlier debits are not rolled back")
	assert.Equal(t, 1, stock["c"], "later items are never visited")
}

func TestFold_DuplicateEntriesLeaveResidualByProduct(t *testing.T) {
	items := []domain.CartItem{
		{ProductID: "a", Quantity: 1},
		{ProductID: "a", Quantity: 5},
	}

	out, err := Fold(context.Background(), items, stockStep(map[string]int{"a": 2}, map[string]string{"a": "3"}))
	require.NoError(t, err)

	require.Len(t, out.Purchased, 1)
	assert.Empty(t, out.Residual)
	assert.True(t, decimal.NewFromInt(3).Equal(out.Amount))
}

func TestFold_CancellationMidWalkDoesNotAbandonItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := []domain.CartItem{
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 1},
	}
	var seen []string
	out, err := Fold(ctx, items, func(_ context.Context, item domain.CartItem) (Step, error) {
		seen = append(seen, item.ProductID)
		cancel()
		return Step{Bought: true, Price: decimal.NewFromInt(1)}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Len(t, out.Purchased, 2)
	assert.Empty(t, out.Residual)
}
