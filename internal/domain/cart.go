package domain

import "time"

// Cart is an ordered list of product references with quantities.
// Carts are created empty and never deleted; checkout leaves the
// unpurchased items behind.
type Cart struct {
	ID        string     `bson:"_id" json:"id"`
	Items     []CartItem `bson:"products" json:"products"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID string `bson:"product" json:"product"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// CartView is a cart with every line item resolved against the catalog.
// Product is nil when the referenced product no longer exists.
type CartView struct {
	ID        string         `json:"id"`
	Items     []CartViewItem `json:"products"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CartViewItem struct {
	ProductID string   `json:"product_id"`
	Product   *Product `json:"product"`
	Quantity  int      `json:"quantity"`
}

// Clone returns a deep copy so callers can mutate items freely.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}
