package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticket is the immutable receipt of a purchase. Prices are captured at
// purchase time and never follow later catalog changes.
type Ticket struct {
	Code             string          `json:"code"`
	Products         []TicketItem    `json:"products"`
	Amount           decimal.Decimal `json:"amount"`
	Purchaser        string          `json:"purchaser"`
	PurchaseDatetime time.Time       `json:"purchase_datetime"`
}

type TicketItem struct {
	ProductID string          `json:"product"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity.
func (i TicketItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TicketCreatedEvent is the payload published when a ticket is stored.
type TicketCreatedEvent struct {
	Code             string          `json:"code"`
	Purchaser        string          `json:"purchaser"`
	Products         []TicketItem    `json:"products"`
	Amount           decimal.Decimal `json:"amount"`
	PurchaseDatetime time.Time       `json:"purchase_datetime"`
}

const EventTypeTicketCreated = "ticket.created"

func NewTicketCreatedEvent(t *Ticket) TicketCreatedEvent {
	return TicketCreatedEvent{
		Code:             t.Code,
		Purchaser:        t.Purchaser,
		Products:         t.Products,
		Amount:           t.Amount,
		PurchaseDatetime: t.PurchaseDatetime,
	}
}
