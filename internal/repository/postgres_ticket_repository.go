package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresTicketRepository stores tickets and, in the same transaction,
// the ticket.created outbox row that the publisher later ships to Kafka.
type PostgresTicketRepository struct {
	db *sql.DB
}

func NewPostgresTicketRepository(db *sql.DB) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

func (r *PostgresTicketRepository) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.Code == "" {
		return fmt.Errorf("%w: ticket code is required", domain.ErrValidation)
	}

	products, err := json.Marshal(ticket.Products)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket products: %w", err)
	}
	event, err := json.Marshal(domain.NewTicketCreatedEvent(ticket))
	if err != nil {
		return fmt.Errorf("failed to marshal ticket event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tickets (code, purchaser, amount, products, purchase_datetime) VALUES ($1, $2, $3, $4, $5)`,
		ticket.Code, ticket.Purchaser, ticket.Amount.String(), products, ticket.PurchaseDatetime)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: code=%s", domain.ErrDuplicateTicket, ticket.Code)
		}
		return fmt.Errorf("failed to insert ticket: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ticket_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		ticket.Code, domain.EventTypeTicketCreated, event)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket: %w", err)
	}
	return nil
}

func (r *PostgresTicketRepository) GetTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	var (
		t        domain.Ticket
		products []byte
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT code, purchaser, amount, products, purchase_datetime FROM tickets WHERE code = $1`, code).
		Scan(&t.Code, &t.Purchaser, &t.Amount, &products, &t.PurchaseDatetime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: code=%s", domain.ErrTicketNotFound, code)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	if err := json.Unmarshal(products, &t.Products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket products: %w", err)
	}
	return &t, nil
}

func (r *PostgresTicketRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at FROM ticket_outbox
		 WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	return events, nil
}

func (r *PostgresTicketRepository) MarkEventAsProcessed(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ticket_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("outbox event %d not found", id)
	}
	return nil
}

func (r *PostgresTicketRepository) Close() error {
	return r.db.Close()
}
