package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestPostgres(t *testing.T) (*PostgresTicketRepository, func()) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	db, err := ConnectPostgres(ctx, creds)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, creds))

	repo := NewPostgresTicketRepository(db)
	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestPostgresTicket_RoundTripAndOutbox(t *testing.T) {
	repo, cleanup := setupTestPostgres(t)
	defer cleanup()

	ctx := context.Background()
	ticket := sampleTicket()

	require.NoError(t, repo.CreateTicket(ctx, ticket))

	got, err := repo.GetTicket(ctx, ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, ticket.Purchaser, got.Purchaser)
	assert.True(t, ticket.Amount.Equal(got.Amount))
	assert.True(t, ticket.PurchaseDatetime.Equal(got.PurchaseDatetime))
	require.Len(t, got.Products, 1)
	assert.True(t, decimal.RequireFromString("9.99").Equal(got.Products[0].Price))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ticket.Code, events[0].AggregateID)
	assert.Equal(t, domain.EventTypeTicketCreated, events[0].EventType)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPostgresTicket_DuplicateCode(t *testing.T) {
	repo, cleanup := setupTestPostgres(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateTicket(ctx, sampleTicket()))

	err := repo.CreateTicket(ctx, sampleTicket())
	assert.ErrorIs(t, err, domain.ErrDuplicateTicket)
}

func TestPostgresTicket_ContextCancellation(t *testing.T) {
	repo, cleanup := setupTestPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetTicket(ctx, "any")
	assert.Error(t, err)
}
