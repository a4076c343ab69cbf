package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/circuitbreaker"
	"github.com/fjod/go_cart/cart-checkout/internal/config"
	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	h "github.com/fjod/go_cart/cart-checkout/internal/http"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/logger"
	"github.com/fjod/go_cart/cart-checkout/internal/metrics"
	"github.com/fjod/go_cart/cart-checkout/internal/publisher"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	s "github.com/fjod/go_cart/cart-checkout/internal/service"
	"github.com/fjod/go_cart/cart-checkout/internal/store"
	"github.com/fjod/go_cart/cart-checkout/internal/ticketcode"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "cart-checkout"

type stores struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	tickets  repository.TicketRepository
	outbox   repository.OutboxRepository
	closers  []func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it the cache is disabled and carts are
	// locked in-process only, which is correct for a single replica.
	var (
		cartCache c.CartCache = c.NopCache{}
		locker    lock.Locker = lock.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

		cartCache = c.NewRedisCache(redisClient, cfg.CacheTTL)
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait, log)
	}

	m := metrics.NewWithRuntime()
	products := circuitbreaker.NewProductRepository(st.products, circuitbreaker.DefaultSettings("catalog"), log)

	cartService := s.NewCartService(st.carts, products, cartCache, locker, log)
	checkoutService := s.NewCheckoutService(s.CheckoutDeps{
		Carts:    st.carts,
		Products: products,
		Tickets:  st.tickets,
		Cache:    cartCache,
		Locker:   locker,
		Codes:    ticketcode.NewGenerator(),
		Metrics:  m,
		Logger:   log,

		CommitTimeout: cfg.RequestTimeout,
	})

	if st.outbox != nil && len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(st.outbox, cfg.TicketsTopic, log, cfg.KafkaBrokers...)
		go poller.Run(ctx)
		defer poller.Close()
		log.Info("outbox poller started", "topic", cfg.TicketsTopic, "brokers", cfg.KafkaBrokers)
	}

	router := h.NewRouter(h.RouterConfig{
		Carts:          cartService,
		Checkout:       checkoutService,
		Metrics:        m,
		Logger:         log,
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	for _, closeFn := range st.closers {
		if err := closeFn(shutdownCtx); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}

	log.Info("server exited")
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		mem := store.NewMemoryStore()
		if err := seedCatalog(mem); err != nil {
			return nil, err
		}
		log.Info("using in-memory stores")
		return &stores{carts: mem, products: mem, tickets: mem}, nil
	}

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	log.Info("connected to MongoDB", "uri", cfg.MongoURI, "db", cfg.MongoDBName)

	catalog := repository.NewMongoProductRepository(mongoDB)
	if err := catalog.CreateIndexes(ctx); err != nil {
		return nil, err
	}

	cred := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	db, err := repository.ConnectPostgres(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := repository.RunMigrations(db, cred); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to Postgres", "host", cfg.DBHost, "db", cfg.DBName)

	tickets := repository.NewPostgresTicketRepository(db)
	return &stores{
		carts:    repository.NewMongoCartRepository(mongoDB),
		products: catalog,
		tickets:  tickets,
		outbox:   tickets,
		closers: []func(context.Context) error{
			func(context.Context) error { return tickets.Close() },
			mongoDB.Client().Disconnect,
		},
	}, nil
}

// seedCatalog fills the in-memory catalog so the memory backend is usable
// without a separate product service.
func seedCatalog(mem *store.MemoryStore) error {
	demo := []domain.Product{
		{ID: "lamp", Title: "Desk lamp", Owner: "seller@example.com", Price: decimal.RequireFromString("24.90"), Stock: 10},
		{ID: "mug", Title: "Coffee mug", Owner: "seller@example.com", Price: decimal.RequireFromString("7.50"), Stock: 50},
		{ID: "chair", Title: "Office chair", Owner: "seller@example.com", Price: decimal.RequireFromString("129.00"), Stock: 2},
	}
	for _, p := range demo {
		if err := mem.SetProduct(p); err != nil {
			return err
		}
	}
	return nil
}
