package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"agency/internal/admin"
	"agency/internal/cart"
	"agency/internal/catalog"
	"agency/internal/checkout"
	"agency/internal/client"
	"agency/internal/httpapi"
	"agency/internal/order"
	"agency/internal/payment"
	"agency/internal/portal"
	"agency/internal/request"
	"agency/pkg/config"
	"agency/pkg/db"
	"agency/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.MigrateConfig(cfg.MigrationsPath, cfg); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	// Service requests
	hub := request.NewHub()
	var storeOpts []request.Option
	if rdb != nil {
		bridge := request.NewRedisBridge(rdb, cfg.Redis.RequestEventsChannel, hub)
		storeOpts = append(storeOpts, request.WithNotifier(bridge))
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "request event bridge stopped", "error", err)
			}
		}()
	}
	requests := request.NewStore(request.NewPGRepository(conn), hub, storeOpts...)

	clients := client.NewRepository(conn)
	portalService := portal.NewService(client.NewResolver(clients), requests, cfg.SupportEmail)

	console := admin.NewConsole(requests)
	if err := console.Load(ctx); err != nil {
		return fmt.Errorf("load admin console: %w", err)
	}
	go func() { _ = console.Watch(ctx) }()

	// Storefront
	gear := catalog.NewRepository(conn)
	carts, err := newCartStorage(cfg.Cart, rdb)
	if err != nil {
		return fmt.Errorf("cart storage: %w", err)
	}

	gateway, err := payment.NewMercadoPago(cfg.Payment.MercadoPagoAccessToken, cfg.Payment.Mock)
	if err != nil {
		return fmt.Errorf("payment gateway: %w", err)
	}
	orders := order.NewRepository(conn)
	recorder := &order.Recorder{Store: orders}
	if cfg.RabbitMQURL != "" {
		recorder.Publisher = order.NewPublisher(cfg.RabbitMQURL, cfg.OrderConfirmedQueue)
	}
	checkouts := checkout.NewService(gateway, recorder,
		checkout.WithTimeout(cfg.Payment.Timeout),
		checkout.WithCurrency(cfg.Currency),
		checkout.WithProvider(payment.Provider),
		checkout.WithCatalog(gear),
		checkout.WithStateHook(func(key string, s checkout.State) {
			logger.Debug(ctx, "checkout state", "session", key, "state", string(s))
		}),
	)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:      cfg,
		Catalog:  gear,
		Carts:    carts,
		Checkout: checkouts,
		Orders:   orders,
		Portal:   portal.Handlers{Service: portalService, Profiles: clients},
		Admin:    admin.Handlers{Console: console, Store: requests, Clients: clients},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "http shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newCartStorage(cfg config.CartConfig, rdb *redis.Client) (cart.Storage, error) {
	switch cfg.Storage {
	case "", "memory":
		return cart.NewMemoryStorage(), nil
	case "file":
		return cart.NewFileStorage(cfg.Dir)
	case "redis":
		if rdb == nil {
			return nil, errors.New("CART_STORAGE=redis requires REDIS_ADDR")
		}
		return cart.NewRedisStorage(rdb, "cart:", cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown CART_STORAGE %q", cfg.Storage)
	}
}
