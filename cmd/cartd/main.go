// cartd serves the storefront cart engine over REST and MCP.
// It keeps the guest cart locally and syncs the signed-in cart with the backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cartsync/internal/auth"
	"cartsync/internal/cart"
	"cartsync/internal/config"
	"cartsync/internal/gateway"
	"cartsync/internal/handler"
	"cartsync/internal/localstore"
	"cartsync/internal/metrics"
	"cartsync/internal/middleware"
	"cartsync/internal/notify"
	"cartsync/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("store_backend", cfg.StoreBackend),
		slog.Bool("chrome_tls", cfg.ChromeTLS),
	)

	// Local persistence
	kv, err := localstore.OpenKV(ctx, localstore.Options{
		Backend:    cfg.StoreBackend,
		SQLitePath: cfg.SQLitePath,
		RedisURL:   cfg.RedisURL,
		Namespace:  cfg.StoreNamespace,
	})
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	store := localstore.New(kv, logger)
	defer store.Close()

	session := auth.NewSession(ctx, store, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gw, err := gateway.New(gateway.Config{
		BaseURL:          cfg.APIBaseURL,
		DeliveryMethodID: cfg.DeliveryMethodID,
		ShippingPrice:    cfg.ShippingPrice,
		HTTPClient:       newHTTPClient(cfg, session),
		IsAuthenticated:  session.IsAuthenticated,
		Metrics:          m,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("creating cart gateway: %w", err)
	}

	notices := notify.NewRecorder(50)
	ctrl, err := cart.New(cart.Deps{
		Gateway:  gw,
		Store:    store,
		Auth:     session,
		Notifier: notify.Multi{notices, notify.Log{Logger: logger}},
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating cart controller: %w", err)
	}
	session.Subscribe(ctrl.OnAuthChanged)

	if cfg.AuthToken != "" && !session.IsAuthenticated() {
		if err := session.Login(ctx, cfg.AuthToken); err != nil {
			logger.Warn("configured auth token rejected", slog.String("error", err.Error()))
		}
	}
	ctrl.Initialize(ctx)

	h := handler.New(handler.Config{
		Cart:     ctrl,
		Session:  session,
		Notices:  notices,
		Gatherer: reg,
		Logger:   logger,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newHTTPClient builds the backend client: bearer token from the session on
// top of either the default transport or the Chrome-fingerprint transport.
func newHTTPClient(cfg *config.Config, session *auth.Session) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if cfg.ChromeTLS {
		base = transport.NewChromeTransport(cfg.HTTPTimeout)
	}
	return &http.Client{
		Transport: transport.NewBearerTransport(base, session),
		Timeout:   cfg.HTTPTimeout,
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
