// Package app wires the daemon together: the chat broker and the
// booking store behind a single HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"counselchat/internal/broker"
	"counselchat/internal/config"
	"counselchat/internal/storeserver"
)

// Application coordinates the daemon's components. Initialization
// order: store, hub, HTTP surface; shutdown runs in reverse.
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	store      *storeserver.Store
	hub        *broker.Hub
	httpServer *http.Server
}

// NewApplication builds the daemon. A nil config loads from the
// environment; a nil logger is replaced with a no-op logger.
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.LoadFromEnv()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storeserver.Open(cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hub := broker.NewHub(logger.Named("broker"))

	router := mux.NewRouter()
	storeserver.NewServer(store, logger.Named("store")).Register(router)
	router.HandleFunc("/ws", broker.NewHandler(hub, logger.Named("broker")).ServeWS)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		store:      store,
		hub:        hub,
		httpServer: httpServer,
	}, nil
}

// Start launches the hub and the HTTP server. It returns once the
// server is accepting connections or startup has failed.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting daemon", zap.String("addr", app.httpServer.Addr))

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("daemon started")
		return nil
	case <-ctx.Done():
		_ = app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts the daemon down: HTTP first, then the hub, then the
// store.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down daemon")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("http shutdown", zap.Error(err))
	}
	if err := app.hub.Stop(); err != nil {
		app.logger.Warn("hub shutdown", zap.Error(err))
	}
	if err := app.store.Close(); err != nil {
		app.logger.Warn("store shutdown", zap.Error(err))
	}

	app.logger.Info("daemon shutdown complete")
	return nil
}

// Addr returns the listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
