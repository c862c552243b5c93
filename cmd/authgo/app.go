package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joaopedro08-dev/authgo/internal/db"
	"github.com/joaopedro08-dev/authgo/internal/handlers"
	"github.com/joaopedro08-dev/authgo/internal/logger"
	"github.com/joaopedro08-dev/authgo/internal/repository/postgres"
	"github.com/joaopedro08-dev/authgo/internal/service/auth"
	"github.com/joaopedro08-dev/authgo/internal/service/cleanup"
)

const cleanupInterval = 5 * time.Minute

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Cleaner    *cleanup.Cleaner
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	limiter := auth.NewRateLimiter(0, 0) // defaults: 5 attempts per 5 minutes

	authService, err := auth.NewService(
		auth.Config{Limiter: limiter, CookieSecure: c.CookieSecure},
		tokenManager,
		storage,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Background purge of expired blacklist and refresh rows
	cleaner := cleanup.New(cleanupInterval, storage, limiter, log)

	mux := handlers.NewRouter(authService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Cleaner:    cleaner,
		Logger:     log,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	// Cleanup cadence lives and dies with the server context
	go s.Cleaner.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
