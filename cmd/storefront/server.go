package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/artpar/storefront/internal/core/domain"
	"github.com/artpar/storefront/internal/core/pricing"
	"github.com/artpar/storefront/internal/shell/api"
	"github.com/artpar/storefront/internal/shell/catalog"
	"github.com/artpar/storefront/internal/shell/store"
	"github.com/artpar/storefront/internal/shell/workers"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the storefront application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	janitor    *workers.Janitor
	seeder     *catalog.Seeder
	logger     *slog.Logger

	shutdownOnce sync.Once
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	prices, err := cfg.Pricing.Build()
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	if err := ensureDataDir(cfg.Database.DSN); err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	handler := api.SetupAPI(api.APIConfig{
		Store:   s,
		Handler: handlerConfig(cfg, prices),
		Logger:  logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	janitor := workers.NewJanitor(s, workers.JanitorConfig{
		Interval: cfg.Cart.CleanupInterval,
		CartTTL:  cfg.Cart.TTL,
	}, logger)

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		janitor:    janitor,
		seeder:     catalog.NewSeeder(s, cfg.Auth.BcryptCost, logger),
		logger:     logger,
	}, nil
}

func handlerConfig(cfg *Config, prices pricing.Config) api.HandlerConfig {
	return api.HandlerConfig{
		Pricing:           prices,
		SessionTTL:        cfg.Auth.SessionTTL,
		CartTTL:           cfg.Cart.TTL,
		SecureCookies:     cfg.Auth.SecureCookies,
		AllowSellerSignup: cfg.Auth.AllowSellerSignup,
		BcryptCost:        cfg.Auth.BcryptCost,
	}
}

// ensureDataDir creates the parent directory of a file-backed DSN.
func ensureDataDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// Prepare seeds the catalog and promotes the bootstrap admin. It runs
// before the server accepts requests.
func (s *Server) Prepare(ctx context.Context) error {
	if path := s.config.Catalog.SeedFile; path != "" {
		if _, err := s.seeder.SeedFile(ctx, path); err != nil {
			exitCode := ExitDatabaseError
			if errors.Is(err, catalog.ErrInvalidSeed) || errors.Is(err, os.ErrNotExist) {
				exitCode = ExitConfigError
			}
			return &ServerError{Op: "SeedCatalog", Err: err, ExitCode: exitCode}
		}
	}

	if email := s.config.Auth.BootstrapAdmin; email != "" {
		if err := s.promoteAdmin(ctx, email); err != nil {
			return &ServerError{Op: "BootstrapAdmin", Err: err, ExitCode: ExitDatabaseError}
		}
	}
	return nil
}

func (s *Server) promoteAdmin(ctx context.Context, email string) error {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		if store.IsNotFound(err) {
			s.logger.Warn("bootstrap admin account does not exist yet", "email", normalized)
			return nil
		}
		return err
	}
	if user.Role == domain.RoleAdmin {
		return nil
	}
	if err := s.store.UpdateUserRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		return err
	}
	s.logger.Info("promoted bootstrap admin", "user_id", user.ID)
	return nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Prepare(ctx); err != nil {
		s.closeStore()
		return err
	}

	s.janitor.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &ServerError{
				Op:       "Start",
				Err:      err,
				ExitCode: ExitHTTPServerError,
			}
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server. Calls after the first are
// no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}

		s.janitor.Stop()
		s.closeStore()

		s.logger.Info("shutdown complete")
	})
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
