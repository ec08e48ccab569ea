// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/postgres"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/httpapi"
	"github.com/holomush/accounts/internal/imagestore"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
)

// serviceName identifies this process in logs.
const serviceName = "accounts"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the accounts HTTP API together with the metrics and health
endpoints. The process shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving")

	return cmd
}

// runServe wires the service and blocks until a shutdown signal arrives or a
// server fails.
func runServe(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.Setup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		if err := applyMigrations(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns), //nolint:gosec // bounded by config validation
		ConnectAttempts: uint64(cfg.Database.ConnectRetries),
		ConnectBackoff:  cfg.Database.ConnectBackoff,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	images, err := imagestore.Open(ctx, imagestore.Config{
		Bucket:       cfg.S3.Bucket,
		Prefix:       cfg.S3.Prefix,
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.AuthTokenConfig())
	if err != nil {
		return err
	}
	hashParams, err := cfg.Argon2Params()
	if err != nil {
		return err
	}
	hasher, err := auth.NewArgon2idHasher(hashParams)
	if err != nil {
		return err
	}
	users := postgres.NewUserRepository(pool)
	authSvc, err := auth.NewService(auth.ServiceConfig{
		Users:          users,
		Sessions:       postgres.NewSessionRepository(pool),
		RefreshRecords: postgres.NewRefreshRecordRepository(pool),
		Transactor:     postgres.NewTransactor(pool),
		Hasher:         hasher,
		Tokens:         tokens,
		Images:         images,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	userSvc, err := auth.NewUserService(auth.UserServiceConfig{
		Users:  users,
		Images: images,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var ready atomic.Bool
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(observability.Config{
			Addr:   cfg.Metrics.Addr,
			Logger: logger,
			Checks: []observability.Check{
				observability.FlagCheck("serving", ready.Load),
				{Name: "database", Fn: pool.Ping},
			},
			Registrars: []observability.Registrar{auth.RegisterMetrics},
		})
		metrics = obsServer.Metrics()
	}

	router, err := httpapi.NewRouter(httpapi.Config{
		Auth:          authSvc,
		Users:         userSvc,
		Cookies:       tokens,
		Logger:        logger,
		Metrics:       metrics,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		MaxImageBytes: cfg.HTTP.MaxImageBytes,
		Development:   !cfg.Token.CookieSecure,
	})
	if err != nil {
		return err
	}

	var obsErrCh <-chan error
	if obsServer != nil {
		if obsErrCh, err = obsServer.Start(); err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
	}

	apiServer := httpapi.NewServer(cfg.HTTP.Addr, router, logger)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServers(cfg, logger, nil, obsServer)
		return err
	}
	ready.Store(true)
	logger.Info("accounts service ready",
		"http_addr", apiServer.Addr(),
		"metrics_addr", cfg.Metrics.Addr)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErrCh:
		serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err := <-obsErrCh:
		serveErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
	}

	ready.Store(false)
	stopServers(cfg, logger, apiServer, obsServer)
	logger.Info("shutdown complete")
	return serveErr
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServers(cfg *config.Config, logger *slog.Logger, api *httpapi.Server, obs *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	servers := []stopper{}
	if api != nil {
		servers = append(servers, api)
	}
	if obs != nil {
		servers = append(servers, obs)
	}
	for _, s := range servers {
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

// applyMigrations brings the schema up to date before serving.
func applyMigrations(databaseURL string, logger *slog.Logger) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Info("schema is up to date")
		return nil
	}
	logger.Info("applying migrations", "count", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}
