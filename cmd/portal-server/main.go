// Package main is the entry point for the GraphRAG portal server.
// The portal authenticates users and scopes every content operation to a
// per-user workspace in front of the document-ingestion subsystem.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/config"
	"github.com/prn-tf/graphrag-portal/internal/content"
	"github.com/prn-tf/graphrag-portal/internal/handler"
	"github.com/prn-tf/graphrag-portal/internal/lock"
	"github.com/prn-tf/graphrag-portal/internal/repository"
	"github.com/prn-tf/graphrag-portal/internal/repository/jsonfile"
	"github.com/prn-tf/graphrag-portal/internal/repository/sqlite"
	"github.com/prn-tf/graphrag-portal/internal/service"
	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := newLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Bool("auth_enabled", cfg.Auth.Enabled).
		Msg("starting GraphRAG portal server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential store. A corrupt store is fatal: serving logins from a
	// partially readable file would silently drop accounts.
	repo, err := newAccountRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open credential store")
	}
	defer repo.Close()

	locker := newLocker(cfg, logger)

	tokens := auth.NewTokenService(auth.Config{
		Secret: []byte(cfg.Auth.TokenSecret),
		TTL:    cfg.Auth.TokenTTL(),
	})
	resolver := workspace.NewResolver(cfg.Workspace.Root, locker, logger)

	accountService := service.NewAccountService(repo, locker, logger)
	authService := service.NewAuthService(repo, tokens, logger)
	contentService := content.NewLocalService(logger)

	if err := accountService.Bootstrap(ctx, cfg.Auth.SeedAccounts); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed credential store")
	}

	skipPaths := auth.DefaultSkipPaths()
	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" && cfg.Metrics.Path != "/metrics" {
		skipPaths = append(skipPaths, cfg.Metrics.Path)
	}

	middleware := auth.Middleware(tokens, resolver, auth.MiddlewareConfig{
		Enabled:          cfg.Auth.Enabled,
		DefaultWorkspace: cfg.Workspace.Default,
		SkipPaths:        skipPaths,
	}, logger)

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, accountService, logger),
		ContentHandler: handler.NewContentHandler(contentService, cfg.Server.MaxBodySize, logger),
		AuthMiddleware: middleware,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newLogger builds the root logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newAccountRepository opens the configured credential store backend.
func newAccountRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.AccountRepository, error) {
	switch cfg.Store.Driver {
	case repository.DriverJSONFile:
		return jsonfile.New(cfg.Store.UsersFile, logger)
	case repository.DriverSQLite:
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Store.SQLitePath,
			JournalMode:     cfg.Store.JournalMode,
			BusyTimeout:     cfg.Store.BusyTimeout,
			SynchronousMode: cfg.Store.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewAccountRepository(db), nil
	default:
		return nil, repository.ErrUnknownDriver
	}
}

// newLocker builds the lock backend. Redis coordinates workspace creation
// across instances; the in-memory locker is enough for a single node.
func newLocker(cfg *config.Config, logger zerolog.Logger) lock.Locker {
	if cfg.Lock.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis lock backend")
		return lock.NewRedisLocker(client)
	}
	return lock.NewMemoryLocker()
}
