// Package main is the entry point for the oddogate service: a thin
// authentication and caching proxy in front of the Oddo brokerage API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"

	"oddogate/internal/clients/oddo"
	"oddogate/internal/config"
	"oddogate/internal/modules/accounts"
	"oddogate/internal/modules/auth"
	"oddogate/internal/modules/cache"
	"oddogate/internal/modules/portfolio"
	"oddogate/internal/server"
	"oddogate/internal/storage"
	"oddogate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})

	log.Info().
		Str("storage", string(cfg.Storage.Kind)).
		Str("upstream", cfg.Oddo.BaseURL).
		Msg("Starting oddogate")

	driver, err := storage.Open(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage driver")
	}
	defer driver.Close()

	clock := clockwork.NewRealClock()
	manager := storage.NewManager(driver, cfg.Storage.KeyPrefix, clock, log)

	oddoClient := oddo.NewClient(cfg.Oddo, log)

	authService := auth.NewService(oddoClient, cfg.JWT.Secret, cfg.JWT.TTL, clock, log)
	accountsService := accounts.NewService(oddoClient, log)
	cacheService := cache.NewService(manager, cfg.Cache.DefaultTTL, clock, log)
	engine := portfolio.NewEngine(clock, log)

	srv := server.New(server.Deps{
		Log:              log,
		Config:           cfg,
		AuthService:      authService,
		AuthHandler:      auth.NewHandler(authService, log),
		AccountsHandler:  accounts.NewHandler(accountsService, cacheService, engine, log),
		CacheHandler:     cache.NewHandler(cacheService, accountsService, log),
		PortfolioHandler: portfolio.NewHandler(engine, cacheService, log),
		SystemHandlers:   server.NewSystemHandlers(dataDir(cfg), manager, log),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Shutdown complete")
}

// dataDir picks the directory monitored by the disk usage endpoint.
func dataDir(cfg *config.Config) string {
	switch cfg.Storage.Kind {
	case config.StorageFile:
		return cfg.Storage.Dir
	case config.StorageSQLite:
		return filepath.Dir(cfg.Storage.SQLitePath)
	default:
		return "."
	}
}
