package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/api"
	"github.com/isdelr/accounts-api/internal/config"
	"github.com/isdelr/accounts-api/internal/database"
	"github.com/isdelr/accounts-api/internal/logger"
	"github.com/isdelr/accounts-api/internal/monitoring"
	"github.com/isdelr/accounts-api/internal/notify"
	"github.com/isdelr/accounts-api/internal/repository"
	"github.com/isdelr/accounts-api/internal/services"
	"github.com/isdelr/accounts-api/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logger.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database. An unreachable database is not fatal: the health
	// checker keeps the API answering 503 until it comes back.
	dialect := database.Dialect(cfg.DatabaseDriver)
	db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DSN())
	if db == nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err != nil {
		log.Warn().Err(err).Msg("Database unreachable at startup, migrations deferred")
		go migrateWhenReachable(ctx, db, dialect, cfg.HealthCheckInterval)
	} else if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	publisher, err := notify.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize notification publisher")
	}
	defer publisher.Close()

	// Set up services
	userService := services.NewUserService(repository.NewUserRepo(db, dialect), publisher, services.UserOptions{
		BcryptCost:      cfg.BcryptCost,
		VerificationTTL: cfg.VerificationTTL,
		VerificationURL: cfg.VerificationURL(),
	})
	imageService := services.NewImageService(repository.NewImageRepo(db, dialect), store, cfg.MaxUploadBytes)

	// Set up and run the background health checker
	healthChecker := monitoring.NewHealthChecker(db, cfg.HealthCheckInterval, cfg.HealthCheckTimeout)
	if err := healthChecker.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start health checker")
	}

	// Set up router
	router := api.NewRouter(cfg, userService, imageService, healthChecker)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", cfg.DatabaseDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	healthChecker.Stop() // Stop the health checker

	log.Info().Msg("Server exiting")
}

// migrateWhenReachable retries migrations until they succeed or ctx ends.
func migrateWhenReachable(ctx context.Context, db *sql.DB, dialect database.Dialect, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := database.Migrate(ctx, db, dialect); err != nil {
				log.Debug().Err(err).Msg("Deferred migration failed, retrying")
				continue
			}
			log.Info().Msg("Deferred database migrations applied")
			return
		}
	}
}
