package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/render"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("invalid log configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.MigrateFor(cfg, dbConn); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migrations completed successfully")
		return
	}
	if *seedOnlyFlag {
		org, err := db.Seed(dbConn)
		if err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
		log.Info().Uint("organization_id", org.ID).Msg("seeding completed successfully")
		return
	}

	if err := db.MigrateFor(cfg, dbConn); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.App.Seed {
		if _, err := db.Seed(dbConn); err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
	}

	if cfg.App.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET not set; sessions are signed with a per-process key and end on restart")
	}
	auth.SetSecret(cfg.App.SessionSecret)

	// Sessions pointing at a deleted organization are rejected.
	auth.SetTenantVerifier(func(ctx context.Context, tenantID uint) bool {
		var count int64
		dbConn.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", tenantID).Count(&count)
		return count > 0
	})

	limit, err := middleware.RateLimit(ctx, cfg.RateLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("rate limiter setup failed")
	}

	svc := services.New(dbConn, services.OptionsFrom(cfg.Billing))
	appHandler := NewApp(dbConn, svc, render.New(cfg.Billing.Pages), limit)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped gracefully")
}
