// Package db opens the gorm connection, applies migrations and provides the
// transaction helpers shared by the billing services.
package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/diewo77/go-billing/internal/config"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

var passwordRe = regexp.MustCompile(`(password=)(\S+)`)

// GormConfig returns the gorm settings used by every connection. TranslateError
// turns driver unique violations into gorm.ErrDuplicatedKey.
func GormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

// Open connects using cfg, retrying while the database starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
		log.Info().Str("path", cfg.SQLitePath).Msg("connecting to sqlite")
	case "postgres", "":
		dsn := cfg.DSN()
		dialector = postgres.Open(dsn)
		log.Info().Str("dsn", MaskDSN(dsn)).Msg("connecting to postgres")
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, GormConfig(cfg.Debug))
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("retrying db connection")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect after %d attempts: %w", connectAttempts, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return conn, nil
}

// MaskDSN hides the password of a key=value DSN for logging.
func MaskDSN(dsn string) string {
	return passwordRe.ReplaceAllString(dsn, "${1}***")
}
