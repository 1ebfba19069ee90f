package db

import (
	"errors"
	"fmt"

	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MigrationsDir is where the versioned SQL migrations live.
const MigrationsDir = "file://migrations"

// Migrate runs AutoMigrate for all models.
func Migrate(conn *gorm.DB) error {
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// MigrateFor picks the migration path for cfg: versioned SQL migrations on
// postgres when MIGRATIONS is set, AutoMigrate otherwise.
func MigrateFor(cfg *config.Config, conn *gorm.DB) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		log.Info().Str("source", MigrationsDir).Msg("running sql migrations")
		return RunSQLMigrations(MigrationsDir, cfg.Database.URL())
	}
	if cfg.App.Migrations {
		log.Warn().Str("driver", cfg.Database.Driver).Msg("sql migrations target postgres; falling back to AutoMigrate")
	}
	return Migrate(conn)
}

// RunSQLMigrations applies every pending migration from source.
func RunSQLMigrations(source, databaseURL string) error {
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Seed creates a demo organization when none exists. It is idempotent.
func Seed(conn *gorm.DB) (*models.Organization, error) {
	var org models.Organization
	err := conn.Where("name = ?", "Demo Company").First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	org = models.Organization{
		Name:              "Demo Company",
		Email:             "billing@demo.test",
		Address:           "1 Market Street",
		City:              "Springfield",
		Country:           "US",
		SignatoryName:     "Jane Doe",
		BankName:          "Demo Bank",
		BankAccountName:   "Demo Company",
		BankAccountNumber: "000123456789",
	}
	if err := conn.Create(&org).Error; err != nil {
		return nil, err
	}
	customer := models.Customer{TenantID: org.ID, Name: "First Customer", Phone: "555-0100", Address: "2 Elm Road", City: "Springfield"}
	if err := conn.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &org, nil
}
