package db

import (
	"embed"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-billdesk/internal/config"
	"github.com/diewo77/go-billdesk/internal/models"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var requiredTables = []string{"users", "products", "invoices", "line_items"}

// Migrate brings the schema up to date. With useSQL on postgres the embedded
// SQL migrations are applied; otherwise gorm AutoMigrate is used.
func Migrate(db *gorm.DB, cfg config.DatabaseConfig, useSQL bool, log *zap.Logger) error {
	if useSQL && cfg.Driver == "postgres" {
		if err := RunSQLMigrations(cfg.URL()); err != nil {
			return err
		}
		log.Info("sql migrations applied")
	} else {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return errors.Wrap(err, "automigrate")
		}
		log.Info("schema auto-migrated", zap.String("driver", cfg.Driver))
	}

	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return errors.Wrap(err, "init migrate")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}
