// Package db opens the database and manages its schema.
package db

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-billdesk/internal/config"
)

const connectBackoff = 2 * time.Second

var passwordRe = regexp.MustCompile(`(password=)(\S+)`)

// maskDSN hides the password of a key=value DSN.
func maskDSN(dsn string) string { return passwordRe.ReplaceAllString(dsn, `${1}***`) }

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case "postgres":
		dsn := cfg.DSN()
		return postgres.Open(dsn), maskDSN(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath), cfg.SQLitePath, nil
	default:
		return nil, "", errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect opens the configured database, retrying while it starts up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dial, target, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	}

	attempts := max(cfg.ConnectRetries, 1)
	var db *gorm.DB
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dial, gcfg)
		if err == nil {
			err = Ping(ctx, db)
		}
		if err == nil {
			break
		}
		log.Warn("database not ready", zap.Int("attempt", i+1), zap.Int("of", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "connect database")
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connect database after %d attempts", attempts)
	}
	log.Info("database connected", zap.String("driver", cfg.Driver), zap.String("dsn", target))
	return db, nil
}

// Ping checks that the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "database handle")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping database")
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "database handle")
	}
	return errors.Wrap(sqlDB.Close(), "close database")
}
