package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-billdesk/auth"
	"github.com/diewo77/go-billdesk/internal/artifact"
	"github.com/diewo77/go-billdesk/internal/config"
	"github.com/diewo77/go-billdesk/internal/db"
	"github.com/diewo77/go-billdesk/internal/handlers"
	"github.com/diewo77/go-billdesk/internal/messaging"
	"github.com/diewo77/go-billdesk/internal/server"
	"github.com/diewo77/go-billdesk/internal/services"
	"github.com/diewo77/go-billdesk/internal/store"
	"github.com/diewo77/go-billdesk/pdf"
)

const userCacheTTL = time.Minute

// App holds the process-wide resources: database, messaging transport and
// artifact storage. They are opened once and released by Close.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	transport messaging.Transport
	redis     *redis.Client
	handler   http.Handler
}

func newTransport(cfg config.MessagingConfig, logger *zap.Logger) (messaging.Transport, error) {
	switch cfg.Driver {
	case "amqp":
		return messaging.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
	case "kafka":
		return messaging.NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "log":
		return messaging.NewLogTransport(logger), nil
	default:
		return nil, errors.Errorf("unsupported messaging driver %q", cfg.Driver)
	}
}

func (a *App) newArtifactStore(ctx context.Context) (artifact.Store, error) {
	cfg := a.cfg.Artifacts
	switch cfg.Driver {
	case "file":
		return artifact.NewFileStore(cfg.Dir), nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrapf(err, "ping redis %s", cfg.RedisAddr)
		}
		return artifact.NewRedisStore(a.redis, cfg.RedisTTL), nil
	default:
		return nil, errors.Errorf("unsupported artifact driver %q", cfg.Driver)
	}
}

// NewApp connects to every backing service and wires the HTTP handler.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.db, err = db.Connect(ctx, cfg.Database, logger); err != nil {
		return nil, err
	}
	if err = db.Migrate(a.db, cfg.Database, cfg.App.Migrations, logger); err != nil {
		return nil, err
	}
	if a.transport, err = newTransport(cfg.Messaging, logger); err != nil {
		return nil, err
	}
	artifacts, err := a.newArtifactStore(ctx)
	if err != nil {
		return nil, err
	}
	serials, err := services.NewSnowflakeSerials(cfg.Billing.SnowflakeNode)
	if err != nil {
		return nil, err
	}

	products := store.NewProducts(a.db)
	invoices := store.NewInvoices(a.db)
	users := store.NewUsers(a.db)
	if _, err = db.SeedAdmin(ctx, users, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger); err != nil {
		return nil, err
	}

	catalog := services.NewCatalogService(products, logger)
	issuer := services.NewInvoiceService(invoices, products, serials, services.IssuancePolicy{
		TaxPercent:       cfg.Billing.DefaultTaxPercent,
		StrictLineTotals: cfg.Billing.StrictLineTotals,
	}, logger)
	dispatcher := services.NewDispatcher(invoices, pdf.NewRenderer(), artifacts, a.transport, services.DeliveryOptions{
		ChatSuffix: cfg.Messaging.ChatSuffix,
		Currency:   cfg.Billing.CurrencyLabel,
		TaxPercent: cfg.Billing.DefaultTaxPercent,
		ShopName:   cfg.Billing.ShopName,
	}, logger)

	signer := auth.NewSigner(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	verifier := auth.NewCachedVerifier(func(ctx context.Context, id string) bool {
		_, err := users.Get(ctx, id)
		return err == nil
	}, userCacheTTL)
	auth.SetUserVerifier(verifier.Verify)

	a.handler = server.NewRouter(server.Deps{
		Products: handlers.NewProductHandler(catalog, logger),
		Invoices: handlers.NewInvoiceHandler(issuer, dispatcher, logger),
		Auth:     handlers.NewAuthHandler(users, signer, logger),
		Signer:   signer,
		Ping:     func(ctx context.Context) error { return db.Ping(ctx, a.db) },
		Logger:   logger,
	})
	return a, nil
}

// Close releases every resource NewApp opened.
func (a *App) Close() {
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger.Warn("close messaging transport", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
}
