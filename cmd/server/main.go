package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/internal/config"
	"github.com/diewo77/go-billdesk/internal/db"
	"github.com/diewo77/go-billdesk/internal/observability"
	"github.com/diewo77/go-billdesk/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "billdesk",
		Usage: "inventory and invoicing back office",
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Action: serve},
			{Name: "migrate", Usage: "apply database migrations and exit", Action: migrateOnly},
			{Name: "seed", Usage: "create the admin user from ADMIN_EMAIL/ADMIN_PASSWORD and exit", Action: seedOnly},
		},
		DefaultCommand: "serve",
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "billdesk:", err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.App.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.SetupTracing(c.Context, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	app, err := NewApp(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	case <-c.Context.Done():
		logger.Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
	return nil
}

func migrateOnly(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	gdb, err := db.Connect(c.Context, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	// The migrate command always prefers the SQL files.
	return db.Migrate(gdb, cfg.Database, true, logger)
}

func seedOnly(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	gdb, err := db.Connect(c.Context, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	if err := db.Migrate(gdb, cfg.Database, cfg.App.Migrations, logger); err != nil {
		return err
	}
	_, err = db.SeedAdmin(c.Context, store.NewUsers(gdb), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, logger)
	return err
}
