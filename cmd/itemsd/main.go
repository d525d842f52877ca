// Command itemsd serves the items API against a PostgreSQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/dbsnap/component"
	"github.com/kbukum/dbsnap/config"
	"github.com/kbukum/dbsnap/database"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/items"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/observability"
	"github.com/kbukum/dbsnap/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var cfg Config
	if err := config.Load(serviceName, &cfg); err != nil {
		logger.NewDefault(serviceName).Fatal("failed to load config", logger.ErrorFields("config", err))
	}
	log := cfg.NewLogger()

	if err := run(context.Background(), &cfg, log); err != nil {
		log.Fatal("itemsd exited", logger.ErrorFields("run", err))
	}
}

// initTelemetry is replaced in tests.
var initTelemetry = observability.Init

// run starts the service and blocks until a signal arrives or ctx ends.
// Whatever was started is stopped on every return path.
func run(ctx context.Context, cfg *Config, log *logger.Logger) (err error) {
	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}

	registry := component.NewRegistry(log)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, registry.StopAll(stopCtx), shutdownTelemetry(stopCtx))
	}()

	db := database.NewComponent(cfg.Database, log)
	if err := registry.Register(db); err != nil {
		return err
	}
	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, registry.HealthAll)
	items.NewHandler(items.NewRepository(db.DB()), log).Register(srv.GinEngine())

	if err := registry.Register(server.NewComponent(srv)); err != nil {
		return err
	}
	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	log.Info("itemsd ready", logger.Fields("addr", srv.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
	}
	return nil
}
