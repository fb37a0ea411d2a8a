package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postfiatorg/tasknode/config"
	"github.com/postfiatorg/tasknode/internal/api"
	"github.com/postfiatorg/tasknode/internal/logger"
	"github.com/postfiatorg/tasknode/internal/tasknode"
	"github.com/postfiatorg/tasknode/internal/tasknode/store"
	"github.com/postfiatorg/tasknode/internal/tasknode/store/memorystore"
	"github.com/postfiatorg/tasknode/internal/tasknode/store/postgresql"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", ".", "path to configuration yaml file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	if err = run(cfg, slogger); err != nil {
		slogger.Error("tasknode failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.TasknodeConfig, slogger *slog.Logger) error {
	ctx := context.Background()

	st, err := newStore(cfg.Db)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(ctx); closeErr != nil {
			slogger.Error("failed to close store", slog.String("err", closeErr.Error()))
		}
	}()

	processor := tasknode.NewProcessor(st, slogger,
		tasknode.WithStatsRegisterer(prometheus.DefaultRegisterer),
	)
	correlator := tasknode.NewCorrelator(st, slogger)
	registry := tasknode.NewRegistry(st, slogger, cfg.Auth.CacheExpiry)

	server := api.NewServer(slogger, st, processor, correlator, registry)

	errCh := make(chan error, 1)
	go func() {
		slogger.Info("starting api server", slog.String("address", cfg.Api.Address))
		if serveErr := server.Start(cfg.Api.Address); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-errCh:
		return err
	case sig := <-signalCh:
		slogger.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func newStore(dbConfig *config.DbConfig) (store.TasknodeStore, error) {
	switch dbConfig.Mode {
	case "postgres":
		pg, err := postgresql.New(dbConfig.Postgres.DSN(), dbConfig.Postgres.MaxIdleConns, dbConfig.Postgres.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		if err = pg.MigrateUp(); err != nil {
			return nil, err
		}
		return pg, nil
	case "memory":
		return memorystore.New(), nil
	}

	return nil, errors.Join(store.ErrUnknownDBMode, fmt.Errorf("mode: %q", dbConfig.Mode))
}
