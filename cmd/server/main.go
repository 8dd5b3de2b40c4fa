// Command server runs the geoexport HTTP API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"geoexport/internal/api"
	"geoexport/internal/app"
	"geoexport/internal/config"
	"geoexport/internal/db"
	"geoexport/internal/geostore"
	"geoexport/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	logger, logCloser, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	duck, err := geostore.OpenDuckDB(ctx, cfg.StorePath)
	if err != nil {
		return err
	}
	defer duck.Close() //nolint:errcheck

	meta, err := db.OpenSQLite(cfg.MetaDBPath)
	if err != nil {
		return err
	}
	defer meta.Close() //nolint:errcheck

	a, err := app.New(app.Deps{Cfg: cfg, DuckDB: duck, MetaDB: meta, Logger: logger})
	if err != nil {
		return err
	}

	sched := scheduler.New(a.Exports, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	handler := api.NewHandler(a.Exports, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
