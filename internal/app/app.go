// Package app provides application-level wiring for geoexport: it assembles
// the store, session, pipeline, repositories, and services from opened
// database handles and configuration.
package app

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"geoexport/internal/config"
	"geoexport/internal/db"
	"geoexport/internal/export"
	"geoexport/internal/geostore"
	"geoexport/internal/layers"
	"geoexport/internal/repository"
	"geoexport/internal/service"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg    *config.Config
	DuckDB *sql.DB
	MetaDB *sql.DB
	Logger *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Store    *geostore.DuckDBStore
	Session  *geostore.Session
	Exporter *export.Exporter
	Exports  *service.ExportService
	Layers   *layers.Set // nil when LAYERS_PATH is unset
}

// New wires the application from the provided deps, running metastore
// migrations and loading layer definitions.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	if err := db.RunMigrations(deps.MetaDB); err != nil {
		return nil, fmt.Errorf("metastore migrations: %w", err)
	}

	var layerSet *layers.Set
	if cfg.LayersPath != "" {
		set, err := layers.Load(cfg.LayersPath)
		if err != nil {
			return nil, fmt.Errorf("load layers: %w", err)
		}
		layerSet = set
	}

	store := geostore.NewDuckDBStore(deps.DuckDB, cfg.PollInterval, deps.Logger)
	session := geostore.NewSession()
	exporter := export.NewExporter(store, session, deps.Logger)
	runs := repository.NewExportRunRepo(deps.MetaDB)
	exports := service.NewExportService(exporter, runs, layerSet, cfg.ExportDir, cfg.HookScript, deps.Logger)

	return &App{
		Store:    store,
		Session:  session,
		Exporter: exporter,
		Exports:  exports,
		Layers:   layerSet,
	}, nil
}

// NewLogger builds the application logger from config. When LOG_PATH is set
// the log is duplicated into an append-only file, which doubles as the
// pipeline's line-oriented log sink. The returned closer owns the file.
func NewLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // operator-controlled path
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}
	return logger, closer, nil
}
