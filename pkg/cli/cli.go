// Package cli implements the geoexport command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"geoexport/internal/app"
	"geoexport/internal/config"
	"geoexport/internal/db"
	"geoexport/internal/geostore"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geoexport",
		Short:         "Export and aggregate spatial selections to delimited text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExportCmd())
	root.AddCommand(newLayersCmd())
	root.AddCommand(newRunsCmd())
	return root
}

// setup loads config, opens both databases, and wires the application.
// The returned cleanup closes everything in reverse order.
func setup(ctx context.Context) (*app.App, func(), error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	logger, logCloser, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	duck, err := geostore.OpenDuckDB(ctx, cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	meta, err := db.OpenSQLite(cfg.MetaDBPath)
	if err != nil {
		_ = duck.Close()
		return nil, nil, err
	}

	a, err := app.New(app.Deps{Cfg: cfg, DuckDB: duck, MetaDB: meta, Logger: logger})
	if err != nil {
		_ = meta.Close()
		_ = duck.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = meta.Close()
		_ = duck.Close()
		if logCloser != nil {
			_ = logCloser.Close()
		}
	}
	return a, cleanup, nil
}

// siteFlags binds the location-of-interest flags shared by export commands.
func siteFlags(fs *pflag.FlagSet, x, y, radius *float64) {
	fs.Float64Var(x, "x", 0, "location of interest: x coordinate")
	fs.Float64Var(y, "y", 0, "location of interest: y coordinate")
	fs.Float64Var(radius, "radius", 0, "search radius in ground units (0 exports full extent)")
}
