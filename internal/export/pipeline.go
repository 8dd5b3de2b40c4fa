package export

import (
	"context"
	"log/slog"
	"strings"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// Exporter runs the selection export & aggregation pipeline. It is
// single-threaded and synchronous: each engine operation is dispatched and
// polled to terminal status before the next stage begins, and callers must
// serialize concurrent runs themselves. Two runs sharing temporary names
// have undefined behavior.
type Exporter struct {
	store   geostore.Store
	session *geostore.Session
	logger  *slog.Logger
}

// NewExporter creates an Exporter bound to a store and session registry.
func NewExporter(store geostore.Store, session *geostore.Session, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, session: session, logger: logger.With("component", "exporter")}
}

// Request describes one selection export.
type Request struct {
	Dataset domain.Dataset // input selection
	OutPath string         // CSV file or permanent copy target

	Columns string // raw output column specification
	OrderBy []string

	GroupBy              []string
	Statistics           []domain.Statistic
	RenameAfterAggregate bool

	IncludeArea     bool
	AreaUnit        domain.AreaUnit
	IncludeDistance bool
	TargetDataset   string // nearest-target for the Distance field
	Radius          string // literal radius tag; "none" disables

	Append        bool
	ExcludeHeader bool
}

// ExportSelectionToCSV runs the full pipeline for one selection and writes
// the result to a delimited text file.
//
// Returns the number of data rows written. 0 means nothing to export (empty
// selection or a fully-filtered column specification) and is not an error;
// -1 signals failure, whether missing input before any row is written or an
// engine/serialization failure that aborted the run. Temporary artifacts are
// cleaned up in every case.
func (e *Exporter) ExportSelectionToCSV(ctx context.Context, req Request) (int, error) {
	if req.OutPath == "" {
		return -1, domain.ErrValidation("output path is required")
	}
	if !e.store.DatasetExists(ctx, req.Dataset) {
		e.logger.Error("input dataset does not exist", "dataset", req.Dataset.Name)
		return -1, domain.ErrNotFound("dataset %q does not exist", req.Dataset.Name)
	}

	scope := newTempScope(e.store, e.session, e.logger)
	defer scope.cleanup(ctx)

	working, err := e.prepare(ctx, scope, req)
	if err != nil {
		return -1, err
	}

	fields, err := e.store.Fields(ctx, working)
	if err != nil {
		return -1, err
	}
	cleaned, missing := Project(req.Columns, fields)
	if len(missing) > 0 {
		e.logger.Warn("fields missing from dataset, dropped from output", "fields", strings.Join(missing, ","))
	}
	if cleaned == "" {
		e.logger.Info("no output columns remain after validation, nothing to export", "dataset", req.Dataset.Name)
		return 0, nil
	}

	orderBy, _ := filterExisting(fields, req.OrderBy)

	cur, err := e.store.Read(ctx, working, orderBy)
	if err != nil {
		return -1, err
	}
	defer cur.Close() //nolint:errcheck

	n, err := WriteCSV(cur, fields, req.OutPath, cleaned, req.Append, req.ExcludeHeader)
	if err != nil {
		return -1, err
	}
	e.logger.Info("selection exported", "dataset", req.Dataset.Name, "rows", n, "path", req.OutPath)
	return n, nil
}

// ExportSelectionToShapefile runs the derived-field and aggregation stages,
// then writes the working selection to the caller's permanent target: a
// shapefile when the path carries the .shp extension, otherwise a native
// copy under the target name. Returns the exported feature count, or -1 on
// failure.
func (e *Exporter) ExportSelectionToShapefile(ctx context.Context, req Request) (int, error) {
	if req.OutPath == "" {
		return -1, domain.ErrValidation("output path is required")
	}
	if !e.store.DatasetExists(ctx, req.Dataset) {
		e.logger.Error("input dataset does not exist", "dataset", req.Dataset.Name)
		return -1, domain.ErrNotFound("dataset %q does not exist", req.Dataset.Name)
	}

	scope := newTempScope(e.store, e.session, e.logger)
	defer scope.cleanup(ctx)

	working, err := e.prepare(ctx, scope, req)
	if err != nil {
		return -1, err
	}

	n, err := e.countRows(ctx, working)
	if err != nil {
		return -1, err
	}

	var op geostore.Op
	if strings.HasSuffix(strings.ToLower(req.OutPath), ".shp") {
		op = geostore.ExportShapefile{Input: working, Path: req.OutPath}
	} else {
		op = geostore.CopyFeatures{Input: working, Output: req.OutPath}
	}
	if err := e.store.Run(ctx, op); err != nil {
		return -1, err
	}
	e.logger.Info("selection copied", "dataset", req.Dataset.Name, "features", n, "target", req.OutPath)
	return n, nil
}

// prepare copies the selection to a working temporary and applies the
// derived-field and aggregation stages, returning the name of the final
// working dataset. Every intermediate is tracked on the scope before its
// producing operation runs, so cleanup covers partial failure.
func (e *Exporter) prepare(ctx context.Context, scope *tempScope, req Request) (string, error) {
	working := scope.track(tempName("copy"))
	if err := e.store.Run(ctx, geostore.CopyFeatures{Input: req.Dataset.Name, Output: working}); err != nil {
		return "", err
	}

	if req.IncludeArea {
		if err := e.addAreaField(ctx, working, req.AreaUnit); err != nil {
			return "", err
		}
	}
	if req.IncludeDistance && req.TargetDataset != "" {
		joined := scope.track(tempName("near"))
		if err := e.addDistanceField(ctx, working, req.TargetDataset, joined); err != nil {
			return "", err
		}
		working = joined
	}
	if err := e.addRadiusField(ctx, working, req.Radius); err != nil {
		return "", err
	}

	if len(req.GroupBy) > 0 || len(req.Statistics) > 0 {
		statsOut := scope.track(tempName("stats"))
		aggregated, err := e.aggregate(ctx, working, statsOut, req.GroupBy, req.Statistics, req.RenameAfterAggregate)
		if err != nil {
			return "", err
		}
		if aggregated {
			working = statsOut
		}
	}
	return working, nil
}

// countRows counts the rows of a working dataset through a read cursor.
func (e *Exporter) countRows(ctx context.Context, dataset string) (int, error) {
	cur, err := e.store.Read(ctx, dataset, nil)
	if err != nil {
		return 0, err
	}
	defer cur.Close() //nolint:errcheck
	n := 0
	for cur.Next() {
		n++
	}
	return n, cur.Err()
}
