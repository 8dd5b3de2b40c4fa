// Package service coordinates export runs: layer resolution, pipeline
// invocation, and run-history recording.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"geoexport/internal/domain"
	"geoexport/internal/export"
	"geoexport/internal/layers"
	"geoexport/internal/repository"
)

// ExportService runs site exports and records them in the run history.
// Runs are serialized by the callers (one foreground export at a time); the
// service itself holds no mutable state across runs.
type ExportService struct {
	exporter   *export.Exporter
	runs       *repository.ExportRunRepo
	layerSet   *layers.Set
	exportDir  string
	hookScript string
	logger     *slog.Logger
}

// NewExportService wires the service. layerSet may be nil when no layer
// definitions are configured; only ad-hoc requests are possible then.
func NewExportService(exporter *export.Exporter, runs *repository.ExportRunRepo, layerSet *layers.Set, exportDir, hookScript string, logger *slog.Logger) *ExportService {
	return &ExportService{
		exporter:   exporter,
		runs:       runs,
		layerSet:   layerSet,
		exportDir:  exportDir,
		hookScript: hookScript,
		logger:     logger.With("component", "export-service"),
	}
}

// SiteParams selects the layers and location for one site export.
type SiteParams struct {
	Layers        []string // empty selects every defined layer
	X, Y          float64
	Radius        float64
	OutFile       string // relative names resolve under the export directory
	KeepLayerDir  string
	ExcludeHeader bool
	TriggerType   string // MANUAL or SCHEDULED
}

// Layers returns the configured layer definitions.
func (s *ExportService) Layers() []layers.Layer {
	if s.layerSet == nil {
		return nil
	}
	return s.layerSet.Layers
}

// Runs lists recent export runs, newest first.
func (s *ExportService) Runs(ctx context.Context, limit int) ([]domain.ExportRun, error) {
	return s.runs.List(ctx, limit)
}

// RunSite executes a site export and records it. The returned run carries
// the terminal status; a failed pipeline surfaces both the recorded run and
// the error.
func (s *ExportService) RunSite(ctx context.Context, params SiteParams) (domain.ExportRun, error) {
	if s.layerSet == nil {
		return domain.ExportRun{}, domain.ErrValidation("no layer definitions are configured")
	}
	selected, err := s.layerSet.Select(params.Layers)
	if err != nil {
		return domain.ExportRun{}, err
	}
	if params.OutFile == "" {
		return domain.ExportRun{}, domain.ErrValidation("output file is required")
	}
	outPath := params.OutFile
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(s.exportDir, outPath)
	}

	trigger := params.TriggerType
	if trigger == "" {
		trigger = domain.TriggerTypeManual
	}

	names := make([]string, len(selected))
	for i, l := range selected {
		names[i] = l.Name
	}
	run := domain.ExportRun{
		ID:          uuid.NewString(),
		Layers:      names,
		Destination: outPath,
		TriggerType: trigger,
		Status:      domain.ExportRunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return domain.ExportRun{}, err
	}

	req := export.SiteRequest{
		X:             params.X,
		Y:             params.Y,
		Radius:        params.Radius,
		Layers:        selected,
		OutPath:       outPath,
		KeepLayerDir:  params.KeepLayerDir,
		ExcludeHeader: params.ExcludeHeader,
		HookScript:    s.hookScript,
	}
	rows, exportErr := s.exporter.ExportSite(ctx, req)

	if exportErr != nil {
		msg := exportErr.Error()
		run.Status = domain.ExportRunStatusFailed
		run.ErrorMessage = &msg
		run.RowCount = 0
		if err := s.runs.Finish(ctx, run.ID, run.Status, 0, &msg); err != nil {
			s.logger.Warn("failed to record run failure", "run", run.ID, "error", err)
		}
		return run, exportErr
	}

	run.Status = domain.ExportRunStatusSucceeded
	run.RowCount = rows
	if err := s.runs.Finish(ctx, run.ID, run.Status, rows, nil); err != nil {
		s.logger.Warn("failed to record run completion", "run", run.ID, "error", err)
	}
	return run, nil
}
