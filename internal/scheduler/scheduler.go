// Package scheduler runs cron-scheduled layer exports.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"geoexport/internal/domain"
	"geoexport/internal/layers"
	"geoexport/internal/service"
)

// Scheduler triggers site exports for layers carrying a cron expression.
type Scheduler struct {
	cron    *cron.Cron
	exports *service.ExportService
	logger  *slog.Logger
}

// New creates a scheduler over the export service.
func New(exports *service.ExportService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		exports: exports,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start registers every scheduled layer and starts the cron loop. Scheduled
// exports cover the layer's full extent (no radius clipping) and write to a
// timestamped file.
func (s *Scheduler) Start() error {
	scheduled := 0
	for _, l := range s.exports.Layers() {
		if l.ScheduleCron == "" {
			continue
		}
		layer := l
		_, err := s.cron.AddFunc(layer.ScheduleCron, func() {
			s.runScheduled(layer)
		})
		if err != nil {
			return fmt.Errorf("schedule layer %q (%q): %w", layer.Name, layer.ScheduleCron, err)
		}
		scheduled++
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "scheduled_layers", scheduled)
	return nil
}

// Stop stops the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runScheduled(layer layers.Layer) {
	ctx := context.Background()
	out := fmt.Sprintf("%s_%s.csv", layer.Name, time.Now().UTC().Format("20060102T150405"))
	_, err := s.exports.RunSite(ctx, service.SiteParams{
		Layers:      []string{layer.Name},
		OutFile:     out,
		TriggerType: domain.TriggerTypeScheduled,
	})
	if err != nil {
		s.logger.Warn("scheduled export failed", "layer", layer.Name, "error", err)
	}
}
