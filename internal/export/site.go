package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
	"geoexport/internal/layers"
)

// SiteRequest describes a multi-layer export around a location of interest.
type SiteRequest struct {
	X, Y   float64
	Radius float64 // ground units; 0 disables clipping and the radius tag

	Layers []layers.Layer

	OutPath       string // combined delimited output file
	KeepLayerDir  string // when set, each keep_layer layer is copied here
	ExcludeHeader bool
	HookScript    string // optional post-export script
}

// radiusTag renders the radius literal for the Radius field, or the sentinel
// when no radius applies.
func (r SiteRequest) radiusTag() string {
	if r.Radius <= 0 {
		return domain.RadiusNone
	}
	return fmt.Sprintf("%g", r.Radius)
}

// ExportSite runs the pipeline for every selected layer around the location
// of interest, appending each layer's rows to one combined delimited file.
// A failing layer is logged and skipped; the loop continues with the rest.
// Returns the total number of data rows written.
func (e *Exporter) ExportSite(ctx context.Context, req SiteRequest) (int, error) {
	if len(req.Layers) == 0 {
		return 0, domain.ErrValidation("no layers selected")
	}
	if req.OutPath == "" {
		return 0, domain.ErrValidation("output path is required")
	}

	total := 0
	wroteAny := false
	for _, layer := range req.Layers {
		n, err := e.exportLayer(ctx, layer, req, wroteAny)
		if err != nil {
			e.logger.Error("layer export failed, continuing", "layer", layer.Name, "error", err)
			continue
		}
		if n > 0 {
			wroteAny = true
			total += n
		}
	}

	outDir := filepath.Dir(req.OutPath)
	outName := filepath.Base(req.OutPath)
	spreadsheet := strings.TrimSuffix(outName, filepath.Ext(outName)) + ".xls"
	runPostExportHook(ctx, e.logger, req.HookScript, outDir, outName, spreadsheet)

	e.logger.Info("site export complete", "layers", len(req.Layers), "rows", total, "path", req.OutPath)
	return total, nil
}

// exportLayer clips one layer to the search radius and runs the selection
// pipeline on the clipped selection.
func (e *Exporter) exportLayer(ctx context.Context, layer layers.Layer, req SiteRequest, appendMode bool) (int, error) {
	ds := layer.DatasetRef()
	if !e.store.DatasetExists(ctx, ds) {
		return -1, domain.ErrNotFound("layer %q dataset %q does not exist", layer.Name, layer.Dataset)
	}

	scope := newTempScope(e.store, e.session, e.logger)
	defer scope.cleanup(ctx)

	input := ds
	if layer.UseRadius && req.Radius > 0 {
		clipped := scope.track(tempName("clip"))
		op := geostore.Clip{Input: ds.Name, X: req.X, Y: req.Y, Radius: req.Radius, Output: clipped}
		if err := e.store.Run(ctx, op); err != nil {
			return -1, err
		}
		input = domain.Dataset{Name: clipped}
	}

	sel := Request{
		Dataset:              input,
		OutPath:              req.OutPath,
		Columns:              layer.Columns,
		OrderBy:              layer.OrderBy,
		GroupBy:              layer.GroupBy,
		Statistics:           layer.DomainStatistics(),
		RenameAfterAggregate: layer.RenameAfterAg,
		IncludeArea:          layer.IncludeArea,
		AreaUnit:             domain.AreaUnit(layer.AreaUnit),
		IncludeDistance:      layer.Target != "",
		TargetDataset:        layer.Target,
		Radius:               req.radiusTag(),
		Append:               appendMode,
		ExcludeHeader:        req.ExcludeHeader,
	}
	n, err := e.ExportSelectionToCSV(ctx, sel)
	if err != nil {
		return n, err
	}

	if layer.KeepLayer && req.KeepLayerDir != "" {
		keep := sel
		keep.OutPath = filepath.Join(req.KeepLayerDir, layer.Name+".shp")
		if _, err := e.ExportSelectionToShapefile(ctx, keep); err != nil {
			return n, err
		}
	}
	return n, nil
}
