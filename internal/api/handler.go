// Package api provides the HTTP handlers for the geoexport REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"geoexport/internal/domain"
	"geoexport/internal/service"
)

// Handler exposes export operations over HTTP.
type Handler struct {
	exports *service.ExportService
	logger  *slog.Logger
}

// NewHandler creates a Handler over the export service.
func NewHandler(exports *service.ExportService, logger *slog.Logger) *Handler {
	return &Handler{exports: exports, logger: logger.With("component", "api")}
}

// exportRequest is the JSON body for POST /api/exports.
type exportRequest struct {
	Layers        []string `json:"layers,omitempty"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	Radius        float64  `json:"radius"`
	OutFile       string   `json:"out_file"`
	KeepLayerDir  string   `json:"keep_layer_dir,omitempty"`
	ExcludeHeader bool     `json:"exclude_header,omitempty"`
}

// CreateExport runs a site export synchronously and returns the recorded run.
// Interactive callers get failures as HTTP errors; the run history and log
// carry the same information for unattended use.
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	run, err := h.exports.RunSite(r.Context(), service.SiteParams{
		Layers:        req.Layers,
		X:             req.X,
		Y:             req.Y,
		Radius:        req.Radius,
		OutFile:       req.OutFile,
		KeepLayerDir:  req.KeepLayerDir,
		ExcludeHeader: req.ExcludeHeader,
		TriggerType:   domain.TriggerTypeManual,
	})
	if err != nil {
		h.logger.Error("export failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// ListExports returns recent export runs, newest first. The optional limit
// query parameter caps the result.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.exports.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// ListLayers returns the configured layer definitions.
func (h *Handler) ListLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"layers": h.exports.Layers()})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to an HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatusFromDomainError(err), map[string]string{"error": err.Error()})
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var schema *domain.SchemaError
	var engine *domain.EngineError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &schema):
		return http.StatusBadRequest
	case errors.As(err, &engine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
