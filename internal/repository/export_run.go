// Package repository provides data access over the SQLite run-history store.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"geoexport/internal/domain"
)

const timeFormat = "2006-01-02 15:04:05"

// ExportRunRepo persists export run records.
type ExportRunRepo struct {
	db *sql.DB
}

// NewExportRunRepo creates a repository over the run-history database.
func NewExportRunRepo(db *sql.DB) *ExportRunRepo {
	return &ExportRunRepo{db: db}
}

// Create inserts a new run in RUNNING state.
func (r *ExportRunRepo) Create(ctx context.Context, run domain.ExportRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_runs (id, layers, destination, trigger_type, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		strings.Join(run.Layers, ","),
		run.Destination,
		run.TriggerType,
		string(run.Status),
		run.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert export run: %w", err)
	}
	return nil
}

// Finish records the terminal status, row count, and error of a run.
func (r *ExportRunRepo) Finish(ctx context.Context, id string, status domain.ExportRunStatus, rowCount int, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_runs
		SET status = ?, row_count = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		string(status), rowCount, errMsg, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("finish export run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish export run: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("export run %q not found", id)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *ExportRunRepo) List(ctx context.Context, limit int) ([]domain.ExportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, layers, destination, trigger_type, status, row_count, error_message, started_at, finished_at
		FROM export_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.ExportRun
	for rows.Next() {
		var run domain.ExportRun
		var layersCSV, startedAt string
		var errMsg, finishedAt sql.NullString
		var status string
		if err := rows.Scan(&run.ID, &layersCSV, &run.Destination, &run.TriggerType,
			&status, &run.RowCount, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		run.Status = domain.ExportRunStatus(status)
		if layersCSV != "" {
			run.Layers = strings.Split(layersCSV, ",")
		}
		if errMsg.Valid {
			run.ErrorMessage = &errMsg.String
		}
		if t, err := time.Parse(timeFormat, startedAt); err == nil {
			run.StartedAt = t
		}
		if finishedAt.Valid {
			if t, err := time.Parse(timeFormat, finishedAt.String); err == nil {
				run.FinishedAt = &t
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	return runs, nil
}

// Get returns one run by ID.
func (r *ExportRunRepo) Get(ctx context.Context, id string) (domain.ExportRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, layers, destination, trigger_type, status, row_count, error_message, started_at, finished_at
		FROM export_runs
		WHERE id = ?`, id)

	var run domain.ExportRun
	var layersCSV, startedAt, status string
	var errMsg, finishedAt sql.NullString
	err := row.Scan(&run.ID, &layersCSV, &run.Destination, &run.TriggerType,
		&status, &run.RowCount, &errMsg, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return domain.ExportRun{}, domain.ErrNotFound("export run %q not found", id)
	}
	if err != nil {
		return domain.ExportRun{}, fmt.Errorf("get export run: %w", err)
	}
	run.Status = domain.ExportRunStatus(status)
	if layersCSV != "" {
		run.Layers = strings.Split(layersCSV, ",")
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if t, err := time.Parse(timeFormat, startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(timeFormat, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return run, nil
}
