package domain

import "time"

// ExportRunStatus represents the lifecycle state of an export run.
type ExportRunStatus string

// Export run lifecycle statuses.
const (
	ExportRunStatusRunning   ExportRunStatus = "RUNNING"
	ExportRunStatusSucceeded ExportRunStatus = "SUCCEEDED"
	ExportRunStatusFailed    ExportRunStatus = "FAILED"
)

// Trigger types for export runs.
const (
	TriggerTypeManual    = "MANUAL"
	TriggerTypeScheduled = "SCHEDULED"
)

// ExportRun stores durable state for one export invocation.
type ExportRun struct {
	ID           string
	Layers       []string
	Destination  string
	TriggerType  string
	Status       ExportRunStatus
	RowCount     int
	ErrorMessage *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
