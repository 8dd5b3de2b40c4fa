package geostore

import (
	"context"
	"sync"
	"time"
)

// OpStatus is the lifecycle state of a dispatched engine operation.
type OpStatus string

// Operation lifecycle statuses.
const (
	StatusExecuting OpStatus = "EXECUTING"
	StatusSucceeded OpStatus = "SUCCEEDED"
	StatusFailed    OpStatus = "FAILED"
	StatusCancelled OpStatus = "CANCELLED"
)

// Terminal reports whether the status is a terminal state.
func (s OpStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Handle tracks the status of one dispatched operation. The executing
// goroutine moves it to a terminal state exactly once.
type Handle struct {
	mu      sync.Mutex
	status  OpStatus
	message string
}

// NewHandle returns a handle in the executing state.
func NewHandle() *Handle {
	return &Handle{status: StatusExecuting}
}

// Status returns the current status and any diagnostic message.
func (h *Handle) Status() (OpStatus, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.message
}

// finish moves the handle to a terminal state. Later calls are ignored.
func (h *Handle) finish(status OpStatus, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return
	}
	h.status = status
	h.message = message
}

// Wait polls the handle at the given interval until it reaches a terminal
// status. There is no timeout: polling continues for as long as the engine
// reports the operation as executing. Cancelling ctx stops waiting and
// returns the cancelled status.
func Wait(ctx context.Context, h *Handle, interval time.Duration) (OpStatus, string) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, msg := h.Status()
		if status.Terminal() {
			return status, msg
		}
		select {
		case <-ctx.Done():
			return StatusCancelled, ctx.Err().Error()
		case <-ticker.C:
		}
	}
}
