package geostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandle_FinishIsTerminalOnce(t *testing.T) {
	h := NewHandle()
	status, _ := h.Status()
	assert.Equal(t, StatusExecuting, status)

	h.finish(StatusFailed, "boom")
	h.finish(StatusSucceeded, "")

	status, msg := h.Status()
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, "boom", msg)
}

func TestWait_ReturnsTerminalStatus(t *testing.T) {
	h := NewHandle()
	go func() {
		time.Sleep(5 * time.Millisecond)
		h.finish(StatusSucceeded, "")
	}()

	status, _ := Wait(context.Background(), h, time.Millisecond)
	assert.Equal(t, StatusSucceeded, status)
}

func TestWait_AlreadyTerminalReturnsImmediately(t *testing.T) {
	h := NewHandle()
	h.finish(StatusFailed, "disk full")

	status, msg := Wait(context.Background(), h, time.Hour)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, "disk full", msg)
}

func TestWait_ContextCancellation(t *testing.T) {
	h := NewHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, _ := Wait(ctx, h, time.Millisecond)
	assert.Equal(t, StatusCancelled, status)
}

func TestOpStatusTerminal(t *testing.T) {
	assert.False(t, StatusExecuting.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
