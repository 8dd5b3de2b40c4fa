// Package domain defines core types, interfaces, and errors for geoexport.
package domain

import "fmt"

// NotFoundError indicates a requested dataset, layer, or run was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SchemaError indicates a schema mismatch: a requested field is absent from a
// dataset. Schema errors are recoverable; the pipeline degrades the request
// by dropping the offending field and logging a warning instead of failing.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// EngineError indicates a failure reported by the backing dataset engine
// while executing a named operation. Engine errors are fatal to the current
// pipeline run; Message carries the engine's diagnostic text verbatim.
type EngineError struct {
	Op      string
	Message string
}

func (e *EngineError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrEngine creates an EngineError for the named operation.
func ErrEngine(op string, format string, args ...interface{}) *EngineError {
	return &EngineError{Op: op, Message: fmt.Sprintf(format, args...)}
}
