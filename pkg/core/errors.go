package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Sentinels
// =============================================================================

var (
	// ErrUnauthorized is returned when a mutating request fails the mutation guard.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the read guard rejects a read.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a definition does not exist.
	ErrNotFound = errors.New("definition not found")
)

// =============================================================================
// Expression errors
// =============================================================================

// CompileError reports an expression source that could not be compiled.
// It is reported once per column at hydration time, never per row.
type CompileError struct {
	Source string // Offending expression source
	Reason string // Human-readable reason
	Cause  error  // Underlying parser/resolver error, if any
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %q: %s", e.Source, e.Reason)
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// EvaluationError reports a runtime failure of a compiled expression
// against a specific scope.
type EvaluationError struct {
	Source string
	Cause  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Source, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// Hydration errors
// =============================================================================

// RendererResolutionMiss is recorded when a column names a renderer that is
// not present in the registry supplied at hydration time.
type RendererResolutionMiss struct {
	Column   string
	Renderer string
}

func (e *RendererResolutionMiss) Error() string {
	return fmt.Sprintf("column %q: renderer %q not found in registry", e.Column, e.Renderer)
}

// ColumnError ties a hydration diagnostic to the column that produced it.
type ColumnError struct {
	Index int
	Field string
	Err   error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("columnDefs[%d] (%s): %v", e.Index, e.Field, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Validation errors
// =============================================================================

// FieldError describes one invalid field of a definition document.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Path + ": " + e.Message
}

// ValidationError is returned when a definition document violates the schema.
// Writes that fail validation never reach storage.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid definition"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "invalid definition: " + strings.Join(parts, "; ")
}

// Paths returns the offending field paths in report order.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		paths[i] = f.Path
	}
	return paths
}

// =============================================================================
// Transport errors
// =============================================================================

// TransportError reports a failed definition or data-page fetch. It is always
// surfaced to the caller; a transport failure is never turned into an empty page.
type TransportError struct {
	URL        string
	StatusCode int // Zero when no response was received
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
