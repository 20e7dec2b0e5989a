package audit

import (
	"fmt"
	"strings"
)

// StorageError is a failed call into an audit backend.
type StorageError struct {
	// Backend is "sqlite" or "memory".
	Backend string
	// Operation names the failed call, e.g. "open", "store_run", "query_verdicts".
	Operation string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit %s %s: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError wraps cause as a failure of operation on backend.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// RecorderError is a verdict or run record that could not be stored. ReadID
// is empty for run records.
type RecorderError struct {
	ReadID string
	Cause  error
}

func (e *RecorderError) Error() string {
	if e.ReadID == "" {
		return fmt.Sprintf("record run: %v", e.Cause)
	}
	return fmt.Sprintf("record verdict for read %s: %v", e.ReadID, e.Cause)
}

func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError wraps cause for the pair readID.
func NewRecorderError(readID string, cause error) *RecorderError {
	return &RecorderError{ReadID: readID, Cause: cause}
}

// RetentionError is a failed prune. It carries the limits that were being
// enforced.
type RetentionError struct {
	RetentionDays int
	MaxRuns       int64
	Cause         error
}

func (e *RetentionError) Error() string {
	var limits []string
	if e.RetentionDays > 0 {
		limits = append(limits, fmt.Sprintf("older than %dd", e.RetentionDays))
	}
	if e.MaxRuns > 0 {
		limits = append(limits, fmt.Sprintf("beyond %d runs", e.MaxRuns))
	}
	if len(limits) == 0 {
		return fmt.Sprintf("prune runs: %v", e.Cause)
	}
	return fmt.Sprintf("prune runs %s: %v", strings.Join(limits, ", "), e.Cause)
}

func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// NewRetentionError wraps cause for a prune with the given limits.
func NewRetentionError(retentionDays int, maxRuns int64, cause error) *RetentionError {
	return &RetentionError{RetentionDays: retentionDays, MaxRuns: maxRuns, Cause: cause}
}
