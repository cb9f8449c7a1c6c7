// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates invalid input (bad creation or update config).
var ErrValidation = errors.New("validation failed")

// ErrInvalidState indicates the operation is not permitted in the
// command's current status.
var ErrInvalidState = errors.New("operation not permitted in current state")

// ErrLocked indicates the command is frozen by an administrative lock.
var ErrLocked = errors.New("command is locked")

// ErrExternal indicates a git or tool invocation failed. It is stage-scoped:
// the failing stage is recorded and retried only via an explicit resume.
var ErrExternal = errors.New("external operation failed")

// ErrTimeout indicates an external call exceeded its configured budget.
var ErrTimeout = errors.New("external operation timed out")

// ErrStorage indicates log, artifact, or record persistence failed.
// Fatal to the running task; the command keeps its last persisted state.
var ErrStorage = errors.New("storage unavailable")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")
