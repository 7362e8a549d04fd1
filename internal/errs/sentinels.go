// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across api/service/console layers.
var (
	// ErrNotFound indicates the requested collection or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, expired or rejected auth token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates input rejected locally before any request was sent.
	ErrValidation = errors.New("validation")

	// ErrPasswordMismatch indicates the password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrUnknownFieldType indicates a schema field whose type is outside the known set.
	ErrUnknownFieldType = errors.New("unknown field type")

	// ErrInvalidImport indicates an import payload that is not an array of collections.
	ErrInvalidImport = errors.New("invalid import")

	// ErrImportConflict indicates the change set still contains name conflicts.
	ErrImportConflict = errors.New("import has conflicts")

	// ErrBusy indicates another mutating operation is still in flight.
	ErrBusy = errors.New("operation in progress")

	// ErrNavigationCancelled indicates the operator declined to leave unsaved changes.
	ErrNavigationCancelled = errors.New("navigation cancelled")

	// ErrNotConfirmed indicates the operator declined a destructive action.
	ErrNotConfirmed = errors.New("not confirmed")

	// ErrTooManyAttempts indicates logins are locked after repeated failures.
	ErrTooManyAttempts = errors.New("too many failed logins")
)
