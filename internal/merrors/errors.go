// Package merrors defines the typed error taxonomy shared by every
// MemoryMesh component. The engine never panics on user input; every
// validation or storage failure is surfaced as an *Error with a Code
// that callers can switch on or compare with errors.Is.
package merrors

import (
	"errors"
	"fmt"
)

// Code categorizes a failure for caller-side handling.
type Code string

const (
	// InvalidArgument marks malformed input: empty text, oversized
	// text/metadata, a metadata-filter key that fails the identifier
	// regex, or a malformed time range.
	InvalidArgument Code = "invalid_argument"

	// NoProjectStore marks an operation that requires project scope
	// when no project store is configured.
	NoProjectStore Code = "no_project_store"

	// NotFound marks a lookup by id that found nothing.
	NotFound Code = "not_found"

	// CapacityExceeded marks a store that has hit its row cap.
	CapacityExceeded Code = "capacity_exceeded"

	// SchemaMismatch marks a database stamped at a version newer than
	// this build of the engine understands.
	SchemaMismatch Code = "schema_mismatch"

	// EncryptionError marks a wrong passphrase, corrupted ciphertext,
	// or missing salt record.
	EncryptionError Code = "encryption_error"

	// IoError marks an underlying storage/disk failure.
	IoError Code = "io_error"

	// Cancelled marks an operation aborted via Close or context
	// cancellation.
	Cancelled Code = "cancelled"
)

// Error is the engine's structured error type. It always carries a
// Code so callers can classify failures without string matching.
type Error struct {
	Code Code

	// Op names the operation that failed, e.g. "Remember", "store.Insert".
	Op string

	// Message is a human-readable detail. Optional.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with the given code and formatted message.
func New(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and operation name to an underlying error.
func Wrap(code Code, op string, cause error) *Error {
	return &Error{Code: code, Op: op, Cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
