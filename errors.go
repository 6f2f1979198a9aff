package memorymesh

import "github.com/sparkvibe-io/memorymesh/internal/merrors"

// Code categorizes a failure for caller-side handling. See the
// individual Code constants for what each one means.
type Code = merrors.Code

// Error is the engine's structured error type. Every error returned
// by this package is either an *Error or wraps one; use IsCode or
// errors.As to inspect it.
type Error = merrors.Error

const (
	InvalidArgument  = merrors.InvalidArgument
	NoProjectStore   = merrors.NoProjectStore
	NotFound         = merrors.NotFound
	CapacityExceeded = merrors.CapacityExceeded
	SchemaMismatch   = merrors.SchemaMismatch
	EncryptionError  = merrors.EncryptionError
	IoError          = merrors.IoError
	Cancelled        = merrors.Cancelled
)

// IsCode reports whether err carries the given Code.
func IsCode(err error, code Code) bool {
	return merrors.Is(err, code)
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	return merrors.CodeOf(err)
}
