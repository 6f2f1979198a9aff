package merrors

import (
	"errors"
	"testing"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(InvalidArgument, "store.Insert", "text too long: %d chars", 100001)
	if err.Code != InvalidArgument {
		t.Errorf("Code = %q, want %q", err.Code, InvalidArgument)
	}
	want := "store.Insert: invalid_argument: text too long: 100001 chars"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoError, "store.Insert", cause)

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose cause via errors.Is")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestIs(t *testing.T) {
	err := New(NotFound, "store.Get", "id %q", "abc")
	if !Is(err, NotFound) {
		t.Error("expected Is(err, NotFound) to be true")
	}
	if Is(err, InvalidArgument) {
		t.Error("expected Is(err, InvalidArgument) to be false")
	}
	if Is(errors.New("plain"), NotFound) {
		t.Error("expected Is on a plain error to be false")
	}
}

func TestCodeOf(t *testing.T) {
	err := New(CapacityExceeded, "store.Insert", "row cap reached")
	if CodeOf(err) != CapacityExceeded {
		t.Errorf("CodeOf = %q, want %q", CodeOf(err), CapacityExceeded)
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("expected CodeOf on a plain error to be empty")
	}
}
