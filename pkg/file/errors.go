package file

import "errors"

var (
	// ErrNotOpen MUST be returned by operations that require an opened file
	// when the object is in the closed state.
	ErrNotOpen = errors.New("file not opened")

	// ErrAlreadyOpen MUST be returned by Open when the object is already
	// associated with a file.
	ErrAlreadyOpen = errors.New("file already opened")

	// ErrNotFound is returned by Open when the file does not exist and may
	// not be created.
	ErrNotFound = errors.New("file not found")

	// ErrReadOnly MUST be returned for modifying operations when the file
	// was opened as read-only.
	ErrReadOnly = errors.New("opened as read-only")

	// ErrInvalidState is returned when an operation is not applicable to the
	// current state of the object, e.g. reconfiguring strategies of an
	// opened file.
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfRange is returned when a requested region or argument lies
	// outside the valid range.
	ErrOutOfRange = errors.New("out of range")

	// ErrLockUnavailable is returned by Open when the advisory file lock is
	// held elsewhere and waiting is not allowed.
	ErrLockUnavailable = errors.New("file lock unavailable")
)

// IOError wraps a failed operating system call on a file. Callers unwrap it
// with errors.As to reach the operation and path, or errors.Is to match the
// underlying cause.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string { return e.Op + " " + e.Path + ": " + e.Err.Error() }

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }
