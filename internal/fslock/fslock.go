// Package fslock applies advisory inter-process locks to open files.
//
// Locks are tied to the descriptor: closing the file releases the lock even
// if Release is never called. Locking is cooperative, nothing stops a
// process that does not take the lock from touching the file.
package fslock

import "errors"

// ErrLocked is returned by a non-waiting Acquire when the lock is held by
// another process.
var ErrLocked = errors.New("locked by another process")
