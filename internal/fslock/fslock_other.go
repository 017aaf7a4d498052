//go:build !unix

package fslock

import "os"

// Acquire is a no-op on platforms without flock semantics.
func Acquire(_ *os.File, _, _ bool) error { return nil }

// Release is a no-op on platforms without flock semantics.
func Release(_ *os.File) error { return nil }
