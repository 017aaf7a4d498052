//go:build unix

package fslock

import (
	"os"

	"golang.org/x/sys/unix"
)

// Acquire locks f for this process, exclusive or shared. With wait set it
// blocks until the current holder releases the lock, otherwise it returns
// ErrLocked right away.
func Acquire(f *os.File, exclusive, wait bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if !wait {
		how |= unix.LOCK_NB
	}

	for {
		err := unix.Flock(int(f.Fd()), how)
		switch err {
		case nil:
			return nil
		case unix.EINTR:
			continue
		case unix.EWOULDBLOCK:
			return ErrLocked
		default:
			return err
		}
	}
}

// Release drops the lock held on f.
func Release(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
