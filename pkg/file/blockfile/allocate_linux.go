//go:build linux

package blockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// allocate grows the file to size bytes of real extents, so that later
// writes into the reserved space cannot fail on a full device halfway
// through a patch cycle.
func allocate(fd *os.File, size int64) error {
	err := unix.Fallocate(int(fd.Fd()), 0, 0, size)
	if err == unix.EOPNOTSUPP || err == unix.ENOSYS {
		// filesystem without extent preallocation
		return fd.Truncate(size)
	}
	return err
}
