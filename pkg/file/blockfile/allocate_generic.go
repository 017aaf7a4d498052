//go:build !linux

package blockfile

import "os"

// allocate grows the file to size bytes. Without extent preallocation the
// grown space is a sparse hole, which still reads as zeros.
func allocate(fd *os.File, size int64) error {
	return fd.Truncate(size)
}
