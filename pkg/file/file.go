// Package file defines the contract between the storage engine and its file
// backends.
package file

// OpenOptions is a bit set controlling how a file is opened. Values are
// combined with bitwise OR.
type OpenOptions uint32

const (
	// OpenDefault requests the default opening behavior.
	OpenDefault OpenOptions = 0

	// OpenTruncate discards the existing content of a writable file.
	OpenTruncate OpenOptions = 1 << 0

	// OpenNoCreate makes a writable Open fail with ErrNotFound instead of
	// creating a missing file.
	OpenNoCreate OpenOptions = 1 << 1

	// OpenNoWait makes Open fail with ErrLockUnavailable instead of waiting
	// for the advisory lock held by another process.
	OpenNoWait OpenOptions = 1 << 2

	// OpenNoLock skips advisory locking entirely.
	OpenNoLock OpenOptions = 1 << 3

	// OpenSyncHard makes Close synchronize content to the device before
	// closing.
	OpenSyncHard OpenOptions = 1 << 4
)

// Has reports whether all bits of flag are set in o.
func (o OpenOptions) Has(flag OpenOptions) bool { return o&flag == flag }

// File is the low-level positional file of the storage engine. The database
// layers above it read and write self-describing regions and expect nothing
// from the file but bytes, sizes and durability control.
//
// A File object cycles between the closed and the opened state. Open
// requires the closed state, almost everything else requires the opened one.
// Concrete types decide how concurrent calls interact and report the
// strictest contract through IsAtomic.
type File interface {
	// Open associates the object with the file at path and prepares it for
	// access. A missing path is created when writable, unless OpenNoCreate
	// is set, and reported as ErrNotFound otherwise. The advisory
	// inter-process lock is taken exclusive when writable and shared
	// otherwise, honoring OpenNoWait and OpenNoLock.
	Open(path string, writable bool, opts OpenOptions) error

	// Close flushes buffered state, reconciles the stored size with the
	// logical one, releases the advisory lock and closes the descriptor.
	// The object returns to the closed state even if some steps fail.
	Close() error

	// Read fills buf with the bytes at offset off. The region must lie
	// entirely inside the file, otherwise ErrOutOfRange is returned.
	Read(off int64, buf []byte) error

	// Write stores data at offset off, growing the file as needed. A gap
	// between the previous end and off reads back as zero bytes.
	Write(off int64, data []byte) error

	// Append stores data at the end of the file and returns the offset the
	// data landed at. Concurrent appends receive disjoint regions.
	Append(data []byte) (int64, error)

	// Expand grows the file by inc bytes without writing anything and
	// returns the offset of the new region, the previous end.
	Expand(inc int64) (int64, error)

	// Truncate sets the logical size to exactly size. Growing exposes zero
	// bytes.
	Truncate(size int64) error

	// Synchronize reconciles the stored size with the logical one, so
	// external tools can inspect the file safely, and flushes buffered
	// content. With hard it also forces the device to commit.
	Synchronize(hard bool) error

	// Size returns the current logical size.
	Size() (int64, error)

	// Path returns the path the file was opened with.
	Path() (string, error)

	// Rename moves the file to newPath without disturbing access.
	Rename(newPath string) error

	// IsOpen reports whether the object is in the opened state.
	IsOpen() bool

	// IsMemoryMapping reports whether the implementation accesses content
	// through memory mapping.
	IsMemoryMapping() bool

	// IsAtomic reports whether operations of the implementation are
	// performed atomically with respect to each other.
	IsAtomic() bool

	// MakeFile returns a new unopened instance of the same concrete type,
	// carrying over no state.
	MakeFile() File
}
