// Package stdfile provides a plain buffered file backend.
//
// StdFile delegates to the operating system's page cache with no block
// alignment, preallocation or head buffering. It is the simplest backend
// satisfying the file contract and the reference point the block backends
// are checked against.
package stdfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quarrydb/quarry/internal/fslock"
	"github.com/quarrydb/quarry/pkg/file"
)

// Option is an option of StdFile's constructor.
type Option func(*cfg)

type cfg struct {
	perm fs.FileMode
	log  *zap.Logger
}

func defaultCfg() *cfg {
	return &cfg{
		perm: 0644,
		log:  zap.L(),
	}
}

// WithLogger returns option to specify the logger of lifecycle operations.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithPermissions returns option to specify permission bits of created
// files.
func WithPermissions(perm fs.FileMode) Option {
	return func(c *cfg) {
		c.perm = perm
	}
}

// StdFile is a file backend over the page cache. All operations are
// serialized by one lock, so the backend is atomic: every call observes the
// file exactly as the previous one left it.
type StdFile struct {
	*cfg

	mu sync.RWMutex

	fd          *os.File
	path        string
	writable    bool
	syncOnClose bool
	locked      bool
	size        int64
}

var _ file.File = (*StdFile)(nil)

// New creates and returns a new StdFile instance.
func New(opts ...Option) *StdFile {
	c := defaultCfg()

	for i := range opts {
		opts[i](c)
	}

	return &StdFile{cfg: c}
}

// Open implements file.File.
func (f *StdFile) Open(path string, writable bool, opts file.OpenOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd != nil {
		return file.ErrAlreadyOpen
	}

	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
		if !opts.Has(file.OpenNoCreate) {
			flags |= os.O_CREATE
		}
	}

	fd, err := os.OpenFile(path, flags, f.perm)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", file.ErrNotFound, path)
		}
		return &file.IOError{Op: "open", Path: path, Err: err}
	}

	locked := !opts.Has(file.OpenNoLock)
	if locked {
		err = fslock.Acquire(fd, writable, !opts.Has(file.OpenNoWait))
		if err != nil {
			_ = fd.Close()
			if errors.Is(err, fslock.ErrLocked) {
				return fmt.Errorf("%w: %s", file.ErrLockUnavailable, path)
			}
			return &file.IOError{Op: "lock", Path: path, Err: err}
		}
	}

	fail := func(op string, err error) error {
		if locked {
			_ = fslock.Release(fd)
		}
		_ = fd.Close()
		return &file.IOError{Op: op, Path: path, Err: err}
	}

	if writable && opts.Has(file.OpenTruncate) {
		if err := fd.Truncate(0); err != nil {
			return fail("truncate", err)
		}
	}

	st, err := fd.Stat()
	if err != nil {
		return fail("stat", err)
	}

	f.fd = fd
	f.path = path
	f.writable = writable
	f.syncOnClose = opts.Has(file.OpenSyncHard)
	f.locked = locked
	f.size = st.Size()

	f.log.Debug("file opened",
		zap.String("path", path),
		zap.Bool("writable", writable),
		zap.Int64("size", f.size))

	return nil
}

// Close implements file.File.
func (f *StdFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd == nil {
		return file.ErrNotOpen
	}

	var errs error
	if f.writable && f.syncOnClose {
		errs = multierr.Append(errs, f.wrapIO("sync", f.fd.Sync()))
	}
	if f.locked {
		errs = multierr.Append(errs, f.wrapIO("unlock", fslock.Release(f.fd)))
	}
	errs = multierr.Append(errs, f.wrapIO("close", f.fd.Close()))

	f.log.Debug("file closed",
		zap.String("path", f.path),
		zap.Int64("size", f.size))

	f.fd = nil
	f.path = ""
	f.locked = false
	f.size = 0

	return errs
}

// Read implements file.File.
func (f *StdFile) Read(off int64, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.read(off, buf)
}

// Write implements file.File.
func (f *StdFile) Write(off int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(off, data)
}

// Append implements file.File.
func (f *StdFile) Append(data []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	off := f.size
	if err := f.write(off, data); err != nil {
		return 0, err
	}
	return off, nil
}

// Expand implements file.File.
func (f *StdFile) Expand(inc int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd == nil {
		return 0, file.ErrNotOpen
	}
	if !f.writable {
		return 0, file.ErrReadOnly
	}
	if inc < 0 {
		return 0, fmt.Errorf("%w: negative increment %d", file.ErrOutOfRange, inc)
	}

	off := f.size
	if err := f.fd.Truncate(off + inc); err != nil {
		return 0, f.wrapIO("truncate", err)
	}
	f.size = off + inc
	return off, nil
}

// Truncate implements file.File.
func (f *StdFile) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd == nil {
		return file.ErrNotOpen
	}
	if !f.writable {
		return file.ErrReadOnly
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", file.ErrOutOfRange, size)
	}

	if err := f.fd.Truncate(size); err != nil {
		return f.wrapIO("truncate", err)
	}
	f.size = size
	return nil
}

// Synchronize implements file.File. The stored size always matches the
// logical one, so only the hard flavor has work to do.
func (f *StdFile) Synchronize(hard bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd == nil {
		return file.ErrNotOpen
	}
	if !f.writable || !hard {
		return nil
	}
	return f.wrapIO("sync", f.fd.Sync())
}

// Size implements file.File.
func (f *StdFile) Size() (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.fd == nil {
		return 0, file.ErrNotOpen
	}
	return f.size, nil
}

// Path implements file.File.
func (f *StdFile) Path() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.fd == nil {
		return "", file.ErrNotOpen
	}
	return f.path, nil
}

// Rename implements file.File.
func (f *StdFile) Rename(newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd == nil {
		return file.ErrNotOpen
	}
	if err := os.Rename(f.path, newPath); err != nil {
		return f.wrapIO("rename", err)
	}
	f.path = newPath
	return nil
}

// IsOpen implements file.File.
func (f *StdFile) IsOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fd != nil
}

// IsMemoryMapping implements file.File.
func (f *StdFile) IsMemoryMapping() bool { return false }

// IsAtomic implements file.File.
func (f *StdFile) IsAtomic() bool { return true }

// MakeFile implements file.File.
func (f *StdFile) MakeFile() file.File {
	return New()
}

// Lock opens a critical section: the caller owns the file exclusively until
// Unlock and may run any sequence of CriticalSection reads and writes with
// no other call observing an intermediate state. Returns the current
// logical size.
func (f *StdFile) Lock() (*CriticalSection, int64, error) {
	f.mu.Lock()
	if f.fd == nil {
		f.mu.Unlock()
		return nil, 0, file.ErrNotOpen
	}
	return &CriticalSection{f: f}, f.size, nil
}

// CriticalSection is the handle of an exclusive multi-step sequence on a
// StdFile. It must be finished with Unlock; until then every other call on
// the file blocks.
type CriticalSection struct {
	f *StdFile
}

// Read behaves like StdFile.Read inside the critical section.
func (cs *CriticalSection) Read(off int64, buf []byte) error {
	if cs.f == nil {
		return file.ErrInvalidState
	}
	return cs.f.read(off, buf)
}

// Write behaves like StdFile.Write inside the critical section.
func (cs *CriticalSection) Write(off int64, data []byte) error {
	if cs.f == nil {
		return file.ErrInvalidState
	}
	return cs.f.write(off, data)
}

// Unlock finishes the critical section and returns the logical size it left
// the file at. The handle must not be used afterwards.
func (cs *CriticalSection) Unlock() (int64, error) {
	if cs.f == nil {
		return 0, file.ErrInvalidState
	}
	f := cs.f
	cs.f = nil
	size := f.size
	f.mu.Unlock()
	return size, nil
}

func (f *StdFile) read(off int64, buf []byte) error {
	if f.fd == nil {
		return file.ErrNotOpen
	}
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", file.ErrOutOfRange, off)
	}
	if end := off + int64(len(buf)); end > f.size {
		return fmt.Errorf("%w: read [%d:%d) of %d-byte file", file.ErrOutOfRange, off, end, f.size)
	}
	if len(buf) == 0 {
		return nil
	}

	if _, err := f.fd.ReadAt(buf, off); err != nil {
		return &file.IOError{Op: "read", Path: f.path, Err: err}
	}
	return nil
}

func (f *StdFile) write(off int64, data []byte) error {
	if f.fd == nil {
		return file.ErrNotOpen
	}
	if !f.writable {
		return file.ErrReadOnly
	}
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", file.ErrOutOfRange, off)
	}
	if len(data) == 0 {
		return nil
	}

	if _, err := f.fd.WriteAt(data, off); err != nil {
		return &file.IOError{Op: "write", Path: f.path, Err: err}
	}
	if end := off + int64(len(data)); end > f.size {
		f.size = end
	}
	return nil
}

func (f *StdFile) wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &file.IOError{Op: op, Path: f.path, Err: err}
}
