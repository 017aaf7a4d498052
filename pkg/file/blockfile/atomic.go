package blockfile

import (
	"sync"

	"github.com/quarrydb/quarry/pkg/file"
)

// BlockAtomicFile is a block-aligned file whose operations are serialized:
// every call observes the file exactly as the previous one left it. Readers
// share, mutations exclude each other. On top of the one-call guarantees it
// offers critical sections for multi-step sequences.
type BlockAtomicFile struct {
	*core

	mu sync.RWMutex
}

var _ file.File = (*BlockAtomicFile)(nil)

// NewAtomic creates and returns a new BlockAtomicFile instance.
func NewAtomic(opts ...Option) *BlockAtomicFile {
	return &BlockAtomicFile{core: newCore(opts)}
}

// SetAllocationStrategy tunes how physical space is preallocated: the first
// allocation reserves at least initSize bytes and a growing file is scaled
// by incFactor. Call it before Open.
func (f *BlockAtomicFile) SetAllocationStrategy(initSize int64, incFactor float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.setAllocationStrategy(initSize, incFactor)
}

// SetAccessStrategy picks the block size of device transfers, the size of
// the in-memory head buffer and extra access flags. Call it before Open.
func (f *BlockAtomicFile) SetAccessStrategy(blockSize, headBufSize int64, access AccessOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.setAccessStrategy(blockSize, headBufSize, access)
}

// Open implements file.File.
func (f *BlockAtomicFile) Open(path string, writable bool, opts file.OpenOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.open(path, writable, opts)
}

// Close implements file.File. It waits for a held critical section to
// finish.
func (f *BlockAtomicFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.close()
}

// Read implements file.File.
func (f *BlockAtomicFile) Read(off int64, buf []byte) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.core.read(off, buf)
}

// Write implements file.File.
func (f *BlockAtomicFile) Write(off int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.write(off, data)
}

// Append implements file.File.
func (f *BlockAtomicFile) Append(data []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.append(data)
}

// Expand implements file.File.
func (f *BlockAtomicFile) Expand(inc int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.expand(inc)
}

// Truncate implements file.File.
func (f *BlockAtomicFile) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.truncate(size)
}

// Synchronize implements file.File.
func (f *BlockAtomicFile) Synchronize(hard bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.synchronize(hard)
}

// Size implements file.File.
func (f *BlockAtomicFile) Size() (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.core.size()
}

// Path implements file.File.
func (f *BlockAtomicFile) Path() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.core.filePath()
}

// Rename implements file.File.
func (f *BlockAtomicFile) Rename(newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.core.rename(newPath)
}

// IsOpen implements file.File.
func (f *BlockAtomicFile) IsOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.core.isOpen()
}

// IsMemoryMapping implements file.File. Block files never map the file:
// content may exceed the address space.
func (f *BlockAtomicFile) IsMemoryMapping() bool { return false }

// IsAtomic implements file.File.
func (f *BlockAtomicFile) IsAtomic() bool { return true }

// MakeFile implements file.File.
func (f *BlockAtomicFile) MakeFile() file.File {
	return NewAtomic()
}

// Lock opens a critical section: the caller owns the file exclusively until
// Unlock and may run any sequence of CriticalSection reads and writes with
// no other call observing an intermediate state. Returns the current
// logical size. Lock blocks while another critical section or call is in
// flight; locking twice from one goroutine deadlocks.
func (f *BlockAtomicFile) Lock() (*CriticalSection, int64, error) {
	f.mu.Lock()
	if !f.core.isOpen() {
		f.mu.Unlock()
		return nil, 0, file.ErrNotOpen
	}
	return &CriticalSection{f: f}, f.core.logical.Load(), nil
}

// CriticalSection is the handle of an exclusive multi-step sequence on a
// BlockAtomicFile. It must be finished with Unlock; until then every other
// call on the file blocks.
type CriticalSection struct {
	f *BlockAtomicFile
}

// Read behaves like BlockAtomicFile.Read inside the critical section.
func (cs *CriticalSection) Read(off int64, buf []byte) error {
	if cs.f == nil {
		return file.ErrInvalidState
	}
	return cs.f.core.read(off, buf)
}

// Write behaves like BlockAtomicFile.Write inside the critical section.
func (cs *CriticalSection) Write(off int64, data []byte) error {
	if cs.f == nil {
		return file.ErrInvalidState
	}
	return cs.f.core.write(off, data)
}

// Unlock finishes the critical section and returns the logical size it left
// the file at. The handle must not be used afterwards.
func (cs *CriticalSection) Unlock() (int64, error) {
	if cs.f == nil {
		return 0, file.ErrInvalidState
	}
	f := cs.f
	cs.f = nil
	size := f.core.logical.Load()
	f.mu.Unlock()
	return size, nil
}
