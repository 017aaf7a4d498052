package blockfile

import (
	"github.com/quarrydb/quarry/pkg/file"
)

// BlockParallelFile is a block-aligned file for concurrent workloads.
//
// Read, Write, Append, Expand and Size may be called from any number of
// goroutines at once. Calls are independent: the engine guarantees that
// size reservations are never lost, that patches of one block never corrupt
// each other and that whole blocks are written with single device calls,
// but it orders nothing beyond that. A reader racing a writer may observe
// any mix of old and new bytes at block granularity. Multi-step consistency
// belongs to BlockAtomicFile.
//
// Lifecycle calls (Open, Close, Truncate, Synchronize, Rename and the
// strategy setters) must not run concurrently with data calls.
type BlockParallelFile struct {
	*core
}

var _ file.File = (*BlockParallelFile)(nil)

// NewParallel creates and returns a new BlockParallelFile instance.
func NewParallel(opts ...Option) *BlockParallelFile {
	return &BlockParallelFile{core: newCore(opts)}
}

// SetAllocationStrategy tunes how physical space is preallocated: the first
// allocation reserves at least initSize bytes and a growing file is scaled
// by incFactor. Call it before Open.
func (f *BlockParallelFile) SetAllocationStrategy(initSize int64, incFactor float64) error {
	return f.core.setAllocationStrategy(initSize, incFactor)
}

// SetAccessStrategy picks the block size of device transfers, the size of
// the in-memory head buffer and extra access flags. Call it before Open.
func (f *BlockParallelFile) SetAccessStrategy(blockSize, headBufSize int64, access AccessOptions) error {
	return f.core.setAccessStrategy(blockSize, headBufSize, access)
}

// Open implements file.File.
func (f *BlockParallelFile) Open(path string, writable bool, opts file.OpenOptions) error {
	return f.core.open(path, writable, opts)
}

// Close implements file.File.
func (f *BlockParallelFile) Close() error {
	return f.core.close()
}

// Read implements file.File.
func (f *BlockParallelFile) Read(off int64, buf []byte) error {
	return f.core.read(off, buf)
}

// Write implements file.File.
func (f *BlockParallelFile) Write(off int64, data []byte) error {
	return f.core.write(off, data)
}

// Append implements file.File.
func (f *BlockParallelFile) Append(data []byte) (int64, error) {
	return f.core.append(data)
}

// Expand implements file.File.
func (f *BlockParallelFile) Expand(inc int64) (int64, error) {
	return f.core.expand(inc)
}

// Truncate implements file.File.
func (f *BlockParallelFile) Truncate(size int64) error {
	return f.core.truncate(size)
}

// Synchronize implements file.File.
func (f *BlockParallelFile) Synchronize(hard bool) error {
	return f.core.synchronize(hard)
}

// Size implements file.File.
func (f *BlockParallelFile) Size() (int64, error) {
	return f.core.size()
}

// Path implements file.File.
func (f *BlockParallelFile) Path() (string, error) {
	return f.core.filePath()
}

// Rename implements file.File.
func (f *BlockParallelFile) Rename(newPath string) error {
	return f.core.rename(newPath)
}

// IsOpen implements file.File.
func (f *BlockParallelFile) IsOpen() bool {
	return f.core.isOpen()
}

// IsMemoryMapping implements file.File. Block files never map the file:
// content may exceed the address space.
func (f *BlockParallelFile) IsMemoryMapping() bool { return false }

// IsAtomic implements file.File.
func (f *BlockParallelFile) IsAtomic() bool { return false }

// MakeFile implements file.File.
func (f *BlockParallelFile) MakeFile() file.File {
	return NewParallel()
}
