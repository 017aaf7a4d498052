package blockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ncw/directio"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quarrydb/quarry/internal/fslock"
	"github.com/quarrydb/quarry/pkg/file"
)

const (
	stateClosed int32 = iota
	stateOpen
	stateClosing
)

// core is the engine shared by both block file variants. It keeps the
// descriptor, the size pair and the head buffer, and performs all device
// I/O in aligned blocks. The variants wrap it with their own concurrency
// contracts; core itself keeps individual data calls safe (atomic size
// reservations, per-block patch serialization) and leaves any cross-call
// ordering to the wrapper.
type core struct {
	*cfg

	state atomic.Int32

	fd          *os.File
	path        string
	writable    bool
	direct      bool
	syncOnClose bool
	locked      bool

	logical  atomic.Int64
	physical atomic.Int64

	growMu sync.Mutex
	blocks blockLocks
	head   *headBuffer
}

func newCore(opts []Option) *core {
	c := defaultCfg()

	for i := range opts {
		opts[i](c)
	}

	return &core{cfg: c}
}

func (c *core) isOpen() bool { return c.state.Load() == stateOpen }

func (c *core) setAllocationStrategy(initSize int64, incFactor float64) error {
	if c.state.Load() != stateClosed {
		return fmt.Errorf("%w: file is opened", file.ErrInvalidState)
	}
	if initSize <= 0 || incFactor < 1 {
		return fmt.Errorf("%w: allocation strategy %d/%v", file.ErrOutOfRange, initSize, incFactor)
	}

	c.allocInit = initSize
	c.allocFactor = incFactor
	return nil
}

func (c *core) setAccessStrategy(blockSize, headBufSize int64, access AccessOptions) error {
	if c.state.Load() != stateClosed {
		return fmt.Errorf("%w: file is opened", file.ErrInvalidState)
	}
	if blockSize <= 0 || blockSize%512 != 0 {
		return fmt.Errorf("%w: block size %d", file.ErrOutOfRange, blockSize)
	}
	if headBufSize < 0 {
		return fmt.Errorf("%w: head buffer size %d", file.ErrOutOfRange, headBufSize)
	}

	c.blockSize = blockSize
	c.headBufSize = headBufSize
	c.access = access
	return nil
}

func (c *core) open(path string, writable bool, opts file.OpenOptions) error {
	if c.state.Load() != stateClosed {
		return file.ErrAlreadyOpen
	}

	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
		if !opts.Has(file.OpenNoCreate) {
			flags |= os.O_CREATE
		}
	}
	if c.access.Has(AccessSync) {
		flags |= os.O_SYNC
	}

	openFile := os.OpenFile
	if c.access.Has(AccessDirect) {
		openFile = directio.OpenFile
	}

	fd, err := openFile(path, flags, c.perm)
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
		if _, ok := err.(*file.IOError); ok {
			return err
		}
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
	size := st.Size()

	physical := size
	if writable {
		physical = alignUp(size, c.blockSize)
		if physical > size {
			if err := fd.Truncate(physical); err != nil {
				return fail("allocate", err)
			}
		}
	}

	var head *headBuffer
	if c.headBufSize > 0 {
		head = newHeadBuffer(alignUp(c.headBufSize, c.blockSize), c.access.Has(AccessDirect))
		if err := head.load(fd, path); err != nil {
			return fail("read", err)
		}
	}

	c.fd = fd
	c.path = path
	c.writable = writable
	c.direct = c.access.Has(AccessDirect)
	c.syncOnClose = opts.Has(file.OpenSyncHard)
	c.locked = locked
	c.head = head
	c.logical.Store(size)
	c.physical.Store(physical)
	c.state.Store(stateOpen)

	c.log.Debug("block file opened",
		zap.String("path", path),
		zap.Bool("writable", writable),
		zap.Int64("size", size),
		zap.Int64("block size", c.blockSize))

	return nil
}

func (c *core) close() error {
	if !c.state.CompareAndSwap(stateOpen, stateClosing) {
		return file.ErrNotOpen
	}

	var errs error
	if c.writable {
		if c.head != nil {
			errs = multierr.Append(errs, c.head.flush(c.blockSize, c.pwrite))
		}
		errs = multierr.Append(errs, c.wrapIO("truncate", c.fd.Truncate(c.logical.Load())))
		if c.syncOnClose {
			errs = multierr.Append(errs, c.wrapIO("sync", c.fd.Sync()))
		}
	}
	if c.locked {
		errs = multierr.Append(errs, c.wrapIO("unlock", fslock.Release(c.fd)))
	}
	errs = multierr.Append(errs, c.wrapIO("close", c.fd.Close()))

	c.log.Debug("block file closed",
		zap.String("path", c.path),
		zap.Int64("size", c.logical.Load()))

	c.fd = nil
	c.path = ""
	c.head = nil
	c.locked = false
	c.state.Store(stateClosed)

	return errs
}

func (c *core) read(off int64, buf []byte) error {
	if !c.isOpen() {
		return file.ErrNotOpen
	}
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", file.ErrOutOfRange, off)
	}
	end := off + int64(len(buf))
	if size := c.logical.Load(); end > size {
		return fmt.Errorf("%w: read [%d:%d) of %d-byte file", file.ErrOutOfRange, off, end, size)
	}
	if len(buf) == 0 {
		return nil
	}

	if h := c.head; h != nil && off < h.limit() {
		n := h.serveRead(off, buf)
		off += int64(n)
		buf = buf[n:]
		if len(buf) == 0 {
			return nil
		}
	}

	return c.readDevice(off, buf)
}

func (c *core) write(off int64, data []byte) error {
	if !c.isOpen() {
		return file.ErrNotOpen
	}
	if !c.writable {
		return file.ErrReadOnly
	}
	if off < 0 {
		return fmt.Errorf("%w: negative offset %d", file.ErrOutOfRange, off)
	}
	if len(data) == 0 {
		return nil
	}

	if err := c.reserve(off + int64(len(data))); err != nil {
		return err
	}
	return c.land(off, data)
}

func (c *core) append(data []byte) (int64, error) {
	if !c.isOpen() {
		return 0, file.ErrNotOpen
	}
	if !c.writable {
		return 0, file.ErrReadOnly
	}

	n := int64(len(data))
	off := c.logical.Add(n) - n
	if err := c.ensurePhysical(off + n); err != nil {
		return 0, err
	}
	if n == 0 {
		return off, nil
	}
	return off, c.land(off, data)
}

func (c *core) expand(inc int64) (int64, error) {
	if !c.isOpen() {
		return 0, file.ErrNotOpen
	}
	if !c.writable {
		return 0, file.ErrReadOnly
	}
	if inc < 0 {
		return 0, fmt.Errorf("%w: negative increment %d", file.ErrOutOfRange, inc)
	}

	off := c.logical.Add(inc) - inc
	if err := c.ensurePhysical(off + inc); err != nil {
		return 0, err
	}
	return off, nil
}

func (c *core) truncate(size int64) error {
	if !c.isOpen() {
		return file.ErrNotOpen
	}
	if !c.writable {
		return file.ErrReadOnly
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", file.ErrOutOfRange, size)
	}

	c.growMu.Lock()
	defer c.growMu.Unlock()

	old := c.logical.Load()

	phys := alignUp(size, c.blockSize)
	if err := c.fd.Truncate(phys); err != nil {
		return c.wrapIO("truncate", err)
	}
	if size < old {
		if rem := size % c.blockSize; rem != 0 {
			// The device must not keep data past the logical size, or a
			// later grow would expose it. Scrub the partial tail block
			// the shrink left behind.
			pad := make([]byte, c.blockSize-rem)
			if err := c.mergeBlock(size/c.blockSize, size, pad); err != nil {
				return err
			}
		}
	}
	c.logical.Store(size)
	c.physical.Store(phys)

	if c.head != nil {
		c.head.truncate(size)
	}
	return nil
}

func (c *core) synchronize(hard bool) error {
	if !c.isOpen() {
		return file.ErrNotOpen
	}
	if !c.writable {
		return nil
	}

	if c.head != nil {
		if err := c.head.flush(c.blockSize, c.pwrite); err != nil {
			return err
		}
	}

	size := c.logical.Load()

	c.growMu.Lock()
	err := c.fd.Truncate(size)
	if err == nil {
		c.physical.Store(size)
	}
	c.growMu.Unlock()
	if err != nil {
		return c.wrapIO("truncate", err)
	}

	if hard {
		if err := c.fd.Sync(); err != nil {
			return c.wrapIO("sync", err)
		}
	}

	c.log.Debug("block file synchronized",
		zap.String("path", c.path),
		zap.Int64("size", size),
		zap.Bool("hard", hard))

	return nil
}

func (c *core) size() (int64, error) {
	if !c.isOpen() {
		return 0, file.ErrNotOpen
	}
	return c.logical.Load(), nil
}

func (c *core) filePath() (string, error) {
	if !c.isOpen() {
		return "", file.ErrNotOpen
	}
	return c.path, nil
}

func (c *core) rename(newPath string) error {
	if !c.isOpen() {
		return file.ErrNotOpen
	}
	if err := os.Rename(c.path, newPath); err != nil {
		return c.wrapIO("rename", err)
	}

	c.log.Debug("block file renamed",
		zap.String("from", c.path),
		zap.String("to", newPath))

	c.path = newPath
	return nil
}

// reserve makes the region up to end part of the file: physical space
// first, logical size second, so allocated storage always covers the
// logical size.
func (c *core) reserve(end int64) error {
	if err := c.ensurePhysical(end); err != nil {
		return err
	}
	for {
		cur := c.logical.Load()
		if cur >= end || c.logical.CompareAndSwap(cur, end) {
			return nil
		}
	}
}

func (c *core) ensurePhysical(end int64) error {
	if end <= c.physical.Load() {
		return nil
	}

	c.growMu.Lock()
	defer c.growMu.Unlock()

	cur := c.physical.Load()
	if end <= cur {
		return nil
	}

	next := c.nextPhysical(cur, end)
	if err := allocate(c.fd, next); err != nil {
		return c.wrapIO("allocate", err)
	}
	c.physical.Store(next)
	return nil
}

// land routes written bytes to the head buffer and the device.
func (c *core) land(off int64, data []byte) error {
	if h := c.head; h != nil && off < h.limit() {
		n := h.absorbWrite(off, data)
		off += int64(n)
		data = data[n:]
		if len(data) == 0 {
			return nil
		}
	}
	return c.writeDevice(off, data)
}

func (c *core) readDevice(off int64, buf []byte) error {
	bs := c.blockSize
	end := off + int64(len(buf))
	aOff := alignDown(off, bs)
	aEnd := alignUp(end, bs)

	if !c.direct && aOff == off && aEnd == end {
		n, err := c.pread(buf, off)
		if err != nil {
			return err
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		return nil
	}

	scratch := c.alignedScratch(aEnd - aOff)
	if _, err := c.pread(scratch, aOff); err != nil {
		return err
	}
	copy(buf, scratch[off-aOff:])
	return nil
}

func (c *core) writeDevice(off int64, data []byte) error {
	bs := c.blockSize
	end := off + int64(len(data))
	aOff := alignDown(off, bs)
	aEnd := alignUp(end, bs)

	if aOff == off && aEnd == end {
		if !c.direct {
			return c.pwrite(data, off)
		}
		scratch := c.alignedScratch(aEnd - aOff)
		copy(scratch, data)
		return c.pwrite(scratch, off)
	}

	firstBlock := aOff / bs
	lastBlock := (aEnd - 1) / bs

	if firstBlock == lastBlock {
		return c.mergeBlock(firstBlock, off, data)
	}

	if off != aOff {
		n := aOff + bs - off
		if err := c.mergeBlock(firstBlock, off, data[:n]); err != nil {
			return err
		}
		data = data[n:]
		off += n
	}

	var tail []byte
	if end != aEnd {
		n := end - lastBlock*bs
		tail = data[int64(len(data))-n:]
		data = data[:int64(len(data))-n]
	}

	if len(data) > 0 {
		if c.direct {
			scratch := c.alignedScratch(int64(len(data)))
			copy(scratch, data)
			data = scratch
		}
		if err := c.pwrite(data, off); err != nil {
			return err
		}
	}

	if tail != nil {
		return c.mergeBlock(lastBlock, lastBlock*bs, tail)
	}
	return nil
}

// mergeBlock writes sub, which lies entirely inside the given block, by
// reading the block, patching it in memory and writing it back. Concurrent
// patches of one block are serialized by the stripe set.
func (c *core) mergeBlock(block, off int64, sub []byte) error {
	bs := c.blockSize
	base := block * bs

	c.blocks.lock(block)
	defer c.blocks.unlock(block)

	scratch := c.alignedScratch(bs)
	if _, err := c.pread(scratch, base); err != nil {
		return err
	}
	copy(scratch[off-base:], sub)
	return c.pwrite(scratch, base)
}

// pread fills buf from the device. Reading past the device end is not an
// error: the caller's destination starts zeroed and never-written space
// reads as zeros by contract.
func (c *core) pread(buf []byte, off int64) (int, error) {
	n, err := c.fd.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &file.IOError{Op: "read", Path: c.path, Err: err}
	}
	return n, nil
}

func (c *core) pwrite(buf []byte, off int64) error {
	if _, err := c.fd.WriteAt(buf, off); err != nil {
		return &file.IOError{Op: "write", Path: c.path, Err: err}
	}
	return nil
}

func (c *core) alignedScratch(n int64) []byte {
	if c.direct {
		return directio.AlignedBlock(int(n))
	}
	return make([]byte, n)
}

func (c *core) wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &file.IOError{Op: op, Path: c.path, Err: err}
}
