package blockfile

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/ncw/directio"

	"github.com/quarrydb/quarry/pkg/file"
)

// headBuffer caches the leading bytes of the file. It is the single source
// of truth for its range: reads are served from it and writes are absorbed
// into it, reaching the device only on flush. The dirty range tracks what
// flush must write back.
type headBuffer struct {
	mu      sync.RWMutex
	data    []byte // length is a multiple of the block size
	dirtyLo int64
	dirtyHi int64 // dirty iff dirtyLo < dirtyHi
}

func newHeadBuffer(size int64, direct bool) *headBuffer {
	var data []byte
	if direct {
		data = directio.AlignedBlock(int(size))
	} else {
		data = make([]byte, size)
	}
	return &headBuffer{data: data}
}

// load fills the buffer from the leading bytes of fd. A file shorter than
// the buffer leaves the tail zeroed.
func (h *headBuffer) load(fd *os.File, path string) error {
	if _, err := fd.ReadAt(h.data, 0); err != nil && !errors.Is(err, io.EOF) {
		return &file.IOError{Op: "read", Path: path, Err: err}
	}
	return nil
}

func (h *headBuffer) limit() int64 { return int64(len(h.data)) }

// serveRead copies buffered bytes at off into dst and returns how many it
// served. The caller continues from off+n on the device.
func (h *headBuffer) serveRead(off int64, dst []byte) int {
	h.mu.RLock()
	n := copy(dst, h.data[off:])
	h.mu.RUnlock()
	return n
}

// absorbWrite stores src at off in the buffer and returns how many bytes it
// took. The caller continues from off+n on the device.
func (h *headBuffer) absorbWrite(off int64, src []byte) int {
	h.mu.Lock()
	n := copy(h.data[off:], src)
	if n > 0 {
		if h.dirtyLo >= h.dirtyHi {
			h.dirtyLo, h.dirtyHi = off, off+int64(n)
		} else {
			if off < h.dirtyLo {
				h.dirtyLo = off
			}
			if end := off + int64(n); end > h.dirtyHi {
				h.dirtyHi = end
			}
		}
	}
	h.mu.Unlock()
	return n
}

// truncate zeroes buffered content at and beyond size and clamps the dirty
// range to it.
func (h *headBuffer) truncate(size int64) {
	h.mu.Lock()
	if size < int64(len(h.data)) {
		tail := h.data[size:]
		for i := range tail {
			tail[i] = 0
		}
	}
	if h.dirtyHi > size {
		h.dirtyHi = size
	}
	if h.dirtyLo >= h.dirtyHi {
		h.dirtyLo, h.dirtyHi = 0, 0
	}
	h.mu.Unlock()
}

// flush writes the blocks covering the dirty range back through w and marks
// the buffer clean. The buffer content is valid for its whole aligned
// range, so flushing whole blocks straight from it is safe.
func (h *headBuffer) flush(bs int64, w func(b []byte, off int64) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dirtyLo >= h.dirtyHi {
		return nil
	}

	lo := alignDown(h.dirtyLo, bs)
	hi := alignUp(h.dirtyHi, bs)
	if err := w(h.data[lo:hi], lo); err != nil {
		return err
	}

	h.dirtyLo, h.dirtyHi = 0, 0
	return nil
}
