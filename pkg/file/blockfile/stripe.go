package blockfile

import "sync"

const lockStripes = 64 // power of two

// blockLocks serializes read-patch-write cycles per file block. The stripe
// count bounds memory: distinct blocks may share a mutex, which costs
// waiting, never correctness.
type blockLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *blockLocks) lock(block int64) {
	l.stripes[uint64(block)&(lockStripes-1)].Lock()
}

func (l *blockLocks) unlock(block int64) {
	l.stripes[uint64(block)&(lockStripes-1)].Unlock()
}
