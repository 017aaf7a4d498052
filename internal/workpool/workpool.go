// Package workpool controls goroutine pools for fan-out workloads.
package workpool

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
)

// Pool represents the tool for control the execution of go-routine pool.
type Pool interface {
	// Submit queues a function for execution
	// in a separate routine.
	//
	// Implementation must return any error encountered
	// that prevented the function from being queued.
	Submit(func()) error

	// Release releases worker pool resources. All `Submit` calls will
	// finish with ErrClosed. It doesn't wait until all submitted
	// functions have returned so synchronization must be achieved
	// via other means (e.g. sync.WaitGroup).
	Release()
}

// ErrClosed is returned when submitting task to a released pool.
var ErrClosed = ants.ErrPoolClosed

// New returns a pool executing at most size submitted functions
// concurrently. Submit blocks while all workers are busy.
func New(size int) (Pool, error) {
	return ants.NewPool(size)
}

// syncPool represents pseudo worker pool which executes submitted job immediately in the caller's routine.
type syncPool struct {
	closed atomic.Bool
}

// NewSynchronous returns new instance of a synchronous worker pool.
func NewSynchronous() Pool {
	return &syncPool{}
}

// Submit executes passed function immediately.
//
// Always returns nil.
func (p *syncPool) Submit(fn func()) error {
	if p.closed.Load() {
		return ErrClosed
	}

	fn()

	return nil
}

// Release implements Pool interface.
func (p *syncPool) Release() {
	p.closed.Store(true)
}
