// Package ringbuf implements the transmit ring that sits between record
// producers and a byte-at-a-time drain.
//
// Two locks are involved. Producers serialize whole records among
// themselves with a lock the ring knows nothing about. The ring's own guard
// covers only the head/tail bookkeeping and is the only lock Get takes, so
// a drain never waits behind a producer that is blocked on a full ring.
package ringbuf

import (
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// spins before Put starts sleeping between retries
	spinYield = 64
	spinSleep = 50 * time.Microsecond
)

// Ring is a fixed-capacity circular byte buffer. One slot is always left
// unused, so a ring of size n holds n-1 bytes.
type Ring struct {
	buf  []byte
	mask uint32
	head uint32 // next write
	tail uint32 // next read

	guard sync.Locker
	kick  func()
}

// Option configures a Ring.
type Option func(*Ring)

// WithKick sets the function Put calls to make the consumer drain while
// the ring is full.
func WithKick(fn func()) Option {
	return func(r *Ring) {
		r.kick = fn
	}
}

// WithGuard replaces the lock protecting the indices.
func WithGuard(l sync.Locker) Option {
	return func(r *Ring) {
		r.guard = l
	}
}

// New returns a ring of size bytes. size must be a power of two.
func New(size int, opts ...Option) (*Ring, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, errors.Errorf("ring size %d is not a power of two", size)
	}

	r := &Ring{
		buf:   make([]byte, size),
		mask:  uint32(size - 1),
		guard: &sync.Mutex{},
		kick:  func() {},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

func (r *Ring) next(i uint32) uint32 {
	return (i + 1) & r.mask
}

// full and empty must be called with the guard held.
func (r *Ring) full() bool {
	return r.next(r.head) == r.tail
}

func (r *Ring) empty() bool {
	return r.head == r.tail
}

// Put appends c, waiting for the consumer while the ring is full. Each
// retry kicks the consumer. The wait is unbounded: if nothing ever drains,
// Put never returns.
func (r *Ring) Put(c byte) {
	r.guard.Lock()
	for spins := 0; r.full(); spins++ {
		r.guard.Unlock()
		r.kick()
		if spins < spinYield {
			runtime.Gosched()
		} else {
			time.Sleep(spinSleep)
		}
		r.guard.Lock()
	}

	r.buf[r.head] = c
	r.head = r.next(r.head)
	r.guard.Unlock()
}

// TryPut appends c if there is room.
func (r *Ring) TryPut(c byte) bool {
	r.guard.Lock()
	defer r.guard.Unlock()

	if r.full() {
		return false
	}
	r.buf[r.head] = c
	r.head = r.next(r.head)
	return true
}

// Write puts every byte of p. It blocks like Put and never fails.
func (r *Ring) Write(p []byte) (int, error) {
	for _, c := range p {
		r.Put(c)
	}
	return len(p), nil
}

// Get removes the oldest byte. ok is false when the ring is empty.
func (r *Ring) Get() (c byte, ok bool) {
	r.guard.Lock()
	defer r.guard.Unlock()

	if r.empty() {
		return 0, false
	}
	c = r.buf[r.tail]
	r.tail = r.next(r.tail)
	return c, true
}

// Len returns the number of queued bytes.
func (r *Ring) Len() int {
	r.guard.Lock()
	defer r.guard.Unlock()
	return int((r.head - r.tail) & r.mask)
}

// Cap returns the number of bytes the ring can hold.
func (r *Ring) Cap() int {
	return len(r.buf) - 1
}

// Full reports whether a Put would have to wait.
func (r *Ring) Full() bool {
	r.guard.Lock()
	defer r.guard.Unlock()
	return r.full()
}

// Empty reports whether there is nothing left to Get.
func (r *Ring) Empty() bool {
	r.guard.Lock()
	defer r.guard.Unlock()
	return r.empty()
}
