// Package shmring provides a single-producer, single-consumer byte ring and
// a full-duplex link built from two rings. The host build uses the link as
// the serial port between an emulated controller and the serial server.
package shmring

import (
	"context"
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	// Signalled after every successful write or read and coalesced to one
	// pending token. Waiters must recheck the ring after waking.
	readable chan struct{}
	writable chan struct{}
}

// New allocates a ring. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space returns the number of bytes the producer may write without blocking.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Available returns the number of bytes ready for the consumer.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	space := int(r.size() - (wr - rd))
	if space <= 0 {
		return 0
	}
	n = min(space, len(src))

	wrIdx := wr & r.mask
	first := min(int(r.size()-wrIdx), n)
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	signal(r.readable)
	return n
}

// TryReadInto copies up to len(dst) available bytes and returns the count.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	n = min(avail, len(dst))

	rdIdx := rd & r.mask
	first := min(int(r.size()-rdIdx), n)
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release

	signal(r.writable)
	return n
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ---- Full-duplex link ----

// End is one side of a Link. It satisfies the serial port contract
// (Write plus RecvSomeContext) used by services/serial.
type End struct {
	tx *Ring
	rx *Ring
}

// NewLink returns two connected ends; bytes written to a are read from b
// and vice versa. Each direction buffers size bytes.
func NewLink(size int) (a, b *End) {
	ab, ba := New(size), New(size)
	return &End{tx: ab, rx: ba}, &End{tx: ba, rx: ab}
}

// Write blocks until all of p has been queued.
func (e *End) Write(p []byte) (int, error) {
	return e.WriteContext(context.Background(), p)
}

// WriteContext queues all of p or returns early when ctx is done.
func (e *End) WriteContext(ctx context.Context, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		k := e.tx.TryWriteFrom(p[n:])
		n += k
		if k > 0 {
			continue
		}
		select {
		case <-e.tx.Writable():
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
	return n, nil
}

// RecvSomeContext blocks until at least one byte is available, then returns
// as many as fit in buf.
func (e *End) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if n := e.rx.TryReadInto(buf); n > 0 {
			return n, nil
		}
		select {
		case <-e.rx.Readable():
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Buffered returns the number of received bytes not yet consumed.
func (e *End) Buffered() int { return e.rx.Available() }
