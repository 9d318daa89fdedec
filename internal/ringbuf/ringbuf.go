// Package ringbuf is a bounded single-producer single-consumer sample queue.
//
// Exactly one goroutine (or foreign real-time thread) may call TryWrite and
// exactly one other may call the consumer methods. Neither side ever blocks
// or takes a lock.
package ringbuf

import "sync/atomic"

// Buffer is a lock-free SPSC ring of float32 samples.
type Buffer struct {
	data []float32
	size uint64

	// head is advanced only by the consumer, tail only by the producer.
	head atomic.Uint64
	_    [56]byte
	tail atomic.Uint64
	_    [56]byte
}

// New allocates a buffer holding up to capacity samples.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float32, capacity), size: uint64(capacity)}
}

// Cap returns the fixed capacity in samples.
func (b *Buffer) Cap() int { return int(b.size) }

// Len returns the number of buffered samples. Exact on the consumer side,
// a lower bound when called from the producer.
func (b *Buffer) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// Free returns the space available to the producer.
func (b *Buffer) Free() int {
	return int(b.size - (b.tail.Load() - b.head.Load()))
}

// TryWrite appends the whole chunk or nothing. It reports false when the
// chunk does not fit; the caller decides whether to count the drop.
func (b *Buffer) TryWrite(chunk []float32) bool {
	n := uint64(len(chunk))
	if n == 0 {
		return true
	}
	tail := b.tail.Load()
	head := b.head.Load()
	if n > b.size-(tail-head) {
		return false
	}

	start := tail % b.size
	first := copy(b.data[start:], chunk)
	if uint64(first) < n {
		copy(b.data, chunk[first:])
	}
	b.tail.Store(tail + n)
	return true
}

// Read moves up to len(dst) samples into dst and returns how many were read.
func (b *Buffer) Read(dst []float32) int {
	head := b.head.Load()
	tail := b.tail.Load()
	n := tail - head
	if uint64(len(dst)) < n {
		n = uint64(len(dst))
	}
	if n == 0 {
		return 0
	}

	start := head % b.size
	first := copy(dst[:n], b.data[start:])
	if uint64(first) < n {
		copy(dst[first:n], b.data)
	}
	b.head.Store(head + n)
	return int(n)
}

// Drain returns everything currently buffered as one contiguous slice.
func (b *Buffer) Drain() []float32 {
	out := make([]float32, b.Len())
	n := b.Read(out)
	return out[:n]
}

// Discard drops all buffered samples and returns how many were dropped.
func (b *Buffer) Discard() int {
	head := b.head.Load()
	tail := b.tail.Load()
	b.head.Store(tail)
	return int(tail - head)
}
