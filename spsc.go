// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import "golang.org/x/sys/cpu"

// SPSC is the single-producer single-consumer engine over a [Header].
//
// Based on Lamport's ring buffer. Each side owns one counter: the producer
// owns producerTail and the consumer owns consumerHead. A side loads its own
// counter relaxed and the other side's counter with acquire; it publishes
// its own counter with release. The acquire/release pairing guarantees the
// consumer never observes a partially written slot and the producer never
// overwrites a slot the consumer is still reading.
//
// Exactly one goroutine may call Reserve, Commit and Enqueue, and exactly
// one goroutine may call Dequeue.
type SPSC Header

// SPSC returns the SPSC engine view of h.
func (h *Header) SPSC() *SPSC {
	return (*SPSC)(h)
}

// Header returns the header the engine operates on.
func (q *SPSC) Header() *Header {
	return (*Header)(q)
}

// Reserve returns the next free slot for the producer to fill in place,
// or nil if the ring is full. The slot is not visible to the consumer
// until Commit is called.
func (q *SPSC) Reserve(s Slots) []byte {
	c := q.consumerHead.LoadAcquire()
	p := q.producerTail.LoadRelaxed()
	if p-c >= q.capacity {
		return nil
	}
	return s.At(p & (q.capacity - 1))
}

// Commit publishes the slot returned by the last successful Reserve.
// Must be called exactly once per successful Reserve, after all writes
// to the slot are complete.
func (q *SPSC) Commit() {
	p := q.producerTail.LoadRelaxed() + 1
	// producerHead mirrors producerTail so Valid holds for both engines.
	q.producerHead.StoreRelaxed(p)
	q.producerTail.StoreRelease(p)
}

// Enqueue copies entry into the next free slot and publishes it.
// At most Stride bytes are copied. Returns false without side effects
// if the ring is full.
func (q *SPSC) Enqueue(s Slots, entry []byte) bool {
	slot := q.Reserve(s)
	if slot == nil {
		return false
	}
	copy(slot, entry)
	q.Commit()
	return true
}

// Dequeue copies the oldest published slot into out and frees it.
// At most Stride bytes are copied. Returns false if the ring is empty.
func (q *SPSC) Dequeue(s Slots, out []byte) bool {
	c := q.consumerHead.LoadRelaxed()
	if c == q.producerTail.LoadAcquire() {
		return false
	}
	copy(out, s.At(c&(q.capacity-1)))
	q.consumerHead.StoreRelease(c + 1)
	return true
}

// SPSCQueue is a typed single-producer single-consumer bounded queue.
//
// SPSCQueue owns a [Header] and its [Slots] and drives them with the
// [SPSC] engine. Elements are stored as raw bytes, so T must not contain
// pointers; use indices or handles for referenced objects.
//
// Memory: capacity * unsafe.Sizeof(T) bytes plus a padded header
type SPSCQueue[T any] struct {
	_     cpu.CacheLinePad
	hdr   Header
	_     cpu.CacheLinePad
	slots Slots
}

// NewSPSC creates a new SPSC queue.
// Capacity rounds up to the next power of 2.
//
// Panics if capacity < 1 or T contains pointers.
func NewSPSC[T any](capacity int) *SPSCQueue[T] {
	n, stride := geometry[T](capacity)
	q := &SPSCQueue[T]{slots: NewSlots(n, stride)}
	q.hdr.Init(uint32(n))
	return q
}

// Enqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSCQueue[T]) Enqueue(elem *T) error {
	if !q.hdr.SPSC().Enqueue(q.slots, bytesOf(elem)) {
		return ErrWouldBlock
	}
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSCQueue[T]) Dequeue() (T, error) {
	var elem T
	if !q.hdr.SPSC().Dequeue(q.slots, bytesOf(&elem)) {
		return elem, ErrWouldBlock
	}
	return elem, nil
}

// Cap returns the queue capacity.
func (q *SPSCQueue[T]) Cap() int {
	return q.hdr.Cap()
}

// Header returns the queue's ring header for monitoring.
func (q *SPSCQueue[T]) Header() *Header {
	return &q.hdr
}
