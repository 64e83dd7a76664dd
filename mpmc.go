// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"code.hybscloud.com/spin"
	"golang.org/x/sys/cpu"
)

// Ticket is the index of a slot reserved by [MPMC.Reserve].
// Tickets are published strictly in reservation order.
type Ticket uint32

// MPMC is the multi-producer multi-consumer engine over a [Header].
//
// Producers reserve slots by CAS on producerHead (the ticket), write the
// payload without any lock, then publish by advancing producerTail in
// ticket order. Consumers read a slot optimistically and claim it by CAS
// on consumerHead; a losing consumer discards its copy and retries.
//
// A producer can only reuse slot c&mask after reserving ticket c+capacity,
// which requires observing consumerHead > c. A successful CAS of
// consumerHead from c therefore proves the copy was taken before the slot
// was reused.
//
// Memory: the 16-byte header only; slots are supplied by the caller
type MPMC Header

// MPMC returns the MPMC engine view of h.
func (h *Header) MPMC() *MPMC {
	return (*MPMC)(h)
}

// Header returns the header the engine operates on.
func (q *MPMC) Header() *Header {
	return (*Header)(q)
}

// Reserve claims the next free slot for the caller to fill in place.
// Returns the slot, its ticket and true, or (nil, 0, false) if the ring
// is full. The slot is not visible to consumers until Commit(ticket).
func (q *MPMC) Reserve(s Slots) ([]byte, Ticket, bool) {
	sw := spin.Wait{}
	p := q.producerHead.LoadAcquire()
	for {
		c := q.consumerHead.LoadAcquire()
		if p-c >= q.capacity {
			// Full only if no other producer moved since p was sampled
			cur := q.producerHead.LoadAcquire()
			if cur == p {
				return nil, 0, false
			}
			p = cur
			continue
		}
		if q.producerHead.CompareAndSwapAcqRel(p, p+1) {
			return s.At(p & (q.capacity - 1)), Ticket(p), true
		}
		sw.Once()
		p = q.producerHead.LoadAcquire()
	}
}

// Commit publishes the slot reserved under ticket t.
//
// Commit waits until every earlier ticket has been committed, so it must
// be called exactly once per successful Reserve. The wait is bounded by
// the progress of producers holding earlier tickets.
func (q *MPMC) Commit(t Ticket) {
	sw := spin.Wait{}
	for q.producerTail.LoadAcquire() != uint32(t) {
		sw.Once()
	}
	q.producerTail.StoreRelease(uint32(t) + 1)
}

// Enqueue copies entry into a reserved slot and publishes it.
// At most Stride bytes are copied. Returns false if the ring is full.
func (q *MPMC) Enqueue(s Slots, entry []byte) bool {
	slot, t, ok := q.Reserve(s)
	if !ok {
		return false
	}
	copy(slot, entry)
	q.Commit(t)
	return true
}

// Dequeue copies the oldest published slot into out and frees it.
// out is written only on success. Returns false if the ring is empty.
func (q *MPMC) Dequeue(s Slots, out []byte) bool {
	var small [128]byte
	scratch := small[:]
	if s.stride > len(small) {
		scratch = make([]byte, s.stride)
	}
	return q.DequeueInto(s, out, scratch)
}

// DequeueInto is Dequeue with a caller-owned scratch buffer of at least
// Stride bytes, for allocation-free hot paths with large slots.
//
// Panics if scratch is shorter than Stride.
func (q *MPMC) DequeueInto(s Slots, out, scratch []byte) bool {
	if len(scratch) < s.stride {
		panic("ring: scratch shorter than stride")
	}
	scratch = scratch[:s.stride]

	sw := spin.Wait{}
	c := q.consumerHead.LoadAcquire()
	for {
		if c == q.producerTail.LoadAcquire() {
			return false
		}
		copy(scratch, s.At(c&(q.capacity-1)))
		if q.consumerHead.CompareAndSwapAcqRel(c, c+1) {
			copy(out, scratch)
			return true
		}
		// Another consumer claimed c; the copy may be torn, drop it
		sw.Once()
		c = q.consumerHead.LoadAcquire()
	}
}

// MPMCQueue is a typed multi-producer multi-consumer bounded queue.
//
// MPMCQueue owns a [Header] and its [Slots] and drives them with the
// [MPMC] engine. Elements are stored as raw bytes, so T must not contain
// pointers.
//
// Enqueue may wait for producers holding earlier tickets to commit.
type MPMCQueue[T any] struct {
	_     cpu.CacheLinePad
	hdr   Header
	_     cpu.CacheLinePad
	slots Slots
}

// NewMPMC creates a new MPMC queue.
// Capacity rounds up to the next power of 2.
//
// Panics if capacity < 1 or T contains pointers.
func NewMPMC[T any](capacity int) *MPMCQueue[T] {
	n, stride := geometry[T](capacity)
	q := &MPMCQueue[T]{slots: NewSlots(n, stride)}
	q.hdr.Init(uint32(n))
	return q
}

// Enqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full.
func (q *MPMCQueue[T]) Enqueue(elem *T) error {
	if !q.hdr.MPMC().Enqueue(q.slots, bytesOf(elem)) {
		return ErrWouldBlock
	}
	return nil
}

// Dequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (T, error) {
	var elem T
	if !q.hdr.MPMC().Dequeue(q.slots, bytesOf(&elem)) {
		return elem, ErrWouldBlock
	}
	return elem, nil
}

// Cap returns the queue capacity.
func (q *MPMCQueue[T]) Cap() int {
	return q.hdr.Cap()
}

// Header returns the queue's ring header for monitoring.
func (q *MPMCQueue[T]) Header() *Header {
	return &q.hdr
}
