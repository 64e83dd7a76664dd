// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"fmt"
	"unsafe"

	"code.hybscloud.com/atomix"
)

const (
	// HeaderSize is the size of [Header] in bytes.
	// The layout is three uint32 counters followed by the uint32 capacity,
	// with no padding. It must not change: headers may live in memory
	// shared between processes built by different toolchains.
	HeaderSize = 16

	// MaxCapacity is the largest capacity a [Header] accepts.
	// Counters are 32-bit and wrap; distances up to 2^31 stay unambiguous.
	MaxCapacity = 1 << 31
)

// Header is the metadata of a bounded ring.
//
// Header does not own element storage. The storage is a [Slots] value passed
// explicitly to every engine operation, so the header and the payload may live
// in different memory regions, and one header may be used with buffers of
// different strides at different call sites.
//
// All counters increase monotonically and wrap at 2^32. A physical slot index
// is counter & (capacity-1).
//
// A header must be driven by exactly one engine ([SPSC] or [MPMC]) for its
// whole lifetime. Mixing engines on one header is undefined.
type Header struct {
	consumerHead atomix.Uint32 // advanced by consumers
	producerTail atomix.Uint32 // advanced by producers on commit; visible to consumers
	producerHead atomix.Uint32 // advanced by producers on reserve
	capacity     uint32        // power of 2, fixed by Init
}

// Init resets h to an empty ring with the given capacity.
//
// Panics if capacity is not a power of 2 in [1, MaxCapacity].
func (h *Header) Init(capacity uint32) {
	if capacity == 0 || capacity&(capacity-1) != 0 || capacity > MaxCapacity {
		panic("ring: capacity must be a power of 2 in [1, 2^31]")
	}
	h.capacity = capacity
	h.consumerHead.StoreRelaxed(0)
	h.producerTail.StoreRelaxed(0)
	h.producerHead.StoreRelease(0)
}

// HeaderAt interprets the first [HeaderSize] bytes of b as a Header.
// Used to place a header in caller memory such as a shared mapping.
// The memory is not initialized; call Init when creating a new ring.
//
// Panics if b is shorter than HeaderSize or not 4-byte aligned.
func HeaderAt(b []byte) *Header {
	if len(b) < HeaderSize {
		panic("ring: header needs 16 bytes")
	}
	p := unsafe.Pointer(unsafe.SliceData(b))
	if uintptr(p)&3 != 0 {
		panic("ring: header memory must be 4-byte aligned")
	}
	return (*Header)(p)
}

// Capacity returns the element capacity of the ring.
func (h *Header) Capacity() uint32 {
	return h.capacity
}

// Cap returns the element capacity of the ring.
func (h *Header) Cap() int {
	return int(h.capacity)
}

// LiveCount returns the number of published, not yet consumed elements.
//
// The result is a best-effort snapshot: it races with concurrent enqueues
// and dequeues and must not drive control flow. It never exceeds Capacity.
func (h *Header) LiveCount() uint32 {
	c := h.consumerHead.LoadAcquire()
	p := h.producerTail.LoadAcquire()
	if n := p - c; n < h.capacity {
		return n
	}
	return h.capacity
}

// Valid reports whether h is in a consistent state.
//
// Valid is a debug assertion. It is not thread-safe and must only be called
// while no operation is in flight.
func (h *Header) Valid() bool {
	n := h.capacity
	if n == 0 || n&(n-1) != 0 || n > MaxCapacity {
		return false
	}
	c := h.consumerHead.LoadAcquire()
	tail := h.producerTail.LoadAcquire()
	head := h.producerHead.LoadAcquire()

	// consumerHead <= producerTail <= producerHead, modulo 2^32
	if tail-c > head-c {
		return false
	}
	// Producers may be at most capacity slots ahead of consumers
	return head-c <= n
}

// State is a plain-value snapshot of a [Header].
type State struct {
	ConsumerHead uint32
	ProducerTail uint32
	ProducerHead uint32
	Capacity     uint32
}

// Snapshot returns the current counters of h.
// Fields are loaded one at a time; the snapshot is not atomic as a whole.
func (h *Header) Snapshot() State {
	return State{
		ConsumerHead: h.consumerHead.LoadAcquire(),
		ProducerTail: h.producerTail.LoadAcquire(),
		ProducerHead: h.producerHead.LoadAcquire(),
		Capacity:     h.capacity,
	}
}

// Live returns the element count recorded in the snapshot.
func (s State) Live() uint32 {
	return s.ProducerTail - s.ConsumerHead
}

func (s State) String() string {
	return fmt.Sprintf("ring{cap=%d, live=%d, chead=%d, ptail=%d, phead=%d}",
		s.Capacity, s.Live(), s.ConsumerHead, s.ProducerTail, s.ProducerHead)
}
