// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring provides lock-free bounded ring buffers over a fixed 16-byte
// header and caller-supplied storage.
//
// A ring is two parts:
//
//   - [Header]: three monotonically increasing uint32 counters and the
//     power-of-2 capacity, 16 bytes, no padding
//   - [Slots]: a flat byte buffer divided into fixed-size slots
//
// The header never owns the storage. Every operation takes the [Slots]
// explicitly, so the header and the payload may live in different memory
// regions (see package [code.hybscloud.com/ring/shm] for shared memory),
// and one header may serve buffers of different strides.
//
// Two engines drive a header:
//
//   - [SPSC]: one producer goroutine, one consumer goroutine
//   - [MPMC]: any number of producers and consumers
//
// A header must use one engine for its whole lifetime.
//
// # Quick Start
//
// Byte-level engine:
//
//	var h ring.Header
//	h.Init(1024)
//	slots := ring.NewSlots(1024, 64)
//
//	q := h.MPMC()
//	if !q.Enqueue(slots, msg) {
//	    // Ring is full - handle backpressure
//	}
//
//	out := make([]byte, 64)
//	if q.Dequeue(slots, out) {
//	    process(out)
//	}
//
// Typed queues for pointer-free element types:
//
//	q := ring.NewSPSC[Event](1024)
//	q := ring.NewMPMC[Sample](4096)
//	q := ring.Build[Event](ring.New(1024).SingleProducer().SingleConsumer())
//
// # Reserve and Commit
//
// Enqueue is a composition of two phases that callers may also run
// themselves to write a payload in place:
//
//	// SPSC
//	if slot := h.SPSC().Reserve(slots); slot != nil {
//	    encode(slot)
//	    h.SPSC().Commit()
//	}
//
//	// MPMC
//	if slot, t, ok := h.MPMC().Reserve(slots); ok {
//	    encode(slot)
//	    h.MPMC().Commit(t)
//	}
//
// An MPMC commit publishes tickets strictly in reservation order: Commit(t)
// waits until every ticket before t is committed. A reserved ticket must
// always be committed, or every later producer stalls in Commit.
//
// # Error Handling
//
// Full and empty are ordinary conditions. The engines report them as a false
// return (or a nil slot from SPSC.Reserve). Typed queues return
// [ErrWouldBlock], sourced from [code.hybscloud.com/iox]:
//
//	backoff := iox.Backoff{}
//	for q.Enqueue(&item) != nil {
//	    backoff.Wait()
//	}
//	backoff.Reset()
//
// Misuse (non-power-of-2 capacity, Commit without Reserve, mixing engines)
// is a programmer error. Init panics on a bad capacity; [Header.Valid] is a
// debug assertion for the rest.
//
// # Capacity
//
// A ring of capacity n holds n elements. Header.Init requires a power of 2.
// Typed constructors round up:
//
//	q := ring.NewMPMC[int](3)     // Actual capacity: 4
//	q := ring.NewMPMC[int](1000)  // Actual capacity: 1024
//
// [Header.LiveCount] is a racy snapshot intended for monitoring.
//
// # Race Detection
//
// Slot payloads are plain bytes ordered by acquire/release operations on the
// header counters, and MPMC consumers read slots optimistically before
// claiming them. Go's race detector cannot observe these orderings and
// reports false positives. Concurrent tests are skipped when [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause in retry
// loops, and [code.hybscloud.com/iox] for semantic errors.
package ring
