// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

// Slots is the element storage of a ring: a flat byte buffer divided into
// fixed-size slots of Stride bytes.
//
// Slots is a value type holding a slice; copies share the same memory.
// The buffer must hold at least capacity*stride bytes for the [Header]
// it is used with. A shorter buffer makes engine operations panic with
// an index out of range instead of touching foreign memory.
type Slots struct {
	buf    []byte
	stride int
}

// NewSlots allocates storage for n slots of stride bytes each.
//
// Panics if n < 0 or stride < 1.
func NewSlots(n, stride int) Slots {
	if n < 0 {
		panic("ring: negative slot count")
	}
	if stride < 1 {
		panic("ring: stride must be >= 1")
	}
	return Slots{buf: make([]byte, n*stride), stride: stride}
}

// SlotsOf wraps caller memory as slots of stride bytes.
// Trailing bytes that do not fill a whole slot are ignored.
//
// Panics if stride < 1.
func SlotsOf(buf []byte, stride int) Slots {
	if stride < 1 {
		panic("ring: stride must be >= 1")
	}
	n := len(buf) / stride
	return Slots{buf: buf[:n*stride : n*stride], stride: stride}
}

// Len returns the number of whole slots.
func (s Slots) Len() int {
	if s.stride == 0 {
		return 0
	}
	return len(s.buf) / s.stride
}

// Stride returns the slot size in bytes.
func (s Slots) Stride() int {
	return s.stride
}

// Bytes returns the underlying buffer.
func (s Slots) Bytes() []byte {
	return s.buf
}

// At returns physical slot i. The returned slice has length and capacity
// Stride, so appends cannot spill into the next slot.
func (s Slots) At(i uint32) []byte {
	off := int(i) * s.stride
	return s.buf[off : off+s.stride : off+s.stride]
}
