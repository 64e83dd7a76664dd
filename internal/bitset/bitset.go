// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bitset provides a fixed-size bitmap safe for concurrent Set.
//
// It records which sequence numbers a set of consumers has observed, so a
// stress run can prove every value was seen exactly once.
package bitset

import (
	"math/bits"

	"code.hybscloud.com/atomix"
)

// Set is a fixed-size concurrent bitmap.
type Set struct {
	words []atomix.Uint64
	n     int
}

// New returns a bitmap of n bits, all clear.
func New(n int) *Set {
	if n < 0 {
		panic("bitset: negative size")
	}
	return &Set{words: make([]atomix.Uint64, (n+63)/64), n: n}
}

// Len returns the number of bits.
func (s *Set) Len() int {
	return s.n
}

// Set sets bit i and reports whether it was already set.
// Panics if i is out of range.
func (s *Set) Set(i int) (wasSet bool) {
	if uint(i) >= uint(s.n) {
		panic("bitset: index out of range")
	}
	w := &s.words[i>>6]
	mask := uint64(1) << (uint(i) & 63)
	for {
		old := w.LoadAcquire()
		if old&mask != 0 {
			return true
		}
		if w.CompareAndSwapAcqRel(old, old|mask) {
			return false
		}
	}
}

// Has reports whether bit i is set.
func (s *Set) Has(i int) bool {
	if uint(i) >= uint(s.n) {
		return false
	}
	return s.words[i>>6].LoadAcquire()&(uint64(1)<<(uint(i)&63)) != 0
}

// Count returns the number of set bits.
func (s *Set) Count() int {
	c := 0
	for i := range s.words {
		c += bits.OnesCount64(s.words[i].LoadAcquire())
	}
	return c
}

// FirstUnset returns the lowest clear bit, or -1 if all bits are set.
func (s *Set) FirstUnset() int {
	for i := range s.words {
		w := s.words[i].LoadAcquire()
		if w == ^uint64(0) {
			continue
		}
		if j := i*64 + bits.TrailingZeros64(^w); j < s.n {
			return j
		}
		return -1
	}
	return -1
}
