// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bitset_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/ring"
	"code.hybscloud.com/ring/internal/bitset"
)

func TestSetBasic(t *testing.T) {
	s := bitset.New(130)

	if s.Len() != 130 {
		t.Fatalf("Len: got %d, want 130", s.Len())
	}
	if got := s.FirstUnset(); got != 0 {
		t.Fatalf("FirstUnset on empty: got %d, want 0", got)
	}

	for _, i := range []int{0, 63, 64, 129} {
		if s.Set(i) {
			t.Fatalf("Set(%d): reported already set", i)
		}
		if !s.Set(i) {
			t.Fatalf("Set(%d) twice: not reported as set", i)
		}
		if !s.Has(i) {
			t.Fatalf("Has(%d): got false", i)
		}
	}

	if s.Has(1) {
		t.Fatal("Has(1): got true")
	}
	if s.Has(500) {
		t.Fatal("Has(500): out of range must be false")
	}
	if got := s.Count(); got != 4 {
		t.Fatalf("Count: got %d, want 4", got)
	}
	if got := s.FirstUnset(); got != 1 {
		t.Fatalf("FirstUnset: got %d, want 1", got)
	}
}

func TestSetFull(t *testing.T) {
	s := bitset.New(70)
	for i := range 70 {
		s.Set(i)
	}
	if got := s.FirstUnset(); got != -1 {
		t.Fatalf("FirstUnset on full: got %d, want -1", got)
	}
	if got := s.Count(); got != 70 {
		t.Fatalf("Count: got %d, want 70", got)
	}
}

func TestSetOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Set(-1): expected panic")
		}
	}()
	bitset.New(8).Set(-1)
}

func TestSetConcurrent(t *testing.T) {
	if ring.RaceEnabled {
		t.Skip("skip: atomix words are invisible to the race detector")
	}

	const (
		workers = 8
		n       = 4096
	)
	s := bitset.New(n)
	var firsts atomix.Int64
	var wg sync.WaitGroup

	// Every worker sets every bit; exactly one wins each bit.
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range n {
				if !s.Set(i) {
					firsts.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := firsts.Load(); got != n {
		t.Fatalf("first setters: got %d, want %d", got, n)
	}
	if got := s.Count(); got != n {
		t.Fatalf("Count: got %d, want %d", got, n)
	}
}
