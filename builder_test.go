// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring_test

import (
	"testing"

	"code.hybscloud.com/ring"
)

// =============================================================================
// Engine Selection
// =============================================================================

func TestBuildSelectsEngine(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *ring.Builder
		wantSPSC bool
	}{
		{"default", func() *ring.Builder { return ring.New(7) }, false},
		{"single producer", func() *ring.Builder { return ring.New(7).SingleProducer() }, false},
		{"single consumer", func() *ring.Builder { return ring.New(7).SingleConsumer() }, false},
		{"both single", func() *ring.Builder { return ring.New(7).SingleProducer().SingleConsumer() }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ring.Build[int64](tt.builder())
			_, isSPSC := q.(*ring.SPSCQueue[int64])
			_, isMPMC := q.(*ring.MPMCQueue[int64])
			if isSPSC != tt.wantSPSC || isMPMC == tt.wantSPSC {
				t.Fatalf("Build: got %T", q)
			}
			if q.Cap() != 8 {
				t.Fatalf("Cap: got %d, want 8", q.Cap())
			}

			for i := range int64(8) {
				if err := q.Enqueue(&i); err != nil {
					t.Fatalf("enqueue %d: %v", i, err)
				}
			}
			for i := range int64(8) {
				val, err := q.Dequeue()
				if err != nil {
					t.Fatalf("dequeue %d: %v", i, err)
				}
				if val != i {
					t.Fatalf("got %d, want %d", val, i)
				}
			}
		})
	}
}

func TestBuildSPSC(t *testing.T) {
	q := ring.BuildSPSC[uint16](ring.New(100).SingleProducer().SingleConsumer())
	if q.Cap() != 128 {
		t.Fatalf("Cap: got %d, want 128", q.Cap())
	}
	v := uint16(7)
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if got, _ := q.Dequeue(); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestBuildMPMCIgnoresConstraints(t *testing.T) {
	q := ring.BuildMPMC[uint16](ring.New(1).SingleProducer().SingleConsumer())
	if q.Cap() != 1 {
		t.Fatalf("Cap: got %d, want 1", q.Cap())
	}
}

func TestBuilderPanics(t *testing.T) {
	cases := map[string]func(){
		"New(0)":                  func() { ring.New(0) },
		"New(-1)":                 func() { ring.New(-1) },
		"BuildSPSC unconstrained": func() { ring.BuildSPSC[int](ring.New(4)) },
		"BuildSPSC single side":   func() { ring.BuildSPSC[int](ring.New(4).SingleProducer()) },
		"Build with pointer type": func() { ring.Build[*int](ring.New(4)) },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			f()
		})
	}
}

// =============================================================================
// Capacity Rounding
// =============================================================================

func TestCapacityRounding(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024}, {1024, 1024}, {1025, 2048},
	}
	for _, tt := range tests {
		if got := ring.NewMPMC[byte](tt.in).Cap(); got != tt.want {
			t.Fatalf("NewMPMC(%d).Cap: got %d, want %d", tt.in, got, tt.want)
		}
		if got := ring.New(tt.in).SingleProducer().SingleConsumer(); ring.Build[byte](got).Cap() != tt.want {
			t.Fatalf("Build(%d).Cap: want %d", tt.in, tt.want)
		}
	}
}
