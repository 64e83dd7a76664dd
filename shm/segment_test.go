// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package shm_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ring"
	"code.hybscloud.com/ring/shm"
)

func TestCreateOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring.seg")

	w, err := shm.Create(path, 8, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	if got, want := w.Size(), shm.Size(8, 16); got != want {
		t.Fatalf("Size: got %d, want %d", got, want)
	}
	if w.Header().Capacity() != 8 {
		t.Fatalf("Capacity: got %d, want 8", w.Header().Capacity())
	}
	if w.Slots().Stride() != 16 || w.Slots().Len() != 8 {
		t.Fatalf("Slots: got %d x %d, want 8 x 16", w.Slots().Len(), w.Slots().Stride())
	}
	if !w.Header().Valid() {
		t.Fatalf("new segment invalid: %v", w.Header().Snapshot())
	}

	// Producer side writes through one mapping
	q := w.Header().MPMC()
	for i := range 5 {
		entry := make([]byte, 16)
		binary.LittleEndian.PutUint64(entry, uint64(i+1))
		if !q.Enqueue(w.Slots(), entry) {
			t.Fatalf("Enqueue(%d): ring full", i)
		}
	}

	// Consumer side reads through a second, independent mapping
	r, err := shm.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if got := r.Header().LiveCount(); got != 5 {
		t.Fatalf("LiveCount via second mapping: got %d, want 5", got)
	}
	out := make([]byte, 16)
	for i := range 5 {
		if !r.Header().MPMC().Dequeue(r.Slots(), out) {
			t.Fatalf("Dequeue(%d): ring empty", i)
		}
		if got := binary.LittleEndian.Uint64(out); got != uint64(i+1) {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, got, i+1)
		}
	}
	if w.Header().LiveCount() != 0 {
		t.Fatalf("LiveCount via first mapping: got %d, want 0", w.Header().LiveCount())
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestCreateInvalidGeometry(t *testing.T) {
	dir := t.TempDir()
	if _, err := shm.Create(filepath.Join(dir, "a"), 6, 8); err == nil {
		t.Fatal("Create with capacity 6: expected error")
	}
	if _, err := shm.Create(filepath.Join(dir, "b"), 0, 8); err == nil {
		t.Fatal("Create with capacity 0: expected error")
	}
	if _, err := shm.Create(filepath.Join(dir, "c"), 8, 0); err == nil {
		t.Fatal("Create with stride 0: expected error")
	}
}

func TestOpenRejectsBadSegments(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short")
	if err := os.WriteFile(short, make([]byte, 10), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := shm.Open(short); !errors.Is(err, shm.ErrBadSegment) {
		t.Fatalf("Open short file: got %v, want ErrBadSegment", err)
	}

	garbage := filepath.Join(dir, "garbage")
	if err := os.WriteFile(garbage, make([]byte, 256), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := shm.Open(garbage); !errors.Is(err, shm.ErrBadSegment) {
		t.Fatalf("Open zero file: got %v, want ErrBadSegment", err)
	}

	// Valid descriptor, but the file was truncated below capacity*stride
	trunc := filepath.Join(dir, "trunc")
	s, err := shm.Create(trunc, 16, 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := os.Truncate(trunc, int64(shm.Size(16, 32)-32)); err != nil {
		t.Fatal(err)
	}
	if _, err := shm.Open(trunc); !errors.Is(err, shm.ErrBadSegment) {
		t.Fatalf("Open truncated: got %v, want ErrBadSegment", err)
	}

	if _, err := shm.Open(filepath.Join(dir, "missing")); err == nil || errors.Is(err, shm.ErrBadSegment) {
		t.Fatalf("Open missing: got %v, want a non-format error", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := shm.Create(filepath.Join(t.TempDir(), "seg"), 4, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// TestCrossMappingSPSC runs the producer and the consumer on different
// mappings of the same file, as two processes would.
func TestCrossMappingSPSC(t *testing.T) {
	if ring.RaceEnabled {
		t.Skip("skip: slot payloads are ordered by header atomics")
	}

	const n = 20000
	path := filepath.Join(t.TempDir(), "spsc.seg")
	prod, err := shm.Create(path, 64, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer prod.Close()
	cons, err := shm.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cons.Close()

	var wg sync.WaitGroup
	deadline := time.Now().Add(10 * time.Second)

	wg.Add(1)
	go func() {
		defer wg.Done()
		q := prod.Header().SPSC()
		entry := make([]byte, 8)
		backoff := iox.Backoff{}
		for i := range n {
			binary.LittleEndian.PutUint64(entry, uint64(i))
			for !q.Enqueue(prod.Slots(), entry) {
				if time.Now().After(deadline) {
					return
				}
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	q := cons.Header().SPSC()
	out := make([]byte, 8)
	backoff := iox.Backoff{}
	for i := 0; i < n; {
		if time.Now().After(deadline) {
			t.Fatalf("timeout after %d of %d values", i, n)
		}
		if !q.Dequeue(cons.Slots(), out) {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if got := binary.LittleEndian.Uint64(out); got != uint64(i) {
			t.Fatalf("Dequeue: got %d, want %d", got, i)
		}
		i++
	}
	wg.Wait()
}
