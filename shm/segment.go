// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

// Package shm places a ring header and its slots in a shared file mapping,
// so a producer and a consumer in different processes can use one ring.
//
// Segment layout:
//
//	offset 0:   descriptor (magic, version, stride, reserved; 4 x uint32)
//	offset 16:  ring.Header (16 bytes)
//	offset 64:  slots (capacity * stride bytes)
//
// Descriptor fields use native byte order: a segment is only meaningful
// between processes on the same machine.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"code.hybscloud.com/ring"
	"golang.org/x/sys/unix"
)

const (
	// Magic identifies a ring segment ("RNG1").
	Magic = 0x31474e52

	// Version is the segment layout version.
	Version = 1

	headerOffset = 16
	dataOffset   = 64
)

// ErrBadSegment indicates a file that is not a valid ring segment.
var ErrBadSegment = errors.New("shm: bad segment")

// Segment is a mapped ring segment.
type Segment struct {
	f     *os.File
	mem   []byte
	hdr   *ring.Header
	slots ring.Slots
}

// Size returns the segment size in bytes for the given geometry.
func Size(capacity uint32, stride int) int {
	return dataOffset + int(capacity)*stride
}

// Create creates (or truncates) the file at path, maps it shared and
// initializes an empty ring of the given capacity and stride.
//
// Capacity must be a power of 2 and stride at least 1.
func Create(path string, capacity uint32, stride int) (*Segment, error) {
	if capacity == 0 || capacity&(capacity-1) != 0 || capacity > ring.MaxCapacity {
		return nil, fmt.Errorf("shm: capacity %d is not a power of 2", capacity)
	}
	if stride < 1 || uint64(stride) > 1<<32-1 {
		return nil, fmt.Errorf("shm: invalid stride %d", stride)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create: %w", err)
	}
	size := Size(capacity, stride)
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	hdr := ring.HeaderAt(mem[headerOffset:])
	hdr.Init(capacity)
	binary.NativeEndian.PutUint32(mem[8:], uint32(stride))
	binary.NativeEndian.PutUint32(mem[12:], 0)
	binary.NativeEndian.PutUint32(mem[4:], Version)
	binary.NativeEndian.PutUint32(mem[0:], Magic)

	return &Segment{
		f:     f,
		mem:   mem,
		hdr:   hdr,
		slots: ring.SlotsOf(mem[dataOffset:size], stride),
	}, nil
}

// Open maps an existing segment created by Create.
//
// Open checks the descriptor and the segment size. It does not check the
// counters: a peer may be operating on the ring concurrently.
func Open(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	size := st.Size()
	if size < dataOffset || size > int64(^uint(0)>>1) {
		f.Close()
		return nil, fmt.Errorf("%w: %s: size %d", ErrBadSegment, path, size)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	seg := &Segment{f: f, mem: mem}
	if err := seg.load(); err != nil {
		seg.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrBadSegment, path, err)
	}
	return seg, nil
}

func (s *Segment) load() error {
	if m := binary.NativeEndian.Uint32(s.mem[0:]); m != Magic {
		return fmt.Errorf("magic %#x", m)
	}
	if v := binary.NativeEndian.Uint32(s.mem[4:]); v != Version {
		return fmt.Errorf("version %d", v)
	}
	stride := int(binary.NativeEndian.Uint32(s.mem[8:]))
	if stride < 1 {
		return fmt.Errorf("stride %d", stride)
	}
	hdr := ring.HeaderAt(s.mem[headerOffset:])
	capacity := hdr.Capacity()
	if capacity == 0 || capacity&(capacity-1) != 0 || capacity > ring.MaxCapacity {
		return fmt.Errorf("capacity %d", capacity)
	}
	size := Size(capacity, stride)
	if size > len(s.mem) {
		return fmt.Errorf("size %d, want %d", len(s.mem), size)
	}
	s.hdr = hdr
	s.slots = ring.SlotsOf(s.mem[dataOffset:size], stride)
	return nil
}

// Header returns the ring header inside the mapping.
func (s *Segment) Header() *ring.Header {
	return s.hdr
}

// Slots returns the ring slots inside the mapping.
func (s *Segment) Slots() ring.Slots {
	return s.slots
}

// Size returns the mapped size in bytes.
func (s *Segment) Size() int {
	return len(s.mem)
}

// Sync flushes the mapping to the backing file.
func (s *Segment) Sync() error {
	if err := unix.Msync(s.mem, unix.MS_SYNC); err != nil {
		return fmt.Errorf("shm: msync: %w", err)
	}
	return nil
}

// Close unmaps the segment and closes the file. The file is not removed.
// The header and slots must not be used after Close.
func (s *Segment) Close() error {
	var errs []error
	if s.mem != nil {
		if err := unix.Munmap(s.mem); err != nil {
			errs = append(errs, fmt.Errorf("shm: munmap: %w", err))
		}
		s.mem = nil
	}
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shm: close: %w", err))
		}
		s.f = nil
	}
	s.hdr = nil
	s.slots = ring.Slots{}
	return errors.Join(errs...)
}
