// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/ring"
	"code.hybscloud.com/ring/internal/bitset"
)

// minStride holds the producer id and the sequence number.
const minStride = 8

type config struct {
	engine    string
	producers int
	consumers int
	items     int // per producer
	capacity  uint
	stride    int
	timeout   time.Duration
}

func (c config) validate() error {
	switch c.engine {
	case "spsc":
		if c.producers != 1 || c.consumers != 1 {
			return fmt.Errorf("spsc needs exactly 1 producer and 1 consumer, got %d and %d", c.producers, c.consumers)
		}
	case "mpmc":
		if c.producers < 1 || c.consumers < 1 {
			return fmt.Errorf("mpmc needs at least 1 producer and 1 consumer")
		}
	default:
		return fmt.Errorf("unknown engine %q", c.engine)
	}
	if c.capacity == 0 || c.capacity&(c.capacity-1) != 0 || c.capacity > ring.MaxCapacity {
		return fmt.Errorf("capacity %d is not a power of 2", c.capacity)
	}
	if c.stride < minStride {
		return fmt.Errorf("stride %d is below %d", c.stride, minStride)
	}
	if c.items < 1 || uint64(c.items) > 1<<31 {
		return fmt.Errorf("items %d out of range", c.items)
	}
	if c.timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

type report struct {
	Engine          string  `json:"engine"`
	Producers       int     `json:"producers"`
	Consumers       int     `json:"consumers"`
	Capacity        uint32  `json:"capacity"`
	Stride          int     `json:"stride"`
	Expected        int     `json:"expected"`
	Enqueued        int64   `json:"enqueued"`
	Dequeued        int64   `json:"dequeued"`
	Duplicates      int64   `json:"duplicates"`
	Missing         int     `json:"missing"`
	Corrupt         int64   `json:"corrupt"`
	OrderViolations int64   `json:"order_violations"`
	TimedOut        bool    `json:"timed_out"`
	ElapsedMillis   float64 `json:"elapsed_ms"`
	OpsPerSec       float64 `json:"ops_per_sec"`
	Final           string  `json:"final_state"`
}

// OK reports whether every value was dequeued exactly once, intact,
// and in per-producer order.
func (r *report) OK() bool {
	return !r.TimedOut && r.Duplicates == 0 && r.Missing == 0 &&
		r.Corrupt == 0 && r.OrderViolations == 0
}

// encode stamps entry with the producer id, the sequence number and a
// canary fill derived from both.
func encode(entry []byte, id, seq int) {
	binary.LittleEndian.PutUint32(entry[0:], uint32(id))
	binary.LittleEndian.PutUint32(entry[4:], uint32(seq))
	c := canary(id, seq)
	for i := minStride; i < len(entry); i++ {
		entry[i] = c
	}
}

// decode validates out and returns its producer id and sequence number.
func decode(out []byte, producers, items int) (id, seq int, ok bool) {
	id = int(binary.LittleEndian.Uint32(out[0:]))
	seq = int(binary.LittleEndian.Uint32(out[4:]))
	if id >= producers || seq >= items {
		return 0, 0, false
	}
	c := canary(id, seq)
	for i := minStride; i < len(out); i++ {
		if out[i] != c {
			return 0, 0, false
		}
	}
	return id, seq, true
}

func canary(id, seq int) byte {
	return byte(id*31 + seq)
}

// run drives cfg.producers producers and cfg.consumers consumers over one
// ring until every value is consumed or the timeout expires.
func run(cfg config, log *slog.Logger) (*report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var hdr ring.Header
	hdr.Init(uint32(cfg.capacity))
	slots := ring.NewSlots(int(cfg.capacity), cfg.stride)

	total := cfg.producers * cfg.items
	seen := bitset.New(total)

	var (
		wg                  sync.WaitGroup
		enqueued, dequeued  atomix.Int64
		duplicates, corrupt atomix.Int64
		orderViolations     atomix.Int64
		timedOut            atomix.Bool
	)
	watchdog := time.AfterFunc(cfg.timeout, func() { timedOut.StoreRelease(true) })
	defer watchdog.Stop()

	enqueue := func(entry []byte) bool {
		if cfg.engine == "spsc" {
			return hdr.SPSC().Enqueue(slots, entry)
		}
		return hdr.MPMC().Enqueue(slots, entry)
	}
	dequeue := func(out, scratch []byte) bool {
		if cfg.engine == "spsc" {
			return hdr.SPSC().Dequeue(slots, out)
		}
		return hdr.MPMC().DequeueInto(slots, out, scratch)
	}

	log.Info("stress start",
		slog.String("engine", cfg.engine),
		slog.Int("producers", cfg.producers),
		slog.Int("consumers", cfg.consumers),
		slog.Int("items", cfg.items),
		slog.Uint64("capacity", uint64(cfg.capacity)),
		slog.Int("stride", cfg.stride))
	start := time.Now()

	// Producers
	for p := range cfg.producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			entry := make([]byte, cfg.stride)
			backoff := iox.Backoff{}
			for i := range cfg.items {
				encode(entry, id, i)
				for !enqueue(entry) {
					if timedOut.LoadAcquire() {
						return
					}
					backoff.Wait()
				}
				backoff.Reset()
				enqueued.Add(1)
			}
		}(p)
	}

	// Consumers
	for range cfg.consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := make([]byte, cfg.stride)
			scratch := make([]byte, cfg.stride)
			last := make([]int, cfg.producers)
			for i := range last {
				last[i] = -1
			}
			backoff := iox.Backoff{}
			for dequeued.Load() < int64(total) {
				if timedOut.LoadAcquire() {
					return
				}
				if !dequeue(out, scratch) {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				dequeued.Add(1)

				id, seq, ok := decode(out, cfg.producers, cfg.items)
				if !ok {
					corrupt.Add(1)
					continue
				}
				// One consumer observes each producer's values in ticket order
				if seq <= last[id] {
					orderViolations.Add(1)
				}
				last[id] = seq
				if seen.Set(id*cfg.items + seq) {
					duplicates.Add(1)
				}
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)
	watchdog.Stop()

	rep := &report{
		Engine:          cfg.engine,
		Producers:       cfg.producers,
		Consumers:       cfg.consumers,
		Capacity:        hdr.Capacity(),
		Stride:          cfg.stride,
		Expected:        total,
		Enqueued:        enqueued.Load(),
		Dequeued:        dequeued.Load(),
		Duplicates:      duplicates.Load(),
		Missing:         total - seen.Count(),
		Corrupt:         corrupt.Load(),
		OrderViolations: orderViolations.Load(),
		TimedOut:        timedOut.LoadAcquire() && dequeued.Load() < int64(total),
		ElapsedMillis:   float64(elapsed.Microseconds()) / 1000,
		Final:           hdr.Snapshot().String(),
	}
	if s := elapsed.Seconds(); s > 0 {
		rep.OpsPerSec = float64(rep.Enqueued+rep.Dequeued) / s
	}
	if !rep.TimedOut && !hdr.Valid() {
		return rep, fmt.Errorf("ring left inconsistent: %s", rep.Final)
	}
	if rep.Missing > 0 {
		log.Warn("values missing", slog.Int("missing", rep.Missing), slog.Int("first", seen.FirstUnset()))
	}
	log.Info("stress done",
		slog.Bool("ok", rep.OK()),
		slog.Duration("elapsed", elapsed),
		slog.Int64("dequeued", rep.Dequeued))
	return rep, nil
}
