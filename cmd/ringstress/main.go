// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ringstress runs producers and consumers over one ring and checks
// that every value arrives exactly once, intact, and in per-producer order.
//
// Usage:
//
//	go run ./cmd/ringstress -engine mpmc -producers 4 -consumers 4 -items 1000 -capacity 256
//	go run ./cmd/ringstress -engine spsc -producers 1 -consumers 1 -items 1000000 -json
//
// The exit status is 1 if the check fails and 2 on invalid flags.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"
)

func main() {
	var cfg config
	flag.StringVar(&cfg.engine, "engine", "mpmc", "ring engine: spsc or mpmc")
	flag.IntVar(&cfg.producers, "producers", 4, "number of producer goroutines")
	flag.IntVar(&cfg.consumers, "consumers", 4, "number of consumer goroutines")
	flag.IntVar(&cfg.items, "items", 1000, "values enqueued per producer")
	flag.UintVar(&cfg.capacity, "capacity", 256, "ring capacity (power of 2)")
	flag.IntVar(&cfg.stride, "stride", 16, "slot size in bytes (>= 8)")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "give up after this long")
	jsonOut := flag.Bool("json", false, "print the report as JSON")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rep, err := run(cfg, log)
	if rep == nil {
		log.Error("invalid configuration", slog.Any("err", err))
		os.Exit(2)
	}
	if err := writeReport(os.Stdout, rep, *jsonOut); err != nil {
		log.Error("write report", slog.Any("err", err))
		os.Exit(1)
	}
	if err != nil {
		log.Error("stress failed", slog.Any("err", err))
		os.Exit(1)
	}
	if !rep.OK() {
		os.Exit(1)
	}
}

func writeReport(w io.Writer, rep *report, asJSON bool) error {
	if asJSON {
		b, err := sonnet.Marshal(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	_, err := fmt.Fprintf(w, `Engine:      %s (%d producers, %d consumers)
Ring:        capacity=%d stride=%d
Values:      expected=%d enqueued=%d dequeued=%d
Violations:  duplicates=%d missing=%d corrupt=%d order=%d timed_out=%v
Elapsed:     %.3f ms (%.2f M ops/sec)
Final:       %s
Result:      %s
`,
		rep.Engine, rep.Producers, rep.Consumers,
		rep.Capacity, rep.Stride,
		rep.Expected, rep.Enqueued, rep.Dequeued,
		rep.Duplicates, rep.Missing, rep.Corrupt, rep.OrderViolations, rep.TimedOut,
		rep.ElapsedMillis, rep.OpsPerSec/1e6,
		rep.Final,
		result(rep.OK()))
	return err
}

func result(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
