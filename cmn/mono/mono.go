// Package mono provides monotonic low-level time primitives.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package mono

import "time"

var t0 = time.Now()

// NanoTime returns the number of nanoseconds elapsed on the monotonic clock
// since process start.
func NanoTime() int64 { return int64(time.Since(t0)) }

// Since returns the duration elapsed since a NanoTime() reading.
func Since(started int64) time.Duration {
	return time.Duration(NanoTime() - started)
}
