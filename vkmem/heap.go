// Package vkmem implements suballocation of Vulkan device memory.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkmem

import (
	"github.com/vplay/vplay/cmn"
)

// Allocator tunables.
const (
	// growthRate is the multiplication factor for new slab allocations,
	// relative to the previous slab. Higher values make heaps grow faster.
	growthRate = 4

	// minSlabSize bounds how small slabs can get, to reduce the frequency
	// of tiny slab allocations when the first few buffers arrive.
	minSlabSize = 1 * cmn.MiB

	// maxSlabSize bounds unbounded slab growth. A single allocation bigger
	// than this is served directly from the device as a dedicated slab.
	maxSlabSize = 512 * cmn.MiB

	// minRegionSize bounds the free-space map: freed ranges smaller than
	// this that cannot coalesce are dropped rather than tracked.
	minRegionSize = 1 * cmn.KiB
)

// heap is the bucket of slabs sharing a memory type and a buffer-usage mask
// (usage 0 = generic allocations, e.g. images).
type heap struct {
	typ   *memType
	usage BufferUsageFlags
	slabs []*slab
}

// memType is a single driver-reported memory type. All allocations of the
// type are grouped into heaps, one per buffer-usage mask plus one generic.
type memType struct {
	index     uint32
	heapIndex uint32
	flags     MemPropFlags
	heaps     []*heap
}

// findHeap returns the heap for the (type, usage) pair, creating it on
// first use.
func findHeap(t *memType, usage BufferUsageFlags) *heap {
	for _, h := range t.heaps {
		if h.usage == usage {
			return h
		}
	}
	h := &heap{typ: t, usage: usage}
	t.heaps = append(t.heaps, h)
	return h
}

// getRegion finds a free region able to hold an aligned allocation of the
// given size, growing the heap with a new slab if it is too small or too
// fragmented. Oversized requests bypass the heap entirely and get a
// dedicated slab that is never linked into the slab list.
func (a *Allocator) getRegion(h *heap, size, align uint64) (*slab, int, error) {
	if size > maxSlabSize {
		s, err := a.slabAlloc(h, size)
		if err != nil {
			return nil, 0, err
		}
		s.dedicated = true
		a.dedicatedN.Inc()
		return s, 0, nil
	}

	var last *slab
	for _, s := range h.slabs {
		last = s
		if s.size < size {
			continue
		}
		if best := s.bestFit(size, align); best >= 0 {
			return s, best, nil
		}
	}

	// No fit: grow. The new slab is a multiple of the newest existing slab
	// (or of the request, whichever is larger), clamped to the slab bounds.
	cur := size
	if last != nil {
		cur = cmn.MaxU64(cur, last.size)
	}
	slabSize := cmn.MinU64(cmn.MaxU64(growthRate*cur, minSlabSize), maxSlabSize)
	cmn.Assert(slabSize >= size)
	s, err := a.slabAlloc(h, slabSize)
	if err != nil {
		return nil, 0, err
	}
	h.slabs = append(h.slabs, s)

	cmn.Assert(len(s.regions) == 1)
	return s, 0, nil
}
