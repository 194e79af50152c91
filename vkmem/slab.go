// Package vkmem implements suballocation of Vulkan device memory.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkmem

import (
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/vplay/vplay/cmn"
	"github.com/vplay/vplay/cmn/mono"
)

// slab is one contiguous device allocation; client allocations are served as
// slices of it. Slabs are boxed so that slice back-pointers stay valid while
// the owning heap's slab list grows.
type slab struct {
	mem       DeviceMemory
	size      uint64 // extent of the free-space map
	resv      uint64 // bytes actually allocated from the device (>= size)
	used      uint64 // bytes handed out to live slices
	dedicated bool   // allocated for exactly one oversized slice
	// free-space map: sorted, disjoint, maximally coalesced
	regions []Region
	// optional, depending on the memory type and heap:
	buffer Buffer         // buffer spanning the entire slab (buffer-typed heaps)
	data   unsafe.Pointer // mapped base pointer (host-visible types)
}

// slabAlloc creates a slab of the given size on the heap's memory type.
// Buffer-typed heaps get a backing buffer created first; its reported
// requirements may exceed `size`, in which case the surplus bytes are
// allocated but stay unreachable since the free-space map is bounded by
// `size`.
func (a *Allocator) slabAlloc(h *heap, size uint64) (*slab, error) {
	var (
		s = &slab{
			size:    size,
			regions: []Region{{Start: 0, End: size}},
		}
		t         = h.typ
		allocSize = size
	)
	glog.V(2).Infof("Allocating %s of type 0x%x (id %d) in heap %d",
		cmn.B2S(int64(size), 0), t.flags, t.index, t.heapIndex)

	if h.usage != 0 {
		buf, reqs, err := a.dev.CreateBuffer(size, h.usage)
		if err != nil {
			return nil, errors.Wrap(err, "create slab buffer")
		}
		s.buffer = buf
		allocSize = reqs.Size

		// Sanity-check the requirements against the chosen memory type.
		// This covers dedicated slabs too, so an incompatible type is
		// caught here rather than at bind time.
		if reqs.MemTypeBits&(1<<t.index) == 0 {
			glog.Errorf("Memory type %d does not support buffer usage 0x%x (memoryTypeBits 0x%x)",
				t.index, h.usage, reqs.MemTypeBits)
			a.slabFree(s)
			return nil, errors.Wrapf(ErrTypeBitmaskMismatch,
				"type %d, usage 0x%x, memoryTypeBits 0x%x", t.index, h.usage, reqs.MemTypeBits)
		}
	}

	mem, err := a.dev.AllocateMemory(t.index, allocSize)
	if err != nil {
		glog.Errorf("Failed allocating %s of type %d: %v", cmn.B2S(int64(allocSize), 0), t.index, err)
		a.slabFree(s)
		return nil, errors.Wrapf(err, "allocate %s of type %d", cmn.B2S(int64(allocSize), 0), t.index)
	}
	s.mem = mem
	s.resv = allocSize

	if t.flags&MemHostVisible != 0 {
		data, err := a.dev.MapMemory(s.mem)
		if err != nil {
			glog.Errorf("Failed mapping slab of type %d: %v", t.index, err)
			a.slabFree(s)
			return nil, errors.Wrap(err, "map slab memory")
		}
		s.data = data
	}

	if h.usage != 0 {
		if err := a.dev.BindBuffer(s.buffer, s.mem, 0); err != nil {
			glog.Errorf("Failed binding slab buffer (usage 0x%x): %v", h.usage, err)
			a.slabFree(s)
			return nil, errors.Wrap(err, "bind slab buffer")
		}
	}

	a.slabs.Inc()
	a.reserved.Add(int64(s.resv))
	return s, nil
}

// slabFree destroys a slab, releasing the buffer and the device allocation.
// Teardown is known to be slow on some drivers; the elapsed time is logged
// as diagnostic signal.
func (a *Allocator) slabFree(s *slab) {
	if s == nil {
		return
	}
	cmn.AssertMsg(s.used == 0, "freeing slab with live slices")

	started := mono.NanoTime()
	if s.buffer != nil {
		a.dev.DestroyBuffer(s.buffer)
		s.buffer = nil
	}
	if s.mem != nil {
		// also implicitly unmaps
		a.dev.FreeMemory(s.mem)
		s.mem = nil
		a.slabs.Dec()
		a.reserved.Sub(int64(s.resv))
	}
	glog.V(2).Infof("Freeing slab of size %s took %v", cmn.B2S(int64(s.size), 0), mono.Since(started))
}
