// Package vkmem implements suballocation of Vulkan device memory.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkmem

import (
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/vplay/vplay/cmn"
	"github.com/vplay/vplay/cmn/debug"
)

// The allocator forms a three-level tree: one memType per driver-reported
// memory type, one heap per (type, buffer-usage) pair, and any number of
// slabs per heap. Access is not synchronized internally: the caller (the
// render thread) serializes every entry point. The stats counters are
// atomic only so that a diagnostics reader may snapshot them concurrently.
type (
	Allocator struct {
		dev         Device
		types       []memType
		granularity uint64
		// stats
		slabs      atomic.Int64
		dedicatedN atomic.Int64
		reserved   atomic.Int64
		used       atomic.Int64
	}

	// Slice is a caller-visible sub-range of a slab. Mem and Offset are
	// passed back to the driver when binding images or buffers; Offset must
	// not be interpreted otherwise.
	Slice struct {
		Mem    DeviceMemory
		Offset uint64
		Size   uint64
		slab   *slab
	}

	// BufSlice is a Slice backed by a buffer spanning the slab; Data is
	// non-nil iff the memory type is host-visible.
	BufSlice struct {
		Slice
		Buf  Buffer
		Data unsafe.Pointer
	}

	// Stats is a point-in-time snapshot of allocator-wide counters.
	Stats struct {
		Slabs     int64 // live slabs, dedicated included
		Dedicated int64 // dedicated slabs created over the lifetime
		Reserved  int64 // bytes currently allocated from the device
		Used      int64 // bytes currently handed out as slices
	}
)

// New builds an allocator over the device facade, enumerating the driver's
// memory types once. Multiple allocators may coexist, one per facade.
func New(dev Device) *Allocator {
	var (
		infos = dev.MemoryTypes()
		a     = &Allocator{
			dev:         dev,
			types:       make([]memType, len(infos)),
			granularity: dev.BufferImageGranularity(),
		}
	)
	for i, info := range infos {
		a.types[i] = memType{
			index:     info.Index,
			heapIndex: info.HeapIndex,
			flags:     info.Flags,
		}
	}
	glog.V(2).Infof("vkmem: initialized with %d memory types, bufferImageGranularity=%d",
		len(a.types), a.granularity)
	return a
}

// Terminate destroys every heap and slab, bottom-up. All slices must have
// been freed; a slab with live slices trips the teardown assert.
func (a *Allocator) Terminate() {
	for i := range a.types {
		t := &a.types[i]
		for _, h := range t.heaps {
			for _, s := range h.slabs {
				a.slabFree(s)
			}
			h.slabs = nil
		}
		t.heaps = nil
	}
	a.types = nil
}

func (a *Allocator) Stats() Stats {
	return Stats{
		Slabs:     a.slabs.Load(),
		Dedicated: a.dedicatedN.Load(),
		Reserved:  a.reserved.Load(),
		Used:      a.used.Load(),
	}
}

// findBestMemType picks the first memory type satisfying the property flags
// and, when given, the requirements bitmask. The driver reports types in
// preference order, so the first match is the best one.
func (a *Allocator) findBestMemType(flags MemPropFlags, reqs *MemoryRequirements) (*memType, error) {
	for i := range a.types {
		t := &a.types[i]
		if t.flags&flags != flags {
			continue
		}
		if reqs != nil && reqs.MemTypeBits&(1<<t.index) == 0 {
			continue
		}
		return t, nil
	}
	glog.Errorf("Found no memory type matching property flags 0x%x", flags)
	return nil, errors.Wrapf(ErrNoMatchingMemType, "flags 0x%x", flags)
}

// sliceHeap carves a slice out of the heap. The requested alignment is
// raised to the device's bufferImageGranularity so buffer and image slices
// may always share a slab.
func (a *Allocator) sliceHeap(h *heap, size, alignment uint64) (*Slice, error) {
	alignment = cmn.CeilAlign(alignment, a.granularity)
	s, idx, err := a.getRegion(h, size, alignment)
	if err != nil {
		return nil, err
	}

	r := s.regions[idx]
	s.regions = append(s.regions[:idx], s.regions[idx+1:]...)
	out := &Slice{
		Mem:    s.mem,
		Offset: cmn.CeilAlign(r.Start, alignment),
		Size:   size,
		slab:   s,
	}

	glog.V(4).Infof("Sub-allocating slice %d + %d from slab with size %d",
		out.Offset, out.Size, s.size)

	// Return both remainders; either may be empty or sub-minimum.
	s.insertRegion(Region{Start: r.Start, End: out.Offset})
	s.insertRegion(Region{Start: out.Offset + out.Size, End: r.End})

	s.used += size
	a.used.Add(int64(size))
	return out, nil
}

// AllocGeneric serves images and other objects with driver-computed
// requirements from the generic (usage 0) heap of the best matching type.
func (a *Allocator) AllocGeneric(reqs MemoryRequirements, flags MemPropFlags) (*Slice, error) {
	t, err := a.findBestMemType(flags, &reqs)
	if err != nil {
		return nil, err
	}
	return a.sliceHeap(findHeap(t, 0), reqs.Size, reqs.Alignment)
}

// AllocBuffer serves a buffer-backed slice: the returned slice carries the
// slab-spanning buffer handle and, for host-visible types, a mapped pointer
// at the slice offset.
func (a *Allocator) AllocBuffer(usage BufferUsageFlags, flags MemPropFlags, size, alignment uint64) (*BufSlice, error) {
	t, err := a.findBestMemType(flags, nil)
	if err != nil {
		return nil, err
	}
	slc, err := a.sliceHeap(findHeap(t, usage), size, alignment)
	if err != nil {
		return nil, err
	}
	out := &BufSlice{Slice: *slc, Buf: slc.slab.buffer}
	if slc.slab.data != nil {
		out.Data = unsafe.Pointer(uintptr(slc.slab.data) + uintptr(slc.Offset))
	}
	return out, nil
}

// Free returns a slice to its slab. Dedicated slabs are destroyed
// immediately; otherwise the range rejoins the free-space map.
func (a *Allocator) Free(slc *Slice) {
	s := slc.slab
	cmn.Assert(s != nil)
	cmn.AssertMsg(s.used >= slc.Size, "slice double-free or foreign slice")
	s.used -= slc.Size
	a.used.Sub(int64(slc.Size))
	slc.slab = nil

	glog.V(4).Infof("Freeing slice %d + %d from slab with size %d",
		slc.Offset, slc.Size, s.size)

	if s.dedicated {
		a.slabFree(s)
		return
	}
	s.insertRegion(Region{Start: slc.Offset, End: slc.Offset + slc.Size})
	debug.Assert(s.wellFormed())
}

// wellFormed reports whether the free-space map invariants hold; debug
// builds check it after every free.
func (s *slab) wellFormed() bool {
	var total uint64
	for i, r := range s.regions {
		if r.Start >= r.End || r.End > s.size {
			return false
		}
		if regionLen(r) < minRegionSize {
			return false
		}
		if i > 0 && s.regions[i-1].End >= r.Start {
			return false
		}
		total += regionLen(r)
	}
	return s.used+total <= s.size
}
