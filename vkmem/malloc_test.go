// Package vkmem implements suballocation of Vulkan device memory.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkmem

import (
	"errors"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/vplay/vplay/cmn"
	"github.com/vplay/vplay/tutils/tassert"
)

type (
	mockMem struct {
		size uint64
		data []byte
	}
	mockBuf struct {
		size  uint64
		usage BufferUsageFlags
	}
	mockDevice struct {
		types       []MemTypeInfo
		granularity uint64

		// behavior knobs
		reqAlign  uint64 // alignment reported for created buffers
		reqPad    uint64 // requirements.Size = size + reqPad
		typeBits  uint32 // memoryTypeBits reported for created buffers
		failAlloc error  // force AllocateMemory failures

		// call accounting
		allocs, frees      int
		bufsMade, bufsGone int
		binds, maps        int
	}
)

func newMockDevice() *mockDevice {
	return &mockDevice{
		types: []MemTypeInfo{
			{Index: 0, HeapIndex: 0, Flags: MemDeviceLocal},
			{Index: 1, HeapIndex: 1, Flags: MemHostVisible | MemHostCoherent},
		},
		granularity: 1,
		reqAlign:    1,
		typeBits:    ^uint32(0),
	}
}

func (d *mockDevice) MemoryTypes() []MemTypeInfo { return d.types }

func (d *mockDevice) BufferImageGranularity() uint64 { return d.granularity }

func (d *mockDevice) AllocateMemory(typeIndex uint32, size uint64) (DeviceMemory, error) {
	if d.failAlloc != nil {
		return nil, d.failAlloc
	}
	if int(typeIndex) >= len(d.types) {
		return nil, errors.New("bad type index")
	}
	d.allocs++
	return &mockMem{size: size}, nil
}

func (d *mockDevice) FreeMemory(mem DeviceMemory) {
	d.frees++
	mem.(*mockMem).data = nil
}

func (d *mockDevice) CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, MemoryRequirements, error) {
	d.bufsMade++
	return &mockBuf{size: size, usage: usage}, MemoryRequirements{
		Size:        size + d.reqPad,
		Alignment:   d.reqAlign,
		MemTypeBits: d.typeBits,
	}, nil
}

func (d *mockDevice) DestroyBuffer(Buffer) { d.bufsGone++ }

func (d *mockDevice) BindBuffer(buf Buffer, mem DeviceMemory, offset uint64) error {
	d.binds++
	return nil
}

func (d *mockDevice) MapMemory(mem DeviceMemory) (unsafe.Pointer, error) {
	m := mem.(*mockMem)
	if m.data == nil {
		m.data = make([]byte, m.size)
	}
	d.maps++
	return unsafe.Pointer(&m.data[0]), nil
}

func allRegular(reqSize, align uint64) MemoryRequirements {
	return MemoryRequirements{Size: reqSize, Alignment: align, MemTypeBits: ^uint32(0)}
}

func heapOf(t *testing.T, a *Allocator, typeIdx int, usage BufferUsageFlags) *heap {
	t.Helper()
	for _, h := range a.types[typeIdx].heaps {
		if h.usage == usage {
			return h
		}
	}
	t.Fatalf("no heap with usage 0x%x on type %d", usage, typeIdx)
	return nil
}

// S1: a freed slice's space is reused exactly by an equal follow-up request.
func TestCarveFreeReuse(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	s1, err := a.AllocGeneric(allRegular(4*cmn.KiB, 256), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	s2, err := a.AllocGeneric(allRegular(64*cmn.KiB, 4096), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, s1.Offset == 0, "first slice at %d, want 0", s1.Offset)
	tassert.Fatalf(t, s2.Offset == 4*cmn.KiB, "second slice at %d, want %d", s2.Offset, 4*cmn.KiB)

	first := s1.Offset
	a.Free(s1)
	s3, err := a.AllocGeneric(allRegular(4*cmn.KiB, 256), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, s3.Offset == first, "third slice at %d, want reuse of %d", s3.Offset, first)

	a.Free(s2)
	a.Free(s3)
	a.Terminate()
	tassert.Fatalf(t, dev.allocs == dev.frees, "allocs %d != frees %d", dev.allocs, dev.frees)
}

// S2: freeing middle, left, right leaves a single full-size region.
func TestCoalesceToSingleRegion(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	var slcs []*Slice
	for i := 0; i < 3; i++ {
		slc, err := a.AllocGeneric(allRegular(4*cmn.KiB, 1), MemDeviceLocal)
		tassert.CheckFatal(t, err)
		tassert.Fatalf(t, slc.Offset == uint64(i)*4*cmn.KiB, "slice %d at %d", i, slc.Offset)
		slcs = append(slcs, slc)
	}
	s := heapOf(t, a, 0, 0).slabs[0]
	tassert.Fatalf(t, s.size == 1*cmn.MiB, "slab size %d, want 1MiB", s.size)

	a.Free(slcs[1])
	a.Free(slcs[0])
	a.Free(slcs[2])
	tassert.Fatalf(t, len(s.regions) == 1 && s.regions[0] == Region{0, 1 * cmn.MiB},
		"free-space map not fully coalesced: %v", s.regions)
	a.Terminate()
}

// S4: a freed sub-minimum range is elided, never reused, and the used
// accounting stays conservative.
func TestSmallRegionDrop(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	small, err := a.AllocGeneric(allRegular(512, 1), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	big, err := a.AllocGeneric(allRegular(4*cmn.KiB, 1), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, small.Offset == 0 && big.Offset == 512, "unexpected offsets %d, %d", small.Offset, big.Offset)

	s := heapOf(t, a, 0, 0).slabs[0]
	a.Free(small)
	for _, r := range s.regions {
		tassert.Fatalf(t, r.Start != 0, "512-byte range must have been dropped, map: %v", s.regions)
	}

	tiny, err := a.AllocGeneric(allRegular(1, 1), MemDeviceLocal)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, tiny.Offset != 0, "1-byte allocation must not land in the elided range")

	// used + tracked free bytes never exceed the slab size; the difference
	// is exactly the elided slack
	var free uint64
	for _, r := range s.regions {
		free += regionLen(r)
	}
	tassert.Fatalf(t, s.used+free == s.size-512, "accounting off: used %d free %d size %d", s.used, free, s.size)

	a.Free(big)
	a.Free(tiny)
	a.Terminate()
}

// S5: oversized requests get a dedicated slab outside the heap's list and
// are destroyed on free.
func TestDedicatedBypass(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	// warm the heap so its slab list is non-empty
	warm, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.CheckFatal(t, err)
	h := heapOf(t, a, 0, 1)
	before := len(h.slabs)

	huge, err := a.AllocBuffer(1, MemDeviceLocal, 1*cmn.GiB, 1)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, huge.Slice.slab.dedicated, "1GiB slice must be served by a dedicated slab")
	tassert.Fatalf(t, len(h.slabs) == before, "dedicated slab must not join the heap list")

	frees := dev.frees
	a.Free(&huge.Slice)
	tassert.Fatalf(t, dev.frees == frees+1, "dedicated free must release device memory immediately")

	a.Free(&warm.Slice)
	a.Terminate()
	tassert.Fatalf(t, dev.allocs == dev.frees, "allocs %d != frees %d", dev.allocs, dev.frees)
	tassert.Fatalf(t, dev.bufsMade == dev.bufsGone, "buffers made %d != destroyed %d", dev.bufsMade, dev.bufsGone)
}

// S6: slab sizes follow max(minSlabSize, growthRate x newest) as the heap
// grows under allocation pressure.
func TestGrowthCascade(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	// 8MiB serves 4, 32MiB serves 16; allocation 21 forces the third slab
	for i := 0; i < 21; i++ {
		_, err := a.AllocGeneric(allRegular(2*cmn.MiB, 1), MemDeviceLocal)
		tassert.CheckFatal(t, err)
	}
	h := heapOf(t, a, 0, 0)
	want := []uint64{8 * cmn.MiB, 32 * cmn.MiB, 128 * cmn.MiB}
	tassert.Fatalf(t, len(h.slabs) == len(want), "expected %d slabs, got %d", len(want), len(h.slabs))
	for i, s := range h.slabs {
		tassert.Fatalf(t, s.size == want[i], "slab %d size %d, want %d", i, s.size, want[i])
	}
}

func TestNoMatchingMemType(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)
	_, err := a.AllocGeneric(allRegular(4*cmn.KiB, 1), MemHostCached)
	tassert.Fatalf(t, errors.Is(err, ErrNoMatchingMemType), "want ErrNoMatchingMemType, got %v", err)

	// requirements bitmask can rule out otherwise matching types
	reqs := MemoryRequirements{Size: 4 * cmn.KiB, Alignment: 1, MemTypeBits: 1 << 1}
	slc, err := a.AllocGeneric(reqs, 0)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, slc.slab != nil, "nil slab")
	tassert.Fatalf(t, a.types[1].heaps != nil, "bitmask must steer the allocation to type 1")
	a.Free(slc)
	a.Terminate()
}

func TestTypeBitmaskMismatch(t *testing.T) {
	dev := newMockDevice()
	dev.typeBits = 1 << 1 // buffers only live on type 1
	a := New(dev)

	_, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.Fatalf(t, errors.Is(err, ErrTypeBitmaskMismatch), "want ErrTypeBitmaskMismatch, got %v", err)
	tassert.Fatalf(t, dev.bufsMade == 1 && dev.bufsGone == 1, "failed slab must destroy its buffer")
	tassert.Fatalf(t, dev.allocs == 0 && dev.frees == 0, "no device memory may leak on failure")
	tassert.Fatalf(t, len(heapOf(t, a, 0, 1).slabs) == 0, "failed slab must not be linked")
	a.Terminate()
}

func TestAllocFailureLeavesNoState(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)
	dev.failAlloc = errors.New("out of device memory")

	_, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.Fatalf(t, err != nil, "expected allocation failure")
	tassert.Fatalf(t, dev.bufsMade == dev.bufsGone, "orphaned buffer after failed grow")
	tassert.Fatalf(t, len(heapOf(t, a, 0, 1).slabs) == 0, "failed slab must not be linked")

	dev.failAlloc = nil
	slc, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.CheckFatal(t, err)
	a.Free(&slc.Slice)
	a.Terminate()
}

func TestGranularityFloor(t *testing.T) {
	dev := newMockDevice()
	dev.granularity = 256
	a := New(dev)

	s1, err := a.AllocBuffer(1, MemDeviceLocal, 100, 1)
	tassert.CheckFatal(t, err)
	s2, err := a.AllocBuffer(1, MemDeviceLocal, 100, 1)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, s1.Offset%256 == 0 && s2.Offset%256 == 0,
		"offsets %d, %d must honor bufferImageGranularity", s1.Offset, s2.Offset)
	tassert.Fatalf(t, s2.Offset >= s1.Offset+100, "slices overlap: %d, %d", s1.Offset, s2.Offset)
	a.Free(&s1.Slice)
	a.Free(&s2.Slice)
	a.Terminate()
}

// Requirements reported by the driver may exceed the requested slab size;
// the surplus is allocated but the free-space map stays bounded.
func TestBufferSizePadding(t *testing.T) {
	dev := newMockDevice()
	dev.reqPad = 8 * cmn.KiB
	a := New(dev)

	slc, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.CheckFatal(t, err)
	s := slc.Slice.slab
	tassert.Fatalf(t, s.resv == s.size+8*cmn.KiB, "reserved %d, want %d", s.resv, s.size+8*cmn.KiB)
	for _, r := range s.regions {
		tassert.Fatalf(t, r.End <= s.size, "free-space map leaks into the padding: %v", r)
	}
	a.Free(&slc.Slice)
	a.Terminate()
}

// Invariant 8: host-visible buffer slices round-trip through the mapped
// pointer at the right backing offset.
func TestHostVisibleRoundTrip(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	s1, err := a.AllocBuffer(1, MemHostVisible, 64, 1)
	tassert.CheckFatal(t, err)
	s2, err := a.AllocBuffer(1, MemHostVisible, 64, 1)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, s1.Data != nil && s2.Data != nil, "host-visible slices must be mapped")

	p1 := (*[64]byte)(s1.Data)[:]
	p2 := (*[64]byte)(s2.Data)[:]
	for i := range p1 {
		p1[i] = 0xa5
		p2[i] = 0x5a
	}
	backing := s1.Mem.(*mockMem).data
	tassert.Fatalf(t, backing[s1.Offset] == 0xa5 && backing[s1.Offset+63] == 0xa5,
		"slice 1 writes did not land at offset %d", s1.Offset)
	tassert.Fatalf(t, backing[s2.Offset] == 0x5a && backing[s2.Offset+63] == 0x5a,
		"slice 2 writes did not land at offset %d", s2.Offset)
	for i := range p1 {
		tassert.Fatalf(t, p1[i] == 0xa5 && p2[i] == 0x5a, "readback mismatch at %d", i)
	}

	// non-host-visible types must not expose a pointer
	s3, err := a.AllocBuffer(1, MemDeviceLocal, 64, 1)
	tassert.CheckFatal(t, err)
	tassert.Fatalf(t, s3.Data == nil, "device-local slice must not be mapped")

	a.Free(&s1.Slice)
	a.Free(&s2.Slice)
	a.Free(&s3.Slice)
	a.Terminate()
}

func TestStats(t *testing.T) {
	dev := newMockDevice()
	a := New(dev)

	slc, err := a.AllocBuffer(1, MemDeviceLocal, 4*cmn.KiB, 1)
	tassert.CheckFatal(t, err)
	st := a.Stats()
	tassert.Fatalf(t, st.Slabs == 1 && st.Used == 4*cmn.KiB && st.Reserved == 1*cmn.MiB,
		"unexpected stats %+v", st)
	a.Free(&slc.Slice)
	st = a.Stats()
	tassert.Fatalf(t, st.Used == 0, "used must drop to zero, got %+v", st)
	a.Terminate()
	st = a.Stats()
	tassert.Fatalf(t, st.Slabs == 0 && st.Reserved == 0, "terminate must release everything: %+v", st)
}

type liveSlice struct {
	slc   *Slice
	align uint64
}

// Random alloc/free sequences must preserve the free-space-map and
// accounting invariants after every operation.
func TestRandomOpsInvariants(t *testing.T) {
	var (
		dev  = newMockDevice()
		a    *Allocator
		rnd  = rand.New(rand.NewSource(42))
		live []liveSlice
	)
	dev.granularity = 64
	a = New(dev)

	checkSlab := func(s *slab) {
		tassert.Fatalf(t, s.wellFormed(), "free-space map ill-formed: %v (used %d)", s.regions, s.used)
	}
	checkAll := func() {
		for ti := range a.types {
			for _, h := range a.types[ti].heaps {
				for _, s := range h.slabs {
					checkSlab(s)
				}
			}
		}
		for _, l := range live {
			s := l.slc.slab
			align := cmn.CeilAlign(l.align, dev.granularity)
			tassert.Fatalf(t, l.slc.Offset%align == 0, "offset %d violates alignment %d", l.slc.Offset, align)
			tassert.Fatalf(t, l.slc.Offset+l.slc.Size <= s.size, "slice out of bounds")
			for _, r := range s.regions {
				overlap := l.slc.Offset < r.End && r.Start < l.slc.Offset+l.slc.Size
				tassert.Fatalf(t, !overlap, "live slice [%d,%d) overlaps free region %v",
					l.slc.Offset, l.slc.Offset+l.slc.Size, r)
			}
		}
	}

	for op := 0; op < 3000; op++ {
		if len(live) == 0 || rnd.Intn(100) < 60 {
			var (
				size  = uint64(1 + rnd.Intn(64*cmn.KiB))
				align = uint64(1) << uint(rnd.Intn(13))
				flags = MemPropFlags(MemDeviceLocal)
			)
			if rnd.Intn(2) == 0 {
				flags = MemHostVisible
			}
			if rnd.Intn(2) == 0 {
				slc, err := a.AllocGeneric(allRegular(size, align), flags)
				tassert.CheckFatal(t, err)
				live = append(live, liveSlice{slc, align})
			} else {
				usage := BufferUsageFlags(1 << uint(rnd.Intn(3)))
				bs, err := a.AllocBuffer(usage, flags, size, align)
				tassert.CheckFatal(t, err)
				live = append(live, liveSlice{&bs.Slice, align})
			}
		} else {
			i := rnd.Intn(len(live))
			a.Free(live[i].slc)
			live = append(live[:i], live[i+1:]...)
		}
		checkAll()
	}

	for _, l := range live {
		a.Free(l.slc)
	}
	a.Terminate()
	tassert.Fatalf(t, dev.allocs == dev.frees, "allocs %d != frees %d", dev.allocs, dev.frees)
	tassert.Fatalf(t, dev.bufsMade == dev.bufsGone, "buffers made %d != destroyed %d", dev.bufsMade, dev.bufsGone)
}
