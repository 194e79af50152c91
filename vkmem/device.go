// Package vkmem implements suballocation of Vulkan device memory: a small
// number of large device allocations (slabs) is multiplexed into many small
// client allocations (slices) via per-slab free-space maps.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkmem

import (
	"unsafe"

	"github.com/pkg/errors"
)

type (
	// DeviceMemory is an opaque device-allocation handle owned by the Device.
	DeviceMemory interface{}

	// Buffer is an opaque buffer handle owned by the Device.
	Buffer interface{}

	// MemPropFlags is the Vulkan memory-property bitfield.
	MemPropFlags uint32

	// BufferUsageFlags is the Vulkan buffer-usage bitfield; 0 denotes the
	// generic (image-backing) heap.
	BufferUsageFlags uint32

	// MemTypeInfo is one driver-reported memory-type entry.
	MemTypeInfo struct {
		Index     uint32
		HeapIndex uint32
		Flags     MemPropFlags
	}

	// MemoryRequirements mirrors VkMemoryRequirements.
	MemoryRequirements struct {
		Size        uint64
		Alignment   uint64
		MemTypeBits uint32
	}

	// Device is the minimal driver facade the allocator depends on.
	// All calls are synchronous; the allocator and the Device must be owned
	// by the same (single) thread of control.
	Device interface {
		// MemoryTypes returns the driver-reported memory types, in the
		// driver's preference order.
		MemoryTypes() []MemTypeInfo

		// BufferImageGranularity is the device limit enforced as an
		// alignment floor on every slice.
		BufferImageGranularity() uint64

		AllocateMemory(typeIndex uint32, size uint64) (DeviceMemory, error)
		// FreeMemory releases a device allocation, implicitly unmapping it.
		FreeMemory(mem DeviceMemory)

		// CreateBuffer creates an EXCLUSIVE-sharing buffer and returns its
		// memory requirements.
		CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, MemoryRequirements, error)
		DestroyBuffer(buf Buffer)
		BindBuffer(buf Buffer, mem DeviceMemory, offset uint64) error

		// MapMemory maps the whole range of a host-visible allocation.
		MapMemory(mem DeviceMemory) (unsafe.Pointer, error)
	}
)

// Vulkan memory-property bits (numeric values match the Vulkan spec, so a
// facade implementation can pass VkMemoryPropertyFlags through unchanged).
const (
	MemDeviceLocal MemPropFlags = 1 << iota
	MemHostVisible
	MemHostCoherent
	MemHostCached
)

var (
	// ErrNoMatchingMemType: no driver memory type satisfies the requested
	// property flags and type bitmask.
	ErrNoMatchingMemType = errors.New("no matching memory type")

	// ErrTypeBitmaskMismatch: the buffer created inside a slab reports
	// memoryTypeBits incompatible with the heap's memory type. Selecting the
	// type from property flags alone cannot rule this out; callers hitting
	// it should re-allocate with explicit requirements.
	ErrTypeBitmaskMismatch = errors.New("buffer requirements exclude chosen memory type")
)
