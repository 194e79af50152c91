// Package vkctx realizes the vkmem device facade on top of the Vulkan
// driver and provides swapchain helpers for the renderer.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkctx

import (
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/vplay/vplay/vkmem"
)

// Device adapts a Vulkan logical device to the vkmem.Device facade. The
// memory-type table and bufferImageGranularity are snapshotted at creation.
type Device struct {
	physd       vk.PhysicalDevice
	dev         vk.Device
	types       []vkmem.MemTypeInfo
	granularity uint64
}

var _ vkmem.Device = &Device{}

func NewDevice(physd vk.PhysicalDevice, dev vk.Device) *Device {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physd, &memProps)
	memProps.Deref()

	types := make([]vkmem.MemTypeInfo, memProps.MemoryTypeCount)
	for i := range types {
		mt := memProps.MemoryTypes[i]
		mt.Deref()
		types[i] = vkmem.MemTypeInfo{
			Index:     uint32(i),
			HeapIndex: mt.HeapIndex,
			Flags:     vkmem.MemPropFlags(mt.PropertyFlags),
		}
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physd, &props)
	props.Deref()
	props.Limits.Deref()

	return &Device{
		physd:       physd,
		dev:         dev,
		types:       types,
		granularity: uint64(props.Limits.BufferImageGranularity),
	}
}

func (d *Device) Handle() vk.Device                { return d.dev }
func (d *Device) Physical() vk.PhysicalDevice      { return d.physd }
func (d *Device) MemoryTypes() []vkmem.MemTypeInfo { return d.types }
func (d *Device) BufferImageGranularity() uint64   { return d.granularity }

func (d *Device) AllocateMemory(typeIndex uint32, size uint64) (vkmem.DeviceMemory, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(d.dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "vkAllocateMemory")
	}
	return mem, nil
}

func (d *Device) FreeMemory(mem vkmem.DeviceMemory) {
	vk.FreeMemory(d.dev, mem.(vk.DeviceMemory), nil)
}

func (d *Device) CreateBuffer(size uint64, usage vkmem.BufferUsageFlags) (vkmem.Buffer, vkmem.MemoryRequirements, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(d.dev, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if ret != vk.Success {
		return nil, vkmem.MemoryRequirements{}, errors.Wrap(vk.Error(ret), "vkCreateBuffer")
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.dev, buf, &reqs)
	reqs.Deref()
	return buf, vkmem.MemoryRequirements{
		Size:        uint64(reqs.Size),
		Alignment:   uint64(reqs.Alignment),
		MemTypeBits: reqs.MemoryTypeBits,
	}, nil
}

func (d *Device) DestroyBuffer(buf vkmem.Buffer) {
	vk.DestroyBuffer(d.dev, buf.(vk.Buffer), nil)
}

func (d *Device) BindBuffer(buf vkmem.Buffer, mem vkmem.DeviceMemory, offset uint64) error {
	ret := vk.BindBufferMemory(d.dev, buf.(vk.Buffer), mem.(vk.DeviceMemory), vk.DeviceSize(offset))
	if ret != vk.Success {
		return errors.Wrap(vk.Error(ret), "vkBindBufferMemory")
	}
	return nil
}

func (d *Device) MapMemory(mem vkmem.DeviceMemory) (unsafe.Pointer, error) {
	var data unsafe.Pointer
	ret := vk.MapMemory(d.dev, mem.(vk.DeviceMemory), 0, vk.DeviceSize(vk.WholeSize), 0, &data)
	if ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "vkMapMemory")
	}
	return data, nil
}

func (d *Device) Destroy() {
	if d.dev != vk.Device(nil) {
		vk.DestroyDevice(d.dev, nil)
		d.dev = vk.Device(nil)
	}
	glog.V(2).Info("vkctx: device destroyed")
}
