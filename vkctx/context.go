// Package vkctx realizes the vkmem device facade on top of the Vulkan
// driver and provides swapchain helpers for the renderer.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package vkctx

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Context owns the instance-level Vulkan state: instance, selected physical
// device, logical device and graphics queue. One Context per process is the
// expected usage, but nothing prevents several.
type Context struct {
	instance    vk.Instance
	gpu         vk.PhysicalDevice
	gpuName     string
	queueFamily uint32
	queue       vk.Queue
	Device      *Device
}

// NewContext initializes the loader, creates an instance and brings up a
// logical device with a single graphics queue on the first suitable
// physical device.
func NewContext(appName string) (*Context, error) {
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize Vulkan loader")
	}

	c := &Context{}
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   appName + "\x00",
			ApplicationVersion: vk.MakeVersion(0, 1, 0),
			PEngineName:        "vplay\x00",
			EngineVersion:      vk.MakeVersion(0, 1, 0),
			ApiVersion:         vk.ApiVersion11,
		},
	}, nil, &c.instance)
	if ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "vkCreateInstance")
	}
	vk.InitInstance(c.instance)

	if err := c.pickPhysicalDevice(); err != nil {
		c.Destroy()
		return nil, err
	}
	if err := c.createDevice(); err != nil {
		c.Destroy()
		return nil, err
	}
	glog.V(1).Infof("vkctx: using %q (queue family %d)", c.gpuName, c.queueFamily)
	return c, nil
}

func (c *Context) pickPhysicalDevice() error {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(c.instance, &count, nil)
	if ret != vk.Success || count == 0 {
		return errors.New("no Vulkan physical devices")
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(c.instance, &count, gpus)
	if ret != vk.Success {
		return errors.Wrap(vk.Error(ret), "vkEnumeratePhysicalDevices")
	}

	for _, gpu := range gpus {
		var qcount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &qcount, nil)
		if qcount == 0 {
			continue
		}
		qprops := make([]vk.QueueFamilyProperties, qcount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &qcount, qprops)
		for i := range qprops {
			qprops[i].Deref()
			if qprops[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			var props vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(gpu, &props)
			props.Deref()
			c.gpu = gpu
			c.gpuName = vk.ToString(props.DeviceName[:])
			c.queueFamily = uint32(i)
			return nil
		}
	}
	return errors.New("no physical device with a graphics queue")
}

func (c *Context) createDevice() error {
	var dev vk.Device
	ret := vk.CreateDevice(c.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: c.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
	}, nil, &dev)
	if ret != vk.Success {
		return errors.Wrap(vk.Error(ret), "vkCreateDevice")
	}
	vk.GetDeviceQueue(dev, c.queueFamily, 0, &c.queue)
	c.Device = NewDevice(c.gpu, dev)
	return nil
}

func (c *Context) Queue() vk.Queue     { return c.queue }
func (c *Context) GPUName() string     { return c.gpuName }
func (c *Context) QueueFamily() uint32 { return c.queueFamily }

// Destroy tears the context down; the vkmem allocator (and all slices) must
// be gone first.
func (c *Context) Destroy() {
	if c.Device != nil {
		c.Device.Destroy()
		c.Device = nil
	}
	if c.instance != vk.Instance(nil) {
		vk.DestroyInstance(c.instance, nil)
		c.instance = vk.Instance(nil)
	}
}
