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

	"github.com/vplay/vplay/cmn"
)

// Swapchain wraps a Vulkan swapchain together with its images and the
// format/extent it was created with.
type Swapchain struct {
	dev       *Device
	swapchain vk.Swapchain
	Images    []vk.Image
	Format    vk.Format
	Extent    vk.Extent2D
}

// NewSwapchain creates a swapchain on the surface, preferring the 8-bit
// B8G8R8A8 UNORM format (else the first reported format) and clamping the requested extent to the surface
// capabilities. old (may be nil-handle) is recycled by the driver.
func NewSwapchain(dev *Device, surface vk.Surface, w, h uint32, old *Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(dev.physd, surface, &caps)
	if ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "query surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(dev.physd, surface, &count, nil)
	if count == 0 {
		return nil, errors.New("surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(dev.physd, surface, &count, formats)

	format := formats[0]
	format.Deref()
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm {
			format = formats[i]
			break
		}
	}

	extent := caps.CurrentExtent
	if extent.Width == 0xffffffff {
		// surface lets us choose
		extent.Width = uint32(cmn.MinU64(cmn.MaxU64(uint64(w), uint64(caps.MinImageExtent.Width)),
			uint64(caps.MaxImageExtent.Width)))
		extent.Height = uint32(cmn.MinU64(cmn.MaxU64(uint64(h), uint64(caps.MinImageExtent.Height)),
			uint64(caps.MaxImageExtent.Height)))
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	var oldHandle vk.Swapchain
	if old != nil {
		oldHandle = old.swapchain
	}
	var sc vk.Swapchain
	ret = vk.CreateSwapchain(dev.dev, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     oldHandle,
	}, nil, &sc)
	if ret != vk.Success {
		return nil, errors.Wrap(vk.Error(ret), "vkCreateSwapchain")
	}
	if old != nil {
		old.Destroy()
	}

	var imgCount uint32
	vk.GetSwapchainImages(dev.dev, sc, &imgCount, nil)
	images := make([]vk.Image, imgCount)
	vk.GetSwapchainImages(dev.dev, sc, &imgCount, images)

	glog.V(2).Infof("vkctx: swapchain %dx%d, %d images, format %d",
		extent.Width, extent.Height, imgCount, format.Format)
	return &Swapchain{
		dev:       dev,
		swapchain: sc,
		Images:    images,
		Format:    format.Format,
		Extent:    extent,
	}, nil
}

func (s *Swapchain) Handle() vk.Swapchain { return s.swapchain }

func (s *Swapchain) Destroy() {
	if s.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(s.dev.dev, s.swapchain, nil)
		s.swapchain = vk.NullSwapchain
	}
	s.Images = nil
}
