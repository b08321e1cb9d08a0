package vulkan

import (
	"fmt"
	"math"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

type swapchain struct {
	vk     vk.Swapchain
	images []gpu.Image
}

// chooseSurfaceFormat prefers BGRA8 in sRGB nonlinear color space and falls
// back to the first format the surface offers.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

// chooseExtent uses the surface's current extent unless the surface leaves
// the size to the swapchain, in which case want is clamped to the limits.
func chooseExtent(caps vk.SurfaceCapabilities, want gpu.Extent) gpu.Extent {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return gpu.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	}
	return gpu.Extent{
		Width:  gpu.Clamp(want.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: gpu.Clamp(want.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image more than the minimum so acquire
// rarely waits on the presentation engine.
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func (d *Device) surfaceFormats(s vk.Surface) ([]vk.SurfaceFormat, error) {
	var n uint32
	if err := result("querying surface formats", vk.GetPhysicalDeviceSurfaceFormats(d.physical, s, &n, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, n)
	if err := result("querying surface formats", vk.GetPhysicalDeviceSurfaceFormats(d.physical, s, &n, formats)); err != nil {
		return nil, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("vulkan: surface offers no formats")
	}
	return formats, nil
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, gpu.SwapchainInfo, error) {
	s, ok := d.backend.surfaces[gpu.Handle(desc.Surface)]
	if !ok {
		return 0, gpu.SwapchainInfo{}, fmt.Errorf("vulkan: unknown surface %d", desc.Surface)
	}

	var caps vk.SurfaceCapabilities
	if err := result("querying surface capabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, s.vk, &caps)); err != nil {
		return 0, gpu.SwapchainInfo{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	formats, err := d.surfaceFormats(s.vk)
	if err != nil {
		return 0, gpu.SwapchainInfo{}, err
	}
	format := chooseSurfaceFormat(formats)
	extent := chooseExtent(caps, desc.Extent)

	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit)
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.vk,
		MinImageCount:    chooseImageCount(caps),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: extent.Width, Height: extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       usage,
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	if d.info.GraphicsFamily != d.info.PresentFamily {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{uint32(d.info.GraphicsFamily), uint32(d.info.PresentFamily)}
	}
	if old, ok := d.swapchains[gpu.Handle(desc.OldSwapchain)]; ok {
		info.OldSwapchain = old.vk
	}

	sc := &swapchain{}
	if err := result("creating swapchain", vk.CreateSwapchain(d.vk, &info, nil, &sc.vk)); err != nil {
		return 0, gpu.SwapchainInfo{}, err
	}

	var n uint32
	if err := result("getting swapchain images", vk.GetSwapchainImages(d.vk, sc.vk, &n, nil)); err != nil {
		vk.DestroySwapchain(d.vk, sc.vk, nil)
		return 0, gpu.SwapchainInfo{}, err
	}
	native := make([]vk.Image, n)
	if err := result("getting swapchain images", vk.GetSwapchainImages(d.vk, sc.vk, &n, native)); err != nil {
		vk.DestroySwapchain(d.vk, sc.vk, nil)
		return 0, gpu.SwapchainInfo{}, err
	}

	h := gpu.Swapchain(d.swapchains.put(&d.next, sc))
	for _, img := range native {
		sc.images = append(sc.images, gpu.Image(d.images.put(&d.next, &image{vk: img, format: format.Format, owner: h})))
	}
	d.log.Debug("swapchain created", "extent", extent, "images", n, "format", gpuFormat(format.Format))
	return h, gpu.SwapchainInfo{
		Format: gpuFormat(format.Format),
		Extent: extent,
		Images: append([]gpu.Image(nil), sc.images...),
	}, nil
}

// DestroySwapchain destroys sc along with its images. Views of the images
// must already be gone.
func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc, ok := d.swapchains.take(gpu.Handle(h))
	if !ok {
		return
	}
	for _, img := range sc.images {
		delete(d.images, gpu.Handle(img))
	}
	vk.DestroySwapchain(d.vk, sc.vk, nil)
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, signal gpu.Semaphore, timeout time.Duration) (uint32, error) {
	sc, ok := d.swapchains[gpu.Handle(h)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown swapchain %d", h)
	}
	sem, ok := d.semaphores[gpu.Handle(signal)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown semaphore %d", signal)
	}
	var index uint32
	r := vk.AcquireNextImage(d.vk, sc.vk, nanos(timeout), sem, vk.NullFence, &index)
	return index, result("acquiring swapchain image", r)
}

func (d *Device) Present(q gpu.Queue, h gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	queue, ok := d.queues[gpu.Handle(q)]
	if !ok {
		return fmt.Errorf("vulkan: unknown queue %d", q)
	}
	sc, ok := d.swapchains[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown swapchain %d", h)
	}
	sem, ok := d.semaphores[gpu.Handle(wait)]
	if !ok {
		return fmt.Errorf("vulkan: unknown semaphore %d", wait)
	}
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.vk},
		PImageIndices:      []uint32{imageIndex},
	}
	return result("presenting", vk.QueuePresent(queue.vk, &info))
}
