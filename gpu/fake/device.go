package fake

import (
	"fmt"
	"time"

	"github.com/Totterynine/ColdSrc/gpu"
)

// Queues are not tracked objects; every fake device shares these handles.
const (
	GraphicsQueue gpu.Queue = 1 << 40
	PresentQueue  gpu.Queue = 1<<40 + 1
)

// Device is the fake logical device.
type Device struct {
	b        *Backend
	handle   gpu.Handle
	info     gpu.AdapterInfo
	graphics gpu.Queue
	present  gpu.Queue
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) Info() gpu.AdapterInfo    { return d.info }
func (d *Device) GraphicsQueue() gpu.Queue { return d.graphics }
func (d *Device) PresentQueue() gpu.Queue  { return d.present }

// WaitIdle completes all submitted work.
func (d *Device) WaitIdle() error {
	for h, o := range d.b.objects {
		if o.kind == KindFence && o.pending {
			d.complete(gpu.Fence(h), o)
		}
	}
	return nil
}

func (d *Device) complete(f gpu.Fence, fo *object) {
	fo.pending = false
	fo.signaled = true
	for _, o := range d.b.objects {
		if o.kind == KindCommandBuffer && o.inFlight == f {
			o.inFlight = 0
		}
	}
}

func (d *Device) Destroy() {
	n := 0
	for _, o := range d.b.objects {
		if o.kind > KindDevice {
			n++
		}
	}
	if n > 0 {
		d.b.violate("DestroyDevice: %d objects still alive", n)
	}
	d.b.destroy("DestroyDevice", d.handle, KindDevice)
}

func (d *Device) CreateMemoryAllocator(blockSize uint64) (gpu.MemoryAllocator, error) {
	if err := d.b.fail("CreateMemoryAllocator"); err != nil {
		return 0, err
	}
	h, _ := d.b.create(KindAllocator, d.handle)
	return gpu.MemoryAllocator(h), nil
}

func (d *Device) DestroyMemoryAllocator(a gpu.MemoryAllocator) {
	if n := d.b.children(gpu.Handle(a), KindImage) + d.b.children(gpu.Handle(a), KindBuffer); n > 0 {
		d.b.violate("DestroyMemoryAllocator: %d allocations still alive", n)
	}
	d.b.destroy("DestroyMemoryAllocator", gpu.Handle(a), KindAllocator)
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, gpu.SwapchainInfo, error) {
	b := d.b
	if b.use("CreateSwapchain", gpu.Handle(desc.Surface), KindSurface) == nil {
		return 0, gpu.SwapchainInfo{}, fmt.Errorf("fake: invalid surface %d", desc.Surface)
	}
	if desc.OldSwapchain != 0 {
		b.use("CreateSwapchain", gpu.Handle(desc.OldSwapchain), KindSwapchain)
	}
	if err := b.fail("CreateSwapchain"); err != nil {
		return 0, gpu.SwapchainInfo{}, err
	}

	extent := desc.Extent
	if !b.SurfaceExtent.IsZero() {
		extent = b.SurfaceExtent
	}
	if extent.IsZero() {
		b.violate("CreateSwapchain: zero extent %v", extent)
	}

	h, sc := b.create(KindSwapchain, gpu.Handle(desc.Surface))
	info := gpu.SwapchainInfo{Format: gpu.FormatBGRA8, Extent: extent}
	for i := 0; i < b.SwapchainImageCount; i++ {
		ih, img := b.create(KindImage, h)
		img.swapchain = true
		img.extent = extent
		img.format = gpu.FormatBGRA8
		info.Images = append(info.Images, gpu.Image(ih))
	}
	sc.images = info.Images
	sc.extent = extent
	b.Stats.SwapchainsCreated++
	return gpu.Swapchain(h), info, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	b := d.b
	o := b.use("DestroySwapchain", gpu.Handle(sc), KindSwapchain)
	if o == nil {
		return
	}
	for _, img := range o.images {
		if n := b.children(gpu.Handle(img), KindImageView); n > 0 {
			b.violate("DestroySwapchain: image %d still has %d views", img, n)
		}
		b.checkIdle("DestroySwapchain", gpu.Handle(img), KindImage)
		delete(b.objects, gpu.Handle(img))
		b.destroyed[gpu.Handle(img)] = KindImage
	}
	b.destroy("DestroySwapchain", gpu.Handle(sc), KindSwapchain)
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, signal gpu.Semaphore, timeout time.Duration) (uint32, error) {
	b := d.b
	o := b.use("AcquireNextImage", gpu.Handle(sc), KindSwapchain)
	so := b.use("AcquireNextImage", gpu.Handle(signal), KindSemaphore)
	if o == nil || so == nil {
		return 0, fmt.Errorf("fake: invalid acquire")
	}
	b.Stats.Acquires++

	var result error
	if len(b.acquire) > 0 {
		result = b.acquire[0]
		b.acquire = b.acquire[1:]
	}
	if result == gpu.ErrOutOfDate {
		return 0, result
	}

	if so.signaled {
		b.violate("AcquireNextImage: semaphore %d is already signaled", signal)
	}
	so.signaled = true
	idx := o.next
	o.next = (o.next + 1) % uint32(len(o.images))
	return idx, result
}

func (d *Device) Present(q gpu.Queue, sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	b := d.b
	o := b.use("Present", gpu.Handle(sc), KindSwapchain)
	so := b.use("Present", gpu.Handle(wait), KindSemaphore)
	if o == nil || so == nil {
		return fmt.Errorf("fake: invalid present")
	}
	if q != d.present {
		b.violate("Present: queue %d is not the present queue", q)
	}
	if !so.signaled {
		b.violate("Present: wait semaphore %d is never signaled", wait)
	}
	so.signaled = false
	if int(imageIndex) >= len(o.images) {
		b.violate("Present: image index %d out of range", imageIndex)
	} else if l := b.ImageLayout(o.images[imageIndex]); l != gpu.LayoutPresentSrc {
		b.violate("Present: image %d is in layout %s", o.images[imageIndex], l)
	}
	b.Stats.Presents++

	if len(b.present) > 0 {
		err := b.present[0]
		b.present = b.present[1:]
		return err
	}
	return nil
}

func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	b := d.b
	b.use("CreateImage", gpu.Handle(desc.Allocator), KindAllocator)
	if err := b.fail("CreateImage"); err != nil {
		return 0, err
	}
	if desc.Extent.IsZero() || desc.Format == gpu.FormatUndefined {
		return 0, fmt.Errorf("fake: invalid image %v %s", desc.Extent, desc.Format)
	}
	h, o := b.create(KindImage, gpu.Handle(desc.Allocator))
	o.extent = desc.Extent
	o.format = desc.Format
	return gpu.Image(h), nil
}

func (d *Device) DestroyImage(img gpu.Image) {
	b := d.b
	if o, ok := b.objects[gpu.Handle(img)]; ok && o.swapchain {
		b.violate("DestroyImage: image %d belongs to a swapchain", img)
		return
	}
	if n := b.children(gpu.Handle(img), KindImageView); n > 0 {
		b.violate("DestroyImage: image %d still has %d views", img, n)
	}
	b.destroy("DestroyImage", gpu.Handle(img), KindImage)
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	b := d.b
	if b.use("CreateImageView", gpu.Handle(img), KindImage) == nil {
		return 0, fmt.Errorf("fake: invalid image %d", img)
	}
	if err := b.fail("CreateImageView"); err != nil {
		return 0, err
	}
	h, _ := b.create(KindImageView, gpu.Handle(img))
	return gpu.ImageView(h), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.b.destroy("DestroyImageView", gpu.Handle(view), KindImageView)
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	b := d.b
	b.use("CreateBuffer", gpu.Handle(desc.Allocator), KindAllocator)
	if err := b.fail("CreateBuffer"); err != nil {
		return 0, err
	}
	if desc.Size == 0 {
		return 0, fmt.Errorf("fake: zero sized buffer")
	}
	h, o := b.create(KindBuffer, gpu.Handle(desc.Allocator))
	o.buffer = make([]byte, desc.Size)
	o.bufUsage = desc.Usage
	return gpu.Buffer(h), nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	o := d.b.use("WriteBuffer", gpu.Handle(buf), KindBuffer)
	if o == nil {
		return fmt.Errorf("fake: invalid buffer %d", buf)
	}
	if !gpu.Fits(offset, uint64(len(data)), uint64(len(o.buffer))) {
		return fmt.Errorf("fake: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(o.buffer))
	}
	copy(o.buffer[offset:], data)
	return nil
}

func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	d.b.destroy("DestroyBuffer", gpu.Handle(buf), KindBuffer)
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.b.fail("CreateFence"); err != nil {
		return 0, err
	}
	h, o := d.b.create(KindFence, d.handle)
	o.signaled = signaled
	return gpu.Fence(h), nil
}

// WaitForFence completes the submission that signals f. Waiting on a fence
// that is neither signaled nor pending would block forever and is reported
// as a violation.
func (d *Device) WaitForFence(f gpu.Fence, timeout time.Duration) error {
	o := d.b.use("WaitForFence", gpu.Handle(f), KindFence)
	if o == nil {
		return fmt.Errorf("fake: invalid fence %d", f)
	}
	d.b.Stats.FenceWaits++
	if o.pending {
		d.complete(f, o)
	}
	if !o.signaled {
		d.b.violate("WaitForFence: fence %d can never signal", f)
		return gpu.ErrTimeout
	}
	return nil
}

func (d *Device) ResetFence(f gpu.Fence) error {
	o := d.b.use("ResetFence", gpu.Handle(f), KindFence)
	if o == nil {
		return fmt.Errorf("fake: invalid fence %d", f)
	}
	if o.pending {
		d.b.violate("ResetFence: fence %d is still pending", f)
	}
	o.signaled = false
	return nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	if o, ok := d.b.objects[gpu.Handle(f)]; ok && o.pending {
		d.b.violate("DestroyFence: fence %d is still pending", f)
	}
	d.b.destroy("DestroyFence", gpu.Handle(f), KindFence)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.b.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	h, _ := d.b.create(KindSemaphore, d.handle)
	return gpu.Semaphore(h), nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.b.destroy("DestroySemaphore", gpu.Handle(s), KindSemaphore)
}

func (d *Device) CreateCommandPool(q gpu.Queue) (gpu.CommandPool, error) {
	if err := d.b.fail("CreateCommandPool"); err != nil {
		return 0, err
	}
	h, _ := d.b.create(KindCommandPool, d.handle)
	return gpu.CommandPool(h), nil
}

func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	b := d.b
	for h, o := range b.objects {
		if o.kind == KindCommandBuffer && o.parent == gpu.Handle(pool) {
			if o.inFlight != 0 {
				b.violate("DestroyCommandPool: command buffer %d is still in flight", h)
			}
			delete(b.objects, h)
			b.destroyed[h] = KindCommandBuffer
		}
	}
	b.destroy("DestroyCommandPool", gpu.Handle(pool), KindCommandPool)
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if d.b.use("AllocateCommandBuffers", gpu.Handle(pool), KindCommandPool) == nil {
		return nil, fmt.Errorf("fake: invalid command pool %d", pool)
	}
	if err := d.b.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	cbs := make([]gpu.CommandBuffer, count)
	for i := range cbs {
		h, _ := d.b.create(KindCommandBuffer, gpu.Handle(pool))
		cbs[i] = gpu.CommandBuffer(h)
	}
	return cbs, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, cbs []gpu.CommandBuffer) {
	for _, cb := range cbs {
		if o, ok := d.b.objects[gpu.Handle(cb)]; ok && o.inFlight != 0 {
			d.b.violate("FreeCommandBuffers: command buffer %d is still in flight", cb)
		}
		d.b.destroy("FreeCommandBuffers", gpu.Handle(cb), KindCommandBuffer)
	}
}

// Submit checks that everything the command buffer refers to is still alive.
// A zero command buffer submits an empty batch.
func (d *Device) Submit(q gpu.Queue, desc gpu.SubmitDescriptor) error {
	b := d.b
	if q != d.graphics {
		b.violate("Submit: queue %d is not the graphics queue", q)
	}
	var cb *object
	if desc.CommandBuffer != 0 {
		cb = b.use("Submit", gpu.Handle(desc.CommandBuffer), KindCommandBuffer)
		if cb == nil {
			return fmt.Errorf("fake: invalid command buffer %d", desc.CommandBuffer)
		}
		if cb.recording {
			b.violate("Submit: command buffer %d is still recording", desc.CommandBuffer)
		}
		for _, h := range cb.refs {
			if k, dead := b.destroyed[h]; dead {
				b.violate("Submit: command buffer %d uses destroyed %s %d", desc.CommandBuffer, k, h)
			}
		}
	}
	if err := b.fail("Submit"); err != nil {
		return err
	}
	if desc.Wait != 0 {
		if so := b.use("Submit", gpu.Handle(desc.Wait), KindSemaphore); so != nil {
			if !so.signaled {
				b.violate("Submit: wait semaphore %d is never signaled", desc.Wait)
			}
			so.signaled = false
		}
	}
	if desc.Signal != 0 {
		if so := b.use("Submit", gpu.Handle(desc.Signal), KindSemaphore); so != nil {
			so.signaled = true
		}
	}
	if desc.Fence != 0 {
		fo := b.use("Submit", gpu.Handle(desc.Fence), KindFence)
		if fo != nil {
			if fo.signaled || fo.pending {
				b.violate("Submit: fence %d was not reset", desc.Fence)
			}
			fo.signaled = false
			fo.pending = true
			if cb != nil {
				cb.inFlight = desc.Fence
			}
		}
	}
	b.Stats.Submits++
	return nil
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	if err := d.b.fail("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	h, o := d.b.create(KindDescriptorPool, d.handle)
	o.maxSets = desc.MaxSets
	d.b.Stats.DescriptorPools++
	return gpu.DescriptorPool(h), nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	b := d.b
	for h, o := range b.objects {
		if o.kind == KindDescriptorSet && o.parent == gpu.Handle(pool) {
			b.checkIdle("DestroyDescriptorPool", h, KindDescriptorSet)
			delete(b.objects, h)
			b.destroyed[h] = KindDescriptorSet
		}
	}
	b.destroy("DestroyDescriptorPool", gpu.Handle(pool), KindDescriptorPool)
}

func (d *Device) CreateDescriptorLayout(entries []gpu.DescriptorLayoutEntry) (gpu.DescriptorLayout, error) {
	if err := d.b.fail("CreateDescriptorLayout"); err != nil {
		return 0, err
	}
	h, o := d.b.create(KindDescriptorLayout, d.handle)
	o.entries = append([]gpu.DescriptorLayoutEntry(nil), entries...)
	return gpu.DescriptorLayout(h), nil
}

func (d *Device) DestroyDescriptorLayout(layout gpu.DescriptorLayout) {
	d.b.destroy("DestroyDescriptorLayout", gpu.Handle(layout), KindDescriptorLayout)
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	b := d.b
	po := b.use("AllocateDescriptorSet", gpu.Handle(pool), KindDescriptorPool)
	lo := b.use("AllocateDescriptorSet", gpu.Handle(layout), KindDescriptorLayout)
	if po == nil || lo == nil {
		return 0, fmt.Errorf("fake: invalid pool or layout")
	}
	if err := b.fail("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	if po.used >= po.maxSets {
		return 0, gpu.ErrPoolExhausted
	}
	po.used++
	h, o := b.create(KindDescriptorSet, gpu.Handle(pool))
	o.entries = append([]gpu.DescriptorLayoutEntry(nil), lo.entries...)
	o.writes = make(map[uint32]gpu.DescriptorWrite)
	return gpu.DescriptorSet(h), nil
}

func (d *Device) UpdateDescriptorSet(set gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	b := d.b
	o := b.use("UpdateDescriptorSet", gpu.Handle(set), KindDescriptorSet)
	if o == nil {
		return
	}
	for _, w := range writes {
		found := false
		for _, e := range o.entries {
			if e.Binding == w.Binding {
				found = true
				if e.Type != w.Type {
					b.violate("UpdateDescriptorSet: binding %d is %s, written as %s", w.Binding, e.Type, w.Type)
				}
			}
		}
		if !found {
			b.violate("UpdateDescriptorSet: set %d has no binding %d", set, w.Binding)
		}
		if w.Type.IsBuffer() {
			b.use("UpdateDescriptorSet", gpu.Handle(w.Buffer), KindBuffer)
		} else {
			b.use("UpdateDescriptorSet", gpu.Handle(w.View), KindImageView)
		}
		o.writes[w.Binding] = w
	}
	o.updated = true
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if len(code) == 0 {
		return 0, gpu.ErrInvalidShaderModule
	}
	if err := d.b.fail("CreateShaderModule"); err != nil {
		return 0, err
	}
	h, _ := d.b.create(KindShaderModule, d.handle)
	return gpu.ShaderModule(h), nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.b.destroy("DestroyShaderModule", gpu.Handle(m), KindShaderModule)
}

func (d *Device) CreatePipelineLayout(layout gpu.DescriptorLayout) (gpu.PipelineLayout, error) {
	if d.b.use("CreatePipelineLayout", gpu.Handle(layout), KindDescriptorLayout) == nil {
		return 0, fmt.Errorf("fake: invalid descriptor layout %d", layout)
	}
	if err := d.b.fail("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	h, _ := d.b.create(KindPipelineLayout, d.handle)
	return gpu.PipelineLayout(h), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.b.destroy("DestroyPipelineLayout", gpu.Handle(layout), KindPipelineLayout)
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	b := d.b
	lo := b.use("CreateGraphicsPipeline", gpu.Handle(desc.Layout), KindPipelineLayout)
	vo := b.use("CreateGraphicsPipeline", gpu.Handle(desc.Vertex), KindShaderModule)
	fo := b.use("CreateGraphicsPipeline", gpu.Handle(desc.Fragment), KindShaderModule)
	if lo == nil || vo == nil || fo == nil {
		return 0, fmt.Errorf("fake: invalid graphics pipeline descriptor")
	}
	if err := b.fail("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	h, o := b.create(KindPipeline, d.handle)
	o.bindPoint = gpu.BindPointGraphics
	o.topology = desc.Topology
	o.format = desc.ColorFormat
	return gpu.Pipeline(h), nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.Pipeline, error) {
	b := d.b
	lo := b.use("CreateComputePipeline", gpu.Handle(desc.Layout), KindPipelineLayout)
	co := b.use("CreateComputePipeline", gpu.Handle(desc.Compute), KindShaderModule)
	if lo == nil || co == nil {
		return 0, fmt.Errorf("fake: invalid compute pipeline descriptor")
	}
	if err := b.fail("CreateComputePipeline"); err != nil {
		return 0, err
	}
	h, o := b.create(KindPipeline, d.handle)
	o.bindPoint = gpu.BindPointCompute
	return gpu.Pipeline(h), nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.b.destroy("DestroyPipeline", gpu.Handle(p), KindPipeline)
}
