package vulkan

import (
	"fmt"
	"log/slog"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

type queue struct {
	vk     vk.Queue
	family int
}

type image struct {
	vk     vk.Image
	format vk.Format
	mem    *allocation
	// owner is set on swapchain images, which the swapchain destroys.
	owner gpu.Swapchain
}

type buffer struct {
	vk   vk.Buffer
	size uint64
	mem  *allocation
}

type fence struct {
	vk vk.Fence
	// submit is the number of the last submission that signals the fence.
	submit uint64
}

type commandBuffer struct {
	vk   vk.CommandBuffer
	pool gpu.CommandPool
}

type pipeline struct {
	vk        vk.Pipeline
	bindPoint gpu.PipelineBindPoint
}

// Device is a logical Vulkan device. Object handles are only valid on the
// device that created them.
type Device struct {
	backend  *Backend
	log      *slog.Logger
	physical vk.PhysicalDevice
	vk       vk.Device
	info     gpu.AdapterInfo
	types    []vk.MemoryType

	graphics gpu.Queue
	present  gpu.Queue

	// submits counts queue submissions; completed is the highest one known
	// to have finished executing.
	submits   uint64
	completed uint64

	next            gpu.Handle
	queues          table[queue]
	allocators      table[*allocator]
	swapchains      table[*swapchain]
	images          table[*image]
	views           table[vk.ImageView]
	buffers         table[*buffer]
	fences          table[*fence]
	semaphores      table[vk.Semaphore]
	commandPools    table[vk.CommandPool]
	commandBuffers  table[commandBuffer]
	descriptorPools table[vk.DescriptorPool]
	setLayouts      table[vk.DescriptorSetLayout]
	descriptorSets  table[vk.DescriptorSet]
	setPools        map[gpu.Handle]gpu.DescriptorPool
	shaderModules   table[vk.ShaderModule]
	pipelineLayouts table[vk.PipelineLayout]
	pipelines       table[pipeline]

	pipelineCache vk.PipelineCache
	passes        *passCache
}

var _ gpu.Device = (*Device)(nil)

func newDevice(b *Backend, c candidate, ld vk.Device) (*Device, error) {
	d := &Device{
		backend:         b,
		log:             b.log.With("adapter", c.info.Name),
		physical:        c.device,
		vk:              ld,
		info:            c.info,
		queues:          make(table[queue]),
		allocators:      make(table[*allocator]),
		swapchains:      make(table[*swapchain]),
		images:          make(table[*image]),
		views:           make(table[vk.ImageView]),
		buffers:         make(table[*buffer]),
		fences:          make(table[*fence]),
		semaphores:      make(table[vk.Semaphore]),
		commandPools:    make(table[vk.CommandPool]),
		commandBuffers:  make(table[commandBuffer]),
		descriptorPools: make(table[vk.DescriptorPool]),
		setLayouts:      make(table[vk.DescriptorSetLayout]),
		descriptorSets:  make(table[vk.DescriptorSet]),
		setPools:        make(map[gpu.Handle]gpu.DescriptorPool),
		shaderModules:   make(table[vk.ShaderModule]),
		pipelineLayouts: make(table[vk.PipelineLayout]),
		pipelines:       make(table[pipeline]),
	}
	d.types = d.memoryTypes()
	if err := d.createPipelineCache(); err != nil {
		return nil, err
	}

	passes, err := newPassCache(d, b.opts.FramebufferCacheSize)
	if err != nil {
		vk.DestroyPipelineCache(ld, d.pipelineCache, nil)
		return nil, err
	}
	d.passes = passes

	d.graphics = d.queue(c.info.GraphicsFamily)
	d.present = d.graphics
	if c.info.PresentFamily != c.info.GraphicsFamily {
		d.present = d.queue(c.info.PresentFamily)
	}
	return d, nil
}

func (d *Device) queue(family int) gpu.Queue {
	var q vk.Queue
	vk.GetDeviceQueue(d.vk, uint32(family), 0, &q)
	return gpu.Queue(d.queues.put(&d.next, queue{vk: q, family: family}))
}

func (d *Device) String() string {
	return fmt.Sprintf("{ Adapter: %s API: %s }", d.info.Name, d.info.APIVersion)
}

func (d *Device) Info() gpu.AdapterInfo    { return d.info }
func (d *Device) GraphicsQueue() gpu.Queue { return d.graphics }
func (d *Device) PresentQueue() gpu.Queue  { return d.present }

func (d *Device) WaitIdle() error {
	if err := result("waiting for device idle", vk.DeviceWaitIdle(d.vk)); err != nil {
		return err
	}
	d.completed = d.submits
	d.passes.collect()
	return nil
}

// Destroy destroys the logical device. Objects still alive are reported,
// not destroyed: they belong to whoever created them.
func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.vk)
	d.completed = d.submits
	d.passes.destroy()
	vk.DestroyPipelineCache(d.vk, d.pipelineCache, nil)

	live := map[string]int{
		"allocators":         len(d.allocators),
		"swapchains":         len(d.swapchains),
		"images":             len(d.images),
		"views":              len(d.views),
		"buffers":            len(d.buffers),
		"fences":             len(d.fences),
		"semaphores":         len(d.semaphores),
		"command pools":      len(d.commandPools),
		"descriptor pools":   len(d.descriptorPools),
		"descriptor layouts": len(d.setLayouts),
		"shader modules":     len(d.shaderModules),
		"pipeline layouts":   len(d.pipelineLayouts),
		"pipelines":          len(d.pipelines),
	}
	for kind, n := range live {
		if n > 0 {
			d.log.Error("device destroyed with live objects", "kind", kind, "count", n)
		}
	}
	vk.DestroyDevice(d.vk, nil)
}

func (d *Device) imageOf(h gpu.Image) (*image, error) {
	img, ok := d.images[gpu.Handle(h)]
	if !ok {
		return nil, fmt.Errorf("vulkan: unknown image %d", h)
	}
	return img, nil
}

func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	format, err := vkFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{format: format}
	if err := result("creating image", vk.CreateImage(d.vk, &info, nil, &img.vk)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.vk, img.vk, &reqs)
	mem, err := d.allocate(desc.Allocator, reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.vk, img.vk, nil)
		return 0, err
	}
	if err := result("binding image memory", vk.BindImageMemory(d.vk, img.vk, mem.block.memory, vk.DeviceSize(mem.rng.Offset))); err != nil {
		d.free(mem)
		vk.DestroyImage(d.vk, img.vk, nil)
		return 0, err
	}
	img.mem = mem
	return gpu.Image(d.images.put(&d.next, img)), nil
}

func (d *Device) DestroyImage(h gpu.Image) {
	img, ok := d.images[gpu.Handle(h)]
	if !ok {
		return
	}
	if img.owner != 0 {
		d.log.Error("swapchain images are destroyed with their swapchain", "image", h)
		return
	}
	delete(d.images, gpu.Handle(h))
	vk.DestroyImage(d.vk, img.vk, nil)
	d.free(img.mem)
}

func (d *Device) CreateImageView(h gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	img, err := d.imageOf(h)
	if err != nil {
		return 0, err
	}
	vf, err := vkFormat(format)
	if err != nil {
		return 0, err
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.vk,
		ViewType: vk.ImageViewType2d,
		Format:   vf,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: colorRange,
	}
	var view vk.ImageView
	if err := result("creating image view", vk.CreateImageView(d.vk, &info, nil, &view)); err != nil {
		return 0, err
	}
	return gpu.ImageView(d.views.put(&d.next, view)), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	view, ok := d.views.take(gpu.Handle(h))
	if !ok {
		return
	}
	d.passes.forget(h)
	vk.DestroyImageView(d.vk, view, nil)
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	buf := &buffer{size: desc.Size}
	if err := result("creating buffer", vk.CreateBuffer(d.vk, &info, nil, &buf.vk)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.vk, buf.vk, &reqs)
	mem, err := d.allocate(desc.Allocator, reqs, hostVisible)
	if err != nil {
		vk.DestroyBuffer(d.vk, buf.vk, nil)
		return 0, err
	}
	if err := result("binding buffer memory", vk.BindBufferMemory(d.vk, buf.vk, mem.block.memory, vk.DeviceSize(mem.rng.Offset))); err != nil {
		d.free(mem)
		vk.DestroyBuffer(d.vk, buf.vk, nil)
		return 0, err
	}
	buf.mem = mem
	return gpu.Buffer(d.buffers.put(&d.next, buf)), nil
}

// WriteBuffer copies data into the persistently mapped memory of b. The
// memory is host coherent, so no flush is needed.
func (d *Device) WriteBuffer(h gpu.Buffer, offset uint64, data []byte) error {
	buf, ok := d.buffers[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown buffer %d", h)
	}
	if !gpu.Fits(offset, uint64(len(data)), buf.size) {
		return fmt.Errorf("vulkan: write of %d bytes at %d overflows buffer of %d", len(data), offset, buf.size)
	}
	vk.Memcopy(buf.mem.ptr(offset), data)
	return nil
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	buf, ok := d.buffers.take(gpu.Handle(h))
	if !ok {
		return
	}
	vk.DestroyBuffer(d.vk, buf.vk, nil)
	d.free(buf.mem)
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if len(code) == 0 {
		return 0, gpu.ErrInvalidShaderModule
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var m vk.ShaderModule
	if err := result("creating shader module", vk.CreateShaderModule(d.vk, &info, nil, &m)); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(d.shaderModules.put(&d.next, m)), nil
}

func (d *Device) DestroyShaderModule(h gpu.ShaderModule) {
	if m, ok := d.shaderModules.take(gpu.Handle(h)); ok {
		vk.DestroyShaderModule(d.vk, m, nil)
	}
}
