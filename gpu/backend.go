/*
Package gpu describes the hardware layer the render system is written
against. A Backend creates instances, surfaces and devices; a Device creates
every other object and records commands into command buffers.

Objects are referred to by opaque handles rather than native API types, so
the render system can be driven by the Vulkan backend in gpu/vulkan or by the
instrumented fake in gpu/fake. Handles are only meaningful to the Backend or
Device that produced them.
*/
package gpu

import (
	"time"
	"unsafe"
)

// SurfaceSource is a window that can create a presentable surface for an
// instance. *glfw.Window from github.com/vulkan-go/glfw satisfies it.
type SurfaceSource interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// InstanceDescriptor describes the instance to create.
type InstanceDescriptor struct {
	AppName    string
	EngineName string
	AppVersion Version
	APIVersion Version
	// Validation enables the validation layers and routes their messages to
	// the backend's logger.
	Validation bool
}

// DeviceRequirements is the floor a physical device has to meet.
type DeviceRequirements struct {
	MinAPIVersion Version
	// DedicatedTransferQueue requires a queue family that can transfer but
	// not draw.
	DedicatedTransferQueue bool
}

// AdapterInfo describes the physical device a Device was opened on.
type AdapterInfo struct {
	Name           string
	APIVersion     Version
	Discrete       bool
	GraphicsFamily int
	PresentFamily  int
	TransferFamily int
}

type SwapchainDescriptor struct {
	Surface Surface
	// Extent is used when the surface lets the swapchain pick its size.
	Extent Extent
	// OldSwapchain is handed to the driver so it can recycle resources. The
	// caller still destroys it afterwards.
	OldSwapchain Swapchain
}

type SwapchainInfo struct {
	Format Format
	Extent Extent
	Images []Image
}

type ImageDescriptor struct {
	Allocator MemoryAllocator
	Format    Format
	Extent    Extent
	Usage     ImageUsage
}

type BufferDescriptor struct {
	Allocator MemoryAllocator
	Size      uint64
	Usage     BufferUsage
}

// SubmitDescriptor describes one queue submission. Wait is waited on at the
// color attachment output stage. A zero CommandBuffer submits an empty
// batch, which still waits and signals.
type SubmitDescriptor struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

type PoolSize struct {
	Type  DescriptorType
	Count int
}

type DescriptorPoolDescriptor struct {
	MaxSets int
	Sizes   []PoolSize
}

// DescriptorLayoutEntry is one binding of a descriptor layout.
type DescriptorLayoutEntry struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

// DescriptorWrite binds one resource to a binding of a set. Storage images
// are always bound in the general layout.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	View    ImageView
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

type GraphicsPipelineDescriptor struct {
	Layout      PipelineLayout
	Vertex      ShaderModule
	Fragment    ShaderModule
	EntryPoint  string
	Topology    Topology
	PolygonMode PolygonMode
	CullMode    CullMode
	Winding     Winding
	ColorFormat Format
}

type ComputePipelineDescriptor struct {
	Layout     PipelineLayout
	Compute    ShaderModule
	EntryPoint string
}

// RenderingInfo describes the single color attachment draws go to. The
// attachment is loaded and stored in the general layout.
type RenderingInfo struct {
	Image  Image
	View   ImageView
	Format Format
	Extent Extent
}

// Backend creates the objects that exist before a device does.
type Backend interface {
	CreateInstance(desc InstanceDescriptor) (Instance, error)
	DestroyInstance(inst Instance)

	CreateSurface(inst Instance, src SurfaceSource) (Surface, error)
	DestroySurface(inst Instance, s Surface)

	// OpenDevice selects a physical device able to present to the surface
	// and meeting req, then creates a logical device on it.
	OpenDevice(inst Instance, s Surface, req DeviceRequirements) (Device, error)
}

// Device is a logical device and everything created from it.
type Device interface {
	Recorder

	Info() AdapterInfo
	GraphicsQueue() Queue
	PresentQueue() Queue
	WaitIdle() error
	Destroy()

	CreateMemoryAllocator(blockSize uint64) (MemoryAllocator, error)
	DestroyMemoryAllocator(a MemoryAllocator)

	CreateSwapchain(desc SwapchainDescriptor) (Swapchain, SwapchainInfo, error)
	DestroySwapchain(sc Swapchain)
	// AcquireNextImage returns ErrOutOfDate with no usable image, or
	// ErrSuboptimal together with a usable image index.
	AcquireNextImage(sc Swapchain, signal Semaphore, timeout time.Duration) (uint32, error)
	// Present returns ErrOutOfDate or ErrSuboptimal when the swapchain
	// should be recreated; the image was presented in the latter case.
	Present(q Queue, sc Swapchain, imageIndex uint32, wait Semaphore) error

	CreateImage(desc ImageDescriptor) (Image, error)
	DestroyImage(img Image)
	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	WriteBuffer(b Buffer, offset uint64, data []byte) error
	DestroyBuffer(b Buffer)

	CreateFence(signaled bool) (Fence, error)
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	DestroyFence(f Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	CreateCommandPool(q Queue) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cbs []CommandBuffer)
	Submit(q Queue, desc SubmitDescriptor) error

	CreateDescriptorPool(desc DescriptorPoolDescriptor) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	CreateDescriptorLayout(entries []DescriptorLayoutEntry) (DescriptorLayout, error)
	DestroyDescriptorLayout(layout DescriptorLayout)
	// AllocateDescriptorSet returns ErrPoolExhausted when the pool is full.
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorLayout) (DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreatePipelineLayout(layout DescriptorLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(desc GraphicsPipelineDescriptor) (Pipeline, error)
	CreateComputePipeline(desc ComputePipelineDescriptor) (Pipeline, error)
	DestroyPipeline(p Pipeline)
}

// Recorder records commands into a command buffer.
type Recorder interface {
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer) error
	EndCommandBuffer(cb CommandBuffer) error

	CmdTransitionImage(cb CommandBuffer, img Image, from, to ImageLayout)
	CmdClearColorImage(cb CommandBuffer, img Image, color ColorFloat)
	// CmdBlitImage copies srcRegion of src (in the transfer source layout)
	// onto dstRegion of dst (in the transfer destination layout) with
	// linear filtering.
	CmdBlitImage(cb CommandBuffer, src Image, srcRegion Extent, dst Image, dstRegion Extent)

	CmdBeginRendering(cb CommandBuffer, info RenderingInfo) error
	CmdEndRendering(cb CommandBuffer)

	CmdBindPipeline(cb CommandBuffer, bp PipelineBindPoint, p Pipeline)
	CmdBindDescriptorSet(cb CommandBuffer, bp PipelineBindPoint, layout PipelineLayout, set DescriptorSet)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, t IndexType)
	CmdSetViewport(cb CommandBuffer, v Viewport)
	CmdSetScissor(cb CommandBuffer, s ScissorRectangle)
	CmdDraw(cb CommandBuffer, vertexCount uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount uint32)
	CmdDispatch(cb CommandBuffer, x, y, z uint32)
}
