package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// ReleaseKind names the destroy function a queued handle is passed to.
type ReleaseKind int

const (
	ReleaseInstance ReleaseKind = iota
	ReleaseSurface
	ReleaseDevice
	ReleaseMemoryAllocator
	ReleaseFence
	ReleaseSemaphore
	ReleaseCommandPool
	ReleaseDescriptorPool
	ReleaseDescriptorLayout
	ReleasePipelineLayout
	ReleasePipeline
	ReleaseShaderModule
	ReleaseImage
	ReleaseImageView
	ReleaseBuffer
	ReleaseSwapchain
)

var releaseKindNames = [...]string{
	ReleaseInstance:         "instance",
	ReleaseSurface:          "surface",
	ReleaseDevice:           "device",
	ReleaseMemoryAllocator:  "memory allocator",
	ReleaseFence:            "fence",
	ReleaseSemaphore:        "semaphore",
	ReleaseCommandPool:      "command pool",
	ReleaseDescriptorPool:   "descriptor pool",
	ReleaseDescriptorLayout: "descriptor layout",
	ReleasePipelineLayout:   "pipeline layout",
	ReleasePipeline:         "pipeline",
	ReleaseShaderModule:     "shader module",
	ReleaseImage:            "image",
	ReleaseImageView:        "image view",
	ReleaseBuffer:           "buffer",
	ReleaseSwapchain:        "swapchain",
}

func (k ReleaseKind) String() string {
	if k >= 0 && int(k) < len(releaseKindNames) {
		return releaseKindNames[k]
	}
	return fmt.Sprintf("ReleaseKind(%d)", int(k))
}

// Release is one queued destroy.
type Release struct {
	Kind   ReleaseKind
	Handle gpu.Handle
}

// ReleaseTarget is what queued handles are destroyed with. Device may be nil
// as long as only instance level objects were queued.
type ReleaseTarget struct {
	Backend  gpu.Backend
	Instance gpu.Instance
	Device   gpu.Device
}

// ReleaseQueue destroys hardware objects in the reverse of the order they
// were pushed. An object pushed after the objects it depends on is therefore
// destroyed before them.
type ReleaseQueue struct {
	entries []Release
}

// Push queues h to be destroyed as kind.
func (q *ReleaseQueue) Push(kind ReleaseKind, h gpu.Handle) {
	q.entries = append(q.entries, Release{Kind: kind, Handle: h})
}

// Replace swaps old for h, keeping its place in the order. It reports
// whether old was queued.
func (q *ReleaseQueue) Replace(old, h gpu.Handle) bool {
	for i := range q.entries {
		if q.entries[i].Handle == old {
			q.entries[i].Handle = h
			return true
		}
	}
	return false
}

// Len returns the number of queued handles.
func (q *ReleaseQueue) Len() int {
	return len(q.entries)
}

// Entries returns a copy of the queue in push order.
func (q *ReleaseQueue) Entries() []Release {
	return append([]Release(nil), q.entries...)
}

// Release destroys every queued handle, last pushed first, and empties the
// queue. Releasing an empty queue does nothing.
func (q *ReleaseQueue) Release(t ReleaseTarget) {
	for i := len(q.entries) - 1; i >= 0; i-- {
		t.destroy(q.entries[i])
	}
	q.entries = nil
}

func (t ReleaseTarget) destroy(r Release) {
	if r.Kind == ReleaseInstance {
		t.Backend.DestroyInstance(gpu.Instance(r.Handle))
		return
	}
	if r.Kind == ReleaseSurface {
		t.Backend.DestroySurface(t.Instance, gpu.Surface(r.Handle))
		return
	}
	d := t.Device
	if d == nil {
		Logger().Error("release without a device", "kind", r.Kind, "handle", r.Handle)
		return
	}
	switch r.Kind {
	case ReleaseDevice:
		d.Destroy()
	case ReleaseMemoryAllocator:
		d.DestroyMemoryAllocator(gpu.MemoryAllocator(r.Handle))
	case ReleaseFence:
		d.DestroyFence(gpu.Fence(r.Handle))
	case ReleaseSemaphore:
		d.DestroySemaphore(gpu.Semaphore(r.Handle))
	case ReleaseCommandPool:
		d.DestroyCommandPool(gpu.CommandPool(r.Handle))
	case ReleaseDescriptorPool:
		d.DestroyDescriptorPool(gpu.DescriptorPool(r.Handle))
	case ReleaseDescriptorLayout:
		d.DestroyDescriptorLayout(gpu.DescriptorLayout(r.Handle))
	case ReleasePipelineLayout:
		d.DestroyPipelineLayout(gpu.PipelineLayout(r.Handle))
	case ReleasePipeline:
		d.DestroyPipeline(gpu.Pipeline(r.Handle))
	case ReleaseShaderModule:
		d.DestroyShaderModule(gpu.ShaderModule(r.Handle))
	case ReleaseImage:
		d.DestroyImage(gpu.Image(r.Handle))
	case ReleaseImageView:
		d.DestroyImageView(gpu.ImageView(r.Handle))
	case ReleaseBuffer:
		d.DestroyBuffer(gpu.Buffer(r.Handle))
	case ReleaseSwapchain:
		d.DestroySwapchain(gpu.Swapchain(r.Handle))
	default:
		Logger().Error("unknown release kind", "kind", r.Kind, "handle", r.Handle)
	}
}
