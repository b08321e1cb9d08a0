/*
Package vulkan implements gpu.Backend on github.com/vulkan-go/vulkan.

Every native object lives in a handle table owned by the Backend or the
Device, and the gpu package only ever sees the opaque handles. The loader has
to be reachable before New is called; with GLFW that means

	glfw.Init()
	b, err := vulkan.New(&vulkan.Options{
		GetInstanceProcAddr: glfw.GetVulkanGetInstanceProcAddress(),
	})

The backend is not safe for concurrent use.
*/
package vulkan

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

// Options configures the backend.
type Options struct {
	// GetInstanceProcAddr is the loader entry point. When nil the system
	// loader is used.
	GetInstanceProcAddr unsafe.Pointer

	// Logger receives validation messages and device selection details.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// FramebufferCacheSize bounds the number of framebuffers kept per
	// device. Defaults to 16.
	FramebufferCacheSize int
}

type instance struct {
	vk       vk.Instance
	debug    vk.DebugReportCallback
	hasDebug bool
}

type surface struct {
	vk       vk.Surface
	instance gpu.Instance
}

// Backend is the Vulkan gpu.Backend.
type Backend struct {
	opts Options
	log  *slog.Logger

	next      gpu.Handle
	instances table[*instance]
	surfaces  table[surface]
}

var _ gpu.Backend = (*Backend)(nil)

var initOnce struct {
	sync.Once
	err error
}

// New loads the Vulkan entry points. It fails when no loader is installed.
func New(opts *Options) (*Backend, error) {
	b := &Backend{
		instances: make(table[*instance]),
		surfaces:  make(table[surface]),
	}
	if opts != nil {
		b.opts = *opts
	}
	if b.opts.Logger == nil {
		b.opts.Logger = slog.Default()
	}
	if b.opts.FramebufferCacheSize <= 0 {
		b.opts.FramebufferCacheSize = 16
	}
	b.log = b.opts.Logger.With("backend", "vulkan")

	initOnce.Do(func() {
		if b.opts.GetInstanceProcAddr != nil {
			vk.SetGetInstanceProcAddr(b.opts.GetInstanceProcAddr)
		} else if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			initOnce.err = err
			return
		}
		initOnce.err = vk.Init()
	})
	if initOnce.err != nil {
		return nil, fmt.Errorf("vulkan: loading entry points: %w", initOnce.err)
	}
	return b, nil
}

func (b *Backend) instance(h gpu.Instance) (*instance, error) {
	inst, ok := b.instances[gpu.Handle(h)]
	if !ok {
		return nil, fmt.Errorf("vulkan: unknown instance %d", h)
	}
	return inst, nil
}

func (b *Backend) CreateSurface(h gpu.Instance, src gpu.SurfaceSource) (gpu.Surface, error) {
	if src == nil {
		return 0, gpu.ErrNoSurfaceSource
	}
	inst, err := b.instance(h)
	if err != nil {
		return 0, err
	}
	ptr, err := src.CreateWindowSurface(inst.vk, nil)
	if err != nil {
		return 0, fmt.Errorf("vulkan: creating window surface: %w", err)
	}
	s := surface{vk: vk.SurfaceFromPointer(ptr), instance: h}
	return gpu.Surface(b.surfaces.put(&b.next, s)), nil
}

func (b *Backend) DestroySurface(h gpu.Instance, s gpu.Surface) {
	inst, err := b.instance(h)
	if err != nil {
		b.log.Error("destroying surface", "error", err)
		return
	}
	if sf, ok := b.surfaces.take(gpu.Handle(s)); ok {
		vk.DestroySurface(inst.vk, sf.vk, nil)
	}
}
