package rendersystem

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Totterynine/ColdSrc/gpu"
	"github.com/Totterynine/ColdSrc/registry"
)

// ModuleName is the name the render system is registered under.
const ModuleName = "rendersystem"

// RenderSystem owns the device, the presentation surface and the frame loop.
type RenderSystem struct {
	cfg Config
	log *slog.Logger

	backend  gpu.Backend
	instance gpu.Instance
	device   gpu.Device
	adapter  gpu.AdapterInfo

	// allocator backs every render target and buffer.
	allocator gpu.MemoryAllocator

	surface     presentationSurface
	frame       frameScheduler
	rec         recordState
	descriptors descriptorAllocator

	release ReleaseQueue
	tracked tracker

	shaderCode *lru.Cache[string, []uint32]

	created   bool
	attached  bool
	destroyed bool
}

// New returns an uncreated render system. WithBackend is required.
func New(opts ...Option) (*RenderSystem, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	if cfg.DescriptorPoolSize <= 0 {
		cfg.DescriptorPoolSize = defaultConfig().DescriptorPoolSize
	}
	if cfg.ShaderEntryPoint == "" {
		cfg.ShaderEntryPoint = "main"
	}

	rs := &RenderSystem{
		cfg:     cfg,
		log:     cfg.Logger.With("module", ModuleName),
		backend: cfg.Backend,
	}
	if cfg.ShaderCacheSize > 0 {
		cache, err := lru.New[string, []uint32](cfg.ShaderCacheSize)
		if err != nil {
			return nil, fmt.Errorf("shader cache: %w", err)
		}
		rs.shaderCode = cache
	}
	rs.descriptors.setsPerPool = cfg.DescriptorPoolSize
	return rs, nil
}

// Register adds rs to r under ModuleName.
func Register(r *registry.Registry, rs *RenderSystem) error {
	return r.Register(ModuleName, rs)
}

// Config returns the configuration the system was built with.
func (rs *RenderSystem) Config() Config {
	return rs.cfg
}

// Create creates the API instance. It must succeed before AttachWindow.
func (rs *RenderSystem) Create() error {
	switch {
	case rs.destroyed:
		return ErrDestroyed
	case rs.created:
		return ErrAlreadyCreated
	}

	inst, err := rs.backend.CreateInstance(gpu.InstanceDescriptor{
		AppName:    rs.cfg.AppName,
		EngineName: rs.cfg.EngineName,
		AppVersion: rs.cfg.AppVersion,
		APIVersion: rs.cfg.MinAPIVersion,
		Validation: rs.cfg.Validation,
	})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	rs.instance = inst
	rs.release.Push(ReleaseInstance, gpu.Handle(inst))
	rs.created = true
	return nil
}

// AttachWindow creates a surface for src, opens a device that can present
// to it, and builds the swapchain and per-frame objects. width and height
// are used when the surface lets the swapchain choose its size.
//
// On failure the objects acquired so far stay queued for Destroy.
func (rs *RenderSystem) AttachWindow(src gpu.SurfaceSource, width, height int) error {
	switch {
	case rs.destroyed:
		return ErrDestroyed
	case !rs.created:
		return ErrNotCreated
	case rs.attached:
		return ErrAlreadyAttached
	case src == nil:
		return gpu.ErrNoSurfaceSource
	}

	s, err := rs.backend.CreateSurface(rs.instance, src)
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}
	rs.release.Push(ReleaseSurface, gpu.Handle(s))
	rs.surface.source = src
	rs.surface.surface = s

	dev, err := rs.backend.OpenDevice(rs.instance, s, gpu.DeviceRequirements{
		MinAPIVersion:          rs.cfg.MinAPIVersion,
		DedicatedTransferQueue: rs.cfg.RequireDedicatedTransfer,
	})
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	rs.device = dev
	rs.adapter = dev.Info()
	rs.release.Push(ReleaseDevice, 0)
	rs.log.Info("device opened",
		"name", rs.adapter.Name,
		"api", rs.adapter.APIVersion,
		"discrete", rs.adapter.Discrete,
		"graphicsFamily", rs.adapter.GraphicsFamily,
		"presentFamily", rs.adapter.PresentFamily,
		"transferFamily", rs.adapter.TransferFamily)

	a, err := dev.CreateMemoryAllocator(rs.cfg.MemoryBlockSize)
	if err != nil {
		return fmt.Errorf("create memory allocator: %w", err)
	}
	rs.allocator = a
	rs.release.Push(ReleaseMemoryAllocator, gpu.Handle(a))

	if err := rs.createFrameSlots(); err != nil {
		return err
	}

	rs.surface.desired = extentOf(width, height)
	// The device exists from here on, so Destroy has to wait for it and
	// release the swapchain even if building it fails.
	rs.attached = true
	if rs.surface.desired.IsZero() {
		rs.surface.stale = true
		rs.log.Debug("window attached minimized, swapchain deferred")
		return nil
	}
	if err := rs.buildSwapchain(0); err != nil {
		return err
	}
	return nil
}

// Destroy waits for the device to go idle, destroys every resource the
// caller left alive, then releases the system's own objects in reverse
// order. Calling it again does nothing.
func (rs *RenderSystem) Destroy() {
	if rs.destroyed {
		return
	}
	rs.destroyed = true

	if rs.device != nil {
		if err := rs.device.WaitIdle(); err != nil {
			rs.log.Warn("wait idle before destroy", "err", err)
		}
		rs.endPass()
		rs.rec.reset()
		rs.tracked.destroyAll()
		rs.releaseRetired()
		rs.releaseSwapchain()
	}
	rs.release.Release(rs.releaseTarget())
	if rs.shaderCode != nil {
		rs.shaderCode.Purge()
	}
	rs.device = nil
	rs.attached = false
	rs.created = false
}

func (rs *RenderSystem) releaseTarget() ReleaseTarget {
	return ReleaseTarget{Backend: rs.backend, Instance: rs.instance, Device: rs.device}
}

// retire destroys objects the caller is done with. While a frame is being
// recorded its commands may still refer to them, so they are handed to the
// frame slot and destroyed once the slot's fence has signaled. Otherwise the
// device is drained and they go at once, in the order given.
func (rs *RenderSystem) retire(rels ...Release) {
	if rs.frame.state == FrameRecording && !rs.destroyed {
		q := &rs.frame.slots[rs.frame.index].retired
		for i := len(rels) - 1; i >= 0; i-- {
			q.Push(rels[i].Kind, rels[i].Handle)
		}
		return
	}
	if !rs.destroyed {
		if err := rs.device.WaitIdle(); err != nil {
			rs.log.Warn("wait idle before destroy", "err", err)
		}
	}
	t := rs.releaseTarget()
	for _, r := range rels {
		t.destroy(r)
	}
}

// ready reports whether recording objects may be created.
func (rs *RenderSystem) ready() error {
	switch {
	case rs.destroyed:
		return ErrDestroyed
	case !rs.created:
		return ErrNotCreated
	case !rs.attached:
		return ErrNotAttached
	}
	return nil
}

// Device returns the logical device, or nil before AttachWindow.
func (rs *RenderSystem) Device() gpu.Device {
	return rs.device
}

// Adapter describes the physical device in use.
func (rs *RenderSystem) Adapter() gpu.AdapterInfo {
	return rs.adapter
}

// ReleaseQueue returns the queue of objects released by Destroy. Objects
// pushed onto it are destroyed before everything the system queued itself.
func (rs *RenderSystem) ReleaseQueue() *ReleaseQueue {
	return &rs.release
}

func extentOf(width, height int) gpu.Extent {
	return gpu.Extent{
		Width:  uint32(gpu.Max(width, 0)),
		Height: uint32(gpu.Max(height, 0)),
	}
}
