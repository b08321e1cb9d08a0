package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// backbuffer is one swapchain image and the layout it was last left in.
type backbuffer struct {
	image  gpu.Image
	view   gpu.ImageView
	layout gpu.ImageLayout
}

// presentationSurface is the window surface, its swapchain and the objects
// that have to be rebuilt with the swapchain.
type presentationSurface struct {
	source  gpu.SurfaceSource
	surface gpu.Surface

	swapchain gpu.Swapchain
	format    gpu.Format
	extent    gpu.Extent
	images    []backbuffer

	pool     gpu.CommandPool
	commands []gpu.CommandBuffer

	// desired is the window size last reported to the system.
	desired gpu.Extent
	// stale is set when the swapchain no longer matches the window.
	stale bool
}

// NotifyResize records a new window size. The swapchain is rebuilt at the
// start of the next frame. A zero size marks the window minimized and
// frames are skipped until a non-zero size arrives.
func (rs *RenderSystem) NotifyResize(width, height int) {
	e := extentOf(width, height)
	if e == rs.surface.desired && !rs.surface.stale {
		return
	}
	rs.log.Debug("window resized", "width", e.Width, "height", e.Height)
	rs.surface.desired = e
	rs.surface.stale = true
}

// SwapchainExtent returns the size of the current backbuffers.
func (rs *RenderSystem) SwapchainExtent() gpu.Extent {
	return rs.surface.extent
}

// SwapchainFormat returns the format of the current backbuffers.
func (rs *RenderSystem) SwapchainFormat() gpu.Format {
	return rs.surface.format
}

// BackBufferCount returns the number of swapchain images.
func (rs *RenderSystem) BackBufferCount() int {
	return len(rs.surface.images)
}

// Minimized reports whether the window was last reported with a zero size.
func (rs *RenderSystem) Minimized() bool {
	return rs.attached && rs.surface.desired.IsZero()
}

// RecreateSwapchain waits for the device to go idle and rebuilds the
// swapchain, its views and the per-frame command buffers. The old swapchain
// is handed to the new one and destroyed afterwards. While the window is
// minimized the rebuild is deferred. It may only be called between frames,
// when the frame is idle or skipped.
func (rs *RenderSystem) RecreateSwapchain() error {
	if err := rs.ready(); err != nil {
		return err
	}
	if st := rs.frame.state; st != FrameIdle && st != FrameSkipped {
		return rs.misuse("RecreateSwapchain", fmt.Errorf("%w: %s", ErrInvalidFrameState, st))
	}
	s := &rs.surface
	if s.desired.IsZero() {
		s.stale = true
		rs.log.Debug("swapchain rebuild deferred while minimized")
		return nil
	}
	if err := rs.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	rs.releaseRetired()

	rs.releaseFrameObjects()
	old := s.swapchain
	err := rs.buildSwapchain(old)
	if old != 0 {
		rs.device.DestroySwapchain(old)
	}
	if err != nil {
		rs.log.Warn("swapchain rebuild failed", "err", err)
		return err
	}
	rs.log.Debug("swapchain rebuilt", "width", s.extent.Width, "height", s.extent.Height)
	return nil
}

// buildSwapchain creates the swapchain and everything sized by it. On
// failure s.swapchain is left zero and the surface marked stale so the next
// frame tries again.
func (rs *RenderSystem) buildSwapchain(old gpu.Swapchain) (err error) {
	s := &rs.surface
	s.swapchain = 0
	defer func() {
		if err != nil {
			rs.releaseFrameObjects()
			if s.swapchain != 0 {
				rs.device.DestroySwapchain(s.swapchain)
				s.swapchain = 0
			}
			s.stale = true
		}
	}()

	sc, info, err := rs.device.CreateSwapchain(gpu.SwapchainDescriptor{
		Surface:      s.surface,
		Extent:       s.desired,
		OldSwapchain: old,
	})
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}
	s.swapchain = sc
	s.format = info.Format
	s.extent = info.Extent

	s.images = make([]backbuffer, 0, len(info.Images))
	for _, img := range info.Images {
		view, err := rs.device.CreateImageView(img, info.Format)
		if err != nil {
			return fmt.Errorf("create swapchain image view: %w", err)
		}
		s.images = append(s.images, backbuffer{image: img, view: view, layout: gpu.LayoutUndefined})
	}

	pool, err := rs.device.CreateCommandPool(rs.device.GraphicsQueue())
	if err != nil {
		return fmt.Errorf("create command pool: %w", err)
	}
	s.pool = pool
	cbs, err := rs.device.AllocateCommandBuffers(pool, FramesInFlight)
	if err != nil {
		return fmt.Errorf("allocate command buffers: %w", err)
	}
	s.commands = cbs

	s.stale = false
	rs.log.Info("swapchain created",
		"width", s.extent.Width,
		"height", s.extent.Height,
		"format", s.format,
		"images", len(s.images))
	return nil
}

// releaseFrameObjects destroys the views, command buffers and command pool
// built with the swapchain. The swapchain itself is left alone.
func (rs *RenderSystem) releaseFrameObjects() {
	s := &rs.surface
	if s.pool != 0 {
		if len(s.commands) > 0 {
			rs.device.FreeCommandBuffers(s.pool, s.commands)
		}
		rs.device.DestroyCommandPool(s.pool)
	}
	s.pool = 0
	s.commands = nil
	for _, bb := range s.images {
		if bb.view != 0 {
			rs.device.DestroyImageView(bb.view)
		}
	}
	s.images = nil
}

func (rs *RenderSystem) releaseSwapchain() {
	rs.releaseFrameObjects()
	if rs.surface.swapchain != 0 {
		rs.device.DestroySwapchain(rs.surface.swapchain)
		rs.surface.swapchain = 0
	}
}
