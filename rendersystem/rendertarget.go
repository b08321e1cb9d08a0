package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// renderTargetUsage lets a render target be cleared, written by compute,
// drawn to and copied to the backbuffer.
const renderTargetUsage = gpu.ImageUsageTransferSrc |
	gpu.ImageUsageTransferDst |
	gpu.ImageUsageStorage |
	gpu.ImageUsageColorAttachment

// RenderTarget is an offscreen color image with a view. Outside of a copy
// it is kept in the general layout.
type RenderTarget struct {
	rs *RenderSystem

	image  gpu.Image
	view   gpu.ImageView
	format gpu.Format
	extent gpu.Extent
	layout gpu.ImageLayout

	destroyed bool
}

// CreateRenderTarget allocates a width by height render target.
func (rs *RenderSystem) CreateRenderTarget(format gpu.Format, width, height int) (*RenderTarget, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	extent := extentOf(width, height)
	if extent.IsZero() {
		return nil, rs.misuse("CreateRenderTarget", fmt.Errorf("%w: %dx%d", ErrInvalidExtent, width, height))
	}
	if format == gpu.FormatUndefined {
		return nil, fmt.Errorf("create render target: %w", gpu.ErrUnsupportedFormat)
	}

	img, err := rs.device.CreateImage(gpu.ImageDescriptor{
		Allocator: rs.allocator,
		Format:    format,
		Extent:    extent,
		Usage:     renderTargetUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("create render target image: %w", err)
	}
	view, err := rs.device.CreateImageView(img, format)
	if err != nil {
		rs.device.DestroyImage(img)
		return nil, fmt.Errorf("create render target view: %w", err)
	}

	rt := &RenderTarget{
		rs:     rs,
		image:  img,
		view:   view,
		format: format,
		extent: extent,
		layout: gpu.LayoutUndefined,
	}
	rs.tracked.add(rt)
	return rt, nil
}

// Image returns the underlying image, or zero once destroyed.
func (rt *RenderTarget) Image() gpu.Image { return rt.image }

// View returns the view over the whole image, or zero once destroyed.
func (rt *RenderTarget) View() gpu.ImageView { return rt.view }

// Format returns the pixel format the target was created with.
func (rt *RenderTarget) Format() gpu.Format { return rt.format }

// Extent returns the size of the target in pixels.
func (rt *RenderTarget) Extent() gpu.Extent { return rt.extent }

// Layout returns the layout recorded commands last left the image in.
func (rt *RenderTarget) Layout() gpu.ImageLayout { return rt.layout }

// Destroyed reports whether Destroy has been called.
func (rt *RenderTarget) Destroyed() bool { return rt.destroyed }

// Destroy releases the view and the image. Destroying a target during a
// frame ends its use by that frame; the objects themselves are freed once
// the frame has finished on the GPU. Descriptor sets referring to the target
// can no longer be bound.
func (rt *RenderTarget) Destroy() {
	if rt.destroyed {
		return
	}
	rt.destroyed = true
	rs := rt.rs
	rs.tracked.remove(rt)
	if rs.rec.target == rt {
		rs.log.Error("render target destroyed while bound")
		rs.endPass()
		rs.rec.target = nil
	}
	rs.retire(
		Release{Kind: ReleaseImageView, Handle: gpu.Handle(rt.view)},
		Release{Kind: ReleaseImage, Handle: gpu.Handle(rt.image)},
	)
	rt.view = 0
	rt.image = 0
}
