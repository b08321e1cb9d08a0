package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// recordState is what has been bound for the frame being recorded.
type recordState struct {
	clearColor gpu.ColorFloat

	target   *RenderTarget
	viewport *gpu.Viewport
	scissor  *gpu.ScissorRectangle

	shaders [2]*Shader
	sets    [2]*DescriptorSet

	index     *Buffer
	indexType gpu.IndexType

	// inPass is set while a render pass is open on the target.
	inPass bool
}

// reset drops every binding. The clear color is kept.
func (r *recordState) reset() {
	*r = recordState{clearColor: r.clearColor}
}

// attachment is the image draws and clears go to: the bound render target
// or, without one, the acquired backbuffer.
type attachment struct {
	image  gpu.Image
	view   gpu.ImageView
	format gpu.Format
	extent gpu.Extent
	layout *gpu.ImageLayout
}

func (rs *RenderSystem) attachment() attachment {
	if rt := rs.rec.target; rt != nil {
		return attachment{image: rt.image, view: rt.view, format: rt.format, extent: rt.extent, layout: &rt.layout}
	}
	bb := &rs.surface.images[rs.frame.imageIndex]
	return attachment{image: bb.image, view: bb.view, format: rs.surface.format, extent: rs.surface.extent, layout: &bb.layout}
}

// transition moves an image to layout, skipping the barrier when it is
// already there.
func (rs *RenderSystem) transition(img gpu.Image, layout *gpu.ImageLayout, to gpu.ImageLayout) {
	if *layout == to {
		return
	}
	rs.device.CmdTransitionImage(rs.frame.cmd, img, *layout, to)
	*layout = to
}

// recording returns whether op should record. Calls during a skipped frame
// are dropped silently; calls outside a frame are misuse.
func (rs *RenderSystem) recording(op string) (bool, error) {
	switch rs.frame.state {
	case FrameRecording:
		return true, nil
	case FrameSkipped:
		return false, nil
	}
	return false, rs.misuse(op, fmt.Errorf("%w: %s", ErrInvalidFrameState, rs.frame.state))
}

func (rs *RenderSystem) beginPass() error {
	if rs.rec.inPass {
		return nil
	}
	a := rs.attachment()
	rs.transition(a.image, a.layout, gpu.LayoutGeneral)
	err := rs.device.CmdBeginRendering(rs.frame.cmd, gpu.RenderingInfo{
		Image:  a.image,
		View:   a.view,
		Format: a.format,
		Extent: a.extent,
	})
	if err != nil {
		return fmt.Errorf("begin render pass: %w", err)
	}
	rs.rec.inPass = true

	vp := gpu.Viewport{Width: a.extent.Width, Height: a.extent.Height}
	if rs.rec.viewport != nil {
		vp = *rs.rec.viewport
	}
	rs.device.CmdSetViewport(rs.frame.cmd, vp)
	sc := gpu.ScissorRectangle{X: int32(vp.X), Y: int32(vp.Y), Width: vp.Width, Height: vp.Height}
	if rs.rec.scissor != nil {
		sc = *rs.rec.scissor
	}
	rs.device.CmdSetScissor(rs.frame.cmd, sc)
	return nil
}

func (rs *RenderSystem) endPass() {
	if !rs.rec.inPass {
		return
	}
	rs.device.CmdEndRendering(rs.frame.cmd)
	rs.rec.inPass = false
}

// SetClearColor sets the color ClearColor fills with. It persists across
// frames.
func (rs *RenderSystem) SetClearColor(c gpu.ColorFloat) {
	rs.rec.clearColor = c
}

// ClearColor fills the current target with the clear color.
func (rs *RenderSystem) ClearColor() error {
	if ok, err := rs.recording("ClearColor"); !ok {
		return err
	}
	rs.endPass()
	a := rs.attachment()
	rs.transition(a.image, a.layout, gpu.LayoutGeneral)
	rs.device.CmdClearColorImage(rs.frame.cmd, a.image, rs.rec.clearColor)
	return nil
}

// SetRenderTarget directs clears, draws and copies to rt. A nil rt goes
// back to the backbuffer. The binding lasts until the end of the frame.
func (rs *RenderSystem) SetRenderTarget(rt *RenderTarget) error {
	if ok, err := rs.recording("SetRenderTarget"); !ok {
		return err
	}
	if rt != nil && rt.destroyed {
		return rs.misuse("SetRenderTarget", ErrResourceDestroyed)
	}
	if rt == rs.rec.target {
		return nil
	}
	rs.endPass()
	rs.rec.target = rt
	if rt != nil {
		rs.transition(rt.image, &rt.layout, gpu.LayoutGeneral)
	}
	return nil
}

// SetViewport sets the viewport of later draws. Without one draws cover the
// whole target.
func (rs *RenderSystem) SetViewport(v gpu.Viewport) error {
	if ok, err := rs.recording("SetViewport"); !ok {
		return err
	}
	rs.rec.viewport = &v
	if rs.rec.inPass {
		rs.device.CmdSetViewport(rs.frame.cmd, v)
	}
	return nil
}

// SetScissorRectangle sets the scissor of later draws. Without one the
// scissor matches the viewport.
func (rs *RenderSystem) SetScissorRectangle(s gpu.ScissorRectangle) error {
	if ok, err := rs.recording("SetScissorRectangle"); !ok {
		return err
	}
	rs.rec.scissor = &s
	if rs.rec.inPass {
		rs.device.CmdSetScissor(rs.frame.cmd, s)
	}
	return nil
}

// BindShader binds the pipeline of sh at bp.
func (rs *RenderSystem) BindShader(sh *Shader, bp gpu.PipelineBindPoint) error {
	if ok, err := rs.recording("BindShader"); !ok {
		return err
	}
	switch {
	case sh == nil:
		return rs.misuse("BindShader", ErrNilResource)
	case sh.destroyed:
		return rs.misuse("BindShader", ErrResourceDestroyed)
	case !sh.built:
		return rs.misuse("BindShader", ErrPipelineNotBuilt)
	case sh.bindPoint() != bp:
		return rs.misuse("BindShader", fmt.Errorf("%w: %s shader at %s", ErrBindPointMismatch, sh.kind, bp))
	}
	rs.device.CmdBindPipeline(rs.frame.cmd, bp, sh.pipeline)
	rs.rec.shaders[bp] = sh
	rs.rec.sets[bp] = nil
	return nil
}

// BindDescriptorSet binds set for the shader bound at bp. The set must have
// been updated and built from the shader's layout.
func (rs *RenderSystem) BindDescriptorSet(set *DescriptorSet, bp gpu.PipelineBindPoint) error {
	if ok, err := rs.recording("BindDescriptorSet"); !ok {
		return err
	}
	if !bp.Valid() {
		return rs.misuse("BindDescriptorSet", fmt.Errorf("%w: %d", ErrBindPointMismatch, bp))
	}
	sh := rs.rec.shaders[bp]
	switch {
	case set == nil:
		return rs.misuse("BindDescriptorSet", ErrNilResource)
	case sh == nil:
		return rs.misuse("BindDescriptorSet", fmt.Errorf("%w: %s", ErrNoShaderBound, bp))
	case !set.updated:
		return rs.misuse("BindDescriptorSet", ErrDescriptorSetNotUpdated)
	case set.layout != sh.layout:
		return rs.misuse("BindDescriptorSet", ErrLayoutMismatch)
	case set.layout.destroyed:
		return rs.misuse("BindDescriptorSet", ErrResourceDestroyed)
	}
	if binding, ok := set.destroyedBinding(); ok {
		return rs.misuse("BindDescriptorSet", fmt.Errorf("%w: binding %d", ErrResourceDestroyed, binding))
	}
	rs.device.CmdBindDescriptorSet(rs.frame.cmd, bp, sh.pipelineLayout, set.handle)
	rs.rec.sets[bp] = set
	return nil
}

// SetIndexBuffer sets the index buffer of later indexed draws.
func (rs *RenderSystem) SetIndexBuffer(b *Buffer, t gpu.IndexType) error {
	if ok, err := rs.recording("SetIndexBuffer"); !ok {
		return err
	}
	switch {
	case b == nil:
		return rs.misuse("SetIndexBuffer", ErrNilResource)
	case b.destroyed:
		return rs.misuse("SetIndexBuffer", ErrResourceDestroyed)
	case b.usage&gpu.BufferUsageIndex == 0:
		return rs.misuse("SetIndexBuffer", ErrBufferUsage)
	}
	rs.device.CmdBindIndexBuffer(rs.frame.cmd, b.handle, t)
	rs.rec.index = b
	rs.rec.indexType = t
	return nil
}

func (rs *RenderSystem) checkDraw(op string, topology gpu.Topology) error {
	sh := rs.rec.shaders[gpu.BindPointGraphics]
	if sh == nil {
		return rs.misuse(op, fmt.Errorf("%w: %s", ErrNoShaderBound, gpu.BindPointGraphics))
	}
	if sh.graphics.topology != topology {
		return rs.misuse(op, fmt.Errorf("%w: %s draw with %s pipeline", ErrTopologyMismatch, topology, sh.graphics.topology))
	}
	if f := rs.attachment().format; f != sh.graphics.colorFormat {
		return rs.misuse(op, fmt.Errorf("%w: target %s, pipeline %s", ErrAttachmentFormat, f, sh.graphics.colorFormat))
	}
	return nil
}

// DrawPrimitive draws vertexCount vertices with the bound graphics shader.
func (rs *RenderSystem) DrawPrimitive(topology gpu.Topology, vertexCount uint32) error {
	if ok, err := rs.recording("DrawPrimitive"); !ok {
		return err
	}
	if err := rs.checkDraw("DrawPrimitive", topology); err != nil {
		return err
	}
	if err := rs.beginPass(); err != nil {
		return err
	}
	rs.device.CmdDraw(rs.frame.cmd, vertexCount)
	return nil
}

// DrawIndexedPrimitives draws indexCount indices from the index buffer.
func (rs *RenderSystem) DrawIndexedPrimitives(topology gpu.Topology, indexCount uint32) error {
	if ok, err := rs.recording("DrawIndexedPrimitives"); !ok {
		return err
	}
	if rs.rec.index == nil {
		return rs.misuse("DrawIndexedPrimitives", ErrNoIndexBuffer)
	}
	if err := rs.checkDraw("DrawIndexedPrimitives", topology); err != nil {
		return err
	}
	if err := rs.beginPass(); err != nil {
		return err
	}
	rs.device.CmdDrawIndexed(rs.frame.cmd, indexCount)
	return nil
}

// Dispatch runs the bound compute shader over an x by y by z grid of
// workgroups.
func (rs *RenderSystem) Dispatch(x, y, z uint32) error {
	if ok, err := rs.recording("Dispatch"); !ok {
		return err
	}
	if rs.rec.shaders[gpu.BindPointCompute] == nil {
		return rs.misuse("Dispatch", fmt.Errorf("%w: %s", ErrNoShaderBound, gpu.BindPointCompute))
	}
	rs.endPass()
	rs.device.CmdDispatch(rs.frame.cmd, x, y, z)
	return nil
}

// CopyRenderTargetToBackBuffer blits the bound render target onto the
// acquired backbuffer. The overlapping region is copied at 1:1 scale; the
// rest of the backbuffer is left untouched. Both images end up in the
// general layout.
func (rs *RenderSystem) CopyRenderTargetToBackBuffer() error {
	if ok, err := rs.recording("CopyRenderTargetToBackBuffer"); !ok {
		return err
	}
	rt := rs.rec.target
	if rt == nil {
		return rs.misuse("CopyRenderTargetToBackBuffer", ErrNoRenderTarget)
	}
	rs.endPass()

	bb := &rs.surface.images[rs.frame.imageIndex]
	region := rt.extent.Min(rs.surface.extent)
	rs.transition(rt.image, &rt.layout, gpu.LayoutTransferSrc)
	rs.transition(bb.image, &bb.layout, gpu.LayoutTransferDst)
	rs.device.CmdBlitImage(rs.frame.cmd, rt.image, region, bb.image, region)
	rs.transition(rt.image, &rt.layout, gpu.LayoutGeneral)
	rs.transition(bb.image, &bb.layout, gpu.LayoutGeneral)
	return nil
}
