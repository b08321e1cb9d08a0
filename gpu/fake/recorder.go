package fake

import (
	"github.com/Totterynine/ColdSrc/gpu"
)

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	o := d.b.use("ResetCommandBuffer", gpu.Handle(cb), KindCommandBuffer)
	if o == nil {
		return nil
	}
	if o.inFlight != 0 {
		d.b.violate("ResetCommandBuffer: command buffer %d reused before fence %d signaled", cb, o.inFlight)
	}
	if err := d.b.fail("ResetCommandBuffer"); err != nil {
		return err
	}
	o.recording = false
	o.rendering = false
	o.bound = nil
	o.refs = nil
	return nil
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) error {
	o := d.b.use("BeginCommandBuffer", gpu.Handle(cb), KindCommandBuffer)
	if o == nil {
		return nil
	}
	if o.inFlight != 0 {
		d.b.violate("BeginCommandBuffer: command buffer %d reused before fence %d signaled", cb, o.inFlight)
	}
	if o.recording {
		d.b.violate("BeginCommandBuffer: command buffer %d is already recording", cb)
	}
	if err := d.b.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	o.recording = true
	o.bound = make(map[gpu.PipelineBindPoint]gpu.Handle)
	o.refs = nil
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	o := d.b.use("EndCommandBuffer", gpu.Handle(cb), KindCommandBuffer)
	if o == nil {
		return nil
	}
	if !o.recording {
		d.b.violate("EndCommandBuffer: command buffer %d is not recording", cb)
	}
	if o.rendering {
		d.b.violate("EndCommandBuffer: command buffer %d ended inside rendering", cb)
	}
	if err := d.b.fail("EndCommandBuffer"); err != nil {
		return err
	}
	o.recording = false
	return nil
}

// CmdTransitionImage checks the old layout against the tracked one. An
// undefined old layout discards the contents and is always accepted.
func (d *Device) CmdTransitionImage(cb gpu.CommandBuffer, img gpu.Image, from, to gpu.ImageLayout) {
	o := d.b.record("CmdTransitionImage", cb, img, from, to)
	if o != nil && o.rendering {
		d.b.violate("CmdTransitionImage: barrier inside rendering")
	}
	io := d.b.useIn(o, "CmdTransitionImage", gpu.Handle(img), KindImage)
	if io == nil {
		return
	}
	if from != gpu.LayoutUndefined && io.layout != from {
		d.b.violate("CmdTransitionImage: image %d is %s, not %s", img, io.layout, from)
	}
	io.layout = to
}

func (d *Device) CmdClearColorImage(cb gpu.CommandBuffer, img gpu.Image, color gpu.ColorFloat) {
	o := d.b.record("CmdClearColorImage", cb, img, color)
	if o != nil && o.rendering {
		d.b.violate("CmdClearColorImage: clear inside rendering")
	}
	if io := d.b.useIn(o, "CmdClearColorImage", gpu.Handle(img), KindImage); io != nil {
		if io.layout != gpu.LayoutGeneral && io.layout != gpu.LayoutTransferDst {
			d.b.violate("CmdClearColorImage: image %d is %s", img, io.layout)
		}
	}
}

func (d *Device) CmdBlitImage(cb gpu.CommandBuffer, src gpu.Image, srcRegion gpu.Extent, dst gpu.Image, dstRegion gpu.Extent) {
	o := d.b.record("CmdBlitImage", cb, src, srcRegion, dst, dstRegion)
	so := d.b.useIn(o, "CmdBlitImage", gpu.Handle(src), KindImage)
	do := d.b.useIn(o, "CmdBlitImage", gpu.Handle(dst), KindImage)
	if so == nil || do == nil {
		return
	}
	if so.layout != gpu.LayoutTransferSrc {
		d.b.violate("CmdBlitImage: source %d is %s", src, so.layout)
	}
	if do.layout != gpu.LayoutTransferDst {
		d.b.violate("CmdBlitImage: destination %d is %s", dst, do.layout)
	}
	if srcRegion.Width > so.extent.Width || srcRegion.Height > so.extent.Height {
		d.b.violate("CmdBlitImage: source region %v exceeds %v", srcRegion, so.extent)
	}
	if dstRegion.Width > do.extent.Width || dstRegion.Height > do.extent.Height {
		d.b.violate("CmdBlitImage: destination region %v exceeds %v", dstRegion, do.extent)
	}
}

func (d *Device) CmdBeginRendering(cb gpu.CommandBuffer, info gpu.RenderingInfo) error {
	o := d.b.record("CmdBeginRendering", cb, info)
	if o == nil {
		return nil
	}
	if o.rendering {
		d.b.violate("CmdBeginRendering: rendering already open")
	}
	d.b.useIn(o, "CmdBeginRendering", gpu.Handle(info.View), KindImageView)
	if io := d.b.useIn(o, "CmdBeginRendering", gpu.Handle(info.Image), KindImage); io != nil && io.layout != gpu.LayoutGeneral {
		d.b.violate("CmdBeginRendering: attachment %d is %s", info.Image, io.layout)
	}
	o.rendering = true
	return nil
}

func (d *Device) CmdEndRendering(cb gpu.CommandBuffer) {
	o := d.b.record("CmdEndRendering", cb)
	if o == nil {
		return
	}
	if !o.rendering {
		d.b.violate("CmdEndRendering: no rendering open")
	}
	o.rendering = false
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, bp gpu.PipelineBindPoint, p gpu.Pipeline) {
	o := d.b.record("CmdBindPipeline", cb, bp, p)
	po := d.b.useIn(o, "CmdBindPipeline", gpu.Handle(p), KindPipeline)
	if o == nil || po == nil {
		return
	}
	if po.bindPoint != bp {
		d.b.violate("CmdBindPipeline: %s pipeline bound to %s", po.bindPoint, bp)
	}
	if o.bound != nil {
		o.bound[bp] = gpu.Handle(p)
	}
}

func (d *Device) CmdBindDescriptorSet(cb gpu.CommandBuffer, bp gpu.PipelineBindPoint, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	o := d.b.record("CmdBindDescriptorSet", cb, bp, layout, set)
	d.b.useIn(o, "CmdBindDescriptorSet", gpu.Handle(layout), KindPipelineLayout)
	so := d.b.useIn(o, "CmdBindDescriptorSet", gpu.Handle(set), KindDescriptorSet)
	if so == nil {
		return
	}
	if !so.updated {
		d.b.violate("CmdBindDescriptorSet: set %d bound before any update", set)
	}
	for _, w := range so.writes {
		if w.Type.IsBuffer() {
			d.b.useIn(o, "CmdBindDescriptorSet", gpu.Handle(w.Buffer), KindBuffer)
		} else {
			d.b.useIn(o, "CmdBindDescriptorSet", gpu.Handle(w.View), KindImageView)
		}
	}
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, buf gpu.Buffer, t gpu.IndexType) {
	o := d.b.record("CmdBindIndexBuffer", cb, buf, t)
	if bo := d.b.useIn(o, "CmdBindIndexBuffer", gpu.Handle(buf), KindBuffer); bo != nil && bo.bufUsage&gpu.BufferUsageIndex == 0 {
		d.b.violate("CmdBindIndexBuffer: buffer %d lacks index usage", buf)
	}
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, v gpu.Viewport) {
	d.b.record("CmdSetViewport", cb, v)
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, s gpu.ScissorRectangle) {
	d.b.record("CmdSetScissor", cb, s)
}

func (d *Device) checkDraw(op string, o *object) {
	if o == nil {
		return
	}
	if !o.rendering {
		d.b.violate("%s: draw outside rendering", op)
	}
	if o.bound == nil || o.bound[gpu.BindPointGraphics] == 0 {
		d.b.violate("%s: no graphics pipeline bound", op)
	}
}

func (d *Device) CmdDraw(cb gpu.CommandBuffer, vertexCount uint32) {
	d.checkDraw("CmdDraw", d.b.record("CmdDraw", cb, vertexCount))
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount uint32) {
	d.checkDraw("CmdDrawIndexed", d.b.record("CmdDrawIndexed", cb, indexCount))
}

func (d *Device) CmdDispatch(cb gpu.CommandBuffer, x, y, z uint32) {
	o := d.b.record("CmdDispatch", cb, x, y, z)
	if o == nil {
		return
	}
	if o.rendering {
		d.b.violate("CmdDispatch: dispatch inside rendering")
	}
	if o.bound == nil || o.bound[gpu.BindPointCompute] == 0 {
		d.b.violate("CmdDispatch: no compute pipeline bound")
	}
}
