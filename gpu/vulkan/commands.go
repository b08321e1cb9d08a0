package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

func (d *Device) CreateCommandPool(q gpu.Queue) (gpu.CommandPool, error) {
	queue, ok := d.queues[gpu.Handle(q)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown queue %d", q)
	}
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: uint32(queue.family),
	}
	var pool vk.CommandPool
	if err := result("creating command pool", vk.CreateCommandPool(d.vk, &info, nil, &pool)); err != nil {
		return 0, err
	}
	return gpu.CommandPool(d.commandPools.put(&d.next, pool)), nil
}

// DestroyCommandPool frees the buffers allocated from pool with it.
func (d *Device) DestroyCommandPool(h gpu.CommandPool) {
	pool, ok := d.commandPools.take(gpu.Handle(h))
	if !ok {
		return
	}
	for cb, c := range d.commandBuffers {
		if c.pool == h {
			delete(d.commandBuffers, cb)
		}
	}
	vk.DestroyCommandPool(d.vk, pool, nil)
}

func (d *Device) AllocateCommandBuffers(h gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	pool, ok := d.commandPools[gpu.Handle(h)]
	if !ok {
		return nil, fmt.Errorf("vulkan: unknown command pool %d", h)
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	native := make([]vk.CommandBuffer, count)
	if err := result("allocating command buffers", vk.AllocateCommandBuffers(d.vk, &info, native)); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cb := range native {
		out[i] = gpu.CommandBuffer(d.commandBuffers.put(&d.next, commandBuffer{vk: cb, pool: h}))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(h gpu.CommandPool, cbs []gpu.CommandBuffer) {
	pool, ok := d.commandPools[gpu.Handle(h)]
	if !ok {
		return
	}
	native := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if c, ok := d.commandBuffers.take(gpu.Handle(cb)); ok {
			native = append(native, c.vk)
		}
	}
	if len(native) > 0 {
		vk.FreeCommandBuffers(d.vk, pool, uint32(len(native)), native)
	}
}

// Submit queues one command buffer, or an empty batch when none is given.
// The wait semaphore, when given, is waited on at color attachment output.
func (d *Device) Submit(q gpu.Queue, desc gpu.SubmitDescriptor) error {
	queue, ok := d.queues[gpu.Handle(q)]
	if !ok {
		return fmt.Errorf("vulkan: unknown queue %d", q)
	}
	info := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	if desc.CommandBuffer != 0 {
		cb, ok := d.commandBuffers[gpu.Handle(desc.CommandBuffer)]
		if !ok {
			return fmt.Errorf("vulkan: unknown command buffer %d", desc.CommandBuffer)
		}
		info.CommandBufferCount = 1
		info.PCommandBuffers = []vk.CommandBuffer{cb.vk}
	}
	if s, ok := d.semaphores[gpu.Handle(desc.Wait)]; ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{s}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	}
	if s, ok := d.semaphores[gpu.Handle(desc.Signal)]; ok {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{s}
	}
	signal := vk.NullFence
	f, hasFence := d.fences[gpu.Handle(desc.Fence)]
	if hasFence {
		signal = f.vk
	}
	if err := result("submitting", vk.QueueSubmit(queue.vk, 1, []vk.SubmitInfo{info}, signal)); err != nil {
		return err
	}
	d.submits++
	if hasFence {
		f.submit = d.submits
	}
	return nil
}

// cmd looks up a command buffer for recording. An unknown handle is logged
// and the command dropped; recording has no error path.
func (d *Device) cmd(h gpu.CommandBuffer) (vk.CommandBuffer, bool) {
	cb, ok := d.commandBuffers[gpu.Handle(h)]
	if !ok {
		d.log.Error("recording into unknown command buffer", "cb", h)
	}
	return cb.vk, ok
}

func (d *Device) ResetCommandBuffer(h gpu.CommandBuffer) error {
	cb, ok := d.commandBuffers[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown command buffer %d", h)
	}
	return result("resetting command buffer", vk.ResetCommandBuffer(cb.vk, 0))
}

func (d *Device) BeginCommandBuffer(h gpu.CommandBuffer) error {
	cb, ok := d.commandBuffers[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown command buffer %d", h)
	}
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return result("beginning command buffer", vk.BeginCommandBuffer(cb.vk, &info))
}

func (d *Device) EndCommandBuffer(h gpu.CommandBuffer) error {
	cb, ok := d.commandBuffers[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown command buffer %d", h)
	}
	return result("ending command buffer", vk.EndCommandBuffer(cb.vk))
}

func (d *Device) CmdTransitionImage(h gpu.CommandBuffer, img gpu.Image, from, to gpu.ImageLayout) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	target, err := d.imageOf(img)
	if err != nil {
		d.log.Error("transitioning image", "error", err)
		return
	}
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           vkLayout(from),
		NewLayout:           vkLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               target.vk,
		SubresourceRange:    colorRange,
	}
	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

// CmdClearColorImage clears img, which has to be in the general layout.
func (d *Device) CmdClearColorImage(h gpu.CommandBuffer, img gpu.Image, color gpu.ColorFloat) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	target, err := d.imageOf(img)
	if err != nil {
		d.log.Error("clearing image", "error", err)
		return
	}
	var value vk.ClearColorValue
	floats := (*[4]float32)(unsafe.Pointer(&value))
	floats[0], floats[1], floats[2], floats[3] = color.R, color.G, color.B, color.A
	vk.CmdClearColorImage(cb, target.vk, vk.ImageLayoutGeneral, &value,
		1, []vk.ImageSubresourceRange{colorRange})
}

func (d *Device) CmdBlitImage(h gpu.CommandBuffer, src gpu.Image, srcRegion gpu.Extent, dst gpu.Image, dstRegion gpu.Extent) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	s, err := d.imageOf(src)
	if err != nil {
		d.log.Error("blitting image", "error", err)
		return
	}
	t, err := d.imageOf(dst)
	if err != nil {
		d.log.Error("blitting image", "error", err)
		return
	}
	region := vk.ImageBlit{
		SrcSubresource: colorLayers,
		SrcOffsets: [2]vk.Offset3D{
			{},
			{X: int32(srcRegion.Width), Y: int32(srcRegion.Height), Z: 1},
		},
		DstSubresource: colorLayers,
		DstOffsets: [2]vk.Offset3D{
			{},
			{X: int32(dstRegion.Width), Y: int32(dstRegion.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(cb, s.vk, vk.ImageLayoutTransferSrcOptimal, t.vk, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterLinear)
}

func (d *Device) CmdBeginRendering(h gpu.CommandBuffer, info gpu.RenderingInfo) error {
	cb, ok := d.commandBuffers[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown command buffer %d", h)
	}
	format, err := vkFormat(info.Format)
	if err != nil {
		return err
	}
	pass, err := d.passes.renderPass(format)
	if err != nil {
		return err
	}
	fb, err := d.passes.framebuffer(info.View, pass, info.Extent)
	if err != nil {
		return err
	}
	begin := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		},
	}
	vk.CmdBeginRenderPass(cb.vk, &begin, vk.SubpassContentsInline)
	return nil
}

func (d *Device) CmdEndRendering(h gpu.CommandBuffer) {
	if cb, ok := d.cmd(h); ok {
		vk.CmdEndRenderPass(cb)
	}
}

func (d *Device) CmdBindPipeline(h gpu.CommandBuffer, bp gpu.PipelineBindPoint, p gpu.Pipeline) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	pl, ok := d.pipelines[gpu.Handle(p)]
	if !ok {
		d.log.Error("binding unknown pipeline", "pipeline", p)
		return
	}
	if pl.bindPoint != bp {
		d.log.Error("pipeline bound at the wrong bind point", "pipeline", p, "bindPoint", bp)
		return
	}
	vk.CmdBindPipeline(cb, vkBindPoint(bp), pl.vk)
}

func (d *Device) CmdBindDescriptorSet(h gpu.CommandBuffer, bp gpu.PipelineBindPoint, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	pl, ok := d.pipelineLayouts[gpu.Handle(layout)]
	if !ok {
		d.log.Error("binding descriptor set with unknown layout", "layout", layout)
		return
	}
	ds, ok := d.descriptorSets[gpu.Handle(set)]
	if !ok {
		d.log.Error("binding unknown descriptor set", "set", set)
		return
	}
	vk.CmdBindDescriptorSets(cb, vkBindPoint(bp), pl, 0, 1, []vk.DescriptorSet{ds}, 0, nil)
}

func (d *Device) CmdBindIndexBuffer(h gpu.CommandBuffer, b gpu.Buffer, t gpu.IndexType) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	buf, ok := d.buffers[gpu.Handle(b)]
	if !ok {
		d.log.Error("binding unknown index buffer", "buffer", b)
		return
	}
	vk.CmdBindIndexBuffer(cb, buf.vk, 0, vkIndexType(t))
}

func (d *Device) CmdSetViewport(h gpu.CommandBuffer, v gpu.Viewport) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{{
		X:        float32(v.X),
		Y:        float32(v.Y),
		Width:    float32(v.Width),
		Height:   float32(v.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (d *Device) CmdSetScissor(h gpu.CommandBuffer, s gpu.ScissorRectangle) {
	cb, ok := d.cmd(h)
	if !ok {
		return
	}
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: s.X, Y: s.Y},
		Extent: vk.Extent2D{Width: s.Width, Height: s.Height},
	}})
}

func (d *Device) CmdDraw(h gpu.CommandBuffer, vertexCount uint32) {
	if cb, ok := d.cmd(h); ok {
		vk.CmdDraw(cb, vertexCount, 1, 0, 0)
	}
}

func (d *Device) CmdDrawIndexed(h gpu.CommandBuffer, indexCount uint32) {
	if cb, ok := d.cmd(h); ok {
		vk.CmdDrawIndexed(cb, indexCount, 1, 0, 0, 0)
	}
}

func (d *Device) CmdDispatch(h gpu.CommandBuffer, x, y, z uint32) {
	if cb, ok := d.cmd(h); ok {
		vk.CmdDispatch(cb, x, y, z)
	}
}
