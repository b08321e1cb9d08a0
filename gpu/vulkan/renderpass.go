package vulkan

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

// The bindings predate dynamic rendering, so CmdBeginRendering is built on a
// render pass per color format and a framebuffer per attachment. Both load
// and store the attachment and keep it in the general layout, which is what
// RenderingInfo promises.

type framebufferKey struct {
	view   gpu.ImageView
	pass   vk.RenderPass
	extent gpu.Extent
}

type retiredFramebuffer struct {
	fb vk.Framebuffer
	// after is the submission that has to complete before fb can go.
	after uint64
}

type passCache struct {
	d            *Device
	passes       map[vk.Format]vk.RenderPass
	framebuffers *lru.Cache[framebufferKey, vk.Framebuffer]
	retired      []retiredFramebuffer
}

func newPassCache(d *Device, size int) (*passCache, error) {
	c := &passCache{d: d, passes: make(map[vk.Format]vk.RenderPass)}
	fbs, err := lru.NewWithEvict[framebufferKey, vk.Framebuffer](size, c.retire)
	if err != nil {
		return nil, fmt.Errorf("vulkan: framebuffer cache: %w", err)
	}
	c.framebuffers = fbs
	return c, nil
}

// retire queues fb for destruction once the work that may still use it is
// done. A command buffer being recorded can reference it too, hence the
// next submission.
func (c *passCache) retire(_ framebufferKey, fb vk.Framebuffer) {
	c.retired = append(c.retired, retiredFramebuffer{fb: fb, after: c.d.submits + 1})
}

// collect destroys the retired framebuffers the device has finished with.
func (c *passCache) collect() {
	kept := c.retired[:0]
	for _, r := range c.retired {
		if r.after <= c.d.completed {
			vk.DestroyFramebuffer(c.d.vk, r.fb, nil)
			continue
		}
		kept = append(kept, r)
	}
	c.retired = kept
}

// forget retires every framebuffer built on view.
func (c *passCache) forget(view gpu.ImageView) {
	for _, k := range c.framebuffers.Keys() {
		if k.view == view {
			c.framebuffers.Remove(k)
		}
	}
}

// destroy releases everything. The device has to be idle.
func (c *passCache) destroy() {
	c.framebuffers.Purge()
	for _, r := range c.retired {
		vk.DestroyFramebuffer(c.d.vk, r.fb, nil)
	}
	c.retired = nil
	for f, p := range c.passes {
		vk.DestroyRenderPass(c.d.vk, p, nil)
		delete(c.passes, f)
	}
}

func (c *passCache) renderPass(format vk.Format) (vk.RenderPass, error) {
	if p, ok := c.passes[format]; ok {
		return p, nil
	}
	attachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutGeneral,
		FinalLayout:    vk.ImageLayoutGeneral,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutGeneral,
		}},
	}
	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{attachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	var p vk.RenderPass
	if err := result("creating render pass", vk.CreateRenderPass(c.d.vk, &info, nil, &p)); err != nil {
		return vk.NullRenderPass, err
	}
	c.passes[format] = p
	return p, nil
}

func (c *passCache) framebuffer(view gpu.ImageView, pass vk.RenderPass, extent gpu.Extent) (vk.Framebuffer, error) {
	key := framebufferKey{view: view, pass: pass, extent: extent}
	if fb, ok := c.framebuffers.Get(key); ok {
		return fb, nil
	}
	native, ok := c.d.views[gpu.Handle(view)]
	if !ok {
		return vk.NullFramebuffer, fmt.Errorf("vulkan: unknown image view %d", view)
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{native},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := result("creating framebuffer", vk.CreateFramebuffer(c.d.vk, &info, nil, &fb)); err != nil {
		return vk.NullFramebuffer, err
	}
	c.framebuffers.Add(key, fb)
	return fb, nil
}
