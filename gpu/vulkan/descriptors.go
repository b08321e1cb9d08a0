package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vkDescriptorType(s.Type),
			DescriptorCount: uint32(s.Count),
		}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(desc.MaxSets),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := result("creating descriptor pool", vk.CreateDescriptorPool(d.vk, &info, nil, &pool)); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(d.descriptorPools.put(&d.next, pool)), nil
}

// DestroyDescriptorPool frees the sets allocated from pool with it.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	pool, ok := d.descriptorPools.take(gpu.Handle(h))
	if !ok {
		return
	}
	for s, owner := range d.setPools {
		if owner == h {
			delete(d.setPools, s)
			delete(d.descriptorSets, s)
		}
	}
	vk.DestroyDescriptorPool(d.vk, pool, nil)
}

func (d *Device) CreateDescriptorLayout(entries []gpu.DescriptorLayoutEntry) (gpu.DescriptorLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(entries))
	for i, e := range entries {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         e.Binding,
			DescriptorType:  vkDescriptorType(e.Type),
			DescriptorCount: 1,
			StageFlags:      vkStages(e.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := result("creating descriptor set layout", vk.CreateDescriptorSetLayout(d.vk, &info, nil, &layout)); err != nil {
		return 0, err
	}
	return gpu.DescriptorLayout(d.setLayouts.put(&d.next, layout)), nil
}

func (d *Device) DestroyDescriptorLayout(h gpu.DescriptorLayout) {
	if l, ok := d.setLayouts.take(gpu.Handle(h)); ok {
		vk.DestroyDescriptorSetLayout(d.vk, l, nil)
	}
}

func (d *Device) AllocateDescriptorSet(hp gpu.DescriptorPool, hl gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	pool, ok := d.descriptorPools[gpu.Handle(hp)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown descriptor pool %d", hp)
	}
	layout, ok := d.setLayouts[gpu.Handle(hl)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown descriptor layout %d", hl)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := result("allocating descriptor set", vk.AllocateDescriptorSets(d.vk, &info, &set)); err != nil {
		return 0, err
	}
	h := d.descriptorSets.put(&d.next, set)
	d.setPools[h] = hp
	return gpu.DescriptorSet(h), nil
}

// UpdateDescriptorSet writes resources into set. Writes naming unknown
// handles are logged and skipped.
func (d *Device) UpdateDescriptorSet(h gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	set, ok := d.descriptorSets[gpu.Handle(h)]
	if !ok {
		d.log.Error("updating unknown descriptor set", "set", h)
		return
	}
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  vkDescriptorType(w.Type),
		}
		if w.Type.IsBuffer() {
			buf, ok := d.buffers[gpu.Handle(w.Buffer)]
			if !ok {
				d.log.Error("descriptor write names unknown buffer", "binding", w.Binding, "buffer", w.Buffer)
				continue
			}
			size := vk.DeviceSize(w.Range)
			if w.Range == 0 {
				// VK_WHOLE_SIZE
				size = vk.DeviceSize(vk.MaxUint64)
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.vk,
				Offset: vk.DeviceSize(w.Offset),
				Range:  size,
			}}
		} else {
			view, ok := d.views[gpu.Handle(w.View)]
			if !ok {
				d.log.Error("descriptor write names unknown view", "binding", w.Binding, "view", w.View)
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   view,
				ImageLayout: vk.ImageLayoutGeneral,
			}}
		}
		native = append(native, write)
	}
	if len(native) > 0 {
		vk.UpdateDescriptorSets(d.vk, uint32(len(native)), native, 0, nil)
	}
}
