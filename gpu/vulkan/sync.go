package vulkan

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

// nanos converts a timeout to the native form. Negative waits forever.
func nanos(timeout time.Duration) uint64 {
	if timeout < 0 {
		return vk.MaxUint64
	}
	return uint64(timeout.Nanoseconds())
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	f := &fence{}
	if err := result("creating fence", vk.CreateFence(d.vk, &info, nil, &f.vk)); err != nil {
		return 0, err
	}
	return gpu.Fence(d.fences.put(&d.next, f)), nil
}

// WaitForFence blocks until f is signaled. Everything submitted up to the
// submission that signals f is then known to be complete, so framebuffers
// retired before it are released.
func (d *Device) WaitForFence(h gpu.Fence, timeout time.Duration) error {
	f, ok := d.fences[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown fence %d", h)
	}
	r := vk.WaitForFences(d.vk, 1, []vk.Fence{f.vk}, vk.True, nanos(timeout))
	if err := result("waiting for fence", r); err != nil {
		return err
	}
	if f.submit > d.completed {
		d.completed = f.submit
	}
	d.passes.collect()
	return nil
}

func (d *Device) ResetFence(h gpu.Fence) error {
	f, ok := d.fences[gpu.Handle(h)]
	if !ok {
		return fmt.Errorf("vulkan: unknown fence %d", h)
	}
	return result("resetting fence", vk.ResetFences(d.vk, 1, []vk.Fence{f.vk}))
}

func (d *Device) DestroyFence(h gpu.Fence) {
	if f, ok := d.fences.take(gpu.Handle(h)); ok {
		vk.DestroyFence(d.vk, f.vk, nil)
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var s vk.Semaphore
	if err := result("creating semaphore", vk.CreateSemaphore(d.vk, &info, nil, &s)); err != nil {
		return 0, err
	}
	return gpu.Semaphore(d.semaphores.put(&d.next, s)), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if s, ok := d.semaphores.take(gpu.Handle(h)); ok {
		vk.DestroySemaphore(d.vk, s, nil)
	}
}
