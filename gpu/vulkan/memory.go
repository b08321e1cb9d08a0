package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/alloc"
	"github.com/Totterynine/ColdSrc/gpu"
)

const hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

// block is one device memory allocation shared by many resources.
type block struct {
	memory    vk.DeviceMemory
	typeIndex uint32
	linear    *alloc.Linear
	// mapped is the persistent mapping of host visible blocks.
	mapped unsafe.Pointer
}

// allocation is a range of a block bound to one image or buffer.
type allocation struct {
	block *block
	rng   *alloc.Allocation
}

// ptr returns the host address of offset inside a mapped allocation.
func (a *allocation) ptr(offset uint64) unsafe.Pointer {
	return unsafe.Add(a.block.mapped, a.rng.Offset+offset)
}

// allocator sub-allocates device memory blocks per memory type.
type allocator struct {
	blockSize uint64
	blocks    []*block
}

// findMemoryType returns the first memory type allowed by bits that has all
// of props.
func findMemoryType(types []vk.MemoryType, bits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i, t := range types {
		if bits&(1<<uint(i)) != 0 && t.PropertyFlags&props == props {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("%w: no memory type for bits %#x with properties %#x", gpu.ErrOutOfDeviceMemory, bits, props)
}

func (d *Device) memoryTypes() []vk.MemoryType {
	var mp vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &mp)
	mp.Deref()
	types := make([]vk.MemoryType, mp.MemoryTypeCount)
	for i := range types {
		t := mp.MemoryTypes[i]
		t.Deref()
		types[i] = t
	}
	return types
}

func (d *Device) CreateMemoryAllocator(blockSize uint64) (gpu.MemoryAllocator, error) {
	if blockSize == 0 {
		return 0, fmt.Errorf("vulkan: zero memory block size")
	}
	return gpu.MemoryAllocator(d.allocators.put(&d.next, &allocator{blockSize: blockSize})), nil
}

func (d *Device) DestroyMemoryAllocator(h gpu.MemoryAllocator) {
	a, ok := d.allocators.take(gpu.Handle(h))
	if !ok {
		return
	}
	for _, b := range a.blocks {
		if n := b.linear.Len(); n > 0 {
			d.log.Error("memory block freed with live allocations", "allocations", n)
		}
		d.freeBlock(b)
	}
}

func (d *Device) freeBlock(b *block) {
	if b.mapped != nil {
		vk.UnmapMemory(d.vk, b.memory)
	}
	vk.FreeMemory(d.vk, b.memory, nil)
}

// allocate finds room for reqs in a block of a matching memory type, adding
// a block when none has space.
func (d *Device) allocate(h gpu.MemoryAllocator, reqs vk.MemoryRequirements, props vk.MemoryPropertyFlags) (*allocation, error) {
	a, ok := d.allocators[gpu.Handle(h)]
	if !ok {
		return nil, fmt.Errorf("vulkan: unknown memory allocator %d", h)
	}
	reqs.Deref()
	typeIndex, err := findMemoryType(d.types, reqs.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	size, align := uint64(reqs.Size), uint64(reqs.Alignment)

	for _, b := range a.blocks {
		if b.typeIndex != typeIndex {
			continue
		}
		if r := b.linear.Allocate(size, align); r != nil {
			return &allocation{block: b, rng: r}, nil
		}
	}

	blockSize := gpu.Max(a.blockSize, size)
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(blockSize),
		MemoryTypeIndex: typeIndex,
	}
	b := &block{typeIndex: typeIndex, linear: alloc.NewLinear(blockSize)}
	if err := result("allocating memory", vk.AllocateMemory(d.vk, &info, nil, &b.memory)); err != nil {
		return nil, err
	}
	if props&hostVisible == hostVisible {
		if err := result("mapping memory", vk.MapMemory(d.vk, b.memory, 0, vk.DeviceSize(blockSize), 0, &b.mapped)); err != nil {
			vk.FreeMemory(d.vk, b.memory, nil)
			return nil, err
		}
	}
	a.blocks = append(a.blocks, b)
	d.log.Debug("memory block allocated", "size", blockSize, "type", typeIndex)

	r := b.linear.Allocate(size, align)
	if r == nil {
		return nil, fmt.Errorf("%w: %d bytes", gpu.ErrOutOfDeviceMemory, size)
	}
	return &allocation{block: b, rng: r}, nil
}

func (d *Device) free(a *allocation) {
	if a != nil {
		a.block.linear.Free(a.rng)
	}
}
