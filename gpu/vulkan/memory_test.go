package vulkan

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/alloc"
	"github.com/Totterynine/ColdSrc/gpu"
)

var memoryTypes = []vk.MemoryType{
	{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
	{PropertyFlags: hostVisible},
	{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) | hostVisible},
}

func TestFindMemoryType(t *testing.T) {
	i, err := findMemoryType(memoryTypes, 0b111, hostVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), i)

	i, err = findMemoryType(memoryTypes, 0b100, hostVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), i)

	i, err = findMemoryType(memoryTypes, 0b111, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), i)
}

func TestFindMemoryTypeMissing(t *testing.T) {
	_, err := findMemoryType(memoryTypes, 0b001, hostVisible)
	assert.ErrorIs(t, err, gpu.ErrOutOfDeviceMemory)

	_, err = findMemoryType(nil, 0xff, 0)
	assert.ErrorIs(t, err, gpu.ErrOutOfDeviceMemory)
}

func TestAllocationPointer(t *testing.T) {
	backing := make([]byte, 256)
	b := &block{linear: alloc.NewLinear(256), mapped: unsafe.Pointer(&backing[0])}

	first := b.linear.Allocate(10, 1)
	require.NotNil(t, first)
	second := b.linear.Allocate(16, 64)
	require.NotNil(t, second)
	assert.Equal(t, uint64(64), second.Offset)

	a := allocation{block: b, rng: second}
	*(*byte)(a.ptr(3)) = 0xab
	assert.Equal(t, byte(0xab), backing[67])
}
