package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint64(12), AlignUp(12, 3))
	assert.Equal(uint64(12), AlignUp(10, 3))
	assert.Equal(uint64(7), AlignUp(7, 1))
	assert.Equal(uint64(7), AlignUp(7, 0))
	assert.Equal(uint64(256), AlignUp(1, 256))
}

func TestLinearAllocator(t *testing.T) {
	assert := assert.New(t)

	a := NewLinear(1024)

	assert.Nil(a.Allocate(2048, 1), "larger than the block")

	first := a.Allocate(512, 1)
	require.NotNil(t, first)
	assert.Equal(uint64(0), first.Offset)

	assert.Nil(a.Allocate(768, 1), "only 512 bytes left")

	second := a.Allocate(500, 1)
	require.NotNil(t, second)
	assert.Equal(uint64(512), second.Offset)

	assert.Nil(a.Allocate(50, 1), "only 12 bytes left")
	assert.NotNil(a.Allocate(5, 1))
	assert.Nil(a.Allocate(20, 1))

	assert.True(a.Free(second))
	again := a.Allocate(500, 1)
	require.NotNil(t, again)
	assert.Equal(uint64(512), again.Offset, "freed gap is reused")

	assert.True(a.Free(first))
	assert.NotNil(a.Allocate(20, 1))
	assert.NotNil(a.Allocate(40, 1))
	assert.NotNil(a.Allocate(12, 1))
	assert.Nil(a.Allocate(500, 1))
	assert.NotNil(a.Allocate(5, 1))
	assert.Equal(6, a.Len())
}

func TestLinearAllocatorAlignment(t *testing.T) {
	assert := assert.New(t)

	a := NewLinear(4096)
	x := a.Allocate(10, 1)
	y := a.Allocate(100, 256)
	z := a.Allocate(1, 64)

	require.NotNil(t, x)
	require.NotNil(t, y)
	require.NotNil(t, z)
	assert.Equal(uint64(0), x.Offset)
	assert.Equal(uint64(256), y.Offset)
	assert.Equal(uint64(64), z.Offset, "fits in the alignment gap before y")
	assert.Equal(uint64(111), a.Used())
}

func TestLinearAllocatorFreeUnknown(t *testing.T) {
	a := NewLinear(64)
	assert.False(t, a.Free(&Allocation{Offset: 0, Size: 8}))
	assert.Nil(t, a.Allocate(0, 1))
}
