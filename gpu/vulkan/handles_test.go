package vulkan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

func TestTableNeverReusesHandles(t *testing.T) {
	var next gpu.Handle
	names := make(table[string])
	numbers := make(table[int])

	a := names.put(&next, "a")
	n := numbers.put(&next, 1)
	assert.NotEqual(t, gpu.NullHandle, a)
	assert.NotEqual(t, a, n)

	v, ok := names.take(a)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = names.take(a)
	assert.False(t, ok)

	b := names.put(&next, "b")
	assert.NotEqual(t, a, b)
	assert.Len(t, names, 1)
}

func TestNanos(t *testing.T) {
	assert.Equal(t, uint64(vk.MaxUint64), nanos(-1))
	assert.Equal(t, uint64(0), nanos(0))
	assert.Equal(t, uint64(2_000_000), nanos(2*time.Millisecond))
}
