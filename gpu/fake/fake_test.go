package fake

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Totterynine/ColdSrc/gpu"
)

type window struct{}

func (window) CreateWindowSurface(interface{}, unsafe.Pointer) (uintptr, error) { return 1, nil }

func open(t *testing.T) (*Backend, gpu.Device) {
	t.Helper()
	b := New()
	inst, err := b.CreateInstance(gpu.InstanceDescriptor{APIVersion: gpu.Version{Major: 1, Minor: 2}})
	require.NoError(t, err)
	s, err := b.CreateSurface(inst, window{})
	require.NoError(t, err)
	d, err := b.OpenDevice(inst, s, gpu.DeviceRequirements{DedicatedTransferQueue: true})
	require.NoError(t, err)
	return b, d
}

func TestUseAfterDestroy(t *testing.T) {
	b, d := open(t)
	f, err := d.CreateFence(true)
	require.NoError(t, err)
	d.DestroyFence(f)
	assert.Empty(t, b.Violations)

	_ = d.WaitForFence(f, 0)
	require.Len(t, b.Violations, 1)
	assert.Contains(t, b.Violations[0], "use of destroyed fence")
}

func TestCommandBufferReuseBeforeFence(t *testing.T) {
	b, d := open(t)
	pool, err := d.CreateCommandPool(d.GraphicsQueue())
	require.NoError(t, err)
	cbs, err := d.AllocateCommandBuffers(pool, 1)
	require.NoError(t, err)
	f, err := d.CreateFence(false)
	require.NoError(t, err)

	require.NoError(t, d.BeginCommandBuffer(cbs[0]))
	require.NoError(t, d.EndCommandBuffer(cbs[0]))
	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{CommandBuffer: cbs[0], Fence: f}))
	assert.Empty(t, b.Violations)

	require.NoError(t, d.ResetCommandBuffer(cbs[0]))
	assert.Len(t, b.Violations, 1)

	require.NoError(t, d.WaitForFence(f, 0))
	assert.True(t, b.FenceSignaled(f))
	require.NoError(t, d.ResetCommandBuffer(cbs[0]))
	assert.Len(t, b.Violations, 1)
}

func TestWaitOnUnsubmittedFence(t *testing.T) {
	b, d := open(t)
	f, err := d.CreateFence(false)
	require.NoError(t, err)

	assert.ErrorIs(t, d.WaitForFence(f, 0), gpu.ErrTimeout)
	assert.Len(t, b.Violations, 1)
}

func TestLayoutTracking(t *testing.T) {
	b, d := open(t)
	a, err := d.CreateMemoryAllocator(1 << 20)
	require.NoError(t, err)
	img, err := d.CreateImage(gpu.ImageDescriptor{Allocator: a, Format: gpu.FormatRGBA8, Extent: gpu.Extent{Width: 4, Height: 4}})
	require.NoError(t, err)
	pool, err := d.CreateCommandPool(d.GraphicsQueue())
	require.NoError(t, err)
	cbs, err := d.AllocateCommandBuffers(pool, 1)
	require.NoError(t, err)
	cb := cbs[0]

	require.NoError(t, d.BeginCommandBuffer(cb))
	d.CmdTransitionImage(cb, img, gpu.LayoutUndefined, gpu.LayoutGeneral)
	d.CmdClearColorImage(cb, img, gpu.ColorFloat{})
	assert.Empty(t, b.Violations)
	assert.Equal(t, gpu.LayoutGeneral, b.ImageLayout(img))

	d.CmdTransitionImage(cb, img, gpu.LayoutTransferSrc, gpu.LayoutGeneral)
	assert.Len(t, b.Violations, 1)
	d.CmdBlitImage(cb, img, gpu.Extent{Width: 4, Height: 4}, img, gpu.Extent{Width: 8, Height: 8})
	assert.Len(t, b.Violations, 4)
}

func TestNoSuitableAdapter(t *testing.T) {
	b := New()
	b.Adapters[0].APIVersion = gpu.Version{Major: 1, Minor: 1}
	inst, err := b.CreateInstance(gpu.InstanceDescriptor{})
	require.NoError(t, err)
	s, err := b.CreateSurface(inst, window{})
	require.NoError(t, err)

	_, err = b.OpenDevice(inst, s, gpu.DeviceRequirements{MinAPIVersion: gpu.Version{Major: 1, Minor: 2}})
	assert.ErrorIs(t, err, gpu.ErrNoSuitableDevice)
}

// recordClear records a clear of a new image into a new command buffer.
func recordClear(t *testing.T, d gpu.Device) (gpu.Image, gpu.CommandBuffer) {
	t.Helper()
	a, err := d.CreateMemoryAllocator(1 << 20)
	require.NoError(t, err)
	img, err := d.CreateImage(gpu.ImageDescriptor{Allocator: a, Format: gpu.FormatRGBA8, Extent: gpu.Extent{Width: 4, Height: 4}})
	require.NoError(t, err)
	pool, err := d.CreateCommandPool(d.GraphicsQueue())
	require.NoError(t, err)
	cbs, err := d.AllocateCommandBuffers(pool, 1)
	require.NoError(t, err)

	require.NoError(t, d.BeginCommandBuffer(cbs[0]))
	d.CmdTransitionImage(cbs[0], img, gpu.LayoutUndefined, gpu.LayoutGeneral)
	d.CmdClearColorImage(cbs[0], img, gpu.ColorFloat{})
	require.NoError(t, d.EndCommandBuffer(cbs[0]))
	return img, cbs[0]
}

func TestSubmitWithDestroyedImage(t *testing.T) {
	b, d := open(t)
	img, cb := recordClear(t, d)

	d.DestroyImage(img)
	assert.Empty(t, b.Violations)
	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{CommandBuffer: cb}))
	require.Len(t, b.Violations, 1)
	assert.Contains(t, b.Violations[0], "uses destroyed image")
}

func TestDestroyImageInFlight(t *testing.T) {
	b, d := open(t)
	img, cb := recordClear(t, d)
	f, err := d.CreateFence(false)
	require.NoError(t, err)

	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{CommandBuffer: cb, Fence: f}))
	require.NoError(t, d.WaitIdle())
	d.DestroyImage(img)
	assert.Empty(t, b.Violations, "executed command buffers no longer hold the image")

	img, cb = recordClear(t, d)
	require.NoError(t, d.ResetFence(f))
	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{CommandBuffer: cb, Fence: f}))
	d.DestroyImage(img)
	require.Len(t, b.Violations, 1)
	assert.Contains(t, b.Violations[0], "is still used by command buffer")
}

func TestEmptySubmitSignalsFence(t *testing.T) {
	b, d := open(t)
	f, err := d.CreateFence(false)
	require.NoError(t, err)
	sem, err := d.CreateSemaphore()
	require.NoError(t, err)

	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{Signal: sem, Fence: f}))
	require.NoError(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{Wait: sem}))
	require.NoError(t, d.WaitForFence(f, 0))
	assert.True(t, b.FenceSignaled(f))
	assert.Empty(t, b.Violations)
}

func TestFailNextRecording(t *testing.T) {
	b, d := open(t)
	pool, err := d.CreateCommandPool(d.GraphicsQueue())
	require.NoError(t, err)
	cbs, err := d.AllocateCommandBuffers(pool, 1)
	require.NoError(t, err)

	b.FailNext("BeginCommandBuffer", gpu.ErrOutOfDeviceMemory)
	assert.ErrorIs(t, d.BeginCommandBuffer(cbs[0]), gpu.ErrOutOfDeviceMemory)
	require.NoError(t, d.BeginCommandBuffer(cbs[0]), "only the next call fails")

	b.FailNext("Submit", gpu.ErrOutOfDeviceMemory)
	require.NoError(t, d.EndCommandBuffer(cbs[0]))
	assert.ErrorIs(t, d.Submit(d.GraphicsQueue(), gpu.SubmitDescriptor{CommandBuffer: cbs[0]}), gpu.ErrOutOfDeviceMemory)
	assert.Zero(t, b.Stats.Submits)
	assert.Empty(t, b.Violations)
}

func TestWriteBufferBounds(t *testing.T) {
	b, d := open(t)
	a, err := d.CreateMemoryAllocator(1 << 20)
	require.NoError(t, err)
	buf, err := d.CreateBuffer(gpu.BufferDescriptor{Allocator: a, Size: 8, Usage: gpu.BufferUsageStorage})
	require.NoError(t, err)

	require.NoError(t, d.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Error(t, d.WriteBuffer(buf, 5, []byte{1, 2, 3, 4}))
	assert.Error(t, d.WriteBuffer(buf, ^uint64(0)-1, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, b.BufferData(buf))
}
