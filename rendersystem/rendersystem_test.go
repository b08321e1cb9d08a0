package rendersystem

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Totterynine/ColdSrc/gpu"
	"github.com/Totterynine/ColdSrc/gpu/fake"
	"github.com/Totterynine/ColdSrc/registry"
)

// testWindow stands in for a glfw window; the fake backend never calls it.
type testWindow struct{}

func (testWindow) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return 1, nil
}

func newSystem(t *testing.T, b *fake.Backend, opts ...Option) *RenderSystem {
	t.Helper()
	rs, err := New(append([]Option{WithBackend(b)}, opts...)...)
	require.NoError(t, err)
	return rs
}

// attached returns a render system attached to a 1280x720 window.
func attached(t *testing.T, opts ...Option) (*RenderSystem, *fake.Backend) {
	t.Helper()
	b := fake.New()
	rs := newSystem(t, b, opts...)
	require.NoError(t, rs.Create())
	require.NoError(t, rs.AttachWindow(testWindow{}, 1280, 720))
	return rs, b
}

// requireClean destroys rs and checks nothing leaked and no hardware rule
// was broken.
func requireClean(t *testing.T, rs *RenderSystem, b *fake.Backend) {
	t.Helper()
	rs.Destroy()
	assert.Empty(t, b.Violations)
	assert.Zero(t, b.Live(), "objects left alive")
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestCreateAndAttach(t *testing.T) {
	rs, b := attached(t)

	assert.Equal(t, "fake discrete", rs.Adapter().Name)
	assert.Equal(t, gpu.Extent{Width: 1280, Height: 720}, rs.SwapchainExtent())
	assert.Equal(t, gpu.FormatBGRA8, rs.SwapchainFormat())
	assert.Equal(t, 3, rs.BackBufferCount())
	assert.Equal(t, 0, rs.CurrentFrameIndex())
	assert.Equal(t, FrameIdle, rs.FrameState())
	assert.Len(t, b.LiveOf(fake.KindFence), FramesInFlight)
	assert.Len(t, b.LiveOf(fake.KindSemaphore), 2*FramesInFlight)
	assert.Len(t, b.LiveOf(fake.KindCommandBuffer), FramesInFlight)
	for _, f := range b.LiveOf(fake.KindFence) {
		assert.True(t, b.FenceSignaled(gpu.Fence(f)), "frame fences start signaled")
	}

	requireClean(t, rs, b)
}

func TestLifecycleOrder(t *testing.T) {
	b := fake.New()
	rs := newSystem(t, b)

	assert.ErrorIs(t, rs.AttachWindow(testWindow{}, 1, 1), ErrNotCreated)
	require.NoError(t, rs.Create())
	assert.ErrorIs(t, rs.Create(), ErrAlreadyCreated)
	assert.ErrorIs(t, rs.AttachWindow(nil, 1, 1), gpu.ErrNoSurfaceSource)
	require.NoError(t, rs.AttachWindow(testWindow{}, 1, 1))
	assert.ErrorIs(t, rs.AttachWindow(testWindow{}, 1, 1), ErrAlreadyAttached)

	rs.Destroy()
	rs.Destroy()
	assert.ErrorIs(t, rs.Create(), ErrDestroyed)
	assert.ErrorIs(t, rs.BeginRendering(), ErrDestroyed)
	assert.Empty(t, b.Violations)
	assert.Zero(t, b.Live())
}

func TestCreateUnsupportedVersion(t *testing.T) {
	b := fake.New()
	b.InstanceVersion = gpu.Version{Major: 1, Minor: 1}
	rs := newSystem(t, b)

	assert.ErrorIs(t, rs.Create(), gpu.ErrUnsupportedVersion)
	rs.Destroy()
	assert.Zero(t, b.Live())
}

func TestNoSuitableDevice(t *testing.T) {
	b := fake.New()
	b.Adapters[0].TransferFamily = b.Adapters[0].GraphicsFamily
	rs := newSystem(t, b)
	require.NoError(t, rs.Create())

	err := rs.AttachWindow(testWindow{}, 640, 480)
	assert.ErrorIs(t, err, gpu.ErrNoSuitableDevice)

	// The surface was queued before the device failed.
	rs.Destroy()
	assert.Empty(t, b.Violations)
	assert.Zero(t, b.Live())
}

func TestDedicatedTransferOptional(t *testing.T) {
	b := fake.New()
	b.Adapters[0].TransferFamily = b.Adapters[0].GraphicsFamily
	rs := newSystem(t, b, WithRequireDedicatedTransfer(false))
	require.NoError(t, rs.Create())
	require.NoError(t, rs.AttachWindow(testWindow{}, 640, 480))
	requireClean(t, rs, b)
}

func TestPrefersDiscreteAdapter(t *testing.T) {
	b := fake.New()
	integrated := b.Adapters[0]
	integrated.Name = "fake integrated"
	integrated.Discrete = false
	b.Adapters = append([]gpu.AdapterInfo{integrated}, b.Adapters...)

	rs := newSystem(t, b)
	require.NoError(t, rs.Create())
	require.NoError(t, rs.AttachWindow(testWindow{}, 640, 480))
	assert.Equal(t, "fake discrete", rs.Adapter().Name)
	requireClean(t, rs, b)
}

func TestAttachFailureReleasesPartialState(t *testing.T) {
	b := fake.New()
	b.FailNext("CreateSemaphore", errors.New("out of host memory"))
	rs := newSystem(t, b)
	require.NoError(t, rs.Create())

	assert.Error(t, rs.AttachWindow(testWindow{}, 640, 480))
	rs.Destroy()
	assert.Empty(t, b.Violations)
	assert.Zero(t, b.Live())
}

func TestDestroyReleasesInReverseOrder(t *testing.T) {
	rs, b := attached(t)
	rs.Destroy()
	require.Empty(t, b.Violations)

	var kinds []fake.Kind
	for _, h := range b.DestroyLog {
		k, ok := b.KindOf(h)
		require.True(t, ok)
		kinds = append(kinds, k)
	}
	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t,
		[]fake.Kind{fake.KindAllocator, fake.KindDevice, fake.KindSurface, fake.KindInstance},
		kinds[len(kinds)-4:])
}

func TestDestroyReleasesCallerResources(t *testing.T) {
	rs, b := attached(t)

	_, err := rs.CreateRenderTarget(gpu.FormatRGBA16F, 64, 64)
	require.NoError(t, err)
	_, err = rs.CreateBuffer(gpu.BufferUsageUniform, 256)
	require.NoError(t, err)
	layout, err := rs.NewDescriptorLayoutBuilder().
		AddBinding(0, gpu.DescriptorStorageImage, gpu.StageCompute).
		Build()
	require.NoError(t, err)
	_, err = rs.BuildDescriptorSet(layout)
	require.NoError(t, err)
	sh := computeShader(t, rs, layout)
	_, err = rs.CreateShaderModule("unused", spirv(8))
	require.NoError(t, err)
	assert.True(t, sh.Built())

	requireClean(t, rs, b)
}

func TestRegister(t *testing.T) {
	rs, b := attached(t)
	r := registry.New()
	require.NoError(t, Register(r, rs))

	got, err := registry.Lookup[*RenderSystem](r, ModuleName)
	require.NoError(t, err)
	assert.Same(t, rs, got)
	assert.ErrorIs(t, Register(r, rs), registry.ErrDuplicate)

	requireClean(t, rs, b)
}

func TestReleaseQueueIsLIFO(t *testing.T) {
	b := fake.New()
	inst, err := b.CreateInstance(gpu.InstanceDescriptor{APIVersion: gpu.Version{Major: 1}})
	require.NoError(t, err)
	s, err := b.CreateSurface(inst, testWindow{})
	require.NoError(t, err)
	dev, err := b.OpenDevice(inst, s, gpu.DeviceRequirements{})
	require.NoError(t, err)

	var q ReleaseQueue
	var want []gpu.Handle
	for i := 0; i < 3; i++ {
		f, err := dev.CreateFence(false)
		require.NoError(t, err)
		q.Push(ReleaseFence, gpu.Handle(f))
		want = append([]gpu.Handle{gpu.Handle(f)}, want...)
	}
	assert.Equal(t, 3, q.Len())

	q.Release(ReleaseTarget{Backend: b, Instance: inst, Device: dev})
	assert.Equal(t, want, b.DestroyLog)
	assert.Zero(t, q.Len())

	// Draining again destroys nothing twice.
	q.Release(ReleaseTarget{Backend: b, Instance: inst, Device: dev})
	assert.Len(t, b.DestroyLog, 3)
	assert.Empty(t, b.Violations)
}

func TestMisuseWrapsProgrammingError(t *testing.T) {
	rs, b := attached(t)

	err := rs.EndRendering()
	assert.ErrorIs(t, err, ErrProgramming)
	assert.ErrorIs(t, err, ErrInvalidFrameState)
	assert.ErrorIs(t, rs.Present(), ErrInvalidFrameState)
	assert.ErrorIs(t, rs.Dispatch(1, 1, 1), ErrInvalidFrameState)

	requireClean(t, rs, b)
}
