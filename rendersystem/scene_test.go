package rendersystem

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Totterynine/ColdSrc/gpu"
	"github.com/Totterynine/ColdSrc/gpu/fake"
)

// circleScene is the compute demo: a shader writes a circle into an
// offscreen target which is copied to the window every frame.
type circleScene struct {
	target *RenderTarget
	shader *Shader
	set    *DescriptorSet
}

func newCircleScene(t *testing.T, rs *RenderSystem) *circleScene {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circle_cs61.spv")
	require.NoError(t, os.WriteFile(path, spirv(64), 0o644))

	target, err := rs.CreateRenderTarget(gpu.FormatRGBA16F, 1280, 720)
	require.NoError(t, err)

	module, err := rs.LoadShaderModule(path)
	require.NoError(t, err)
	shader, err := rs.CreateShader()
	require.NoError(t, err)
	require.NoError(t, shader.SetComputeModule(module))

	layout, err := rs.NewDescriptorLayoutBuilder().
		AddBinding(0, gpu.DescriptorStorageImage, gpu.StageCompute).
		Build()
	require.NoError(t, err)
	require.NoError(t, shader.BuildPipeline(layout))

	set, err := rs.BuildDescriptorSet(layout)
	require.NoError(t, err)
	require.NoError(t, set.BindImage(0, target.View()))
	set.Update()

	return &circleScene{target: target, shader: shader, set: set}
}

// frame records one frame and returns the error of BeginRendering.
func (s *circleScene) frame(t *testing.T, rs *RenderSystem, time float64) error {
	t.Helper()
	begin := rs.BeginRendering()
	if begin != nil {
		require.ErrorIs(t, begin, ErrFrameSkipped)
	}
	c := float32(math.Sin(time)*0.5 + 0.5)
	rs.SetClearColor(gpu.ColorFloat{R: c, G: 0.2, B: 1 - c, A: 1})
	require.NoError(t, rs.SetViewport(gpu.Viewport{Width: 1280, Height: 720}))
	require.NoError(t, rs.SetRenderTarget(s.target))
	require.NoError(t, rs.ClearColor())
	require.NoError(t, rs.BindShader(s.shader, gpu.BindPointCompute))
	require.NoError(t, rs.BindDescriptorSet(s.set, gpu.BindPointCompute))
	require.NoError(t, rs.Dispatch(640, 360, 1))
	require.NoError(t, rs.CopyRenderTargetToBackBuffer())
	require.NoError(t, rs.EndRendering())
	require.NoError(t, rs.Present())
	return begin
}

func TestCircleSceneSingleFrame(t *testing.T) {
	rs, b := attached(t)
	scene := newCircleScene(t, rs)

	require.NoError(t, scene.frame(t, rs, 0))
	assert.Equal(t, 1, rs.CurrentFrameIndex())
	assert.Equal(t, 1, b.Count("CmdDispatch"))
	assert.Equal(t, 1, b.Count("CmdBlitImage"))
	assert.Equal(t, gpu.LayoutGeneral, b.ImageLayout(scene.target.Image()))

	requireClean(t, rs, b)
}

func TestCircleSceneSurvivesOutOfDate(t *testing.T) {
	rs, b := attached(t)
	scene := newCircleScene(t, rs)

	b.InjectAcquire(nil, nil, gpu.ErrOutOfDate)
	skipped := 0
	for i := 0; i < 10; i++ {
		if err := scene.frame(t, rs, float64(i)/60); err != nil {
			skipped++
		}
	}

	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, b.Stats.SwapchainsCreated)
	assert.Equal(t, 9, b.Stats.Presents)
	assert.Equal(t, 9, b.Count("CmdDispatch"))
	assert.Equal(t, 1, rs.CurrentFrameIndex())
	requireClean(t, rs, b)
}

func TestCircleSceneStorageImageBindable(t *testing.T) {
	rs, b := attached(t)
	scene := newCircleScene(t, rs)

	assert.True(t, scene.set.Updated())
	assert.Equal(t,
		[]gpu.DescriptorLayoutEntry{{Binding: 0, Type: gpu.DescriptorStorageImage, Stages: gpu.StageCompute}},
		b.DescriptorSetEntries(scene.set.Handle()))

	require.NoError(t, rs.BeginRendering())
	require.NoError(t, rs.BindShader(scene.shader, gpu.BindPointCompute))
	require.NoError(t, rs.BindDescriptorSet(scene.set, gpu.BindPointCompute))
	require.NoError(t, rs.EndRendering())
	require.NoError(t, rs.Present())

	requireClean(t, rs, b)
}

func TestCircleSceneMinimizeAndRestore(t *testing.T) {
	rs, b := attached(t)
	scene := newCircleScene(t, rs)

	require.NoError(t, scene.frame(t, rs, 0))
	rs.NotifyResize(0, 0)
	assert.ErrorIs(t, scene.frame(t, rs, 1), ErrFrameSkipped)
	rs.NotifyResize(1920, 1080)
	require.NoError(t, scene.frame(t, rs, 2))

	assert.Equal(t, 2, b.Stats.Presents)
	assert.Equal(t, gpu.Extent{Width: 1920, Height: 1080}, rs.SwapchainExtent())
	assert.Len(t, b.LiveOf(fake.KindSwapchain), 1)
	requireClean(t, rs, b)
}
