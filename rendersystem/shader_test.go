package rendersystem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Totterynine/ColdSrc/gpu"
	"github.com/Totterynine/ColdSrc/gpu/fake"
)

// spirv returns words of code starting with the SPIR-V magic number.
func spirv(words int) []byte {
	data := make([]byte, 4*words)
	binary.LittleEndian.PutUint32(data, 0x07230203)
	return data
}

func storageImageLayout(t *testing.T, rs *RenderSystem) *DescriptorLayout {
	t.Helper()
	l, err := rs.NewDescriptorLayoutBuilder().
		AddBinding(0, gpu.DescriptorStorageImage, gpu.StageCompute).
		Build()
	require.NoError(t, err)
	return l
}

func computeShader(t *testing.T, rs *RenderSystem, layout *DescriptorLayout) *Shader {
	t.Helper()
	m, err := rs.CreateShaderModule("compute", spirv(8))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)
	require.NoError(t, sh.SetComputeModule(m))
	require.NoError(t, sh.BuildPipeline(layout))
	return sh
}

func graphicsShader(t *testing.T, rs *RenderSystem, layout *DescriptorLayout) *Shader {
	t.Helper()
	vs, err := rs.CreateShaderModule("vertex", spirv(8))
	require.NoError(t, err)
	fs, err := rs.CreateShaderModule("fragment", spirv(8))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)
	require.NoError(t, sh.SetVertexModule(vs))
	require.NoError(t, sh.SetFragmentModule(fs))
	require.NoError(t, sh.BuildPipeline(layout))
	return sh
}

func TestDecodeSPIRV(t *testing.T) {
	_, err := decodeSPIRV(nil)
	assert.ErrorIs(t, err, ErrEmptyShader)
	_, err = decodeSPIRV([]byte{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, ErrShaderAlignment)

	code, err := decodeSPIRV([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1}, code)
}

func TestLoadShaderModule(t *testing.T) {
	rs, b := attached(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "circle_cs61.spv")
	require.NoError(t, os.WriteFile(good, spirv(16), 0o644))
	empty := filepath.Join(dir, "empty.spv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	odd := filepath.Join(dir, "odd.spv")
	require.NoError(t, os.WriteFile(odd, []byte{1, 2, 3, 4, 5}, 0o644))

	m, err := rs.LoadShaderModule(good)
	require.NoError(t, err)
	assert.NotZero(t, m.Handle())
	assert.Equal(t, good, m.Name())

	m, err = rs.LoadShaderModule(empty)
	assert.ErrorIs(t, err, ErrEmptyShader)
	assert.Nil(t, m)
	m, err = rs.LoadShaderModule(odd)
	assert.ErrorIs(t, err, ErrShaderAlignment)
	assert.Nil(t, m)
	m, err = rs.LoadShaderModule(filepath.Join(dir, "missing.spv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, m)

	assert.Len(t, b.LiveOf(fake.KindShaderModule), 1)
	requireClean(t, rs, b)
}

func TestLoadShaderModuleUsesCache(t *testing.T) {
	rs, b := attached(t)
	path := filepath.Join(t.TempDir(), "cached.spv")
	require.NoError(t, os.WriteFile(path, spirv(4), 0o644))

	_, err := rs.LoadShaderModule(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	// The file is gone, the decoded code is not.
	m, err := rs.LoadShaderModule(path)
	require.NoError(t, err)
	assert.NotZero(t, m.Handle())

	rs2, b2 := attached(t, WithShaderCacheSize(0))
	_, err = rs2.LoadShaderModule(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	requireClean(t, rs, b)
	requireClean(t, rs2, b2)
}

func TestBuildPipelineWithoutStages(t *testing.T) {
	rs, b := attached(t)
	layout := storageImageLayout(t, rs)
	sh, err := rs.CreateShader()
	require.NoError(t, err)

	err = sh.BuildPipeline(layout)
	assert.ErrorIs(t, err, ErrProgramming)
	assert.ErrorIs(t, err, ErrNoStages)
	assert.False(t, sh.Built())
	assert.Empty(t, b.LiveOf(fake.KindPipeline))
	assert.Empty(t, b.LiveOf(fake.KindPipelineLayout))

	requireClean(t, rs, b)
}

func TestBuildPipelineMissingFragment(t *testing.T) {
	rs, b := attached(t)
	layout := storageImageLayout(t, rs)
	vs, err := rs.CreateShaderModule("vertex", spirv(4))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)
	require.NoError(t, sh.SetVertexModule(vs))

	assert.ErrorIs(t, sh.BuildPipeline(layout), ErrMissingStage)
	requireClean(t, rs, b)
}

func TestMixedStagesRejected(t *testing.T) {
	rs, b := attached(t)
	cs, err := rs.CreateShaderModule("compute", spirv(4))
	require.NoError(t, err)
	vs, err := rs.CreateShaderModule("vertex", spirv(4))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)

	require.NoError(t, sh.SetComputeModule(cs))
	assert.Equal(t, ShaderCompute, sh.Kind())
	assert.ErrorIs(t, sh.SetVertexModule(vs), ErrMixedStages)
	assert.Nil(t, vs.Owner())
	assert.Same(t, sh, cs.Owner())

	requireClean(t, rs, b)
}

func TestBuiltShaderIsImmutable(t *testing.T) {
	rs, b := attached(t)
	layout := storageImageLayout(t, rs)
	sh := computeShader(t, rs, layout)
	cs, err := rs.CreateShaderModule("compute2", spirv(4))
	require.NoError(t, err)

	assert.ErrorIs(t, sh.BuildPipeline(layout), ErrPipelineBuilt)
	assert.ErrorIs(t, sh.SetComputeModule(cs), ErrPipelineBuilt)
	assert.ErrorIs(t, sh.SetTopology(gpu.TopologyLines), ErrPipelineBuilt)
	assert.Same(t, layout, sh.Layout())

	requireClean(t, rs, b)
}

func TestShaderOwnsModules(t *testing.T) {
	rs, b := attached(t)
	layout := storageImageLayout(t, rs)
	sh := computeShader(t, rs, layout)
	require.Len(t, b.LiveOf(fake.KindShaderModule), 1)

	sh.Destroy()
	assert.Empty(t, b.LiveOf(fake.KindShaderModule))
	assert.Empty(t, b.LiveOf(fake.KindPipeline))
	assert.Empty(t, b.LiveOf(fake.KindPipelineLayout))

	requireClean(t, rs, b)
}

func TestReplacingStageReleasesOldModule(t *testing.T) {
	rs, b := attached(t)
	first, err := rs.CreateShaderModule("first", spirv(4))
	require.NoError(t, err)
	second, err := rs.CreateShaderModule("second", spirv(4))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)

	require.NoError(t, sh.SetComputeModule(first))
	require.NoError(t, sh.SetComputeModule(second))
	assert.False(t, b.IsLive(gpu.Handle(first.Handle())))
	assert.True(t, b.IsLive(gpu.Handle(second.Handle())))

	requireClean(t, rs, b)
}

func TestGraphicsPipelineState(t *testing.T) {
	rs, b := attached(t)
	layout := storageImageLayout(t, rs)
	vs, err := rs.CreateShaderModule("vertex", spirv(4))
	require.NoError(t, err)
	fs, err := rs.CreateShaderModule("fragment", spirv(4))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)

	require.NoError(t, sh.SetVertexModule(vs))
	require.NoError(t, sh.SetFragmentModule(fs))
	require.NoError(t, sh.SetTopology(gpu.TopologyLineStrip))
	require.NoError(t, sh.SetPolygonMode(gpu.PolygonLine))
	require.NoError(t, sh.SetCullMode(gpu.CullNone))
	require.NoError(t, sh.SetWinding(gpu.Clockwise))
	require.NoError(t, sh.SetColorFormat(gpu.FormatRGBA16F))
	require.NoError(t, sh.BuildPipeline(layout))
	assert.Equal(t, ShaderGraphics, sh.Kind())

	rt, err := rs.CreateRenderTarget(gpu.FormatRGBA16F, 128, 128)
	require.NoError(t, err)
	require.NoError(t, rs.BeginRendering())
	require.NoError(t, rs.SetRenderTarget(rt))
	require.NoError(t, rs.BindShader(sh, gpu.BindPointGraphics))
	require.NoError(t, rs.DrawPrimitive(gpu.TopologyLineStrip, 4))
	require.NoError(t, rs.EndRendering())
	require.NoError(t, rs.Present())

	requireClean(t, rs, b)
}

func TestDefaultColorFormatResolvedAtBuild(t *testing.T) {
	b := fake.New()
	rs := newSystem(t, b)
	require.NoError(t, rs.Create())
	require.NoError(t, rs.AttachWindow(testWindow{}, 0, 0))
	layout := storageImageLayout(t, rs)
	vs, err := rs.CreateShaderModule("vertex", spirv(4))
	require.NoError(t, err)
	fs, err := rs.CreateShaderModule("fragment", spirv(4))
	require.NoError(t, err)
	sh, err := rs.CreateShader()
	require.NoError(t, err)
	require.NoError(t, sh.SetVertexModule(vs))
	require.NoError(t, sh.SetFragmentModule(fs))

	// No swapchain yet, so there is no format to default to.
	assert.ErrorIs(t, sh.BuildPipeline(layout), gpu.ErrUnsupportedFormat)
	assert.False(t, sh.Built())
	assert.Empty(t, b.LiveOf(fake.KindPipelineLayout))

	rs.NotifyResize(320, 200)
	require.NoError(t, emptyFrame(t, rs))
	require.NoError(t, sh.BuildPipeline(layout))

	require.NoError(t, rs.BeginRendering())
	require.NoError(t, rs.BindShader(sh, gpu.BindPointGraphics))
	require.NoError(t, rs.DrawPrimitive(gpu.TopologyTriangles, 3))
	require.NoError(t, rs.EndRendering())
	require.NoError(t, rs.Present())

	assert.Equal(t, 1, b.Count("CmdDraw"))
	requireClean(t, rs, b)
}
