package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

func TestFormatsRoundTrip(t *testing.T) {
	for f := gpu.FormatR8; f <= gpu.FormatBGRA8; f++ {
		native, err := vkFormat(f)
		require.NoError(t, err, f.String())
		assert.Equal(t, f, gpuFormat(native), f.String())
	}
}

func TestUnsupportedFormats(t *testing.T) {
	_, err := vkFormat(gpu.FormatUndefined)
	assert.ErrorIs(t, err, gpu.ErrUnsupportedFormat)

	_, err = vkFormat(gpu.Format(100))
	assert.ErrorIs(t, err, gpu.ErrUnsupportedFormat)

	assert.Equal(t, gpu.FormatUndefined, gpuFormat(vk.FormatD32Sfloat))
}

func TestLayoutAccess(t *testing.T) {
	access, stage := layoutAccess(gpu.LayoutUndefined)
	assert.Zero(t, access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), stage)

	access, stage = layoutAccess(gpu.LayoutTransferDst)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), stage)

	access, stage = layoutAccess(gpu.LayoutPresentSrc)
	assert.Zero(t, access)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), stage)

	access, _ = layoutAccess(gpu.LayoutGeneral)
	assert.NotZero(t, access&vk.AccessFlags(vk.AccessColorAttachmentWriteBit))
	assert.NotZero(t, access&vk.AccessFlags(vk.AccessShaderWriteBit))
}

func TestLayouts(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutUndefined, vkLayout(gpu.LayoutUndefined))
	assert.Equal(t, vk.ImageLayoutGeneral, vkLayout(gpu.LayoutGeneral))
	assert.Equal(t, vk.ImageLayoutTransferSrcOptimal, vkLayout(gpu.LayoutTransferSrc))
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, vkLayout(gpu.LayoutTransferDst))
	assert.Equal(t, vk.ImageLayoutPresentSrc, vkLayout(gpu.LayoutPresentSrc))
}

func TestFlagConversions(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeFrontAndBack), vkCullMode(gpu.CullFrontAndBack))
	assert.Zero(t, vkCullMode(gpu.CullNone))

	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		vkStages(gpu.StageVertex|gpu.StageFragment))

	assert.Equal(t, vk.ImageUsageFlags(vk.ImageUsageStorageBit|vk.ImageUsageTransferSrcBit),
		vkImageUsage(gpu.ImageUsageStorage|gpu.ImageUsageTransferSrc))

	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), vkBufferUsage(gpu.BufferUsageIndex))
	assert.Equal(t, vk.IndexTypeUint32, vkIndexType(gpu.IndexUint32))
	assert.Equal(t, vk.PipelineBindPointCompute, vkBindPoint(gpu.BindPointCompute))
	assert.Equal(t, vk.PrimitiveTopologyLineStrip, vkTopology(gpu.TopologyLineStrip))
	assert.Equal(t, vk.FrontFaceClockwise, vkFrontFace(gpu.Clockwise))
}

func TestVersionPacking(t *testing.T) {
	v := gpu.Version{Major: 1, Minor: 3, Patch: 250}
	assert.Equal(t, v, versionOf(makeVersion(v)))
	assert.Equal(t, gpu.Version{Major: 1}, versionOf(vk.MakeVersion(1, 0, 0)))
}

func TestResultMapping(t *testing.T) {
	assert.NoError(t, result("op", vk.Success))
	assert.ErrorIs(t, result("op", vk.ErrorOutOfDate), gpu.ErrOutOfDate)
	assert.ErrorIs(t, result("op", vk.Suboptimal), gpu.ErrSuboptimal)
	assert.ErrorIs(t, result("op", vk.Timeout), gpu.ErrTimeout)
	assert.ErrorIs(t, result("op", vk.ErrorOutOfDeviceMemory), gpu.ErrOutOfDeviceMemory)
	assert.ErrorIs(t, result("op", vk.ErrorOutOfPoolMemory), gpu.ErrPoolExhausted)
	assert.ErrorIs(t, result("op", vk.ErrorFragmentedPool), gpu.ErrPoolExhausted)
	assert.ErrorIs(t, result("op", vk.ErrorIncompatibleDriver), gpu.ErrUnsupportedVersion)

	err := result("creating widget", vk.ErrorDeviceLost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating widget")
	assert.NotErrorIs(t, err, gpu.ErrOutOfDate)
}
