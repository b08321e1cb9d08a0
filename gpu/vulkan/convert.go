package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

var formats = [...]vk.Format{
	gpu.FormatUndefined: vk.FormatUndefined,
	gpu.FormatR8:        vk.FormatR8Unorm,
	gpu.FormatR16:       vk.FormatR16Unorm,
	gpu.FormatR32:       vk.FormatR32Uint,
	gpu.FormatR16F:      vk.FormatR16Sfloat,
	gpu.FormatR32F:      vk.FormatR32Sfloat,
	gpu.FormatRG8:       vk.FormatR8g8Unorm,
	gpu.FormatRG16:      vk.FormatR16g16Unorm,
	gpu.FormatRG32:      vk.FormatR32g32Uint,
	gpu.FormatRG16F:     vk.FormatR16g16Sfloat,
	gpu.FormatRG32F:     vk.FormatR32g32Sfloat,
	gpu.FormatRGB8:      vk.FormatR8g8b8Unorm,
	gpu.FormatRGB16:     vk.FormatR16g16b16Unorm,
	gpu.FormatRGB32:     vk.FormatR32g32b32Uint,
	gpu.FormatRGB16F:    vk.FormatR16g16b16Sfloat,
	gpu.FormatRGB32F:    vk.FormatR32g32b32Sfloat,
	gpu.FormatRGBA8:     vk.FormatR8g8b8a8Unorm,
	gpu.FormatRGBA16:    vk.FormatR16g16b16a16Unorm,
	gpu.FormatRGBA32:    vk.FormatR32g32b32a32Uint,
	gpu.FormatRGBA16F:   vk.FormatR16g16b16a16Sfloat,
	gpu.FormatRGBA32F:   vk.FormatR32g32b32a32Sfloat,
	gpu.FormatBGRA8:     vk.FormatB8g8r8a8Unorm,
}

// vkFormat returns the native format of f. Undefined has no image format.
func vkFormat(f gpu.Format) (vk.Format, error) {
	if f <= gpu.FormatUndefined || int(f) >= len(formats) {
		return vk.FormatUndefined, fmt.Errorf("%w: %s", gpu.ErrUnsupportedFormat, f)
	}
	return formats[f], nil
}

// gpuFormat is the inverse of vkFormat. Formats without a counterpart map to
// FormatUndefined.
func gpuFormat(f vk.Format) gpu.Format {
	for i, v := range formats {
		if v == f {
			return gpu.Format(i)
		}
	}
	return gpu.FormatUndefined
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

var colorLayers = vk.ImageSubresourceLayers{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LayerCount: 1,
}

func vkLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// layoutAccess returns the accesses and stages that touch an image while it
// is in layout l. A barrier leaving l waits on them, one entering l makes its
// writes visible to them.
func layoutAccess(l gpu.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case gpu.LayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit |
				vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
				vk.AccessTransferReadBit | vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	case gpu.LayoutTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.LayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	// Undefined images come straight from acquire, whose semaphore is
	// waited on at color attachment output; the barrier has to chain to it.
	return 0, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
}

func vkTopology(t gpu.Topology) vk.PrimitiveTopology {
	switch t {
	case gpu.TopologyPoints:
		return vk.PrimitiveTopologyPointList
	case gpu.TopologyLines:
		return vk.PrimitiveTopologyLineList
	case gpu.TopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func vkPolygonMode(m gpu.PolygonMode) vk.PolygonMode {
	switch m {
	case gpu.PolygonLine:
		return vk.PolygonModeLine
	case gpu.PolygonPoint:
		return vk.PolygonModePoint
	}
	return vk.PolygonModeFill
}

func vkCullMode(c gpu.CullMode) vk.CullModeFlags {
	var f vk.CullModeFlagBits
	if c&gpu.CullFront != 0 {
		f |= vk.CullModeFrontBit
	}
	if c&gpu.CullBack != 0 {
		f |= vk.CullModeBackBit
	}
	return vk.CullModeFlags(f)
}

func vkFrontFace(w gpu.Winding) vk.FrontFace {
	if w == gpu.Clockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func vkDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorStorageImage:
		return vk.DescriptorTypeStorageImage
	}
	return vk.DescriptorTypeUniformBuffer
}

func vkStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var f vk.ShaderStageFlagBits
	if s&gpu.StageVertex != 0 {
		f |= vk.ShaderStageVertexBit
	}
	if s&gpu.StageFragment != 0 {
		f |= vk.ShaderStageFragmentBit
	}
	if s&gpu.StageCompute != 0 {
		f |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(f)
}

func vkImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var f vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferSrc != 0 {
		f |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		f |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageStorage != 0 {
		f |= vk.ImageUsageStorageBit
	}
	if u&gpu.ImageUsageColorAttachment != 0 {
		f |= vk.ImageUsageColorAttachmentBit
	}
	return vk.ImageUsageFlags(f)
}

func vkBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	if u&gpu.BufferUsageUniform != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	return vk.BufferUsageFlags(f)
}

func vkIndexType(t gpu.IndexType) vk.IndexType {
	if t == gpu.IndexUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

func vkBindPoint(bp gpu.PipelineBindPoint) vk.PipelineBindPoint {
	if bp == gpu.BindPointCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

// versionOf unpacks a version packed by vk.MakeVersion.
func versionOf(v uint32) gpu.Version {
	return gpu.Version{Major: int(v >> 22), Minor: int(v>>12) & 0x3ff, Patch: int(v & 0xfff)}
}

func makeVersion(v gpu.Version) uint32 {
	return vk.MakeVersion(v.Major, v.Minor, v.Patch)
}

// result converts a native result into an error, mapping the results the
// render system reacts to onto the gpu sentinels.
func result(op string, r vk.Result) error {
	switch r {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	case vk.Timeout, vk.NotReady:
		return fmt.Errorf("%s: %w", op, gpu.ErrTimeout)
	case vk.ErrorOutOfDeviceMemory:
		return fmt.Errorf("%s: %w", op, gpu.ErrOutOfDeviceMemory)
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return gpu.ErrPoolExhausted
	case vk.ErrorIncompatibleDriver:
		return fmt.Errorf("%s: %w", op, gpu.ErrUnsupportedVersion)
	}
	return fmt.Errorf("%s: %w", op, vk.Error(r))
}
