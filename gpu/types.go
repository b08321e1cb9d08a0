package gpu

import (
	"fmt"
)

// Handle is an opaque identifier for a hardware object. Zero is never a
// valid handle.
type Handle uint64

// NullHandle is returned whenever an object could not be created.
const NullHandle Handle = 0

type (
	Instance         Handle
	Surface          Handle
	Queue            Handle
	Swapchain        Handle
	Image            Handle
	ImageView        Handle
	Fence            Handle
	Semaphore        Handle
	CommandPool      Handle
	CommandBuffer    Handle
	Buffer           Handle
	MemoryAllocator  Handle
	DescriptorPool   Handle
	DescriptorLayout Handle
	DescriptorSet    Handle
	PipelineLayout   Handle
	Pipeline         Handle
	ShaderModule     Handle
)

// Version is used to specify versions of components
type Version struct {
	Major int
	Minor int
	Patch int
}

// AtLeast reports whether v is the same as or newer than o.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	return v.Patch >= o.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Format is the pixel format of an image.
type Format int16

const (
	FormatUndefined Format = iota
	FormatR8
	FormatR16
	FormatR32

	FormatR16F
	FormatR32F

	FormatRG8
	FormatRG16
	FormatRG32

	FormatRG16F
	FormatRG32F

	FormatRGB8
	FormatRGB16
	FormatRGB32

	FormatRGB16F
	FormatRGB32F

	FormatRGBA8
	FormatRGBA16
	FormatRGBA32

	FormatRGBA16F
	FormatRGBA32F

	// FormatBGRA8 is the usual presentation format of a swapchain.
	FormatBGRA8
)

var formatNames = [...]string{
	"Undefined", "R8", "R16", "R32", "R16F", "R32F", "RG8", "RG16", "RG32",
	"RG16F", "RG32F", "RGB8", "RGB16", "RGB32", "RGB16F", "RGB32F", "RGBA8",
	"RGBA16", "RGBA32", "RGBA16F", "RGBA32F", "BGRA8",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// DescriptorType is the kind of resource a descriptor binding refers to.
type DescriptorType int16

const (
	// DescriptorUniformBuffer is a read-only constant buffer.
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorStorageImage
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "UniformBuffer"
	case DescriptorStorageBuffer:
		return "StorageBuffer"
	case DescriptorStorageImage:
		return "StorageImage"
	}
	return fmt.Sprintf("DescriptorType(%d)", int(t))
}

// IsBuffer reports whether the descriptor refers to a buffer.
func (t DescriptorType) IsBuffer() bool {
	return t == DescriptorUniformBuffer || t == DescriptorStorageBuffer
}

// ShaderStage is a set of shader stages.
type ShaderStage uint8

const (
	StageVertex   ShaderStage = 0x01
	StageFragment ShaderStage = 0x02
	StageCompute  ShaderStage = 0x04
)

// PipelineBindPoint selects the pipeline a bind affects.
type PipelineBindPoint int16

const (
	BindPointGraphics PipelineBindPoint = iota
	BindPointCompute
)

// Valid reports whether b is one of the defined bind points.
func (b PipelineBindPoint) Valid() bool {
	return b == BindPointGraphics || b == BindPointCompute
}

func (b PipelineBindPoint) String() string {
	if b == BindPointCompute {
		return "Compute"
	}
	return "Graphics"
}

type Topology int

const (
	TopologyPoints Topology = iota
	TopologyLines
	TopologyLineStrip
	TopologyTriangles
)

func (t Topology) String() string {
	switch t {
	case TopologyPoints:
		return "Points"
	case TopologyLines:
		return "Lines"
	case TopologyLineStrip:
		return "LineStrip"
	case TopologyTriangles:
		return "Triangles"
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

type PolygonMode int

const (
	PolygonFill PolygonMode = iota
	PolygonLine
	PolygonPoint
)

type CullMode uint8

const (
	CullNone         CullMode = 0x00
	CullFront        CullMode = 0x01
	CullBack         CullMode = 0x02
	CullFrontAndBack          = CullFront | CullBack
)

type Winding int

const (
	CounterClockwise Winding = iota
	Clockwise
)

// ImageLayout is the access layout an image is currently in.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutTransferSrc:
		return "TransferSrc"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutPresentSrc:
		return "PresentSrc"
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

type ImageUsage uint8

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageStorage
	ImageUsageColorAttachment
)

type BufferUsage uint8

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageIndex
)

type IndexType int

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

// ColorFloat is a linear RGBA color.
type ColorFloat struct {
	R, G, B, A float32
}

type Viewport struct {
	X, Y          uint32
	Width, Height uint32
}

type ScissorRectangle struct {
	X, Y          int32
	Width, Height uint32
}
