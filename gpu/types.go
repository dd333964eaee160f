package gpu

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// The enumerations below carry the same numeric values as the native API so
// that backends can convert them with a plain cast.

type Format int32

const (
	FormatUndefined            Format = 0
	FormatR8G8B8A8UnsignedNorm Format = 37
	FormatB8G8R8A8UnsignedNorm Format = 44
	FormatB8G8R8A8SRGB         Format = 50
	FormatR16G16B16A16Float    Format = 97
	FormatR32G32SignedFloat    Format = 103
	FormatR32G32B32SignedFloat Format = 106
)

var formatNames = map[Format]string{
	FormatUndefined:            "Undefined",
	FormatR8G8B8A8UnsignedNorm: "R8G8B8A8Unorm",
	FormatB8G8R8A8UnsignedNorm: "B8G8R8A8Unorm",
	FormatB8G8R8A8SRGB:         "B8G8R8A8SRGB",
	FormatR16G16B16A16Float:    "R16G16B16A16Float",
	FormatR32G32SignedFloat:    "R32G32Float",
	FormatR32G32B32SignedFloat: "R32G32B32Float",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

type ColorSpace int32

const (
	ColorSpaceSRGBNonlinear      ColorSpace = 0
	ColorSpaceExtendedSRGBLinear ColorSpace = 1000104002
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceSRGBNonlinear:
		return "SRGBNonlinear"
	case ColorSpaceExtendedSRGBLinear:
		return "ExtendedSRGBLinear"
	}
	return fmt.Sprintf("ColorSpace(%d)", int32(c))
}

type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFORelaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(p))
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

func (f SurfaceFormat) String() string {
	return f.Format.String() + "/" + f.ColorSpace.String()
}

// ExtentUndefined is the width a surface reports as its current extent when
// the swapchain is free to choose its own size.
const ExtentUndefined = -1

type Extent2D struct {
	Width  int
	Height int
}

func (e Extent2D) Defined() bool {
	return e.Width != ExtentUndefined
}

func (e Extent2D) String() string {
	if !e.Defined() {
		return "undefined"
	}
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Offset2D struct {
	X, Y int
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type SurfaceCapabilities struct {
	MinImageCount int
	// MaxImageCount of zero means the surface does not bound the image count.
	MaxImageCount    int
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform uint32
}

type flagName[T ~uint32] struct {
	bit  T
	name string
}

func flagString[T ~uint32](value T, names []flagName[T]) string {
	if value == 0 {
		return "None"
	}
	var parts []string
	rest := value
	for _, n := range names {
		if value&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

func (f QueueFlags) String() string {
	return flagString(f, []flagName[QueueFlags]{
		{QueueGraphics, "Graphics"},
		{QueueCompute, "Compute"},
		{QueueTransfer, "Transfer"},
	})
}

type QueueFamily struct {
	Flags      QueueFlags
	QueueCount int
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x1
	BufferUsageTransferDst   BufferUsageFlags = 0x2
	BufferUsageUniformBuffer BufferUsageFlags = 0x10
	BufferUsageStorageBuffer BufferUsageFlags = 0x20
	BufferUsageIndexBuffer   BufferUsageFlags = 0x40
	BufferUsageVertexBuffer  BufferUsageFlags = 0x80
)

func (f BufferUsageFlags) String() string {
	return flagString(f, []flagName[BufferUsageFlags]{
		{BufferUsageTransferSrc, "TransferSrc"},
		{BufferUsageTransferDst, "TransferDst"},
		{BufferUsageUniformBuffer, "UniformBuffer"},
		{BufferUsageStorageBuffer, "StorageBuffer"},
		{BufferUsageIndexBuffer, "IndexBuffer"},
		{BufferUsageVertexBuffer, "VertexBuffer"},
	})
}

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal     MemoryPropertyFlags = 0x1
	MemoryPropertyHostVisible     MemoryPropertyFlags = 0x2
	MemoryPropertyHostCoherent    MemoryPropertyFlags = 0x4
	MemoryPropertyHostCached      MemoryPropertyFlags = 0x8
	MemoryPropertyLazilyAllocated MemoryPropertyFlags = 0x10
)

func (f MemoryPropertyFlags) String() string {
	return flagString(f, []flagName[MemoryPropertyFlags]{
		{MemoryPropertyDeviceLocal, "DeviceLocal"},
		{MemoryPropertyHostVisible, "HostVisible"},
		{MemoryPropertyHostCoherent, "HostCoherent"},
		{MemoryPropertyHostCached, "HostCached"},
		{MemoryPropertyLazilyAllocated, "LazilyAllocated"},
	})
}

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type MemoryHeap struct {
	Size        int
	DeviceLocal bool
}

type MemoryProperties struct {
	MemoryTypes []MemoryType
	MemoryHeaps []MemoryHeap
}

type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}

type DeviceType int32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "IntegratedGPU"
	case DeviceTypeDiscreteGPU:
		return "DiscreteGPU"
	case DeviceTypeVirtualGPU:
		return "VirtualGPU"
	case DeviceTypeCPU:
		return "CPU"
	}
	return "Other"
}

type DeviceProperties struct {
	Name              string
	Type              DeviceType
	VendorID          uint32
	DeviceID          uint32
	PipelineCacheUUID uuid.UUID
}

type SharingMode int32

const (
	SharingModeExclusive  SharingMode = 0
	SharingModeConcurrent SharingMode = 1
)

func (m SharingMode) String() string {
	if m == SharingModeConcurrent {
		return "Concurrent"
	}
	return "Exclusive"
}

type ImageLayout int32

const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutColorAttachmentOptimal ImageLayout = 2
	ImageLayoutPresentSrc             ImageLayout = 1000001002
)

type ShaderStageFlags uint32

const (
	StageVertex   ShaderStageFlags = 0x1
	StageFragment ShaderStageFlags = 0x10
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe             PipelineStageFlags = 0x1
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x400
	PipelineStageTransfer              PipelineStageFlags = 0x1000
	PipelineStageBottomOfPipe          PipelineStageFlags = 0x2000
)

type AccessFlags uint32

const (
	AccessColorAttachmentRead  AccessFlags = 0x80
	AccessColorAttachmentWrite AccessFlags = 0x100
	AccessTransferRead         AccessFlags = 0x800
	AccessTransferWrite        AccessFlags = 0x1000
	AccessMemoryRead           AccessFlags = 0x8000
)

type CommandBufferUsageFlags uint32

const (
	CommandBufferUsageOneTimeSubmit   CommandBufferUsageFlags = 0x1
	CommandBufferUsageSimultaneousUse CommandBufferUsageFlags = 0x4
)

type AttachmentLoadOp int32

const (
	AttachmentLoadOpLoad     AttachmentLoadOp = 0
	AttachmentLoadOpClear    AttachmentLoadOp = 1
	AttachmentLoadOpDontCare AttachmentLoadOp = 2
)

type AttachmentStoreOp int32

const (
	AttachmentStoreOpStore    AttachmentStoreOp = 0
	AttachmentStoreOpDontCare AttachmentStoreOp = 1
)

type PolygonMode int32

const PolygonModeFill PolygonMode = 0

type CullModeFlags uint32

const (
	CullModeNone CullModeFlags = 0
	CullModeBack CullModeFlags = 0x2
)

type FrontFace int32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type PrimitiveTopology int32

const PrimitiveTopologyTriangleList PrimitiveTopology = 3

type IndexType int32

const (
	IndexTypeUInt16 IndexType = 0
	IndexTypeUInt32 IndexType = 1
)

type DescriptorType int32

const DescriptorTypeUniformBuffer DescriptorType = 6

type VertexInputRate int32

const VertexInputRateVertex VertexInputRate = 0

// SubpassExternal refers to operations outside the render pass in a
// subpass dependency.
const SubpassExternal = -1
