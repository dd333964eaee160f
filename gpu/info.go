package gpu

type InstanceCreateInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
	Layers          []string
}

type DeviceQueueCreateInfo struct {
	QueueFamilyIndex int
	QueuePriorities  []float32
}

type DeviceCreateInfo struct {
	QueueCreateInfos []DeviceQueueCreateInfo
	Extensions       []string
	Layers           []string
}

type SwapchainCreateInfo struct {
	Surface            Surface
	MinImageCount      int
	ImageFormat        Format
	ImageColorSpace    ColorSpace
	ImageExtent        Extent2D
	ImageSharingMode   SharingMode
	QueueFamilyIndices []int
	PreTransform       uint32
	PresentMode        PresentMode
	Clipped            bool
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
}

type AttachmentDescription struct {
	Format         Format
	LoadOp         AttachmentLoadOp
	StoreOp        AttachmentStoreOp
	StencilLoadOp  AttachmentLoadOp
	StencilStoreOp AttachmentStoreOp
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

type AttachmentReference struct {
	Attachment int
	Layout     ImageLayout
}

type SubpassDescription struct {
	ColorAttachments []AttachmentReference
}

type SubpassDependency struct {
	SrcSubpass    int
	DstSubpass    int
	SrcStageMask  PipelineStageFlags
	DstStageMask  PipelineStageFlags
	SrcAccessMask AccessFlags
	DstAccessMask AccessFlags
}

type RenderPassCreateInfo struct {
	Attachments  []AttachmentDescription
	Subpasses    []SubpassDescription
	Dependencies []SubpassDependency
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       int
	Height      int
}

type DescriptorSetLayoutBinding struct {
	Binding         int
	DescriptorType  DescriptorType
	DescriptorCount int
	StageFlags      ShaderStageFlags
}

type PipelineLayoutCreateInfo struct {
	SetLayouts []DescriptorSetLayout
}

type PipelineShaderStage struct {
	Stage  ShaderStageFlags
	Module ShaderModule
	Name   string
}

type VertexInputBindingDescription struct {
	Binding   int
	Stride    int
	InputRate VertexInputRate
}

type VertexInputAttributeDescription struct {
	Binding  int
	Location int
	Format   Format
	Offset   int
}

type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

type RasterizationState struct {
	DepthClampEnable        bool
	RasterizerDiscardEnable bool
	PolygonMode             PolygonMode
	CullMode                CullModeFlags
	FrontFace               FrontFace
	DepthBiasEnable         bool
	LineWidth               float32
}

type ColorBlendAttachmentState struct {
	BlendEnable    bool
	ColorWriteMask uint32
}

// ColorComponentAll enables writes to every channel of a color attachment.
const ColorComponentAll uint32 = 0xf

type GraphicsPipelineCreateInfo struct {
	Stages            []PipelineShaderStage
	VertexBindings    []VertexInputBindingDescription
	VertexAttributes  []VertexInputAttributeDescription
	Topology          PrimitiveTopology
	Viewports         []Viewport
	Scissors          []Rect2D
	Rasterization     RasterizationState
	SampleCount       int
	ColorBlend        []ColorBlendAttachmentState
	Layout            PipelineLayout
	RenderPass        RenderPass
	Subpass           int
	BasePipelineIndex int
}

type BufferCreateInfo struct {
	Size        int
	Usage       BufferUsageFlags
	SharingMode SharingMode
}

type DescriptorPoolSize struct {
	Type            DescriptorType
	DescriptorCount int
}

type DescriptorPoolCreateInfo struct {
	MaxSets   int
	PoolSizes []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset int
	Range  int
}

type WriteDescriptorSet struct {
	DstSet          DescriptorSet
	DstBinding      int
	DstArrayElement int
	DescriptorType  DescriptorType
	BufferInfo      []DescriptorBufferInfo
}

type CommandPoolCreateInfo struct {
	QueueFamilyIndex int
}

type ClearColor [4]float32

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	RenderArea  Rect2D
	ClearColors []ClearColor
}

type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitDstStageMask []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchains     []Swapchain
	ImageIndices   []int
}
