package gpu

// Handle is the common representation of every native object. The zero
// value is the null handle.
type Handle uint64

type (
	Surface             Handle
	Swapchain           Handle
	Image               Handle
	ImageView           Handle
	RenderPass          Handle
	Framebuffer         Handle
	ShaderModule        Handle
	DescriptorSetLayout Handle
	PipelineLayout      Handle
	Pipeline            Handle
	CommandPool         Handle
	CommandBuffer       Handle
	Buffer              Handle
	DeviceMemory        Handle
	DescriptorPool      Handle
	DescriptorSet       Handle
	Semaphore           Handle
	Queue               Handle
)

func (h Surface) Initialized() bool             { return h != 0 }
func (h Swapchain) Initialized() bool           { return h != 0 }
func (h Image) Initialized() bool               { return h != 0 }
func (h ImageView) Initialized() bool           { return h != 0 }
func (h RenderPass) Initialized() bool          { return h != 0 }
func (h Framebuffer) Initialized() bool         { return h != 0 }
func (h ShaderModule) Initialized() bool        { return h != 0 }
func (h DescriptorSetLayout) Initialized() bool { return h != 0 }
func (h PipelineLayout) Initialized() bool      { return h != 0 }
func (h Pipeline) Initialized() bool            { return h != 0 }
func (h CommandPool) Initialized() bool         { return h != 0 }
func (h CommandBuffer) Initialized() bool       { return h != 0 }
func (h Buffer) Initialized() bool              { return h != 0 }
func (h DeviceMemory) Initialized() bool        { return h != 0 }
func (h DescriptorPool) Initialized() bool      { return h != 0 }
func (h DescriptorSet) Initialized() bool       { return h != 0 }
func (h Semaphore) Initialized() bool           { return h != 0 }
func (h Queue) Initialized() bool               { return h != 0 }
