// Package gpu describes the slice of the native graphics API that the
// renderer depends on. It holds driver-neutral value types, strongly typed
// object handles and the interfaces a backend implements; the real backend
// lives in gpu/vkng and an in-memory one for tests in gpu/gputest.
package gpu

import "github.com/cockroachdb/errors"

// ErrSwapchainOutOfDate is returned by AcquireNextImage and QueuePresent when
// the surface no longer matches the swapchain.
var ErrSwapchainOutOfDate = errors.New("swapchain out of date")

// Loader is the entry point into the API before an instance exists.
type Loader interface {
	InstanceExtensions() ([]string, error)
	InstanceLayers() ([]string, error)
	CreateInstance(info InstanceCreateInfo) (Instance, error)
}

type Instance interface {
	PhysicalDevices() ([]PhysicalDevice, error)
	DestroySurface(surface Surface)
	Destroy()
}

// PhysicalDevice is read-only: every method is a query except CreateDevice.
type PhysicalDevice interface {
	Properties() (DeviceProperties, error)
	Extensions() ([]string, error)
	Layers() ([]string, error)
	QueueFamilies() ([]QueueFamily, error)
	MemoryProperties() (MemoryProperties, error)

	SurfaceSupport(surface Surface, queueFamily int) (bool, error)
	SurfaceCapabilities(surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(surface Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(surface Surface) ([]PresentMode, error)

	CreateDevice(info DeviceCreateInfo) (Device, error)
}

// Device owns every object created through it. All methods must be called
// from a single goroutine.
type Device interface {
	GetQueue(family, index int) Queue
	WaitIdle() error
	Destroy()

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	// AcquireNextImage blocks until an image is available and arranges for
	// signal to be signaled once the presentation engine releases it.
	AcquireNextImage(swapchain Swapchain, signal Semaphore) (int, error)
	QueuePresent(queue Queue, info PresentInfo) error
	DestroySwapchain(swapchain Swapchain)

	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(renderPass RenderPass)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreatePipelineLayout(info PipelineLayoutCreateInfo) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(buffer Buffer)
	BufferMemoryRequirements(buffer Buffer) MemoryRequirements
	AllocateMemory(size int, memoryTypeIndex int) (DeviceMemory, error)
	FreeMemory(memory DeviceMemory)
	BindBufferMemory(buffer Buffer, memory DeviceMemory, offset int) error
	// MapMemory returns a host view of size bytes starting at offset. The
	// slice is only valid until UnmapMemory.
	MapMemory(memory DeviceMemory, offset, size int) ([]byte, error)
	UnmapMemory(memory DeviceMemory)

	CreateDescriptorPool(info DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []WriteDescriptorSet) error

	CreateCommandPool(info CommandPoolCreateInfo) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, buffers ...CommandBuffer)
	BeginCommandBuffer(buffer CommandBuffer, usage CommandBufferUsageFlags) error
	EndCommandBuffer(buffer CommandBuffer) error

	CmdBeginRenderPass(buffer CommandBuffer, info RenderPassBeginInfo) error
	CmdEndRenderPass(buffer CommandBuffer)
	CmdBindPipeline(buffer CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSets(buffer CommandBuffer, layout PipelineLayout, firstSet int, sets []DescriptorSet)
	CmdBindVertexBuffers(buffer CommandBuffer, firstBinding int, buffers []Buffer, offsets []int)
	CmdBindIndexBuffer(buffer CommandBuffer, indexBuffer Buffer, offset int, indexType IndexType)
	CmdDrawIndexed(buffer CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)
	CmdCopyBuffer(buffer CommandBuffer, src, dst Buffer, regions ...BufferCopy) error

	QueueSubmit(queue Queue, submits ...SubmitInfo) error
	QueueWaitIdle(queue Queue) error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
}
