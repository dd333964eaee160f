package vkng

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
)

type Device struct {
	driver       core1_0.CoreDeviceDriver
	swapchainExt khr_swapchain.ExtensionDriver
	instance     *Instance

	queues          *registry[core1_0.Queue]
	swapchains      *registry[khr_swapchain.Swapchain]
	images          *registry[core1_0.Image]
	views           *registry[core1_0.ImageView]
	renderPasses    *registry[core1_0.RenderPass]
	framebuffers    *registry[core1_0.Framebuffer]
	shaderModules   *registry[core1_0.ShaderModule]
	setLayouts      *registry[core1_0.DescriptorSetLayout]
	pipelineLayouts *registry[core1_0.PipelineLayout]
	pipelines       *registry[core1_0.Pipeline]
	buffers         *registry[core1_0.Buffer]
	memories        *registry[core1_0.DeviceMemory]
	descriptorPools *registry[core1_0.DescriptorPool]
	descriptorSets  *registry[core1_0.DescriptorSet]
	commandPools    *registry[core1_0.CommandPool]
	commandBuffers  *registry[core1_0.CommandBuffer]
	semaphores      *registry[core1_0.Semaphore]

	swapchainImages map[gpu.Swapchain][]gpu.Image
	poolSets        map[gpu.DescriptorPool][]gpu.DescriptorSet
	poolBuffers     map[gpu.CommandPool][]gpu.CommandBuffer
}

var _ gpu.Device = (*Device)(nil)

func newDevice(driver core1_0.CoreDeviceDriver, swapchainExt khr_swapchain.ExtensionDriver, instance *Instance) *Device {
	return &Device{
		driver:       driver,
		swapchainExt: swapchainExt,
		instance:     instance,

		queues:          newRegistry[core1_0.Queue]("queue"),
		swapchains:      newRegistry[khr_swapchain.Swapchain]("swapchain"),
		images:          newRegistry[core1_0.Image]("image"),
		views:           newRegistry[core1_0.ImageView]("image view"),
		renderPasses:    newRegistry[core1_0.RenderPass]("render pass"),
		framebuffers:    newRegistry[core1_0.Framebuffer]("framebuffer"),
		shaderModules:   newRegistry[core1_0.ShaderModule]("shader module"),
		setLayouts:      newRegistry[core1_0.DescriptorSetLayout]("descriptor set layout"),
		pipelineLayouts: newRegistry[core1_0.PipelineLayout]("pipeline layout"),
		pipelines:       newRegistry[core1_0.Pipeline]("pipeline"),
		buffers:         newRegistry[core1_0.Buffer]("buffer"),
		memories:        newRegistry[core1_0.DeviceMemory]("device memory"),
		descriptorPools: newRegistry[core1_0.DescriptorPool]("descriptor pool"),
		descriptorSets:  newRegistry[core1_0.DescriptorSet]("descriptor set"),
		commandPools:    newRegistry[core1_0.CommandPool]("command pool"),
		commandBuffers:  newRegistry[core1_0.CommandBuffer]("command buffer"),
		semaphores:      newRegistry[core1_0.Semaphore]("semaphore"),

		swapchainImages: map[gpu.Swapchain][]gpu.Image{},
		poolSets:        map[gpu.DescriptorPool][]gpu.DescriptorSet{},
		poolBuffers:     map[gpu.CommandPool][]gpu.CommandBuffer{},
	}
}

func (d *Device) GetQueue(family, index int) gpu.Queue {
	return gpu.Queue(d.queues.add(d.driver.GetQueue(family, index)))
}

func (d *Device) WaitIdle() error {
	_, err := d.driver.DeviceWaitIdle()
	return errors.Wrap(err, "device wait idle")
}

func (d *Device) Destroy() {
	d.driver.DestroyDevice(nil)
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	surface, err := d.instance.surface(info.Surface)
	if err != nil {
		return 0, err
	}
	swapchain, _, err := d.swapchainExt.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface:            surface,
		MinImageCount:      info.MinImageCount,
		ImageFormat:        core1_0.Format(info.ImageFormat),
		ImageColorSpace:    khr_surface.ColorSpace(info.ImageColorSpace),
		ImageExtent:        extentToCore(info.ImageExtent),
		ImageArrayLayers:   1,
		ImageUsage:         core1_0.ImageUsageColorAttachment,
		ImageSharingMode:   core1_0.SharingMode(info.ImageSharingMode),
		QueueFamilyIndices: info.QueueFamilyIndices,
		PreTransform:       khr_surface.SurfaceTransformFlags(info.PreTransform),
		CompositeAlpha:     khr_surface.CompositeAlphaOpaque,
		PresentMode:        khr_surface.PresentMode(info.PresentMode),
		Clipped:            info.Clipped,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create swapchain")
	}
	return gpu.Swapchain(d.swapchains.add(swapchain)), nil
}

func (d *Device) SwapchainImages(h gpu.Swapchain) ([]gpu.Image, error) {
	if images, ok := d.swapchainImages[h]; ok {
		return append([]gpu.Image(nil), images...), nil
	}
	swapchain, err := d.swapchains.get(uint64(h))
	if err != nil {
		return nil, err
	}
	native, _, err := d.swapchainExt.GetSwapchainImages(swapchain)
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}
	images := make([]gpu.Image, 0, len(native))
	for _, image := range native {
		images = append(images, gpu.Image(d.images.add(image)))
	}
	d.swapchainImages[h] = images
	return append([]gpu.Image(nil), images...), nil
}

// AcquireNextImage blocks until an image is available. Suboptimal counts as
// success; out of date is reported as gpu.ErrSwapchainOutOfDate.
func (d *Device) AcquireNextImage(h gpu.Swapchain, signal gpu.Semaphore) (int, error) {
	swapchain, err := d.swapchains.get(uint64(h))
	if err != nil {
		return 0, err
	}
	semaphore, err := d.semaphores.get(uint64(signal))
	if err != nil {
		return 0, err
	}
	index, res, err := d.swapchainExt.AcquireNextImage(swapchain, common.NoTimeout, &semaphore, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, errors.WithStack(gpu.ErrSwapchainOutOfDate)
	}
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return index, nil
}

func (d *Device) QueuePresent(h gpu.Queue, info gpu.PresentInfo) error {
	queue, err := d.queues.get(uint64(h))
	if err != nil {
		return err
	}
	present := khr_swapchain.PresentInfo{ImageIndices: info.ImageIndices}
	for _, s := range info.WaitSemaphores {
		semaphore, err := d.semaphores.get(uint64(s))
		if err != nil {
			return err
		}
		present.WaitSemaphores = append(present.WaitSemaphores, semaphore)
	}
	for _, s := range info.Swapchains {
		swapchain, err := d.swapchains.get(uint64(s))
		if err != nil {
			return err
		}
		present.Swapchains = append(present.Swapchains, swapchain)
	}

	res, err := d.swapchainExt.QueuePresent(queue, present)
	if res == khr_swapchain.VKErrorOutOfDate {
		return errors.WithStack(gpu.ErrSwapchainOutOfDate)
	}
	return errors.WithStack(err)
}

func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	for _, image := range d.swapchainImages[h] {
		d.images.take(uint64(image))
	}
	delete(d.swapchainImages, h)
	if swapchain, ok := d.swapchains.take(uint64(h)); ok {
		d.swapchainExt.DestroySwapchain(swapchain, nil)
	}
}

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	image, err := d.images.get(uint64(info.Image))
	if err != nil {
		return 0, err
	}
	view, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(info.Format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create image view")
	}
	return gpu.ImageView(d.views.add(view)), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	if view, ok := d.views.take(uint64(h)); ok {
		d.driver.DestroyImageView(view, nil)
	}
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	renderPass, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments:         attachmentsToCore(info.Attachments),
		Subpasses:           subpassesToCore(info.Subpasses),
		SubpassDependencies: dependenciesToCore(info.Dependencies),
	})
	if err != nil {
		return 0, errors.Wrap(err, "create render pass")
	}
	return gpu.RenderPass(d.renderPasses.add(renderPass)), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	if renderPass, ok := d.renderPasses.take(uint64(h)); ok {
		d.driver.DestroyRenderPass(renderPass, nil)
	}
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	renderPass, err := d.renderPasses.get(uint64(info.RenderPass))
	if err != nil {
		return 0, err
	}
	var attachments []core1_0.ImageView
	for _, a := range info.Attachments {
		view, err := d.views.get(uint64(a))
		if err != nil {
			return 0, err
		}
		attachments = append(attachments, view)
	}
	framebuffer, _, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  renderPass,
		Attachments: attachments,
		Width:       info.Width,
		Height:      info.Height,
		Layers:      1,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create framebuffer")
	}
	return gpu.Framebuffer(d.framebuffers.add(framebuffer)), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	if framebuffer, ok := d.framebuffers.take(uint64(h)); ok {
		d.driver.DestroyFramebuffer(framebuffer, nil)
	}
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	module, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create shader module")
	}
	return gpu.ShaderModule(d.shaderModules.add(module)), nil
}

func (d *Device) DestroyShaderModule(h gpu.ShaderModule) {
	if module, ok := d.shaderModules.take(uint64(h)); ok {
		d.driver.DestroyShaderModule(module, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	var native []core1_0.DescriptorSetLayoutBinding
	for _, b := range bindings {
		native = append(native, core1_0.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  core1_0.DescriptorType(b.DescriptorType),
			DescriptorCount: b.DescriptorCount,
			StageFlags:      core1_0.ShaderStageFlags(b.StageFlags),
		})
	}
	layout, _, err := d.driver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: native,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create descriptor set layout")
	}
	return gpu.DescriptorSetLayout(d.setLayouts.add(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	if layout, ok := d.setLayouts.take(uint64(h)); ok {
		d.driver.DestroyDescriptorSetLayout(layout, nil)
	}
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutCreateInfo) (gpu.PipelineLayout, error) {
	var setLayouts []core1_0.DescriptorSetLayout
	for _, h := range info.SetLayouts {
		layout, err := d.setLayouts.get(uint64(h))
		if err != nil {
			return 0, err
		}
		setLayouts = append(setLayouts, layout)
	}
	layout, _, err := d.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: setLayouts,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create pipeline layout")
	}
	return gpu.PipelineLayout(d.pipelineLayouts.add(layout)), nil
}

func (d *Device) DestroyPipelineLayout(h gpu.PipelineLayout) {
	if layout, ok := d.pipelineLayouts.take(uint64(h)); ok {
		d.driver.DestroyPipelineLayout(layout, nil)
	}
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	var stages []core1_0.PipelineShaderStageCreateInfo
	for _, s := range info.Stages {
		module, err := d.shaderModules.get(uint64(s.Module))
		if err != nil {
			return 0, err
		}
		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.ShaderStageFlags(s.Stage),
			Module: module,
			Name:   s.Name,
		})
	}
	layout, err := d.pipelineLayouts.get(uint64(info.Layout))
	if err != nil {
		return 0, err
	}
	renderPass, err := d.renderPasses.get(uint64(info.RenderPass))
	if err != nil {
		return 0, err
	}

	var blendAttachments []core1_0.PipelineColorBlendAttachmentState
	for _, a := range info.ColorBlend {
		blendAttachments = append(blendAttachments, core1_0.PipelineColorBlendAttachmentState{
			BlendEnabled:   a.BlendEnable,
			ColorWriteMask: core1_0.ColorComponentFlags(a.ColorWriteMask),
		})
	}

	pipelines, _, err := d.driver.CreateGraphicsPipelines(nil, nil, core1_0.GraphicsPipelineCreateInfo{
		Stages:           stages,
		VertexInputState: vertexInputToCore(info.VertexBindings, info.VertexAttributes),
		InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology:               core1_0.PrimitiveTopology(info.Topology),
			PrimitiveRestartEnable: false,
		},
		ViewportState:      viewportStateToCore(info.Viewports, info.Scissors),
		RasterizationState: rasterizationToCore(info.Rasterization),
		MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
			SampleShadingEnable:  false,
			RasterizationSamples: core1_0.SampleCountFlags(info.SampleCount),
			MinSampleShading:     1.0,
		},
		ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOpEnabled: false,
			LogicOp:        core1_0.LogicOpCopy,
			BlendConstants: [4]float32{0, 0, 0, 0},
			Attachments:    blendAttachments,
		},
		Layout:            layout,
		RenderPass:        renderPass,
		Subpass:           info.Subpass,
		BasePipelineIndex: info.BasePipelineIndex,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create graphics pipeline")
	}
	return gpu.Pipeline(d.pipelines.add(pipelines[0])), nil
}

func (d *Device) DestroyPipeline(h gpu.Pipeline) {
	if pipeline, ok := d.pipelines.take(uint64(h)); ok {
		d.driver.DestroyPipeline(pipeline, nil)
	}
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	buffer, _, err := d.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        info.Size,
		Usage:       core1_0.BufferUsageFlags(info.Usage),
		SharingMode: core1_0.SharingMode(info.SharingMode),
	})
	if err != nil {
		return 0, errors.Wrap(err, "create buffer")
	}
	return gpu.Buffer(d.buffers.add(buffer)), nil
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	if buffer, ok := d.buffers.take(uint64(h)); ok {
		d.driver.DestroyBuffer(buffer, nil)
	}
}

func (d *Device) BufferMemoryRequirements(h gpu.Buffer) gpu.MemoryRequirements {
	reqs := d.driver.GetBufferMemoryRequirements(d.buffers.lookup(uint64(h)))
	return gpu.MemoryRequirements{
		Size:           int(reqs.Size),
		Alignment:      int(reqs.Alignment),
		MemoryTypeBits: uint32(reqs.MemoryTypeBits),
	}
}

func (d *Device) AllocateMemory(size int, memoryTypeIndex int) (gpu.DeviceMemory, error) {
	memory, _, err := d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "allocate %d bytes from memory type %d", size, memoryTypeIndex)
	}
	return gpu.DeviceMemory(d.memories.add(memory)), nil
}

func (d *Device) FreeMemory(h gpu.DeviceMemory) {
	if memory, ok := d.memories.take(uint64(h)); ok {
		d.driver.FreeMemory(memory, nil)
	}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset int) error {
	buffer, err := d.buffers.get(uint64(b))
	if err != nil {
		return err
	}
	memory, err := d.memories.get(uint64(m))
	if err != nil {
		return err
	}
	_, err = d.driver.BindBufferMemory(buffer, memory, offset)
	return errors.Wrap(err, "bind buffer memory")
}

// MapMemory returns a slice over the mapped range. It is only valid until
// UnmapMemory.
func (d *Device) MapMemory(m gpu.DeviceMemory, offset, size int) ([]byte, error) {
	memory, err := d.memories.get(uint64(m))
	if err != nil {
		return nil, err
	}
	ptr, _, err := d.driver.MapMemory(memory, offset, size, 0)
	if err != nil {
		return nil, errors.Wrap(err, "map memory")
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	d.driver.UnmapMemory(d.memories.lookup(uint64(m)))
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	var sizes []core1_0.DescriptorPoolSize
	for _, s := range info.PoolSizes {
		sizes = append(sizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorType(s.Type),
			DescriptorCount: s.DescriptorCount,
		})
	}
	pool, _, err := d.driver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   info.MaxSets,
		PoolSizes: sizes,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create descriptor pool")
	}
	return gpu.DescriptorPool(d.descriptorPools.add(pool)), nil
}

// DestroyDescriptorPool also forgets the sets allocated from it, which the
// driver frees along with the pool.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	for _, set := range d.poolSets[h] {
		d.descriptorSets.take(uint64(set))
	}
	delete(d.poolSets, h)
	if pool, ok := d.descriptorPools.take(uint64(h)); ok {
		d.driver.DestroyDescriptorPool(pool, nil)
	}
}

func (d *Device) AllocateDescriptorSets(h gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	pool, err := d.descriptorPools.get(uint64(h))
	if err != nil {
		return nil, err
	}
	var setLayouts []core1_0.DescriptorSetLayout
	for _, l := range layouts {
		layout, err := d.setLayouts.get(uint64(l))
		if err != nil {
			return nil, err
		}
		setLayouts = append(setLayouts, layout)
	}
	native, _, err := d.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     setLayouts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}
	sets := make([]gpu.DescriptorSet, 0, len(native))
	for _, s := range native {
		sets = append(sets, gpu.DescriptorSet(d.descriptorSets.add(s)))
	}
	d.poolSets[h] = append(d.poolSets[h], sets...)
	return sets, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.WriteDescriptorSet) error {
	var native []core1_0.WriteDescriptorSet
	for _, w := range writes {
		set, err := d.descriptorSets.get(uint64(w.DstSet))
		if err != nil {
			return err
		}
		var infos []core1_0.DescriptorBufferInfo
		for _, b := range w.BufferInfo {
			buffer, err := d.buffers.get(uint64(b.Buffer))
			if err != nil {
				return err
			}
			infos = append(infos, core1_0.DescriptorBufferInfo{
				Buffer: buffer,
				Offset: b.Offset,
				Range:  b.Range,
			})
		}
		native = append(native, core1_0.WriteDescriptorSet{
			DstSet:          set,
			DstBinding:      w.DstBinding,
			DstArrayElement: w.DstArrayElement,
			DescriptorType:  core1_0.DescriptorType(w.DescriptorType),
			BufferInfo:      infos,
		})
	}
	return errors.Wrap(d.driver.UpdateDescriptorSets(native, nil), "update descriptor sets")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	semaphore, _, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return 0, errors.Wrap(err, "create semaphore")
	}
	return gpu.Semaphore(d.semaphores.add(semaphore)), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if semaphore, ok := d.semaphores.take(uint64(h)); ok {
		d.driver.DestroySemaphore(semaphore, nil)
	}
}
