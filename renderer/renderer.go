// Package renderer brings a device up against a window surface and drives
// the per-frame acquire, submit and present loop.
//
// One frame is in flight at a time and there are no fences: the only host
// throttle is AcquireNextImage blocking once every swapchain image is queued.
package renderer

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/device"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/internal/logutil"
	"github.com/vkngwrapper/frameloop/mesh"
	"github.com/vkngwrapper/frameloop/pipeline"
	"github.com/vkngwrapper/frameloop/resource"
	"github.com/vkngwrapper/frameloop/swapchain"
)

// Window provides the surface the renderer presents to. Its size is fixed
// for the renderer's lifetime.
type Window interface {
	Size() (width, height int)
	RequiredExtensions() []string
	CreateSurface(instance gpu.Instance) (gpu.Surface, error)
}

// Shaders is SPIR-V bytecode for the vertex and fragment stages.
type Shaders struct {
	Vertex   []uint32
	Fragment []uint32
}

var DefaultClearColor = gpu.ClearColor{0.2, 0.2, 0.4, 1}

type Options struct {
	// Debug enables the validation layer and debug messenger.
	Debug bool
	// Mesh defaults to mesh.Quad.
	Mesh *mesh.Mesh
	// Uniforms binds a model/view/projection uniform buffer to the vertex
	// stage. The vertex shader must declare it.
	Uniforms bool
	// Animate rewrites the uniform buffer before every frame.
	Animate bool
	// ClearColor defaults to DefaultClearColor.
	ClearColor *gpu.ClearColor
	// Clock defaults to hrtime.Now.
	Clock           func() time.Duration
	Logger          logrus.FieldLogger
	ApplicationName string
}

// Renderer owns every object it creates, from the instance down to the
// semaphores, and destroys them in reverse order in Dispose.
type Renderer struct {
	opts  Options
	log   logrus.FieldLogger
	state State

	frames     int
	start      time.Duration
	clearColor gpu.ClearColor
	indexCount int

	instance gpu.Instance
	surface  gpu.Surface
	selected device.Selected
	logical  device.Logical
	dev      gpu.Device

	swapchain     *swapchain.Manager
	renderPass    gpu.RenderPass
	uniformLayout gpu.DescriptorSetLayout
	pipeline      *pipeline.Pipeline

	commandPool    gpu.CommandPool
	allocator      *resource.Allocator
	vertexBuffer   *resource.Buffer
	indexBuffer    *resource.Buffer
	uniformBuffer  *resource.Buffer
	descriptors    *resource.DescriptorSets
	commandBuffers []gpu.CommandBuffer

	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
}

// New runs the whole bring-up and records the command buffers. If any step
// fails, everything created so far is destroyed before the error returns.
func New(loader gpu.Loader, window Window, shaders Shaders, opts Options) (*Renderer, error) {
	r := &Renderer{
		opts:       opts,
		log:        logutil.OrDiscard(opts.Logger),
		clearColor: DefaultClearColor,
	}
	if opts.ClearColor != nil {
		r.clearColor = *opts.ClearColor
	}
	if r.opts.Clock == nil {
		r.opts.Clock = hrtime.Now
	}
	if r.opts.ApplicationName == "" {
		r.opts.ApplicationName = "frameloop"
	}
	m := mesh.Quad()
	if opts.Mesh != nil {
		m = *opts.Mesh
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if opts.Animate && !opts.Uniforms {
		return nil, errors.New("animation needs uniforms")
	}

	if err := r.init(loader, window, shaders, m); err != nil {
		if disposeErr := r.Dispose(); disposeErr != nil {
			r.log.WithError(disposeErr).Warn("cleanup after failed initialization")
		}
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(loader gpu.Loader, window Window, shaders Shaders, m mesh.Mesh) error {
	req := capability.Requirements(r.opts.Debug, window.RequiredExtensions())

	if err := r.createInstance(loader, req); err != nil {
		return err
	}

	var err error
	r.surface, err = window.CreateSurface(r.instance)
	if err != nil {
		return errors.Wrap(err, "create surface")
	}

	r.selected, err = device.Select(r.instance, r.surface, req, r.log)
	if err != nil {
		return err
	}
	r.logical, err = device.CreateLogicalDevice(r.selected.Physical, r.selected.QueueFamilies, req)
	if err != nil {
		return err
	}
	r.dev = r.logical.Device

	width, height := window.Size()
	r.swapchain, err = swapchain.New(r.dev, r.surface, r.selected.SwapchainSupport, r.selected.QueueFamilies, width, height)
	if err != nil {
		return err
	}

	if err := r.createPipeline(shaders); err != nil {
		return err
	}
	if err := r.swapchain.CreateFramebuffers(r.renderPass); err != nil {
		return err
	}

	if err := r.createBuffers(m); err != nil {
		return err
	}

	r.commandBuffers, err = r.dev.AllocateCommandBuffers(r.commandPool, r.swapchain.ImageCount())
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}

	r.imageAvailable, err = r.dev.CreateSemaphore()
	if err != nil {
		return errors.Wrap(err, "create image-available semaphore")
	}
	r.renderFinished, err = r.dev.CreateSemaphore()
	if err != nil {
		return errors.Wrap(err, "create render-finished semaphore")
	}

	r.state = StateRecording
	if err := r.RecordCommandBuffers(); err != nil {
		return err
	}

	r.start = r.opts.Clock()
	r.log.WithFields(logrus.Fields{
		"device":      r.selected.Properties.Name,
		"format":      r.swapchain.Format.String(),
		"presentMode": r.swapchain.PresentMode.String(),
		"extent":      r.swapchain.Extent.String(),
		"images":      r.swapchain.ImageCount(),
		"indices":     r.indexCount,
	}).Info("renderer ready")
	return nil
}

func (r *Renderer) createInstance(loader gpu.Loader, req capability.Required) error {
	available, err := loader.InstanceExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}
	extensions, err := capability.Match(capability.Extension, capability.Instance, req.InstanceExtensions, available)
	if err != nil {
		return err
	}

	available, err = loader.InstanceLayers()
	if err != nil {
		return errors.Wrap(err, "enumerate instance layers")
	}
	layers, err := capability.Match(capability.Layer, capability.Instance, req.InstanceLayers, available)
	if err != nil {
		return err
	}

	r.instance, err = loader.CreateInstance(gpu.InstanceCreateInfo{
		ApplicationName: r.opts.ApplicationName,
		EngineName:      "No Engine",
		Extensions:      extensions,
		Layers:          layers,
	})
	if err != nil {
		return errors.Wrap(err, "create instance")
	}
	return nil
}

func (r *Renderer) createPipeline(shaders Shaders) error {
	var err error
	r.renderPass, err = pipeline.CreateRenderPass(r.dev, r.swapchain.Format.Format)
	if err != nil {
		return err
	}

	// The projection flips Y, which turns clockwise triangles around.
	frontFace := gpu.FrontFaceClockwise
	var setLayouts []gpu.DescriptorSetLayout
	if r.opts.Uniforms {
		r.uniformLayout, err = pipeline.CreateUniformLayout(r.dev)
		if err != nil {
			return err
		}
		setLayouts = []gpu.DescriptorSetLayout{r.uniformLayout}
		frontFace = gpu.FrontFaceCounterClockwise
	}

	r.pipeline, err = pipeline.Build(r.dev, pipeline.Options{
		VertexShader:   shaders.Vertex,
		FragmentShader: shaders.Fragment,
		Extent:         r.swapchain.Extent,
		RenderPass:     r.renderPass,
		SetLayouts:     setLayouts,
		FrontFace:      frontFace,
		Logger:         r.log,
	})
	return err
}

func (r *Renderer) createBuffers(m mesh.Mesh) error {
	var err error
	r.commandPool, err = r.dev.CreateCommandPool(gpu.CommandPoolCreateInfo{
		QueueFamilyIndex: *r.selected.QueueFamilies.GraphicsFamily,
	})
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}

	memory, err := r.selected.Physical.MemoryProperties()
	if err != nil {
		return errors.Wrap(err, "query memory properties")
	}
	r.allocator = resource.NewAllocator(r.dev, memory, r.commandPool, r.logical.GraphicsQueue, r.log)

	vertices, err := m.VertexBytes()
	if err != nil {
		return err
	}
	r.vertexBuffer, err = r.allocator.UploadViaStaging(vertices, gpu.BufferUsageVertexBuffer)
	if err != nil {
		return errors.Wrap(err, "upload vertices")
	}

	indices, err := m.IndexBytes()
	if err != nil {
		return err
	}
	r.indexBuffer, err = r.allocator.UploadViaStaging(indices, gpu.BufferUsageIndexBuffer)
	if err != nil {
		return errors.Wrap(err, "upload indices")
	}
	r.indexCount = len(m.Indices)

	if !r.opts.Uniforms {
		return nil
	}

	r.uniformBuffer, err = r.allocator.CreateBuffer(uniformSize,
		gpu.BufferUsageUniformBuffer|gpu.BufferUsageTransferDst, gpu.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "create uniform buffer")
	}
	if err := r.updateUniformBuffer(0); err != nil {
		return err
	}

	r.descriptors, err = resource.NewUniformDescriptorSets(r.dev, r.uniformLayout, r.uniformBuffer, r.swapchain.ImageCount())
	return err
}

// updateUniformBuffer goes through a staging copy and a queue wait every
// time. A persistently mapped host-coherent buffer would avoid both if this
// ever shows up in a profile.
func (r *Renderer) updateUniformBuffer(elapsed time.Duration) error {
	data, err := NewUniformBufferObject(elapsed, r.swapchain.Extent).Bytes()
	if err != nil {
		return err
	}
	return errors.Wrap(r.allocator.Update(r.uniformBuffer, data), "update uniform buffer")
}

func (r *Renderer) State() State {
	return r.state
}

// Frames is the number of frames presented so far.
func (r *Renderer) Frames() int {
	return r.frames
}

func (r *Renderer) Extent() gpu.Extent2D {
	return r.swapchain.Extent
}

func (r *Renderer) ImageCount() int {
	return r.swapchain.ImageCount()
}

// Dispose waits for the device to go idle and destroys everything in the
// reverse order of creation. Later calls do nothing.
func (r *Renderer) Dispose() error {
	if r.state == StateIdle {
		return nil
	}

	var idleErr error
	if r.dev != nil {
		idleErr = errors.Wrap(r.dev.WaitIdle(), "wait for device idle")
		if idleErr != nil {
			r.log.WithError(idleErr).Error("destroying objects without an idle device")
		}

		if r.renderFinished.Initialized() {
			r.dev.DestroySemaphore(r.renderFinished)
		}
		if r.imageAvailable.Initialized() {
			r.dev.DestroySemaphore(r.imageAvailable)
		}
		if len(r.commandBuffers) > 0 {
			r.dev.FreeCommandBuffers(r.commandPool, r.commandBuffers...)
			r.commandBuffers = nil
		}
		r.descriptors.Destroy()
		r.uniformBuffer.Destroy()
		r.indexBuffer.Destroy()
		r.vertexBuffer.Destroy()
		if r.commandPool.Initialized() {
			r.dev.DestroyCommandPool(r.commandPool)
		}
		if r.swapchain != nil {
			r.swapchain.DestroyFramebuffers()
		}
		r.pipeline.Destroy()
		if r.uniformLayout.Initialized() {
			r.dev.DestroyDescriptorSetLayout(r.uniformLayout)
		}
		if r.renderPass.Initialized() {
			r.dev.DestroyRenderPass(r.renderPass)
		}
		r.swapchain.Destroy()

		r.dev.Destroy()
	}

	if r.instance != nil {
		if r.surface.Initialized() {
			r.instance.DestroySurface(r.surface)
		}
		r.instance.Destroy()
	}

	r.state = StateIdle
	r.log.WithField("frames", r.frames).Debug("renderer disposed")
	return idleErr
}
