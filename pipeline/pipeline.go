// Package pipeline builds the render pass and the immutable graphics
// pipeline the renderer draws with.
//
// Viewport and scissor are baked in from the swapchain extent, so a new
// extent needs a new pipeline.
package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/internal/logutil"
	"github.com/vkngwrapper/frameloop/mesh"
)

const entryPoint = "main"

// VertexBindings describes mesh.Vertex as a single per-vertex binding.
func VertexBindings() []gpu.VertexInputBindingDescription {
	return []gpu.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    mesh.VertexStride,
			InputRate: gpu.VertexInputRateVertex,
		},
	}
}

func VertexAttributes() []gpu.VertexInputAttributeDescription {
	return []gpu.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   gpu.FormatR32G32SignedFloat,
			Offset:   mesh.PositionOffset,
		},
		{
			Binding:  0,
			Location: 1,
			Format:   gpu.FormatR32G32B32SignedFloat,
			Offset:   mesh.ColorOffset,
		},
	}
}

type Options struct {
	VertexShader   []uint32
	FragmentShader []uint32
	Extent         gpu.Extent2D
	RenderPass     gpu.RenderPass
	// SetLayouts is empty when the shaders take no uniform data.
	SetLayouts []gpu.DescriptorSetLayout
	FrontFace  gpu.FrontFace
	Logger     logrus.FieldLogger
}

type Pipeline struct {
	Layout   gpu.PipelineLayout
	Pipeline gpu.Pipeline

	device gpu.Device
}

// Build creates the pipeline layout and graphics pipeline. The shader
// modules only live for the duration of the call.
func Build(dev gpu.Device, opts Options) (*Pipeline, error) {
	log := logutil.OrDiscard(opts.Logger)
	start := hrtime.Now()

	vertShader, err := dev.CreateShaderModule(opts.VertexShader)
	if err != nil {
		return nil, errors.Wrap(err, "create vertex shader module")
	}
	defer dev.DestroyShaderModule(vertShader)

	fragShader, err := dev.CreateShaderModule(opts.FragmentShader)
	if err != nil {
		return nil, errors.Wrap(err, "create fragment shader module")
	}
	defer dev.DestroyShaderModule(fragShader)

	p := &Pipeline{device: dev}
	p.Layout, err = dev.CreatePipelineLayout(gpu.PipelineLayoutCreateInfo{
		SetLayouts: opts.SetLayouts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	p.Pipeline, err = dev.CreateGraphicsPipeline(gpu.GraphicsPipelineCreateInfo{
		Stages: []gpu.PipelineShaderStage{
			{Stage: gpu.StageVertex, Module: vertShader, Name: entryPoint},
			{Stage: gpu.StageFragment, Module: fragShader, Name: entryPoint},
		},
		VertexBindings:   VertexBindings(),
		VertexAttributes: VertexAttributes(),
		Topology:         gpu.PrimitiveTopologyTriangleList,
		Viewports: []gpu.Viewport{
			{
				Width:    float32(opts.Extent.Width),
				Height:   float32(opts.Extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []gpu.Rect2D{
			{Extent: opts.Extent},
		},
		Rasterization: gpu.RasterizationState{
			PolygonMode: gpu.PolygonModeFill,
			CullMode:    gpu.CullModeBack,
			FrontFace:   opts.FrontFace,
			LineWidth:   1,
		},
		SampleCount: 1,
		ColorBlend: []gpu.ColorBlendAttachmentState{
			{BlendEnable: false, ColorWriteMask: gpu.ColorComponentAll},
		},
		Layout:            p.Layout,
		RenderPass:        opts.RenderPass,
		Subpass:           0,
		BasePipelineIndex: -1,
	})
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "create graphics pipeline")
	}

	log.WithFields(logrus.Fields{
		"extent":   opts.Extent.String(),
		"uniforms": len(opts.SetLayouts) > 0,
		"elapsed":  hrtime.Since(start).String(),
	}).Debug("graphics pipeline built")

	return p, nil
}

// Destroy releases the pipeline and its layout. Safe to call twice.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.Pipeline.Initialized() {
		p.device.DestroyPipeline(p.Pipeline)
		p.Pipeline = 0
	}
	if p.Layout.Initialized() {
		p.device.DestroyPipelineLayout(p.Layout)
		p.Layout = 0
	}
}
