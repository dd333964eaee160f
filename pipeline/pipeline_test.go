package pipeline_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/mesh"
	"github.com/vkngwrapper/frameloop/pipeline"
)

var code = []uint32{0x07230203, 0x00010000}

func newDevice(c *qt.C) *gputest.Device {
	pd := gputest.NewPhysicalDevice("gpu")
	d, err := pd.CreateDevice(gpu.DeviceCreateInfo{
		QueueCreateInfos: []gpu.DeviceQueueCreateInfo{{QueueFamilyIndex: 0, QueuePriorities: []float32{1}}},
	})
	c.Assert(err, qt.IsNil)
	return d.(*gputest.Device)
}

func TestRenderPass(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c)

	rp, err := pipeline.CreateRenderPass(dev, gpu.FormatB8G8R8A8UnsignedNorm)
	c.Assert(err, qt.IsNil)
	c.Assert(rp.Initialized(), qt.IsTrue)

	info := dev.RenderPasses[0]
	c.Assert(info.Attachments, qt.HasLen, 1)
	att := info.Attachments[0]
	c.Assert(att.Format, qt.Equals, gpu.FormatB8G8R8A8UnsignedNorm)
	c.Assert(att.LoadOp, qt.Equals, gpu.AttachmentLoadOpClear)
	c.Assert(att.StoreOp, qt.Equals, gpu.AttachmentStoreOpStore)
	c.Assert(att.InitialLayout, qt.Equals, gpu.ImageLayoutUndefined)
	c.Assert(att.FinalLayout, qt.Equals, gpu.ImageLayoutPresentSrc)

	c.Assert(info.Dependencies, qt.DeepEquals, []gpu.SubpassDependency{{
		SrcSubpass:    gpu.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  gpu.PipelineStageBottomOfPipe,
		SrcAccessMask: gpu.AccessMemoryRead,
		DstStageMask:  gpu.PipelineStageColorAttachmentOutput,
		DstAccessMask: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
	}})

	dev.DestroyRenderPass(rp)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestVertexLayoutMatchesMesh(t *testing.T) {
	c := qt.New(t)

	bindings := pipeline.VertexBindings()
	c.Assert(bindings, qt.HasLen, 1)
	c.Assert(bindings[0].Stride, qt.Equals, mesh.VertexStride)

	attrs := pipeline.VertexAttributes()
	c.Assert(attrs, qt.HasLen, 2)
	c.Assert(attrs[0].Location, qt.Equals, 0)
	c.Assert(attrs[0].Format, qt.Equals, gpu.FormatR32G32SignedFloat)
	c.Assert(attrs[1].Location, qt.Equals, 1)
	c.Assert(attrs[1].Offset, qt.Equals, mesh.ColorOffset)
}

func TestBuild(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c)

	rp, err := pipeline.CreateRenderPass(dev, gpu.FormatB8G8R8A8UnsignedNorm)
	c.Assert(err, qt.IsNil)
	layout, err := pipeline.CreateUniformLayout(dev)
	c.Assert(err, qt.IsNil)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	extent := gpu.Extent2D{Width: 640, Height: 480}
	p, err := pipeline.Build(dev, pipeline.Options{
		VertexShader:   code,
		FragmentShader: code,
		Extent:         extent,
		RenderPass:     rp,
		SetLayouts:     []gpu.DescriptorSetLayout{layout},
		FrontFace:      gpu.FrontFaceCounterClockwise,
		Logger:         logger,
	})
	c.Assert(err, qt.IsNil)

	info := dev.Pipelines[0]
	c.Assert(info.Stages, qt.HasLen, 2)
	for _, s := range info.Stages {
		c.Assert(s.Name, qt.Equals, "main")
	}
	c.Assert(info.Viewports[0].Width, qt.Equals, float32(640))
	c.Assert(info.Scissors[0].Extent, qt.Equals, extent)
	c.Assert(info.Rasterization.CullMode, qt.Equals, gpu.CullModeBack)
	c.Assert(info.Rasterization.FrontFace, qt.Equals, gpu.FrontFaceCounterClockwise)
	c.Assert(info.Rasterization.DepthBiasEnable, qt.IsFalse)
	c.Assert(info.SampleCount, qt.Equals, 1)
	c.Assert(info.ColorBlend[0].BlendEnable, qt.IsFalse)
	c.Assert(info.RenderPass, qt.Equals, rp)

	// Shader modules are gone; only the render pass, set layout, pipeline
	// layout and pipeline remain.
	c.Assert(dev.Live(), qt.HasLen, 4)
	c.Assert(hook.LastEntry().Message, qt.Equals, "graphics pipeline built")

	p.Destroy()
	p.Destroy()
	dev.DestroyDescriptorSetLayout(layout)
	dev.DestroyRenderPass(rp)
	c.Assert(dev.Live(), qt.HasLen, 0)
	c.Assert(dev.Violations, qt.HasLen, 0)
}

func TestBuildFailureReleasesEverything(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c)

	rp, err := pipeline.CreateRenderPass(dev, gpu.FormatB8G8R8A8UnsignedNorm)
	c.Assert(err, qt.IsNil)

	dev.FailOn("CreateGraphicsPipeline", errors.New("pipeline compile failed"))
	_, err = pipeline.Build(dev, pipeline.Options{
		VertexShader:   code,
		FragmentShader: code,
		Extent:         gpu.Extent2D{Width: 1, Height: 1},
		RenderPass:     rp,
	})
	c.Assert(err, qt.ErrorMatches, "create graphics pipeline: pipeline compile failed")

	dev.DestroyRenderPass(rp)
	c.Assert(dev.Live(), qt.HasLen, 0)
	c.Assert(dev.Violations, qt.HasLen, 0)
}
