package renderer

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/mesh"
)

var testShaders = Shaders{
	Vertex:   []uint32{0x07230203, 0x00010000},
	Fragment: []uint32{0x07230203, 0x00010000},
}

type fixture struct {
	loader   *gputest.Loader
	window   *gputest.Window
	physical *gputest.PhysicalDevice
}

func newFixture() *fixture {
	pd := gputest.NewPhysicalDevice("test gpu")
	return &fixture{
		loader: &gputest.Loader{
			Extensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface", capability.DebugUtilsExtension},
			Layers:     []string{capability.ValidationLayer},
			Devices:    []*gputest.PhysicalDevice{pd},
		},
		window: &gputest.Window{
			Width:      500,
			Height:     500,
			Extensions: []string{"VK_KHR_surface", "VK_KHR_xlib_surface"},
		},
		physical: pd,
	}
}

func (f *fixture) new(c *qt.C, opts Options) *Renderer {
	r, err := New(f.loader, f.window, testShaders, opts)
	c.Assert(err, qt.IsNil)
	c.Assert(r.State(), qt.Equals, StateReady)
	return r
}

func (f *fixture) device() *gputest.Device {
	return f.physical.Created
}

func (f *fixture) instance() *gputest.Instance {
	return f.loader.Instances[len(f.loader.Instances)-1]
}

// assertClean checks that every object was destroyed and that nothing along
// the way looked like a validation error.
func (f *fixture) assertClean(c *qt.C) {
	if dev := f.device(); dev != nil {
		c.Check(dev.Live(), qt.HasLen, 0)
		c.Check(dev.Violations, qt.HasLen, 0)
		c.Check(dev.Destroyed, qt.IsTrue)
	}
	for _, inst := range f.loader.Instances {
		c.Check(inst.Violations, qt.HasLen, 0)
		c.Check(inst.LiveSurfaces(), qt.Equals, 0)
		c.Check(inst.Destroyed, qt.IsTrue)
	}
}

func TestDrawFrames(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{})
	dev := f.device()

	c.Assert(r.Extent(), qt.Equals, gpu.Extent2D{Width: 800, Height: 600})
	c.Assert(r.ImageCount(), qt.Equals, 3)

	setup := len(dev.Events)
	const frames = 5
	for i := 0; i < frames; i++ {
		c.Assert(r.DrawFrame(), qt.IsNil)
		c.Assert(r.State(), qt.Equals, StatePresented)
	}
	c.Assert(r.Frames(), qt.Equals, frames)
	c.Assert(dev.Draws, qt.Equals, frames)

	events := dev.Events[setup:]
	c.Assert(events, qt.HasLen, 3*frames)
	for i := 0; i < frames; i++ {
		acquire, submit, present := events[3*i], events[3*i+1], events[3*i+2]
		c.Assert(acquire.Op, qt.Equals, gputest.OpAcquire)
		c.Assert(submit.Op, qt.Equals, gputest.OpSubmit)
		c.Assert(present.Op, qt.Equals, gputest.OpPresent)

		c.Assert(acquire.ImageIndex, qt.Equals, i%r.ImageCount())
		c.Assert(acquire.Signal, qt.DeepEquals, []gpu.Semaphore{r.imageAvailable})

		c.Assert(submit.Queue, qt.Equals, r.logical.GraphicsQueue)
		c.Assert(submit.Wait, qt.DeepEquals, []gpu.Semaphore{r.imageAvailable})
		c.Assert(submit.WaitStages, qt.DeepEquals, []gpu.PipelineStageFlags{gpu.PipelineStageColorAttachmentOutput})
		c.Assert(submit.Signal, qt.DeepEquals, []gpu.Semaphore{r.renderFinished})
		c.Assert(submit.CommandBuffers, qt.DeepEquals, []gpu.CommandBuffer{r.commandBuffers[acquire.ImageIndex]})

		c.Assert(present.Queue, qt.Equals, r.logical.PresentQueue)
		c.Assert(present.Wait, qt.DeepEquals, []gpu.Semaphore{r.renderFinished})
		c.Assert(present.ImageIndex, qt.Equals, acquire.ImageIndex)
	}
	c.Assert(dev.Signaled(r.imageAvailable), qt.IsFalse)
	c.Assert(dev.Signaled(r.renderFinished), qt.IsFalse)

	c.Assert(r.Dispose(), qt.IsNil)
	c.Assert(r.State(), qt.Equals, StateIdle)
	f.assertClean(c)
}

func TestRecordedCommands(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	clear := gpu.ClearColor{1, 0, 0, 1}
	r := f.new(c, Options{ClearColor: &clear})
	dev := f.device()

	c.Assert(r.commandBuffers, qt.HasLen, r.ImageCount())
	for i, cb := range r.commandBuffers {
		cmds := dev.Commands(cb)
		ops := make([]string, len(cmds))
		for j, cmd := range cmds {
			ops[j] = cmd.Op
		}
		c.Assert(ops, qt.DeepEquals, []string{
			gputest.CmdBeginRenderPass,
			gputest.CmdBindPipeline,
			gputest.CmdBindVertexBuffers,
			gputest.CmdBindIndexBuffer,
			gputest.CmdDrawIndexed,
			gputest.CmdEndRenderPass,
		})

		begin := cmds[0].RenderPass
		c.Assert(begin.Framebuffer, qt.Equals, r.swapchain.Framebuffers[i])
		c.Assert(begin.RenderArea.Extent, qt.Equals, r.Extent())
		c.Assert(begin.ClearColors, qt.DeepEquals, []gpu.ClearColor{clear})
		c.Assert(cmds[3].IndexType, qt.Equals, gpu.IndexTypeUInt32)
		c.Assert(cmds[4].IndexCount, qt.Equals, 6)
	}

	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestDefaultClearColorAndWinding(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{})
	dev := f.device()

	begin := dev.Commands(r.commandBuffers[0])[0].RenderPass
	c.Assert(begin.ClearColors, qt.DeepEquals, []gpu.ClearColor{{0.2, 0.2, 0.4, 1}})
	c.Assert(dev.Pipelines[0].Rasterization.FrontFace, qt.Equals, gpu.FrontFaceClockwise)

	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestRerecordAfterFrames(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{})

	c.Assert(r.DrawFrame(), qt.IsNil)
	c.Assert(r.RecordCommandBuffers(), qt.IsNil)
	c.Assert(r.State(), qt.Equals, StateReady)
	c.Assert(r.DrawFrame(), qt.IsNil)
	c.Assert(r.Frames(), qt.Equals, 2)

	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestDisposeIsIdempotent(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{Uniforms: true})

	c.Assert(r.Dispose(), qt.IsNil)
	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)

	err := r.DrawFrame()
	c.Assert(errors.Is(err, ErrDisposed), qt.IsTrue)
	err = r.RecordCommandBuffers()
	c.Assert(errors.Is(err, ErrDisposed), qt.IsTrue)
}

func TestInvalidState(t *testing.T) {
	c := qt.New(t)
	r := &Renderer{}

	err := r.DrawFrame()
	c.Assert(errors.Is(err, ErrInvalidState), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `draw frame in state Uninitialized: invalid renderer state`)

	err = r.RecordCommandBuffers()
	c.Assert(errors.Is(err, ErrInvalidState), qt.IsTrue)
}

func TestStateString(t *testing.T) {
	c := qt.New(t)
	c.Assert(StatePresented.String(), qt.Equals, "Presented")
	c.Assert(State(42).String(), qt.Equals, "State(42)")
}

func TestMissingInstanceExtension(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.loader.Extensions = []string{"VK_KHR_surface"}

	_, err := New(f.loader, f.window, testShaders, Options{})
	var missing *capability.MissingCapabilityError
	c.Assert(errors.As(err, &missing), qt.IsTrue)
	c.Assert(missing.Kind, qt.Equals, capability.Extension)
	c.Assert(missing.Scope, qt.Equals, capability.Instance)
	c.Assert(missing.Missing, qt.DeepEquals, []string{"VK_KHR_xlib_surface"})
	c.Assert(f.loader.Instances, qt.HasLen, 0)
}

func TestMissingValidationLayerInDebug(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.loader.Layers = nil

	_, err := New(f.loader, f.window, testShaders, Options{Debug: true})
	var missing *capability.MissingCapabilityError
	c.Assert(errors.As(err, &missing), qt.IsTrue)
	c.Assert(missing.Kind, qt.Equals, capability.Layer)

	f.loader.Layers = []string{capability.ValidationLayer}
	r := f.new(c, Options{Debug: true})
	c.Assert(f.instance().Info.Layers, qt.DeepEquals, []string{capability.ValidationLayer})
	c.Assert(f.device().Info.Layers, qt.DeepEquals, []string{capability.ValidationLayer})
	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestCleanupWhenSurfaceFails(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.window.SurfaceErr = errors.New("no display")

	_, err := New(f.loader, f.window, testShaders, Options{})
	c.Assert(err, qt.ErrorMatches, `create surface: no display`)
	c.Assert(f.loader.Instances, qt.HasLen, 1)
	f.assertClean(c)
}

func TestCleanupWhenNoDeviceFits(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.physical.Formats = nil

	_, err := New(f.loader, f.window, testShaders, Options{})
	c.Assert(err, qt.IsNotNil)
	c.Assert(f.physical.Created, qt.IsNil)
	f.assertClean(c)
}

func TestCleanupWhenPipelineFails(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	_, err := New(f.loader, f.window, Shaders{Vertex: testShaders.Vertex}, Options{Uniforms: true})
	c.Assert(err, qt.ErrorMatches, `.*empty shader code`)
	c.Assert(f.device(), qt.IsNotNil)
	f.assertClean(c)
}

func TestInvalidMesh(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	bad := mesh.Mesh{Vertices: mesh.Triangle().Vertices, Indices: []uint32{0, 1, 7}}

	_, err := New(f.loader, f.window, testShaders, Options{Mesh: &bad})
	c.Assert(err, qt.IsNotNil)
	c.Assert(f.loader.Instances, qt.HasLen, 0)
}

func TestAnimateNeedsUniforms(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	_, err := New(f.loader, f.window, testShaders, Options{Animate: true})
	c.Assert(err, qt.ErrorMatches, `animation needs uniforms`)
}

func TestOutOfDateIsFatal(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{})

	c.Assert(r.DrawFrame(), qt.IsNil)
	f.device().OutOfDate = true
	err := r.DrawFrame()
	c.Assert(errors.Is(err, gpu.ErrSwapchainOutOfDate), qt.IsTrue)
	c.Assert(r.Frames(), qt.Equals, 1)

	err = r.DrawFrame()
	c.Assert(errors.Is(err, ErrInvalidState), qt.IsTrue)

	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestSubmitErrorPropagates(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	r := f.new(c, Options{})

	f.device().FailOn("QueueSubmit", errors.New("device lost"))
	err := r.DrawFrame()
	c.Assert(err, qt.ErrorMatches, `submit command buffer for image 0: device lost`)
	c.Assert(r.State(), qt.Equals, StateAcquiring)
}

func TestUniformsAndAnimation(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	var now time.Duration
	clock := func() time.Duration {
		now += 500 * time.Millisecond
		return now
	}
	r := f.new(c, Options{Uniforms: true, Animate: true, Clock: clock})
	dev := f.device()

	c.Assert(dev.Pipelines[0].Rasterization.FrontFace, qt.Equals, gpu.FrontFaceCounterClockwise)
	c.Assert(dev.Commands(r.commandBuffers[0])[2].Op, qt.Equals, gputest.CmdBindDescriptorSets)
	c.Assert(r.descriptors.Sets, qt.HasLen, r.ImageCount())

	uniform := func() []byte {
		return dev.Memory(r.uniformBuffer.Memory)[:uniformSize]
	}
	initial, err := NewUniformBufferObject(0, r.Extent()).Bytes()
	c.Assert(err, qt.IsNil)
	c.Assert(uniform(), qt.DeepEquals, initial)

	c.Assert(r.DrawFrame(), qt.IsNil)
	animated, err := NewUniformBufferObject(500*time.Millisecond, r.Extent()).Bytes()
	c.Assert(err, qt.IsNil)
	c.Assert(uniform(), qt.DeepEquals, animated)

	c.Assert(r.Dispose(), qt.IsNil)
	f.assertClean(c)
}

func TestUniformBufferObject(t *testing.T) {
	c := qt.New(t)
	extent := gpu.Extent2D{Width: 800, Height: 600}

	c.Assert(uniformSize, qt.Equals, 192)

	ubo := NewUniformBufferObject(time.Second, extent)
	c.Assert(ubo.Model.ApproxEqual(mgl32.HomogRotate3DZ(math.Pi/2)), qt.IsTrue)

	// The rotation repeats every four seconds.
	wrapped := NewUniformBufferObject(5*time.Second, extent)
	c.Assert(wrapped.Model.ApproxEqualThreshold(ubo.Model, 1e-5), qt.IsTrue)

	c.Assert(ubo.Proj.At(1, 1) < 0, qt.IsTrue)
	aspect := -ubo.Proj.At(1, 1) / ubo.Proj.At(0, 0)
	c.Assert(math.Abs(float64(aspect)-800.0/600.0) < 1e-5, qt.IsTrue)

	eye := ubo.View.Mul4x1(mgl32.Vec4{2, 2, 2, 1})
	c.Assert(eye.Vec3().Len() < 1e-5, qt.IsTrue)

	data, err := ubo.Bytes()
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.HasLen, uniformSize)
}

func TestLogsReady(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r := f.new(c, Options{Logger: logger})
	var ready *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "renderer ready" {
			ready = e
		}
	}
	c.Assert(ready, qt.IsNotNil)
	c.Assert(ready.Data["device"], qt.Equals, "test gpu")
	c.Assert(ready.Data["images"], qt.Equals, 3)
	c.Assert(ready.Data["presentMode"], qt.Equals, "Mailbox")

	c.Assert(r.Dispose(), qt.IsNil)
	c.Assert(hook.LastEntry().Message, qt.Equals, "renderer disposed")
}
