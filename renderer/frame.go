package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// RecordCommandBuffers records one command buffer per swapchain image. The
// buffers are marked simultaneous-use and resubmitted every frame without
// being re-recorded. Calling it again after frames have been drawn waits for
// the device to go idle first.
func (r *Renderer) RecordCommandBuffers() error {
	if err := r.expect("record command buffers", StateRecording, StateReady, StatePresented); err != nil {
		return err
	}
	if r.state != StateRecording {
		if err := r.dev.WaitIdle(); err != nil {
			return errors.Wrap(err, "wait for device idle before recording")
		}
		r.state = StateRecording
	}

	extent := r.swapchain.Extent
	for i, cb := range r.commandBuffers {
		if err := r.dev.BeginCommandBuffer(cb, gpu.CommandBufferUsageSimultaneousUse); err != nil {
			return errors.Wrapf(err, "begin command buffer %d", i)
		}

		err := r.dev.CmdBeginRenderPass(cb, gpu.RenderPassBeginInfo{
			RenderPass:  r.renderPass,
			Framebuffer: r.swapchain.Framebuffers[i],
			RenderArea: gpu.Rect2D{
				Offset: gpu.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearColors: []gpu.ClearColor{r.clearColor},
		})
		if err != nil {
			return errors.Wrapf(err, "begin render pass %d", i)
		}

		r.dev.CmdBindPipeline(cb, r.pipeline.Pipeline)
		if r.descriptors != nil {
			r.dev.CmdBindDescriptorSets(cb, r.pipeline.Layout, 0, []gpu.DescriptorSet{r.descriptors.Sets[i]})
		}
		r.dev.CmdBindVertexBuffers(cb, 0, []gpu.Buffer{r.vertexBuffer.Handle}, []int{0})
		r.dev.CmdBindIndexBuffer(cb, r.indexBuffer.Handle, 0, gpu.IndexTypeUInt32)
		r.dev.CmdDrawIndexed(cb, r.indexCount, 1, 0, 0, 0)
		r.dev.CmdEndRenderPass(cb)

		if err := r.dev.EndCommandBuffer(cb); err != nil {
			return errors.Wrapf(err, "end command buffer %d", i)
		}
	}

	r.state = StateReady
	return nil
}

// DrawFrame renders and presents one frame. Acquire signals image-available,
// the submit waits on it at color-attachment output and signals
// render-finished, and the present waits on that.
//
// Any error is fatal: the renderer is left in the state where it failed and
// only Dispose remains valid.
func (r *Renderer) DrawFrame() error {
	if err := r.expect("draw frame", StateReady, StatePresented); err != nil {
		return err
	}

	if r.opts.Animate {
		if err := r.updateUniformBuffer(r.opts.Clock() - r.start); err != nil {
			return err
		}
	}

	r.state = StateAcquiring
	imageIndex, err := r.dev.AcquireNextImage(r.swapchain.Swapchain, r.imageAvailable)
	if err != nil {
		return errors.Wrap(err, "acquire next image")
	}

	err = r.dev.QueueSubmit(r.logical.GraphicsQueue, gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{r.imageAvailable},
		WaitDstStageMask: []gpu.PipelineStageFlags{gpu.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{r.commandBuffers[imageIndex]},
		SignalSemaphores: []gpu.Semaphore{r.renderFinished},
	})
	if err != nil {
		return errors.Wrapf(err, "submit command buffer for image %d", imageIndex)
	}
	r.state = StateSubmitted

	err = r.dev.QueuePresent(r.logical.PresentQueue, gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{r.renderFinished},
		Swapchains:     []gpu.Swapchain{r.swapchain.Swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if err != nil {
		return errors.Wrapf(err, "present image %d", imageIndex)
	}
	r.state = StatePresented
	r.frames++

	return nil
}
