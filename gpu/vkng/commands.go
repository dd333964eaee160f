package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/frameloop/gpu"
)

func (d *Device) CreateCommandPool(info gpu.CommandPoolCreateInfo) (gpu.CommandPool, error) {
	pool, _, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: info.QueueFamilyIndex,
	})
	if err != nil {
		return 0, errors.Wrap(err, "create command pool")
	}
	return gpu.CommandPool(d.commandPools.add(pool)), nil
}

// DestroyCommandPool forgets any buffers still allocated from the pool; the
// driver frees them with it.
func (d *Device) DestroyCommandPool(h gpu.CommandPool) {
	for _, b := range d.poolBuffers[h] {
		d.commandBuffers.take(uint64(b))
	}
	delete(d.poolBuffers, h)
	if pool, ok := d.commandPools.take(uint64(h)); ok {
		d.driver.DestroyCommandPool(pool, nil)
	}
}

func (d *Device) AllocateCommandBuffers(h gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	pool, err := d.commandPools.get(uint64(h))
	if err != nil {
		return nil, err
	}
	native, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d command buffers", count)
	}
	buffers := make([]gpu.CommandBuffer, 0, len(native))
	for _, b := range native {
		buffers = append(buffers, gpu.CommandBuffer(d.commandBuffers.add(b)))
	}
	d.poolBuffers[h] = append(d.poolBuffers[h], buffers...)
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(h gpu.CommandPool, buffers ...gpu.CommandBuffer) {
	var native []core1_0.CommandBuffer
	for _, b := range buffers {
		if buffer, ok := d.commandBuffers.take(uint64(b)); ok {
			native = append(native, buffer)
		}
	}
	remaining := d.poolBuffers[h][:0]
	for _, b := range d.poolBuffers[h] {
		if _, live := d.commandBuffers.items[uint64(b)]; live {
			remaining = append(remaining, b)
		}
	}
	d.poolBuffers[h] = remaining
	if len(native) > 0 {
		d.driver.FreeCommandBuffers(native...)
	}
}

func (d *Device) BeginCommandBuffer(b gpu.CommandBuffer, usage gpu.CommandBufferUsageFlags) error {
	buffer, err := d.commandBuffers.get(uint64(b))
	if err != nil {
		return err
	}
	_, err = d.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageFlags(usage),
	})
	return errors.Wrap(err, "begin command buffer")
}

func (d *Device) EndCommandBuffer(b gpu.CommandBuffer) error {
	buffer, err := d.commandBuffers.get(uint64(b))
	if err != nil {
		return err
	}
	_, err = d.driver.EndCommandBuffer(buffer)
	return errors.Wrap(err, "end command buffer")
}

func (d *Device) CmdBeginRenderPass(b gpu.CommandBuffer, info gpu.RenderPassBeginInfo) error {
	buffer, err := d.commandBuffers.get(uint64(b))
	if err != nil {
		return err
	}
	renderPass, err := d.renderPasses.get(uint64(info.RenderPass))
	if err != nil {
		return err
	}
	framebuffer, err := d.framebuffers.get(uint64(info.Framebuffer))
	if err != nil {
		return err
	}
	clearValues := make([]core1_0.ClearValue, 0, len(info.ClearColors))
	for _, c := range info.ClearColors {
		clearValues = append(clearValues, core1_0.ClearValueFloat(c))
	}
	err = d.driver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea:  rectToCore(info.RenderArea),
		ClearValues: clearValues,
	})
	return errors.Wrap(err, "begin render pass")
}

func (d *Device) CmdEndRenderPass(b gpu.CommandBuffer) {
	d.driver.CmdEndRenderPass(d.commandBuffers.lookup(uint64(b)))
}

func (d *Device) CmdBindPipeline(b gpu.CommandBuffer, p gpu.Pipeline) {
	d.driver.CmdBindPipeline(d.commandBuffers.lookup(uint64(b)), core1_0.PipelineBindPointGraphics, d.pipelines.lookup(uint64(p)))
}

func (d *Device) CmdBindDescriptorSets(b gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	native := make([]core1_0.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		native = append(native, d.descriptorSets.lookup(uint64(s)))
	}
	d.driver.CmdBindDescriptorSets(d.commandBuffers.lookup(uint64(b)), core1_0.PipelineBindPointGraphics, d.pipelineLayouts.lookup(uint64(layout)), firstSet, native, nil)
}

func (d *Device) CmdBindVertexBuffers(b gpu.CommandBuffer, firstBinding int, buffers []gpu.Buffer, offsets []int) {
	native := make([]core1_0.Buffer, 0, len(buffers))
	for _, v := range buffers {
		native = append(native, d.buffers.lookup(uint64(v)))
	}
	d.driver.CmdBindVertexBuffers(d.commandBuffers.lookup(uint64(b)), firstBinding, native, offsets)
}

func (d *Device) CmdBindIndexBuffer(b gpu.CommandBuffer, indexBuffer gpu.Buffer, offset int, indexType gpu.IndexType) {
	d.driver.CmdBindIndexBuffer(d.commandBuffers.lookup(uint64(b)), d.buffers.lookup(uint64(indexBuffer)), offset, core1_0.IndexType(indexType))
}

func (d *Device) CmdDrawIndexed(b gpu.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	d.driver.CmdDrawIndexed(d.commandBuffers.lookup(uint64(b)), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *Device) CmdCopyBuffer(b gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) error {
	buffer, err := d.commandBuffers.get(uint64(b))
	if err != nil {
		return err
	}
	srcBuffer, err := d.buffers.get(uint64(src))
	if err != nil {
		return err
	}
	dstBuffer, err := d.buffers.get(uint64(dst))
	if err != nil {
		return err
	}
	native := make([]core1_0.BufferCopy, 0, len(regions))
	for _, r := range regions {
		native = append(native, core1_0.BufferCopy{
			SrcOffset: r.SrcOffset,
			DstOffset: r.DstOffset,
			Size:      r.Size,
		})
	}
	return errors.Wrap(d.driver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer, native...), "copy buffer")
}

// QueueSubmit never passes a fence. Callers that need the work finished wait
// on the queue.
func (d *Device) QueueSubmit(q gpu.Queue, submits ...gpu.SubmitInfo) error {
	queue, err := d.queues.get(uint64(q))
	if err != nil {
		return err
	}
	native := make([]core1_0.SubmitInfo, 0, len(submits))
	for _, s := range submits {
		info := core1_0.SubmitInfo{}
		for _, h := range s.WaitSemaphores {
			semaphore, err := d.semaphores.get(uint64(h))
			if err != nil {
				return err
			}
			info.WaitSemaphores = append(info.WaitSemaphores, semaphore)
		}
		for _, stage := range s.WaitDstStageMask {
			info.WaitDstStageMask = append(info.WaitDstStageMask, core1_0.PipelineStageFlags(stage))
		}
		for _, h := range s.CommandBuffers {
			buffer, err := d.commandBuffers.get(uint64(h))
			if err != nil {
				return err
			}
			info.CommandBuffers = append(info.CommandBuffers, buffer)
		}
		for _, h := range s.SignalSemaphores {
			semaphore, err := d.semaphores.get(uint64(h))
			if err != nil {
				return err
			}
			info.SignalSemaphores = append(info.SignalSemaphores, semaphore)
		}
		native = append(native, info)
	}
	_, err = d.driver.QueueSubmit(queue, nil, native...)
	return errors.Wrap(err, "queue submit")
}

func (d *Device) QueueWaitIdle(q gpu.Queue) error {
	queue, err := d.queues.get(uint64(q))
	if err != nil {
		return err
	}
	_, err = d.driver.QueueWaitIdle(queue)
	return errors.Wrap(err, "queue wait idle")
}
