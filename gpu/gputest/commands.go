package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op            string
	RenderPass    gpu.RenderPassBeginInfo
	Pipeline      gpu.Pipeline
	Layout        gpu.PipelineLayout
	DescriptorSet []gpu.DescriptorSet
	Buffers       []gpu.Buffer
	Offsets       []int
	IndexType     gpu.IndexType
	IndexCount    int
	Src, Dst      gpu.Buffer
	Regions       []gpu.BufferCopy
}

const (
	CmdBeginRenderPass    = "beginRenderPass"
	CmdEndRenderPass      = "endRenderPass"
	CmdBindPipeline       = "bindPipeline"
	CmdBindDescriptorSets = "bindDescriptorSets"
	CmdBindVertexBuffers  = "bindVertexBuffers"
	CmdBindIndexBuffer    = "bindIndexBuffer"
	CmdDrawIndexed        = "drawIndexed"
	CmdCopyBuffer         = "copyBuffer"
)

type commandBuffer struct {
	pool      gpu.CommandPool
	recording bool
	recorded  bool
	inPass    bool
	usage     gpu.CommandBufferUsageFlags
	submits   int
	commands  []Command
}

func (d *Device) CreateCommandPool(info gpu.CommandPoolCreateInfo) (gpu.CommandPool, error) {
	if err := d.fail("CreateCommandPool"); err != nil {
		return 0, err
	}
	if info.QueueFamilyIndex < 0 || info.QueueFamilyIndex >= len(d.physical.Families) {
		return 0, errors.Newf("command pool for queue family %d out of range", info.QueueFamilyIndex)
	}
	return gpu.CommandPool(d.create("command pool")), nil
}

// DestroyCommandPool also frees every command buffer still allocated from
// the pool.
func (d *Device) DestroyCommandPool(h gpu.CommandPool) {
	if !d.destroy("command pool", gpu.Handle(h)) {
		return
	}
	for cb, c := range d.commands {
		if c.pool == h {
			delete(d.live, gpu.Handle(cb))
			delete(d.commands, cb)
		}
	}
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if err := d.fail("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	if !d.isLive("command pool", gpu.Handle(pool)) {
		return nil, errors.Newf("unknown command pool %d", pool)
	}
	if count <= 0 {
		return nil, errors.Newf("allocate %d command buffers", count)
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = gpu.CommandBuffer(d.create("command buffer"))
		d.commands[out[i]] = &commandBuffer{pool: pool}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, buffers ...gpu.CommandBuffer) {
	for _, cb := range buffers {
		c, ok := d.commands[cb]
		if !ok {
			d.violate("free of unknown command buffer %d", cb)
			continue
		}
		if c.pool != pool {
			d.violate("command buffer %d freed to pool %d, allocated from %d", cb, pool, c.pool)
		}
		if d.destroy("command buffer", gpu.Handle(cb)) {
			delete(d.commands, cb)
		}
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, usage gpu.CommandBufferUsageFlags) error {
	if err := d.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	c, ok := d.commands[cb]
	if !ok {
		return errors.Newf("begin of unknown command buffer %d", cb)
	}
	if c.recording {
		return errors.Newf("command buffer %d is already recording", cb)
	}
	c.recording = true
	c.recorded = false
	c.usage = usage
	c.submits = 0
	c.commands = nil
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	if err := d.fail("EndCommandBuffer"); err != nil {
		return err
	}
	c, ok := d.commands[cb]
	if !ok || !c.recording {
		return errors.Newf("end of command buffer %d which is not recording", cb)
	}
	if c.inPass {
		d.violate("command buffer %d ended inside a render pass", cb)
		return errors.Newf("command buffer %d ended inside a render pass", cb)
	}
	c.recording = false
	c.recorded = true
	return nil
}

func (d *Device) record(cb gpu.CommandBuffer, cmd Command) *commandBuffer {
	c, ok := d.commands[cb]
	if !ok || !c.recording {
		d.violate("%s recorded into command buffer %d which is not recording", cmd.Op, cb)
		return nil
	}
	c.commands = append(c.commands, cmd)
	return c
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, info gpu.RenderPassBeginInfo) error {
	if err := d.fail("CmdBeginRenderPass"); err != nil {
		return err
	}
	if !d.isLive("framebuffer", gpu.Handle(info.Framebuffer)) {
		return errors.Newf("render pass begun on unknown framebuffer %d", info.Framebuffer)
	}
	c := d.record(cb, Command{Op: CmdBeginRenderPass, RenderPass: info})
	if c == nil {
		return errors.Newf("command buffer %d is not recording", cb)
	}
	if c.inPass {
		d.violate("render pass begun twice in command buffer %d", cb)
	}
	c.inPass = true
	return nil
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	c := d.record(cb, Command{Op: CmdEndRenderPass})
	if c == nil {
		return
	}
	if !c.inPass {
		d.violate("render pass ended outside a render pass in command buffer %d", cb)
	}
	c.inPass = false
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, pipeline gpu.Pipeline) {
	d.record(cb, Command{Op: CmdBindPipeline, Pipeline: pipeline})
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet int, sets []gpu.DescriptorSet) {
	d.record(cb, Command{Op: CmdBindDescriptorSets, Layout: layout, DescriptorSet: append([]gpu.DescriptorSet(nil), sets...)})
}

func (d *Device) CmdBindVertexBuffers(cb gpu.CommandBuffer, firstBinding int, buffers []gpu.Buffer, offsets []int) {
	if len(buffers) != len(offsets) {
		d.violate("bind of %d vertex buffers with %d offsets", len(buffers), len(offsets))
	}
	d.record(cb, Command{Op: CmdBindVertexBuffers, Buffers: append([]gpu.Buffer(nil), buffers...), Offsets: append([]int(nil), offsets...)})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, indexBuffer gpu.Buffer, offset int, indexType gpu.IndexType) {
	d.record(cb, Command{Op: CmdBindIndexBuffer, Buffers: []gpu.Buffer{indexBuffer}, Offsets: []int{offset}, IndexType: indexType})
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	c := d.record(cb, Command{Op: CmdDrawIndexed, IndexCount: indexCount})
	if c != nil && !c.inPass {
		d.violate("draw outside a render pass in command buffer %d", cb)
	}
}

func (d *Device) CmdCopyBuffer(cb gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) error {
	if err := d.fail("CmdCopyBuffer"); err != nil {
		return err
	}
	s, ok := d.buffers[src]
	if !ok {
		return errors.Newf("copy from unknown buffer %d", src)
	}
	t, ok := d.buffers[dst]
	if !ok {
		return errors.Newf("copy to unknown buffer %d", dst)
	}
	if s.info.Usage&gpu.BufferUsageTransferSrc == 0 {
		d.violate("copy source buffer %d lacks TransferSrc usage (%s)", src, s.info.Usage)
	}
	if t.info.Usage&gpu.BufferUsageTransferDst == 0 {
		d.violate("copy destination buffer %d lacks TransferDst usage (%s)", dst, t.info.Usage)
	}
	for _, r := range regions {
		if r.SrcOffset+r.Size > s.info.Size || r.DstOffset+r.Size > t.info.Size {
			return errors.Newf("copy region %+v out of bounds", r)
		}
	}
	if d.record(cb, Command{Op: CmdCopyBuffer, Src: src, Dst: dst, Regions: append([]gpu.BufferCopy(nil), regions...)}) == nil {
		return errors.Newf("command buffer %d is not recording", cb)
	}
	return nil
}

func (d *Device) QueueSubmit(queue gpu.Queue, submits ...gpu.SubmitInfo) error {
	if err := d.fail("QueueSubmit"); err != nil {
		return err
	}
	if _, ok := d.queues[queue]; !ok {
		return errors.Newf("submit to unknown queue %d", queue)
	}
	for _, s := range submits {
		if len(s.WaitSemaphores) != len(s.WaitDstStageMask) {
			return errors.Newf("submit with %d wait semaphores and %d stage masks", len(s.WaitSemaphores), len(s.WaitDstStageMask))
		}
		for _, cb := range s.CommandBuffers {
			c, ok := d.commands[cb]
			if !ok {
				return errors.Newf("submit of unknown command buffer %d", cb)
			}
			if !c.recorded {
				return errors.Newf("submit of command buffer %d which was never ended", cb)
			}
			if c.usage&gpu.CommandBufferUsageOneTimeSubmit != 0 && c.submits > 0 {
				d.violate("one-time command buffer %d submitted again", cb)
			}
		}
		for _, sig := range s.SignalSemaphores {
			if !d.isLive("semaphore", gpu.Handle(sig)) {
				return errors.Newf("submit signals unknown semaphore %d", sig)
			}
		}
		if err := d.consume(OpSubmit, s.WaitSemaphores); err != nil {
			return err
		}
		for _, cb := range s.CommandBuffers {
			if err := d.execute(cb); err != nil {
				return err
			}
		}
		for _, sig := range s.SignalSemaphores {
			if d.semaphores[sig] {
				d.violate("submit signals semaphore %d which is already signaled", sig)
			}
			d.semaphores[sig] = true
		}
		d.Events = append(d.Events, Event{
			Op:             OpSubmit,
			Queue:          queue,
			ImageIndex:     -1,
			Wait:           append([]gpu.Semaphore(nil), s.WaitSemaphores...),
			WaitStages:     append([]gpu.PipelineStageFlags(nil), s.WaitDstStageMask...),
			Signal:         append([]gpu.Semaphore(nil), s.SignalSemaphores...),
			CommandBuffers: append([]gpu.CommandBuffer(nil), s.CommandBuffers...),
		})
	}
	d.busy = true
	return nil
}

// execute replays the effects the fake can observe: buffer copies and
// indexed draws.
func (d *Device) execute(cb gpu.CommandBuffer) error {
	c := d.commands[cb]
	c.submits++
	for _, cmd := range c.commands {
		switch cmd.Op {
		case CmdCopyBuffer:
			src, err := d.contents(cmd.Src)
			if err != nil {
				return err
			}
			dst, err := d.contents(cmd.Dst)
			if err != nil {
				return err
			}
			for _, r := range cmd.Regions {
				copy(dst[r.DstOffset:r.DstOffset+r.Size], src[r.SrcOffset:r.SrcOffset+r.Size])
			}
		case CmdDrawIndexed:
			d.Draws++
		}
	}
	return nil
}

func (d *Device) contents(b gpu.Buffer) ([]byte, error) {
	buf, ok := d.buffers[b]
	if !ok {
		return nil, errors.Newf("buffer %d destroyed before its copy executed", b)
	}
	mem, ok := d.memories[buf.memory]
	if !ok {
		return nil, errors.Newf("buffer %d has no bound memory", b)
	}
	return mem.data[:buf.info.Size], nil
}

func (d *Device) QueueWaitIdle(queue gpu.Queue) error {
	if err := d.fail("QueueWaitIdle"); err != nil {
		return err
	}
	if _, ok := d.queues[queue]; !ok {
		return errors.Newf("wait on unknown queue %d", queue)
	}
	d.busy = false
	return nil
}
