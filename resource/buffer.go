// Package resource allocates GPU buffers and moves data into and out of
// device-local memory through staging buffers.
package resource

import (
	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/internal/logutil"
)

var ErrNoSuitableMemoryType = errors.New("no suitable memory type")

// FindMemoryType returns the first memory type allowed by typeBits whose
// properties include every flag in required.
func FindMemoryType(props gpu.MemoryProperties, typeBits uint32, required gpu.MemoryPropertyFlags) (int, error) {
	for i, memType := range props.MemoryTypes {
		if i >= 32 {
			break
		}
		if typeBits&(1<<uint(i)) != 0 && memType.PropertyFlags&required == required {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrNoSuitableMemoryType, "type bits %#b, properties %s", typeBits, required)
}

// Buffer is a buffer handle with the single allocation bound to it at
// offset zero.
type Buffer struct {
	Handle gpu.Buffer
	Memory gpu.DeviceMemory
	Size   int
	Usage  gpu.BufferUsageFlags

	device gpu.Device
}

// Destroy releases the buffer and then its memory. It is safe to call more
// than once.
func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	if b.Handle.Initialized() {
		b.device.DestroyBuffer(b.Handle)
		b.Handle = 0
	}
	if b.Memory.Initialized() {
		b.device.FreeMemory(b.Memory)
		b.Memory = 0
	}
}

// Allocator creates buffers on one device and runs its transfers on one
// queue.
type Allocator struct {
	device gpu.Device
	memory gpu.MemoryProperties
	pool   gpu.CommandPool
	queue  gpu.Queue
	log    logrus.FieldLogger
}

func NewAllocator(dev gpu.Device, memory gpu.MemoryProperties, pool gpu.CommandPool, queue gpu.Queue, log logrus.FieldLogger) *Allocator {
	return &Allocator{
		device: dev,
		memory: memory,
		pool:   pool,
		queue:  queue,
		log:    logutil.OrDiscard(log),
	}
}

// CreateBuffer creates a buffer of size bytes and binds it to a fresh
// allocation from the first memory type that satisfies properties.
func (a *Allocator) CreateBuffer(size int, usage gpu.BufferUsageFlags, properties gpu.MemoryPropertyFlags) (*Buffer, error) {
	handle, err := a.device.CreateBuffer(gpu.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: gpu.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s buffer", usage)
	}
	buf := &Buffer{Handle: handle, Size: size, Usage: usage, device: a.device}

	reqs := a.device.BufferMemoryRequirements(handle)
	typeIndex, err := FindMemoryType(a.memory, reqs.MemoryTypeBits, properties)
	if err != nil {
		buf.Destroy()
		return nil, err
	}

	buf.Memory, err = a.device.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		buf.Destroy()
		return nil, errors.Wrapf(err, "allocate %s of buffer memory", units.BytesSize(float64(reqs.Size)))
	}

	if err := a.device.BindBufferMemory(handle, buf.Memory, 0); err != nil {
		buf.Destroy()
		return nil, errors.Wrap(err, "bind buffer memory")
	}

	a.log.WithFields(logrus.Fields{
		"usage":      usage.String(),
		"size":       units.BytesSize(float64(reqs.Size)),
		"memoryType": typeIndex,
		"properties": properties.String(),
	}).Debug("buffer allocated")

	return buf, nil
}

// SingleTimeCommands records fn into a one-time command buffer, submits it to
// the transfer queue and blocks until the queue is idle. The command buffer
// is freed however fn or the submission turn out.
func (a *Allocator) SingleTimeCommands(fn func(cb gpu.CommandBuffer) error) error {
	buffers, err := a.device.AllocateCommandBuffers(a.pool, 1)
	if err != nil {
		return errors.Wrap(err, "allocate one-time command buffer")
	}
	cb := buffers[0]
	defer a.device.FreeCommandBuffers(a.pool, cb)

	if err := a.device.BeginCommandBuffer(cb, gpu.CommandBufferUsageOneTimeSubmit); err != nil {
		return errors.Wrap(err, "begin one-time command buffer")
	}
	if err := fn(cb); err != nil {
		return err
	}
	if err := a.device.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end one-time command buffer")
	}

	if err := a.device.QueueSubmit(a.queue, gpu.SubmitInfo{CommandBuffers: []gpu.CommandBuffer{cb}}); err != nil {
		return errors.Wrap(err, "submit one-time command buffer")
	}
	return errors.Wrap(a.device.QueueWaitIdle(a.queue), "wait for transfer queue")
}

// CopyBuffer copies the first size bytes of src into dst.
func (a *Allocator) CopyBuffer(src, dst *Buffer, size int) error {
	return a.SingleTimeCommands(func(cb gpu.CommandBuffer) error {
		return errors.Wrap(a.device.CmdCopyBuffer(cb, src.Handle, dst.Handle, gpu.BufferCopy{Size: size}), "record buffer copy")
	})
}
