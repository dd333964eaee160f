package resource_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
	"github.com/vkngwrapper/frameloop/resource"
)

func TestFindMemoryType(t *testing.T) {
	c := qt.New(t)

	props := gpu.MemoryProperties{MemoryTypes: []gpu.MemoryType{
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal},
		{PropertyFlags: gpu.MemoryPropertyHostVisible},
		{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal | gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent},
	}}
	coherent := gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent

	tests := []struct {
		name     string
		bits     uint32
		required gpu.MemoryPropertyFlags
		want     int
	}{
		{"first match", 0xf, gpu.MemoryPropertyDeviceLocal, 0},
		{"superset accepted", 0xf, gpu.MemoryPropertyHostVisible, 1},
		{"all flags needed", 0xf, coherent, 2},
		{"type bits filter", 0x8, coherent, 3},
		{"type bits skip first", 0xe, gpu.MemoryPropertyDeviceLocal, 3},
		{"no flags", 0x4, 0, 2},
	}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			got, err := resource.FindMemoryType(props, test.bits, test.required)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, test.want)
		})
	}

	_, err := resource.FindMemoryType(props, 0x3, coherent)
	c.Assert(errors.Is(err, resource.ErrNoSuitableMemoryType), qt.IsTrue)
	_, err = resource.FindMemoryType(props, 0, 0)
	c.Assert(errors.Is(err, resource.ErrNoSuitableMemoryType), qt.IsTrue)
}

type fixture struct {
	pd    *gputest.PhysicalDevice
	dev   *gputest.Device
	pool  gpu.CommandPool
	alloc *resource.Allocator
}

func newFixture(c *qt.C) *fixture {
	pd := gputest.NewPhysicalDevice("gpu")
	d, err := pd.CreateDevice(gpu.DeviceCreateInfo{
		QueueCreateInfos: []gpu.DeviceQueueCreateInfo{{QueueFamilyIndex: 0, QueuePriorities: []float32{1}}},
	})
	c.Assert(err, qt.IsNil)
	dev := d.(*gputest.Device)

	pool, err := dev.CreateCommandPool(gpu.CommandPoolCreateInfo{QueueFamilyIndex: 0})
	c.Assert(err, qt.IsNil)

	return &fixture{
		pd:    pd,
		dev:   dev,
		pool:  pool,
		alloc: resource.NewAllocator(dev, pd.Memory, pool, dev.GetQueue(0, 0), nil),
	}
}

func (f *fixture) close(c *qt.C) {
	f.dev.DestroyCommandPool(f.pool)
	c.Assert(f.dev.Live(), qt.HasLen, 0)
	c.Assert(f.dev.Violations, qt.HasLen, 0)
}

func TestUploadRoundTrip(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	data := make([]byte, 0xFF)
	for i := range data {
		data[i] = byte(i + 1)
	}

	buf, err := f.alloc.UploadViaStaging(data, gpu.BufferUsageVertexBuffer|gpu.BufferUsageTransferSrc)
	c.Assert(err, qt.IsNil)
	c.Assert(buf.Size, qt.Equals, len(data))
	c.Assert(buf.Usage, qt.Equals, gpu.BufferUsageVertexBuffer|gpu.BufferUsageTransferSrc|gpu.BufferUsageTransferDst)

	memType := f.pd.Memory.MemoryTypes[f.dev.MemoryTypeOf(buf.Handle)]
	c.Assert(memType.PropertyFlags&gpu.MemoryPropertyDeviceLocal, qt.Not(qt.Equals), gpu.MemoryPropertyFlags(0))

	// Device-local memory is never written from the host.
	_, err = f.dev.MapMemory(buf.Memory, 0, buf.Size)
	c.Assert(err, qt.IsNotNil)
	f.dev.Violations = nil

	got, err := f.alloc.Download(buf, len(data))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, data)

	// Only the destination buffer outlives the upload.
	c.Assert(f.dev.Live(), qt.HasLen, 3)

	buf.Destroy()
	buf.Destroy()
	f.close(c)
}

func TestUploadUsesOneTimeSubmitAndWaits(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	buf, err := f.alloc.UploadViaStaging([]byte{1, 2, 3, 4}, gpu.BufferUsageIndexBuffer)
	c.Assert(err, qt.IsNil)

	submits := f.dev.EventsOf(gputest.OpSubmit)
	c.Assert(submits, qt.HasLen, 1)
	c.Assert(submits[0].Wait, qt.HasLen, 0)
	c.Assert(submits[0].Signal, qt.HasLen, 0)

	buf.Destroy()
	f.close(c)
}

func TestUpdate(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	buf, err := f.alloc.UploadViaStaging(make([]byte, 8), gpu.BufferUsageUniformBuffer|gpu.BufferUsageTransferSrc)
	c.Assert(err, qt.IsNil)

	c.Assert(f.alloc.Update(buf, []byte{9, 8, 7}), qt.IsNil)
	got, err := f.alloc.Download(buf, buf.Size)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []byte{9, 8, 7, 0, 0, 0, 0, 0})

	c.Assert(f.alloc.Update(buf, make([]byte, 9)), qt.ErrorMatches, "update of 9 bytes into a 8 byte buffer")

	buf.Destroy()
	f.close(c)
}

func TestUploadEmpty(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	_, err := f.alloc.UploadViaStaging(nil, gpu.BufferUsageVertexBuffer)
	c.Assert(err, qt.ErrorMatches, "upload of zero bytes")
	f.close(c)
}

func TestCreateBufferNoSuitableMemory(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	// Only the device-local type is allowed, but host-visible is requested.
	f.pd.MemoryTypeBits = 0x1

	_, err := f.alloc.CreateBuffer(64, gpu.BufferUsageTransferSrc, gpu.MemoryPropertyHostVisible)
	c.Assert(errors.Is(err, resource.ErrNoSuitableMemoryType), qt.IsTrue)
	f.close(c)
}

func TestSingleTimeCommandsFreesOnError(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	boom := errors.New("boom")
	err := f.alloc.SingleTimeCommands(func(cb gpu.CommandBuffer) error {
		c.Assert(cb.Initialized(), qt.IsTrue)
		return boom
	})
	c.Assert(errors.Is(err, boom), qt.IsTrue)
	c.Assert(f.dev.EventsOf(gputest.OpSubmit), qt.HasLen, 0)

	f.dev.FailOn("QueueSubmit", errors.New("device lost"))
	err = f.alloc.SingleTimeCommands(func(cb gpu.CommandBuffer) error { return nil })
	c.Assert(err, qt.ErrorMatches, "submit one-time command buffer: device lost")

	// Only the command pool is left.
	c.Assert(f.dev.Live(), qt.HasLen, 1)
	f.close(c)
}

func TestUniformDescriptorSets(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	uniform, err := f.alloc.CreateBuffer(192, gpu.BufferUsageUniformBuffer|gpu.BufferUsageTransferDst, gpu.MemoryPropertyDeviceLocal)
	c.Assert(err, qt.IsNil)
	layout, err := f.dev.CreateDescriptorSetLayout([]gpu.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: gpu.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: gpu.StageVertex},
	})
	c.Assert(err, qt.IsNil)

	sets, err := resource.NewUniformDescriptorSets(f.dev, layout, uniform, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(sets.Sets, qt.HasLen, 3)
	c.Assert(f.dev.Writes, qt.HasLen, 3)
	for i, w := range f.dev.Writes {
		c.Assert(w.DstSet, qt.Equals, sets.Sets[i])
		c.Assert(w.BufferInfo, qt.DeepEquals, []gpu.DescriptorBufferInfo{{Buffer: uniform.Handle, Range: 192}})
	}

	sets.Destroy()
	sets.Destroy()
	f.dev.DestroyDescriptorSetLayout(layout)
	uniform.Destroy()
	f.close(c)
}
