package resource

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// DescriptorSets is a pool holding one uniform-buffer set per swapchain
// image. Every set points at the same buffer.
type DescriptorSets struct {
	Pool gpu.DescriptorPool
	Sets []gpu.DescriptorSet

	device gpu.Device
}

func NewUniformDescriptorSets(dev gpu.Device, layout gpu.DescriptorSetLayout, uniform *Buffer, count int) (*DescriptorSets, error) {
	pool, err := dev.CreateDescriptorPool(gpu.DescriptorPoolCreateInfo{
		MaxSets: count,
		PoolSizes: []gpu.DescriptorPoolSize{
			{Type: gpu.DescriptorTypeUniformBuffer, DescriptorCount: count},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	ds := &DescriptorSets{Pool: pool, device: dev}

	layouts := make([]gpu.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	ds.Sets, err = dev.AllocateDescriptorSets(pool, layouts)
	if err != nil {
		ds.Destroy()
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}

	writes := make([]gpu.WriteDescriptorSet, 0, len(ds.Sets))
	for _, set := range ds.Sets {
		writes = append(writes, gpu.WriteDescriptorSet{
			DstSet:         set,
			DstBinding:     0,
			DescriptorType: gpu.DescriptorTypeUniformBuffer,
			BufferInfo: []gpu.DescriptorBufferInfo{
				{Buffer: uniform.Handle, Offset: 0, Range: uniform.Size},
			},
		})
	}
	if err := dev.UpdateDescriptorSets(writes); err != nil {
		ds.Destroy()
		return nil, errors.Wrap(err, "write descriptor sets")
	}

	return ds, nil
}

// Destroy frees the pool and with it every set. Safe to call twice.
func (d *DescriptorSets) Destroy() {
	if d == nil || !d.Pool.Initialized() {
		return
	}
	d.device.DestroyDescriptorPool(d.Pool)
	d.Pool = 0
	d.Sets = nil
}
