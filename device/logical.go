package device

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/gpu"
)

type Logical struct {
	Device        gpu.Device
	GraphicsQueue gpu.Queue
	PresentQueue  gpu.Queue
}

// CreateLogicalDevice creates one queue per distinct family in indices and
// enables the required device extensions and layers.
func CreateLogicalDevice(pd gpu.PhysicalDevice, indices QueueFamilyIndices, req capability.Required) (Logical, error) {
	if !indices.IsComplete() {
		return Logical{}, errors.New("queue family indices are incomplete")
	}

	var queueInfos []gpu.DeviceQueueCreateInfo
	for _, family := range indices.Unique() {
		queueInfos = append(queueInfos, gpu.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	dev, err := pd.CreateDevice(gpu.DeviceCreateInfo{
		QueueCreateInfos: queueInfos,
		Extensions:       req.DeviceExtensions,
		Layers:           req.DeviceLayers,
	})
	if err != nil {
		return Logical{}, errors.Wrap(err, "create logical device")
	}

	return Logical{
		Device:        dev,
		GraphicsQueue: dev.GetQueue(*indices.GraphicsFamily, 0),
		PresentQueue:  dev.GetQueue(*indices.PresentFamily, 0),
	}, nil
}
