// Package device chooses a physical device able to render to a surface and
// creates the logical device on it.
package device

import (
	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/internal/logutil"
)

var (
	ErrNoDevicesFound     = errors.New("no physical devices found")
	ErrNoSufficientDevice = errors.New("no physical device meets the renderer's requirements")
)

// Selected is the accepted physical device together with the facts that got
// it accepted.
type Selected struct {
	Physical         gpu.PhysicalDevice
	Properties       gpu.DeviceProperties
	QueueFamilies    QueueFamilyIndices
	SwapchainSupport SwapchainSupport
}

// Select walks the instance's physical devices in enumeration order and
// returns the first one that has every required device extension and layer,
// a graphics and a present queue family, and at least one surface format and
// present mode. Each candidate is logged at debug level whatever the outcome.
func Select(instance gpu.Instance, surface gpu.Surface, req capability.Required, log logrus.FieldLogger) (Selected, error) {
	log = logutil.OrDiscard(log)

	devices, err := instance.PhysicalDevices()
	if err != nil {
		return Selected{}, errors.Wrap(err, "enumerate physical devices")
	}
	if len(devices) == 0 {
		return Selected{}, ErrNoDevicesFound
	}

	for _, pd := range devices {
		selected, ok, err := evaluate(pd, surface, req, log)
		if err != nil {
			return Selected{}, err
		}
		if ok {
			return selected, nil
		}
	}

	return Selected{}, errors.Wrapf(ErrNoSufficientDevice, "%d candidates examined", len(devices))
}

func evaluate(pd gpu.PhysicalDevice, surface gpu.Surface, req capability.Required, log logrus.FieldLogger) (Selected, bool, error) {
	props, err := pd.Properties()
	if err != nil {
		return Selected{}, false, errors.Wrap(err, "query device properties")
	}
	extensions, err := pd.Extensions()
	if err != nil {
		return Selected{}, false, errors.Wrapf(err, "enumerate extensions of %s", props.Name)
	}
	layers, err := pd.Layers()
	if err != nil {
		return Selected{}, false, errors.Wrapf(err, "enumerate layers of %s", props.Name)
	}

	entry := log.WithFields(logrus.Fields{
		"device":    props.Name,
		"type":      props.Type.String(),
		"cacheUUID": props.PipelineCacheUUID.String(),
	})

	missingExtensions := capability.Missing(req.DeviceExtensions, extensions)
	missingLayers := capability.Missing(req.DeviceLayers, layers)
	if len(missingExtensions) > 0 || len(missingLayers) > 0 {
		entry.WithFields(logrus.Fields{
			"missingExtensions":     missingExtensions,
			"missingLayers":         missingLayers,
			"queueFamiliesComplete": false,
			"swapchainComplete":     false,
			"accepted":              false,
		}).Debug("physical device rejected")
		return Selected{}, false, nil
	}

	indices, err := FindQueueFamilies(pd, surface)
	if err != nil {
		return Selected{}, false, errors.Wrapf(err, "inspect %s", props.Name)
	}
	support, err := QuerySwapchainSupport(pd, surface)
	if err != nil {
		return Selected{}, false, errors.Wrapf(err, "inspect %s", props.Name)
	}

	accepted := indices.IsComplete() && support.IsComplete()
	entry = entry.WithFields(logrus.Fields{
		"missingExtensions":     missingExtensions,
		"missingLayers":         missingLayers,
		"queueFamiliesComplete": indices.IsComplete(),
		"swapchainComplete":     support.IsComplete(),
		"accepted":              accepted,
	})
	if !accepted {
		entry.Debug("physical device rejected")
		return Selected{}, false, nil
	}

	if mem, err := pd.MemoryProperties(); err == nil {
		entry = entry.WithField("deviceLocalMemory", units.BytesSize(float64(deviceLocalBytes(mem))))
	}
	entry.Debug("physical device accepted")

	return Selected{
		Physical:         pd,
		Properties:       props,
		QueueFamilies:    indices,
		SwapchainSupport: support,
	}, true, nil
}

func deviceLocalBytes(mem gpu.MemoryProperties) int {
	total := 0
	for _, heap := range mem.MemoryHeaps {
		if heap.DeviceLocal {
			total += heap.Size
		}
	}
	return total
}
