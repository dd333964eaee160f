package device

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// QueueFamilyIndices holds the queue families chosen for graphics and
// presentation. A nil index means no family qualified. Both may point at the
// same family.
type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Unique returns the distinct family indices, graphics first.
func (i QueueFamilyIndices) Unique() []int {
	if !i.IsComplete() {
		return nil
	}
	if *i.GraphicsFamily == *i.PresentFamily {
		return []int{*i.GraphicsFamily}
	}
	return []int{*i.GraphicsFamily, *i.PresentFamily}
}

// FindQueueFamilies picks, independently, the first family with at least one
// queue and graphics support, and the first family with at least one queue
// that can present to surface.
func FindQueueFamilies(pd gpu.PhysicalDevice, surface gpu.Surface) (QueueFamilyIndices, error) {
	var indices QueueFamilyIndices

	families, err := pd.QueueFamilies()
	if err != nil {
		return indices, errors.Wrap(err, "query queue families")
	}

	for i, family := range families {
		if family.QueueCount == 0 {
			continue
		}

		if indices.GraphicsFamily == nil && family.Flags&gpu.QueueGraphics != 0 {
			idx := i
			indices.GraphicsFamily = &idx
		}

		if indices.PresentFamily == nil {
			supported, err := pd.SurfaceSupport(surface, i)
			if err != nil {
				return indices, errors.Wrapf(err, "query surface support of queue family %d", i)
			}
			if supported {
				idx := i
				indices.PresentFamily = &idx
			}
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

// SwapchainSupport is what a surface offers a particular device.
type SwapchainSupport struct {
	Capabilities gpu.SurfaceCapabilities
	Formats      []gpu.SurfaceFormat
	PresentModes []gpu.PresentMode
}

func (s SwapchainSupport) IsComplete() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

func QuerySwapchainSupport(pd gpu.PhysicalDevice, surface gpu.Surface) (SwapchainSupport, error) {
	var details SwapchainSupport
	var err error

	details.Capabilities, err = pd.SurfaceCapabilities(surface)
	if err != nil {
		return details, errors.Wrap(err, "query surface capabilities")
	}

	details.Formats, err = pd.SurfaceFormats(surface)
	if err != nil {
		return details, errors.Wrap(err, "query surface formats")
	}

	details.PresentModes, err = pd.SurfacePresentModes(surface)
	if err != nil {
		return details, errors.Wrap(err, "query surface present modes")
	}

	return details, nil
}
