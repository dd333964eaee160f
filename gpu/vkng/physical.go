package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/frameloop/gpu"
)

type PhysicalDevice struct {
	instance *Instance
	device   core1_0.PhysicalDevice
}

var _ gpu.PhysicalDevice = (*PhysicalDevice)(nil)

func (p *PhysicalDevice) Properties() (gpu.DeviceProperties, error) {
	props, err := p.instance.driver.GetPhysicalDeviceProperties(p.device)
	if err != nil {
		return gpu.DeviceProperties{}, errors.Wrap(err, "get physical device properties")
	}
	return gpu.DeviceProperties{
		Name:              props.DriverName,
		Type:              gpu.DeviceType(props.DriverType),
		VendorID:          props.VendorID,
		DeviceID:          props.DeviceID,
		PipelineCacheUUID: props.PipelineCacheUUID,
	}, nil
}

func (p *PhysicalDevice) Extensions() ([]string, error) {
	extensions, _, err := p.instance.driver.EnumerateDeviceExtensionProperties(p.device)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	return sortedKeys(extensions), nil
}

func (p *PhysicalDevice) Layers() ([]string, error) {
	layers, _, err := p.instance.driver.EnumerateDeviceLayerProperties(p.device)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device layers")
	}
	return sortedKeys(layers), nil
}

func (p *PhysicalDevice) QueueFamilies() ([]gpu.QueueFamily, error) {
	families := p.instance.driver.GetPhysicalDeviceQueueFamilyProperties(p.device)
	out := make([]gpu.QueueFamily, 0, len(families))
	for _, f := range families {
		out = append(out, gpu.QueueFamily{
			Flags:      gpu.QueueFlags(f.QueueFlags),
			QueueCount: int(f.QueueCount),
		})
	}
	return out, nil
}

func (p *PhysicalDevice) MemoryProperties() (gpu.MemoryProperties, error) {
	props := p.instance.driver.GetPhysicalDeviceMemoryProperties(p.device)
	var out gpu.MemoryProperties
	for _, t := range props.MemoryTypes {
		out.MemoryTypes = append(out.MemoryTypes, gpu.MemoryType{
			PropertyFlags: gpu.MemoryPropertyFlags(t.PropertyFlags),
			HeapIndex:     int(t.HeapIndex),
		})
	}
	for _, h := range props.MemoryHeaps {
		out.MemoryHeaps = append(out.MemoryHeaps, gpu.MemoryHeap{
			Size:        int(h.Size),
			DeviceLocal: h.Flags&core1_0.MemoryHeapDeviceLocal != 0,
		})
	}
	return out, nil
}

func (p *PhysicalDevice) SurfaceSupport(h gpu.Surface, queueFamily int) (bool, error) {
	surface, err := p.instance.surface(h)
	if err != nil {
		return false, err
	}
	supported, _, err := p.instance.surfaceExt.GetPhysicalDeviceSurfaceSupport(surface, p.device, queueFamily)
	if err != nil {
		return false, errors.Wrapf(err, "query surface support of queue family %d", queueFamily)
	}
	return supported, nil
}

func (p *PhysicalDevice) SurfaceCapabilities(h gpu.Surface) (gpu.SurfaceCapabilities, error) {
	surface, err := p.instance.surface(h)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps, _, err := p.instance.surfaceExt.GetPhysicalDeviceSurfaceCapabilities(surface, p.device)
	if err != nil {
		return gpu.SurfaceCapabilities{}, errors.Wrap(err, "query surface capabilities")
	}
	return gpu.SurfaceCapabilities{
		MinImageCount:    int(caps.MinImageCount),
		MaxImageCount:    int(caps.MaxImageCount),
		CurrentExtent:    extentFromCore(caps.CurrentExtent),
		MinImageExtent:   extentFromCore(caps.MinImageExtent),
		MaxImageExtent:   extentFromCore(caps.MaxImageExtent),
		CurrentTransform: uint32(caps.CurrentTransform),
	}, nil
}

func (p *PhysicalDevice) SurfaceFormats(h gpu.Surface) ([]gpu.SurfaceFormat, error) {
	surface, err := p.instance.surface(h)
	if err != nil {
		return nil, err
	}
	formats, _, err := p.instance.surfaceExt.GetPhysicalDeviceSurfaceFormats(surface, p.device)
	if err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	out := make([]gpu.SurfaceFormat, 0, len(formats))
	for _, f := range formats {
		out = append(out, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

func (p *PhysicalDevice) SurfacePresentModes(h gpu.Surface) ([]gpu.PresentMode, error) {
	surface, err := p.instance.surface(h)
	if err != nil {
		return nil, err
	}
	modes, _, err := p.instance.surfaceExt.GetPhysicalDeviceSurfacePresentModes(surface, p.device)
	if err != nil {
		return nil, errors.Wrap(err, "query surface present modes")
	}
	out := make([]gpu.PresentMode, 0, len(modes))
	for _, m := range modes {
		out = append(out, gpu.PresentMode(m))
	}
	return out, nil
}

// CreateDevice adds the portability subset extension when the device
// exposes it, as the portability spec requires.
func (p *PhysicalDevice) CreateDevice(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	var queues []core1_0.DeviceQueueCreateInfo
	for _, q := range info.QueueCreateInfos {
		queues = append(queues, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: q.QueueFamilyIndex,
			QueuePriorities:  q.QueuePriorities,
		})
	}

	extensionNames := append([]string(nil), info.Extensions...)
	available, _, err := p.instance.driver.EnumerateDeviceExtensionProperties(p.device)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	if _, ok := available[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	driver, _, err := p.instance.driver.CreateDevice(p.device, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queues,
		EnabledExtensionNames: extensionNames,
		EnabledLayerNames:     info.Layers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	return newDevice(driver, khr_swapchain.CreateExtensionDriverFromCoreDriver(driver), p.instance), nil
}
