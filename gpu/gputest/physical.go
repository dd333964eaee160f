package gputest

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/vkngwrapper/frameloop/gpu"
)

// PhysicalDevice is a configurable gpu.PhysicalDevice.
type PhysicalDevice struct {
	Props            gpu.DeviceProperties
	DeviceExtensions []string
	DeviceLayers     []string
	Families         []gpu.QueueFamily
	// PresentFamilies lists the queue families that can present to any
	// surface.
	PresentFamilies []int
	Capabilities    gpu.SurfaceCapabilities
	Formats         []gpu.SurfaceFormat
	PresentModes    []gpu.PresentMode
	Memory          gpu.MemoryProperties
	// MemoryTypeBits is reported by every buffer's memory requirements. Zero
	// means every memory type is acceptable.
	MemoryTypeBits uint32

	// QueueQueries and SurfaceQueries count introspection calls, so tests
	// can see whether a candidate was examined past its capability check.
	QueueQueries   int
	SurfaceQueries int

	// Created is the logical device made from this physical device, if any.
	Created *Device

	instance *Instance
}

var _ gpu.PhysicalDevice = (*PhysicalDevice)(nil)

// NewPhysicalDevice returns a device able to run the full renderer: one
// graphics queue family that can also present, a swapchain extension, the
// validation layer and separate device-local and host-visible heaps.
func NewPhysicalDevice(name string) *PhysicalDevice {
	return &PhysicalDevice{
		Props: gpu.DeviceProperties{
			Name:              name,
			Type:              gpu.DeviceTypeDiscreteGPU,
			VendorID:          0x10de,
			DeviceID:          0x1,
			PipelineCacheUUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		},
		DeviceExtensions: []string{"VK_KHR_swapchain"},
		DeviceLayers:     []string{"VK_LAYER_KHRONOS_validation"},
		Families: []gpu.QueueFamily{
			{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, QueueCount: 1},
		},
		PresentFamilies: []int{0},
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
			MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8UnsignedNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
		Memory: gpu.MemoryProperties{
			MemoryTypes: []gpu.MemoryType{
				{PropertyFlags: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
				{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
				{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent | gpu.MemoryPropertyHostCached, HeapIndex: 1},
			},
			MemoryHeaps: []gpu.MemoryHeap{
				{Size: 4 << 30, DeviceLocal: true},
				{Size: 8 << 30},
			},
		},
	}
}

func (p *PhysicalDevice) Properties() (gpu.DeviceProperties, error) {
	return p.Props, nil
}

func (p *PhysicalDevice) Extensions() ([]string, error) {
	return append([]string(nil), p.DeviceExtensions...), nil
}

func (p *PhysicalDevice) Layers() ([]string, error) {
	return append([]string(nil), p.DeviceLayers...), nil
}

func (p *PhysicalDevice) QueueFamilies() ([]gpu.QueueFamily, error) {
	p.QueueQueries++
	return append([]gpu.QueueFamily(nil), p.Families...), nil
}

func (p *PhysicalDevice) MemoryProperties() (gpu.MemoryProperties, error) {
	return p.Memory, nil
}

func (p *PhysicalDevice) SurfaceSupport(surface gpu.Surface, queueFamily int) (bool, error) {
	p.SurfaceQueries++
	if err := p.checkSurface(surface); err != nil {
		return false, err
	}
	for _, f := range p.PresentFamilies {
		if f == queueFamily {
			return true, nil
		}
	}
	return false, nil
}

func (p *PhysicalDevice) SurfaceCapabilities(surface gpu.Surface) (gpu.SurfaceCapabilities, error) {
	p.SurfaceQueries++
	if err := p.checkSurface(surface); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	return p.Capabilities, nil
}

func (p *PhysicalDevice) SurfaceFormats(surface gpu.Surface) ([]gpu.SurfaceFormat, error) {
	p.SurfaceQueries++
	if err := p.checkSurface(surface); err != nil {
		return nil, err
	}
	return append([]gpu.SurfaceFormat(nil), p.Formats...), nil
}

func (p *PhysicalDevice) SurfacePresentModes(surface gpu.Surface) ([]gpu.PresentMode, error) {
	p.SurfaceQueries++
	if err := p.checkSurface(surface); err != nil {
		return nil, err
	}
	return append([]gpu.PresentMode(nil), p.PresentModes...), nil
}

func (p *PhysicalDevice) checkSurface(surface gpu.Surface) error {
	if !surface.Initialized() {
		return errors.New("null surface")
	}
	if p.instance != nil && !p.instance.surfaces[surface] {
		return errors.Newf("surface %d is not alive", surface)
	}
	return nil
}

func (p *PhysicalDevice) CreateDevice(info gpu.DeviceCreateInfo) (gpu.Device, error) {
	if len(info.QueueCreateInfos) == 0 {
		return nil, errors.New("no queues requested")
	}
	seen := map[int]bool{}
	for _, q := range info.QueueCreateInfos {
		if q.QueueFamilyIndex < 0 || q.QueueFamilyIndex >= len(p.Families) {
			return nil, errors.Newf("queue family %d out of range", q.QueueFamilyIndex)
		}
		if seen[q.QueueFamilyIndex] {
			return nil, errors.Newf("queue family %d requested twice", q.QueueFamilyIndex)
		}
		seen[q.QueueFamilyIndex] = true
	}
	for _, ext := range info.Extensions {
		if !contains(p.DeviceExtensions, ext) {
			return nil, errors.Newf("device extension %s not present", ext)
		}
	}
	for _, layer := range info.Layers {
		if !contains(p.DeviceLayers, layer) {
			return nil, errors.Newf("device layer %s not present", layer)
		}
	}

	d := newDevice(p, info)
	p.Created = d
	return d, nil
}
