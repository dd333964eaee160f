package swapchain

import (
	"github.com/vkngwrapper/frameloop/device"
	"github.com/vkngwrapper/frameloop/gpu"
)

// DefaultSurfaceFormat is used whenever the surface leaves the choice open.
var DefaultSurfaceFormat = gpu.SurfaceFormat{
	Format:     gpu.FormatB8G8R8A8UnsignedNorm,
	ColorSpace: gpu.ColorSpaceSRGBNonlinear,
}

// ChooseSurfaceFormat prefers DefaultSurfaceFormat. A single undefined entry
// means the surface has no preference at all.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == gpu.FormatUndefined {
		return DefaultSurfaceFormat
	}

	for _, format := range formats {
		if format == DefaultSurfaceFormat {
			return format
		}
	}

	if len(formats) == 0 {
		return DefaultSurfaceFormat
	}
	return formats[0]
}

// ChoosePresentMode takes mailbox when offered and FIFO otherwise, which
// every surface supports.
func ChoosePresentMode(modes []gpu.PresentMode) gpu.PresentMode {
	for _, mode := range modes {
		if mode == gpu.PresentModeMailbox {
			return mode
		}
	}
	return gpu.PresentModeFIFO
}

// ChooseExtent uses the surface's current extent when it is fixed, and
// otherwise clamps the window size into the surface's bounds one dimension
// at a time.
func ChooseExtent(caps gpu.SurfaceCapabilities, width, height int) gpu.Extent2D {
	if caps.CurrentExtent.Defined() {
		return caps.CurrentExtent
	}

	return gpu.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ImageCount asks for one image more than the minimum so the renderer never
// waits on the presentation engine to release its last image, bounded by
// the maximum when the surface advertises one.
func ImageCount(caps gpu.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// SharingMode shares images concurrently between distinct graphics and
// present families. A single family gets exclusive ownership and no family
// list.
func SharingMode(indices device.QueueFamilyIndices) (gpu.SharingMode, []int) {
	unique := indices.Unique()
	if len(unique) > 1 {
		return gpu.SharingModeConcurrent, unique
	}
	return gpu.SharingModeExclusive, nil
}
