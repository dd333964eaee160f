package capability

const (
	SwapchainExtension  = "VK_KHR_swapchain"
	DebugUtilsExtension = "VK_EXT_debug_utils"
	ValidationLayer     = "VK_LAYER_KHRONOS_validation"
)

// Required is the full set of capabilities a renderer asks for.
type Required struct {
	InstanceExtensions []string
	InstanceLayers     []string
	DeviceExtensions   []string
	DeviceLayers       []string
}

// Requirements computes the capability sets once, at construction. Debug
// builds add the debug messenger extension and the validation layer at both
// instance and device level; rendering is otherwise identical.
func Requirements(debug bool, windowExtensions []string) Required {
	req := Required{
		InstanceExtensions: append([]string(nil), windowExtensions...),
		DeviceExtensions:   []string{SwapchainExtension},
	}
	if debug {
		req.InstanceExtensions = append(req.InstanceExtensions, DebugUtilsExtension)
		req.InstanceLayers = []string{ValidationLayer}
		req.DeviceLayers = []string{ValidationLayer}
	}
	return req
}
