package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/frameloop/gpu"
)

type Instance struct {
	driver     core1_0.CoreInstanceDriver
	surfaceExt khr_surface.ExtensionDriver
	debugExt   ext_debug_utils.ExtensionDriver
	messenger  ext_debug_utils.DebugUtilsMessenger
	surfaces   *registry[khr_surface.Surface]
	log        logrus.FieldLogger
}

var _ gpu.Instance = (*Instance)(nil)

// SurfaceFunc creates a native surface for a window. The windowing
// integration supplies it.
type SurfaceFunc func(instance core1_0.Instance, surfaceExt khr_surface.ExtensionDriver) (khr_surface.Surface, error)

// CreateSurface registers a surface built by create. The instance owns it
// from then on and DestroySurface releases it.
func (i *Instance) CreateSurface(create SurfaceFunc) (gpu.Surface, error) {
	surface, err := create(i.driver.Instance(), i.surfaceExt)
	if err != nil {
		return 0, errors.Wrap(err, "create surface")
	}
	return gpu.Surface(i.surfaces.add(surface)), nil
}

func (i *Instance) surface(h gpu.Surface) (khr_surface.Surface, error) {
	return i.surfaces.get(uint64(h))
}

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	devices, _, err := i.driver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	out := make([]gpu.PhysicalDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, &PhysicalDevice{instance: i, device: d})
	}
	return out, nil
}

func (i *Instance) DestroySurface(h gpu.Surface) {
	if surface, ok := i.surfaces.take(uint64(h)); ok {
		i.surfaceExt.DestroySurface(surface, nil)
	}
}

func (i *Instance) Destroy() {
	if i.messenger.Initialized() {
		i.debugExt.DestroyDebugUtilsMessenger(i.messenger, nil)
	}
	if n := i.surfaces.len(); n > 0 {
		i.log.WithField("surfaces", n).Warn("instance destroyed with live surfaces")
	}
	i.driver.DestroyInstance(nil)
}

func (i *Instance) messengerCreateInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityInfo | ext_debug_utils.SeverityVerbose,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    i.logDebug,
	}
}

// logDebug forwards validation messages to the logger. Returning false lets
// the call that triggered the message continue.
func (i *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	entry := i.log.WithFields(logrus.Fields{
		"type":      msgType.String(),
		"messageID": data.MessageIDName,
	})
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		entry.Error(data.Message)
	case severity&ext_debug_utils.SeverityWarning != 0:
		entry.Warn(data.Message)
	case severity&ext_debug_utils.SeverityInfo != 0:
		entry.Info(data.Message)
	default:
		entry.Debug(data.Message)
	}
	return false
}
