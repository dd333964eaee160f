// Package vkng implements the gpu interfaces on top of vkngwrapper.
//
// Handles are translated through per-type registries, so a gpu.Buffer is an
// index into the device's buffer table and never a raw driver pointer.
// Native result codes that matter to callers are turned into gpu sentinels;
// the rest become errors wrapped with the failing call.
package vkng

import (
	"sort"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/internal/logutil"
)

type Loader struct {
	driver core1_0.GlobalDriver
	log    logrus.FieldLogger
}

var _ gpu.Loader = (*Loader)(nil)

// NewLoader builds the global driver from the vkGetInstanceProcAddr the
// windowing layer loaded.
func NewLoader(procAddr unsafe.Pointer, log logrus.FieldLogger) (*Loader, error) {
	driver, err := core.CreateDriverFromProcAddr(procAddr)
	if err != nil {
		return nil, errors.Wrap(err, "create global driver")
	}
	return &Loader{driver: driver, log: logutil.OrDiscard(log)}, nil
}

func (l *Loader) InstanceExtensions() ([]string, error) {
	extensions, _, err := l.driver.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	return sortedKeys(extensions), nil
}

func (l *Loader) InstanceLayers() ([]string, error) {
	layers, _, err := l.driver.AvailableLayers()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance layers")
	}
	return sortedKeys(layers), nil
}

// CreateInstance enables portability enumeration whenever the loader offers
// it, and installs a debug messenger when the debug utils extension is
// requested.
func (l *Loader) CreateInstance(info gpu.InstanceCreateInfo) (gpu.Instance, error) {
	options := core1_0.InstanceCreateInfo{
		ApplicationName:       info.ApplicationName,
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            info.EngineName,
		EngineVersion:         common.CreateVersion(1, 0, 0),
		APIVersion:            common.Vulkan1_2,
		EnabledExtensionNames: append([]string(nil), info.Extensions...),
		EnabledLayerNames:     append([]string(nil), info.Layers...),
	}

	available, _, err := l.driver.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		options.EnabledExtensionNames = append(options.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		options.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	inst := &Instance{
		log:      l.log,
		surfaces: newRegistry[khr_surface.Surface]("surface"),
	}

	debug := capability.NewSet(info.Extensions...).Contains(capability.DebugUtilsExtension)
	if debug {
		// Chained so that instance creation and destruction are reported too.
		options.Next = inst.messengerCreateInfo()
	}

	inst.driver, _, err = l.driver.CreateInstance(nil, options)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	inst.surfaceExt = khr_surface.CreateExtensionDriverFromCoreDriver(inst.driver)

	if debug {
		inst.debugExt = ext_debug_utils.CreateExtensionDriverFromCoreDriver(inst.driver)
		inst.messenger, _, err = inst.debugExt.CreateDebugUtilsMessenger(nil, inst.messengerCreateInfo())
		if err != nil {
			inst.driver.DestroyInstance(nil)
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	l.log.WithFields(logrus.Fields{
		"extensions": options.EnabledExtensionNames,
		"layers":     options.EnabledLayerNames,
	}).Debug("instance created")
	return inst, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
