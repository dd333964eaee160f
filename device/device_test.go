package device_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/vkngwrapper/frameloop/capability"
	"github.com/vkngwrapper/frameloop/device"
	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/gputest"
)

func newInstance(c *qt.C, devices ...*gputest.PhysicalDevice) (*gputest.Instance, gpu.Surface) {
	loader := &gputest.Loader{Devices: devices}
	inst, err := loader.CreateInstance(gpu.InstanceCreateInfo{})
	c.Assert(err, qt.IsNil)
	fake := inst.(*gputest.Instance)
	return fake, fake.CreateSurface()
}

var release = capability.Requirements(false, nil)

func TestSelectNoDevices(t *testing.T) {
	c := qt.New(t)
	inst, surface := newInstance(c)

	_, err := device.Select(inst, surface, release, nil)
	c.Assert(errors.Is(err, device.ErrNoDevicesFound), qt.IsTrue)
}

func TestSelectSkipsInsufficientCandidates(t *testing.T) {
	c := qt.New(t)

	noFormats := gputest.NewPhysicalDevice("no formats")
	noFormats.Formats = nil
	noSwapchain := gputest.NewPhysicalDevice("no swapchain")
	noSwapchain.DeviceExtensions = nil
	complete := gputest.NewPhysicalDevice("complete")

	inst, surface := newInstance(c, noFormats, noSwapchain, complete)

	selected, err := device.Select(inst, surface, release, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(selected.Properties.Name, qt.Equals, "complete")
	c.Assert(selected.Physical, qt.Equals, gpu.PhysicalDevice(complete))
	c.Assert(selected.QueueFamilies.IsComplete(), qt.IsTrue)
	c.Assert(selected.SwapchainSupport.IsComplete(), qt.IsTrue)

	// A capability shortfall rejects the candidate before any queue or
	// surface introspection.
	c.Assert(noSwapchain.QueueQueries, qt.Equals, 0)
	c.Assert(noSwapchain.SurfaceQueries, qt.Equals, 0)
	c.Assert(noFormats.SurfaceQueries > 0, qt.IsTrue)
}

func TestSelectFirstFitWinsTies(t *testing.T) {
	c := qt.New(t)

	first := gputest.NewPhysicalDevice("first")
	first.Props.Type = gpu.DeviceTypeIntegratedGPU
	second := gputest.NewPhysicalDevice("second")

	inst, surface := newInstance(c, first, second)

	selected, err := device.Select(inst, surface, release, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(selected.Properties.Name, qt.Equals, "first")
	c.Assert(second.QueueQueries, qt.Equals, 0)
}

func TestSelectNoSufficientDevice(t *testing.T) {
	c := qt.New(t)

	noPresent := gputest.NewPhysicalDevice("no present")
	noPresent.PresentFamilies = nil
	noModes := gputest.NewPhysicalDevice("no modes")
	noModes.PresentModes = nil

	inst, surface := newInstance(c, noPresent, noModes)

	_, err := device.Select(inst, surface, release, nil)
	c.Assert(errors.Is(err, device.ErrNoSufficientDevice), qt.IsTrue)
}

func TestSelectDebugNeedsDeviceLayer(t *testing.T) {
	c := qt.New(t)

	noLayer := gputest.NewPhysicalDevice("no layer")
	noLayer.DeviceLayers = nil
	inst, surface := newInstance(c, noLayer)

	_, err := device.Select(inst, surface, capability.Requirements(true, nil), nil)
	c.Assert(errors.Is(err, device.ErrNoSufficientDevice), qt.IsTrue)

	_, err = device.Select(inst, surface, release, nil)
	c.Assert(err, qt.IsNil)
}

func TestSelectLogsEveryCandidate(t *testing.T) {
	c := qt.New(t)

	noSwapchain := gputest.NewPhysicalDevice("no swapchain")
	noSwapchain.DeviceExtensions = []string{"VK_KHR_maintenance1"}
	noPresent := gputest.NewPhysicalDevice("no present")
	noPresent.PresentFamilies = nil
	complete := gputest.NewPhysicalDevice("complete")
	inst, surface := newInstance(c, noSwapchain, noPresent, complete)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err := device.Select(inst, surface, release, logger)
	c.Assert(err, qt.IsNil)

	entries := hook.AllEntries()
	c.Assert(entries, qt.HasLen, 3)

	c.Assert(entries[0].Data["device"], qt.Equals, "no swapchain")
	c.Assert(entries[0].Data["missingExtensions"], qt.DeepEquals, []string{capability.SwapchainExtension})
	c.Assert(entries[0].Data["accepted"], qt.Equals, false)

	c.Assert(entries[1].Data["device"], qt.Equals, "no present")
	c.Assert(entries[1].Data["queueFamiliesComplete"], qt.Equals, false)
	c.Assert(entries[1].Data["swapchainComplete"], qt.Equals, true)
	c.Assert(entries[1].Data["accepted"], qt.Equals, false)

	c.Assert(entries[2].Data["device"], qt.Equals, "complete")
	c.Assert(entries[2].Data["cacheUUID"], qt.Equals, complete.Props.PipelineCacheUUID.String())
	c.Assert(entries[2].Data["accepted"], qt.Equals, true)
	c.Assert(entries[2].Level, qt.Equals, logrus.DebugLevel)
}

func TestFindQueueFamiliesIndependent(t *testing.T) {
	c := qt.New(t)

	pd := gputest.NewPhysicalDevice("split")
	pd.Families = []gpu.QueueFamily{
		{Flags: gpu.QueueGraphics, QueueCount: 0},
		{Flags: gpu.QueueGraphics | gpu.QueueTransfer, QueueCount: 1},
		{Flags: gpu.QueueTransfer, QueueCount: 2},
	}
	pd.PresentFamilies = []int{0, 2}
	_, surface := newInstance(c, pd)

	indices, err := device.FindQueueFamilies(pd, surface)
	c.Assert(err, qt.IsNil)
	c.Assert(indices.IsComplete(), qt.IsTrue)
	c.Assert(*indices.GraphicsFamily, qt.Equals, 1)
	c.Assert(*indices.PresentFamily, qt.Equals, 2)
	c.Assert(indices.Unique(), qt.DeepEquals, []int{1, 2})
}

func TestFindQueueFamiliesShared(t *testing.T) {
	c := qt.New(t)

	pd := gputest.NewPhysicalDevice("shared")
	_, surface := newInstance(c, pd)

	indices, err := device.FindQueueFamilies(pd, surface)
	c.Assert(err, qt.IsNil)
	c.Assert(*indices.GraphicsFamily, qt.Equals, 0)
	c.Assert(*indices.PresentFamily, qt.Equals, 0)
	c.Assert(indices.Unique(), qt.DeepEquals, []int{0})
}

func TestCreateLogicalDevice(t *testing.T) {
	c := qt.New(t)

	pd := gputest.NewPhysicalDevice("split")
	pd.Families = []gpu.QueueFamily{
		{Flags: gpu.QueueGraphics, QueueCount: 1},
		{Flags: gpu.QueueTransfer, QueueCount: 1},
	}
	pd.PresentFamilies = []int{1}
	inst, surface := newInstance(c, pd)

	req := capability.Requirements(true, nil)
	selected, err := device.Select(inst, surface, req, nil)
	c.Assert(err, qt.IsNil)

	logical, err := device.CreateLogicalDevice(selected.Physical, selected.QueueFamilies, req)
	c.Assert(err, qt.IsNil)
	c.Assert(logical.GraphicsQueue.Initialized(), qt.IsTrue)
	c.Assert(logical.PresentQueue.Initialized(), qt.IsTrue)
	c.Assert(logical.GraphicsQueue, qt.Not(qt.Equals), logical.PresentQueue)

	fake := logical.Device.(*gputest.Device)
	c.Assert(fake.Info.QueueCreateInfos, qt.HasLen, 2)
	c.Assert(fake.Info.Extensions, qt.DeepEquals, []string{capability.SwapchainExtension})
	c.Assert(fake.Info.Layers, qt.DeepEquals, []string{capability.ValidationLayer})
	c.Assert(fake.Violations, qt.HasLen, 0)
}

func TestCreateLogicalDeviceIncomplete(t *testing.T) {
	c := qt.New(t)

	_, err := device.CreateLogicalDevice(gputest.NewPhysicalDevice("x"), device.QueueFamilyIndices{}, release)
	c.Assert(err, qt.ErrorMatches, "queue family indices are incomplete")
}
