package capability_test

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/vkngwrapper/frameloop/capability"
)

func TestMatchAllPresent(t *testing.T) {
	c := qt.New(t)

	required := []string{"VK_KHR_surface", "VK_KHR_xlib_surface"}
	got, err := capability.Match(capability.Extension, capability.Instance, required,
		[]string{"VK_KHR_xlib_surface", "VK_EXT_debug_utils", "VK_KHR_surface"})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, required)
}

func TestMatchEmptyRequired(t *testing.T) {
	c := qt.New(t)

	got, err := capability.Match(capability.Layer, capability.Device, nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}

func TestMatchReportsExactShortfall(t *testing.T) {
	c := qt.New(t)

	_, err := capability.Match(capability.Layer, capability.Device,
		[]string{"VK_LAYER_KHRONOS_validation", "A", "B", "A"},
		[]string{"B", "C"})

	var missing *capability.MissingCapabilityError
	c.Assert(errors.As(err, &missing), qt.IsTrue)
	c.Assert(missing.Kind, qt.Equals, capability.Layer)
	c.Assert(missing.Scope, qt.Equals, capability.Device)
	c.Assert(missing.Missing, qt.DeepEquals, []string{"A", "VK_LAYER_KHRONOS_validation"})
	c.Assert(err, qt.ErrorMatches, "missing required device layers: A, VK_LAYER_KHRONOS_validation")
}

func TestMatchSurvivesWrapping(t *testing.T) {
	c := qt.New(t)

	_, err := capability.Match(capability.Extension, capability.Instance, []string{"X"}, nil)
	err = errors.Wrap(err, "create instance")

	var missing *capability.MissingCapabilityError
	c.Assert(errors.As(err, &missing), qt.IsTrue)
	c.Assert(missing.Missing, qt.DeepEquals, []string{"X"})
}

// Match succeeds iff required is a subset of available, and on failure the
// reported set is required minus available.
func TestMatchSubsetProperty(t *testing.T) {
	c := qt.New(t)

	universe := []string{"a", "b", "c", "d", "e", "f", "g"}
	rng := rand.New(rand.NewSource(1))
	pick := func() []string {
		var out []string
		for _, n := range universe {
			if rng.Intn(2) == 0 {
				out = append(out, n)
			}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		required, available := pick(), pick()

		have := capability.NewSet(available...)
		var want []string
		for _, r := range required {
			if !have.Contains(r) {
				want = append(want, r)
			}
		}

		got, err := capability.Match(capability.Extension, capability.Device, required, available)
		if len(want) == 0 {
			c.Assert(err, qt.IsNil, qt.Commentf("required=%v available=%v", required, available))
			c.Assert(got, qt.DeepEquals, required)
			continue
		}
		var missing *capability.MissingCapabilityError
		c.Assert(errors.As(err, &missing), qt.IsTrue, qt.Commentf("required=%v available=%v", required, available))
		c.Assert(missing.Missing, qt.DeepEquals, want)
	}
}

func TestMissing(t *testing.T) {
	c := qt.New(t)

	c.Assert(capability.Missing([]string{"a"}, []string{"a", "b"}), qt.IsNil)
	c.Assert(capability.Missing([]string{"c", "a", "b"}, []string{"b"}), qt.DeepEquals, []string{"a", "c"})
}

func TestRequirements(t *testing.T) {
	c := qt.New(t)

	window := []string{"VK_KHR_surface", "VK_KHR_win32_surface"}

	release := capability.Requirements(false, window)
	c.Assert(release, qt.DeepEquals, capability.Required{
		InstanceExtensions: window,
		DeviceExtensions:   []string{capability.SwapchainExtension},
	})

	debug := capability.Requirements(true, window)
	c.Assert(debug.InstanceExtensions, qt.DeepEquals,
		[]string{"VK_KHR_surface", "VK_KHR_win32_surface", capability.DebugUtilsExtension})
	c.Assert(debug.InstanceLayers, qt.DeepEquals, []string{capability.ValidationLayer})
	c.Assert(debug.DeviceLayers, qt.DeepEquals, []string{capability.ValidationLayer})
	c.Assert(debug.DeviceExtensions, qt.DeepEquals, release.DeviceExtensions)

	// The caller's slice is never aliased.
	c.Assert(window, qt.HasLen, 2)
}
