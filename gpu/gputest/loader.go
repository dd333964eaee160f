// Package gputest is an in-memory implementation of the gpu interfaces.
//
// It executes nothing on real hardware, but it keeps enough state to catch
// the mistakes a validation layer would: waiting on a semaphore nobody
// signaled, mapping device-local memory, binding memory twice, destroying
// objects while work is pending or destroying a parent before its children.
// Violations are collected on the owning object instead of panicking, so a
// test can assert on them after the fact.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// Loader is a configurable gpu.Loader. Zero value reports no extensions,
// no layers and no devices.
type Loader struct {
	Extensions []string
	Layers     []string
	Devices    []*PhysicalDevice

	// Instances records every instance created, in order.
	Instances []*Instance
	// CreateErr, when set, is returned by CreateInstance.
	CreateErr error
}

var _ gpu.Loader = (*Loader)(nil)

func (l *Loader) InstanceExtensions() ([]string, error) {
	return append([]string(nil), l.Extensions...), nil
}

func (l *Loader) InstanceLayers() ([]string, error) {
	return append([]string(nil), l.Layers...), nil
}

func (l *Loader) CreateInstance(info gpu.InstanceCreateInfo) (gpu.Instance, error) {
	if l.CreateErr != nil {
		return nil, l.CreateErr
	}
	for _, ext := range info.Extensions {
		if !contains(l.Extensions, ext) {
			return nil, errors.Newf("instance extension %s not present", ext)
		}
	}
	for _, layer := range info.Layers {
		if !contains(l.Layers, layer) {
			return nil, errors.Newf("instance layer %s not present", layer)
		}
	}

	inst := &Instance{
		Info:     info,
		devices:  l.Devices,
		surfaces: map[gpu.Surface]bool{},
	}
	l.Instances = append(l.Instances, inst)
	return inst, nil
}

// Instance is the fake gpu.Instance. It owns the surfaces created through
// CreateSurface.
type Instance struct {
	Info       gpu.InstanceCreateInfo
	Destroyed  bool
	Violations []string

	devices     []*PhysicalDevice
	surfaces    map[gpu.Surface]bool
	nextSurface gpu.Surface
}

var _ gpu.Instance = (*Instance)(nil)

func (i *Instance) PhysicalDevices() ([]gpu.PhysicalDevice, error) {
	out := make([]gpu.PhysicalDevice, 0, len(i.devices))
	for _, d := range i.devices {
		d.instance = i
		out = append(out, d)
	}
	return out, nil
}

// CreateSurface allocates a new surface handle owned by the instance.
func (i *Instance) CreateSurface() gpu.Surface {
	i.nextSurface++
	i.surfaces[i.nextSurface] = true
	return i.nextSurface
}

func (i *Instance) DestroySurface(surface gpu.Surface) {
	if !i.surfaces[surface] {
		i.violate("destroy of unknown surface %d", surface)
		return
	}
	for _, d := range i.devices {
		if d.Created != nil && !d.Created.Destroyed {
			i.violate("surface %d destroyed while device %q is alive", surface, d.Props.Name)
		}
	}
	delete(i.surfaces, surface)
}

// LiveSurfaces reports the number of surfaces not yet destroyed.
func (i *Instance) LiveSurfaces() int {
	return len(i.surfaces)
}

func (i *Instance) Destroy() {
	if i.Destroyed {
		i.violate("instance destroyed twice")
		return
	}
	if len(i.surfaces) > 0 {
		i.violate("instance destroyed with %d live surfaces", len(i.surfaces))
	}
	for _, d := range i.devices {
		if d.Created != nil && !d.Created.Destroyed {
			i.violate("instance destroyed before device %q", d.Props.Name)
		}
	}
	i.Destroyed = true
}

func (i *Instance) violate(format string, args ...interface{}) {
	i.Violations = append(i.Violations, fmt.Sprintf(format, args...))
}

// Window is a fake window provider with a fixed size.
type Window struct {
	Width, Height int
	Extensions    []string
	SurfaceErr    error

	Surface gpu.Surface
}

func (w *Window) Size() (int, int) {
	return w.Width, w.Height
}

func (w *Window) RequiredExtensions() []string {
	return append([]string(nil), w.Extensions...)
}

func (w *Window) CreateSurface(instance gpu.Instance) (gpu.Surface, error) {
	if w.SurfaceErr != nil {
		return 0, w.SurfaceErr
	}
	inst, ok := instance.(*Instance)
	if !ok {
		return 0, errors.Newf("unexpected instance type %T", instance)
	}
	w.Surface = inst.CreateSurface()
	return w.Surface, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
