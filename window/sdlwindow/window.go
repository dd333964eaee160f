// Package sdlwindow opens the SDL window the renderer presents to and
// bridges it to the vkng backend.
//
// SDL must be driven from the thread that initialized it; callers lock the
// main OS thread before calling Open.
package sdlwindow

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/frameloop/gpu"
	"github.com/vkngwrapper/frameloop/gpu/vkng"
)

type Window struct {
	window *sdl.Window
}

// Open initializes SDL video and shows a fixed-size Vulkan window.
func Open(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{window: window}, nil
}

// ProcAddr is the vkGetInstanceProcAddr SDL loaded for the window.
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// Size reports the drawable size in pixels, which differs from the window
// size on high-DPI displays.
func (w *Window) Size() (width, height int) {
	wd, ht := w.window.VulkanGetDrawableSize()
	return int(wd), int(ht)
}

func (w *Window) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance gpu.Instance) (gpu.Surface, error) {
	inst, ok := instance.(*vkng.Instance)
	if !ok {
		return 0, errors.Newf("sdl window cannot create a surface for %T", instance)
	}
	return inst.CreateSurface(func(ci core1_0.Instance, ext khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
		return vkng_sdl2.CreateSurface(ci, ext, w.window)
	})
}

// PollEvents drains the event queue and reports whether the user asked to
// quit, either by closing the window or pressing q or escape.
func (w *Window) PollEvents() (quit bool) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			quit = true
		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN {
				continue
			}
			switch e.Keysym.Sym {
			case sdl.K_q, sdl.K_ESCAPE:
				quit = true
			}
		}
	}
	return quit
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
