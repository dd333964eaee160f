// Package swapchain owns the chain of presentable images and the per-image
// views and framebuffers built on top of it.
//
// Everything here is tied to one extent. A surface resize would require
// rebuilding the swapchain, the render pass, the pipeline and the
// framebuffers together.
package swapchain

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/device"
	"github.com/vkngwrapper/frameloop/gpu"
)

type Manager struct {
	device gpu.Device

	Swapchain    gpu.Swapchain
	Format       gpu.SurfaceFormat
	PresentMode  gpu.PresentMode
	Extent       gpu.Extent2D
	Images       []gpu.Image
	Views        []gpu.ImageView
	Framebuffers []gpu.Framebuffer
}

// New creates the swapchain and one view per image. On error everything
// created so far has already been destroyed.
func New(dev gpu.Device, surface gpu.Surface, support device.SwapchainSupport, indices device.QueueFamilyIndices, width, height int) (*Manager, error) {
	m := &Manager{
		device:      dev,
		Format:      ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, width, height),
	}

	sharingMode, families := SharingMode(indices)

	var err error
	m.Swapchain, err = dev.CreateSwapchain(gpu.SwapchainCreateInfo{
		Surface:            surface,
		MinImageCount:      ImageCount(support.Capabilities),
		ImageFormat:        m.Format.Format,
		ImageColorSpace:    m.Format.ColorSpace,
		ImageExtent:        m.Extent,
		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: families,
		PreTransform:       support.Capabilities.CurrentTransform,
		PresentMode:        m.PresentMode,
		Clipped:            true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	m.Images, err = dev.SwapchainImages(m.Swapchain)
	if err != nil {
		m.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}

	for i, image := range m.Images {
		view, err := dev.CreateImageView(gpu.ImageViewCreateInfo{
			Image:  image,
			Format: m.Format.Format,
		})
		if err != nil {
			m.Destroy()
			return nil, errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		m.Views = append(m.Views, view)
	}

	if len(m.Views) != len(m.Images) {
		m.Destroy()
		return nil, errors.AssertionFailedf("%d views for %d swapchain images", len(m.Views), len(m.Images))
	}

	return m, nil
}

// ImageCount is the number of images the driver actually created, which may
// exceed the count requested.
func (m *Manager) ImageCount() int {
	return len(m.Images)
}

// CreateFramebuffers builds one framebuffer per view against renderPass.
func (m *Manager) CreateFramebuffers(renderPass gpu.RenderPass) error {
	if len(m.Framebuffers) > 0 {
		return errors.New("framebuffers already created")
	}
	for i, view := range m.Views {
		fb, err := m.device.CreateFramebuffer(gpu.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Attachments: []gpu.ImageView{view},
			Width:       m.Extent.Width,
			Height:      m.Extent.Height,
		})
		if err != nil {
			return errors.Wrapf(err, "create framebuffer %d", i)
		}
		m.Framebuffers = append(m.Framebuffers, fb)
	}
	return nil
}

// DestroyFramebuffers releases the framebuffers alone, so they can go before
// the render pass they were built against.
func (m *Manager) DestroyFramebuffers() {
	for i := len(m.Framebuffers) - 1; i >= 0; i-- {
		m.device.DestroyFramebuffer(m.Framebuffers[i])
	}
	m.Framebuffers = nil
}

// Destroy releases framebuffers, views and the swapchain in that order.
// It is safe to call more than once.
func (m *Manager) Destroy() {
	if m == nil {
		return
	}
	m.DestroyFramebuffers()

	for i := len(m.Views) - 1; i >= 0; i-- {
		m.device.DestroyImageView(m.Views[i])
	}
	m.Views = nil

	if m.Swapchain.Initialized() {
		m.device.DestroySwapchain(m.Swapchain)
		m.Swapchain = 0
	}
	m.Images = nil
}
