package pipeline

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// CreateRenderPass builds a single-subpass render pass with one color
// attachment in format. The attachment is cleared on load, stored, and left
// ready to present.
func CreateRenderPass(dev gpu.Device, format gpu.Format) (gpu.RenderPass, error) {
	renderPass, err := dev.CreateRenderPass(gpu.RenderPassCreateInfo{
		Attachments: []gpu.AttachmentDescription{
			{
				Format:         format,
				LoadOp:         gpu.AttachmentLoadOpClear,
				StoreOp:        gpu.AttachmentStoreOpStore,
				StencilLoadOp:  gpu.AttachmentLoadOpDontCare,
				StencilStoreOp: gpu.AttachmentStoreOpDontCare,
				InitialLayout:  gpu.ImageLayoutUndefined,
				FinalLayout:    gpu.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []gpu.SubpassDescription{
			{
				ColorAttachments: []gpu.AttachmentReference{
					{
						Attachment: 0,
						Layout:     gpu.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		// The clear must not start until the presentation engine has
		// finished reading the image from its previous use.
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass:    gpu.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  gpu.PipelineStageBottomOfPipe,
				SrcAccessMask: gpu.AccessMemoryRead,
				DstStageMask:  gpu.PipelineStageColorAttachmentOutput,
				DstAccessMask: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create render pass")
	}
	return renderPass, nil
}

// CreateUniformLayout describes one uniform buffer at binding 0, read by the
// vertex stage.
func CreateUniformLayout(dev gpu.Device) (gpu.DescriptorSetLayout, error) {
	layout, err := dev.CreateDescriptorSetLayout([]gpu.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  gpu.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      gpu.StageVertex,
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create descriptor set layout")
	}
	return layout, nil
}
