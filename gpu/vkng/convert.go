package vkng

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/frameloop/gpu"
)

// undefinedExtent is what some drivers report instead of -1 for a surface
// whose size follows the swapchain.
const undefinedExtent = 0xFFFFFFFF

func extentFromCore(e core1_0.Extent2D) gpu.Extent2D {
	if e.Width == -1 || e.Width == undefinedExtent {
		return gpu.Extent2D{Width: gpu.ExtentUndefined, Height: gpu.ExtentUndefined}
	}
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func extentToCore(e gpu.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}

func rectToCore(r gpu.Rect2D) core1_0.Rect2D {
	return core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: extentToCore(r.Extent),
	}
}

func subpassIndex(i int) int {
	if i == gpu.SubpassExternal {
		return core1_0.SubpassExternal
	}
	return i
}

func attachmentsToCore(in []gpu.AttachmentDescription) []core1_0.AttachmentDescription {
	out := make([]core1_0.AttachmentDescription, 0, len(in))
	for _, a := range in {
		out = append(out, core1_0.AttachmentDescription{
			Format:         core1_0.Format(a.Format),
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOp(a.LoadOp),
			StoreOp:        core1_0.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  core1_0.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: core1_0.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  core1_0.ImageLayout(a.InitialLayout),
			FinalLayout:    core1_0.ImageLayout(a.FinalLayout),
		})
	}
	return out
}

func subpassesToCore(in []gpu.SubpassDescription) []core1_0.SubpassDescription {
	out := make([]core1_0.SubpassDescription, 0, len(in))
	for _, s := range in {
		var refs []core1_0.AttachmentReference
		for _, r := range s.ColorAttachments {
			refs = append(refs, core1_0.AttachmentReference{
				Attachment: r.Attachment,
				Layout:     core1_0.ImageLayout(r.Layout),
			})
		}
		out = append(out, core1_0.SubpassDescription{
			PipelineBindPoint: core1_0.PipelineBindPointGraphics,
			ColorAttachments:  refs,
		})
	}
	return out
}

func dependenciesToCore(in []gpu.SubpassDependency) []core1_0.SubpassDependency {
	out := make([]core1_0.SubpassDependency, 0, len(in))
	for _, d := range in {
		out = append(out, core1_0.SubpassDependency{
			SrcSubpass:    subpassIndex(d.SrcSubpass),
			DstSubpass:    subpassIndex(d.DstSubpass),
			SrcStageMask:  core1_0.PipelineStageFlags(d.SrcStageMask),
			DstStageMask:  core1_0.PipelineStageFlags(d.DstStageMask),
			SrcAccessMask: core1_0.AccessFlags(d.SrcAccessMask),
			DstAccessMask: core1_0.AccessFlags(d.DstAccessMask),
		})
	}
	return out
}

func vertexInputToCore(bindings []gpu.VertexInputBindingDescription, attributes []gpu.VertexInputAttributeDescription) *core1_0.PipelineVertexInputStateCreateInfo {
	state := &core1_0.PipelineVertexInputStateCreateInfo{}
	for _, b := range bindings {
		state.VertexBindingDescriptions = append(state.VertexBindingDescriptions, core1_0.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: core1_0.VertexInputRate(b.InputRate),
		})
	}
	for _, a := range attributes {
		state.VertexAttributeDescriptions = append(state.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
			Binding:  a.Binding,
			Location: a.Location,
			Format:   core1_0.Format(a.Format),
			Offset:   a.Offset,
		})
	}
	return state
}

func viewportStateToCore(viewports []gpu.Viewport, scissors []gpu.Rect2D) *core1_0.PipelineViewportStateCreateInfo {
	state := &core1_0.PipelineViewportStateCreateInfo{}
	for _, v := range viewports {
		state.Viewports = append(state.Viewports, core1_0.Viewport{
			X:        v.X,
			Y:        v.Y,
			Width:    v.Width,
			Height:   v.Height,
			MinDepth: v.MinDepth,
			MaxDepth: v.MaxDepth,
		})
	}
	for _, s := range scissors {
		state.Scissors = append(state.Scissors, rectToCore(s))
	}
	return state
}

func rasterizationToCore(r gpu.RasterizationState) *core1_0.PipelineRasterizationStateCreateInfo {
	return &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        r.DepthClampEnable,
		RasterizerDiscardEnable: r.RasterizerDiscardEnable,
		PolygonMode:             core1_0.PolygonMode(r.PolygonMode),
		CullMode:                core1_0.CullModeFlags(r.CullMode),
		FrontFace:               core1_0.FrontFace(r.FrontFace),
		DepthBiasEnable:         r.DepthBiasEnable,
		LineWidth:               r.LineWidth,
	}
}
