package graph

import (
	vk "github.com/goki/vulkan"
)

type AttachmentOrigin int

const (
	AttachmentOriginSwapchain AttachmentOrigin = iota
	AttachmentOriginInternal
)

// AttachmentRPInfo describes one bound image attachment: where it comes from,
// how it is cleared, and the description the synthesizer fills in. The same
// type backs both the graph-wide registry and the per-block attachment lists.
type AttachmentRPInfo struct {
	Name   Name
	Origin AttachmentOrigin

	// synthesized: format, samples, loadOp, storeOp, initialLayout, finalLayout
	Description vk.AttachmentDescription

	Swapchain Swapchain
	ImageView vk.ImageView
	Extents   vk.Extent2D

	ShouldClear bool
	ClearValue  vk.ClearValue

	// boundary uses: the chain is bracketed by these
	Initial Use
	Final   Use
}

// SubpassDescription is the resolved per-subpass attachment wiring. Color
// attachment references are slices into the block's CSR ref array.
type SubpassDescription struct {
	PipelineBindPoint      vk.PipelineBindPoint
	ColorAttachments       []vk.AttachmentReference
	DepthStencilAttachment *vk.AttachmentReference
}

// RenderPassCreateInfo is the full description a block hands to the
// render-pass cache. Equal values must yield equal handles.
type RenderPassCreateInfo struct {
	Attachments         []vk.AttachmentDescription
	SubpassDescriptions []SubpassDescription
	SubpassDependencies []vk.SubpassDependency

	// CSR encoding of per-subpass color references: subpass k owns
	// ColorRefs[ColorRefOffsets[k-1]:ColorRefOffsets[k]]
	ColorRefs       []vk.AttachmentReference
	ColorRefOffsets []uint32
	// one optional depth/stencil reference per subpass
	DSRefs []*vk.AttachmentReference
}

type SubpassInfo struct {
	Pass *PassInfo
}

// RenderPassInfo is one render-pass block: the passes merged into it as
// subpasses, its attachments, and the synthesized creation data.
type RenderPassInfo struct {
	Subpasses   []SubpassInfo
	Attachments []AttachmentRPInfo

	RPCI RenderPassCreateInfo
	FBCI FramebufferCreateInfo

	Handle      vk.RenderPass
	Framebuffer vk.Framebuffer

	Width  uint32
	Height uint32
}

func (rpi *RenderPassInfo) attachment(name Name) *AttachmentRPInfo {
	for i := range rpi.Attachments {
		if rpi.Attachments[i].Name == name {
			return &rpi.Attachments[i]
		}
	}
	return nil
}

func (rpi *RenderPassInfo) attachmentIndex(name Name) int {
	for i := range rpi.Attachments {
		if rpi.Attachments[i].Name == name {
			return i
		}
	}
	return -1
}
