package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

// Execute realizes every bound attachment, finalizes the blocks against the
// caches and records one primary command buffer playing the blocks back in
// schedule order. The caller submits the returned buffer.
func (rg *RenderGraph) Execute(ptc PerThreadContext, swapchains []SwapchainBinding) (vk.CommandBuffer, error) {
	if err := rg.Compile(); err != nil {
		return nil, err
	}

	if err := rg.realizeAttachments(ptc, swapchains); err != nil {
		return nil, err
	}

	for _, rpi := range rg.rpis {
		handle, err := ptc.AcquireRenderPass(&rpi.RPCI)
		if err != nil {
			ge := &Error{Kind: ErrAllocationFailure, Msg: "render pass", Cause: err}
			core.LogError(ge.Error())
			return nil, ge
		}
		rpi.Handle = handle
	}

	if err := rg.createFramebuffers(ptc); err != nil {
		return nil, err
	}

	return rg.record(ptc)
}

// realizeAttachments backs every bound attachment with an image view: a
// transient image for internal attachments, the acquired view for swapchain
// ones.
func (rg *RenderGraph) realizeAttachments(ptc PerThreadContext, swapchains []SwapchainBinding) error {
	for _, name := range rg.sortedBoundNames() {
		attachmentInfo := rg.boundAttachments[name]
		chain, ok := rg.useChains[rg.resolve(name)]
		if !ok {
			continue
		}

		switch attachmentInfo.Origin {
		case AttachmentOriginInternal:
			// the chain's layouts decide the usage flags the image needs
			var usage vk.ImageUsageFlags
			for _, c := range chain {
				switch c.Use.Layout {
				case vk.ImageLayoutDepthStencilAttachmentOptimal:
					usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
				case vk.ImageLayoutShaderReadOnlyOptimal:
					usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
				case vk.ImageLayoutColorAttachmentOptimal:
					usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
				}
			}

			format := attachmentInfo.Description.Format
			aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
			if format == vk.FormatD32Sfloat {
				aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
			}

			tici := TransientImageCreateInfo{
				Name: name,
				ICI: vk.ImageCreateInfo{
					SType:     vk.StructureTypeImageCreateInfo,
					ImageType: vk.ImageType2d,
					Format:    format,
					Extent: vk.Extent3D{
						Width:  attachmentInfo.Extents.Width,
						Height: attachmentInfo.Extents.Height,
						Depth:  1,
					},
					MipLevels:     1,
					ArrayLayers:   1,
					Samples:       vk.SampleCount1Bit,
					Tiling:        vk.ImageTilingOptimal,
					Usage:         usage,
					SharingMode:   vk.SharingModeExclusive,
					InitialLayout: vk.ImageLayoutUndefined,
				},
				IVCI: vk.ImageViewCreateInfo{
					SType:    vk.StructureTypeImageViewCreateInfo,
					ViewType: vk.ImageViewType2d,
					Format:   format,
					SubresourceRange: vk.ImageSubresourceRange{
						AspectMask:     aspect,
						BaseMipLevel:   0,
						LevelCount:     1,
						BaseArrayLayer: 0,
						LayerCount:     1,
					},
				},
			}

			img, err := ptc.AcquireTransientImage(&tici)
			if err != nil {
				ge := &Error{Kind: ErrAllocationFailure, Resource: name, Msg: "transient image", Cause: err}
				core.LogError(ge.Error())
				return ge
			}
			attachmentInfo.ImageView = img.ImageView

		case AttachmentOriginSwapchain:
			var view vk.ImageView
			found := false
			for _, b := range swapchains {
				if b.Swapchain == attachmentInfo.Swapchain {
					view = b.Swapchain.SwapchainImageView(b.ImageIndex)
					found = true
					break
				}
			}
			if !found {
				ge := &Error{Kind: ErrUnknownAttachment, Resource: name,
					Msg: "no swapchain binding supplied for this frame"}
				core.LogError(ge.Error())
				return ge
			}
			attachmentInfo.ImageView = view
		}
	}
	return nil
}

func (rg *RenderGraph) createFramebuffers(ptc PerThreadContext) error {
	for _, rpi := range rg.rpis {
		if len(rpi.Attachments) == 0 {
			ge := &Error{Kind: ErrUnknownAttachment,
				Msg: "render-pass block has no framebuffer attachments"}
			core.LogError(ge.Error())
			return ge
		}
		views := make([]vk.ImageView, 0, len(rpi.Attachments))
		for i := range rpi.Attachments {
			bound := rg.boundAttachments[rpi.Attachments[i].Name]
			views = append(views, bound.ImageView)
		}
		rpi.Width = rpi.Attachments[0].Extents.Width
		rpi.Height = rpi.Attachments[0].Extents.Height
		rpi.FBCI = FramebufferCreateInfo{
			RenderPass:  rpi.Handle,
			Attachments: views,
			Width:       rpi.Width,
			Height:      rpi.Height,
			Layers:      1,
		}
		fb, err := ptc.AcquireFramebuffer(&rpi.FBCI)
		if err != nil {
			ge := &Error{Kind: ErrAllocationFailure, Msg: "framebuffer", Cause: err}
			core.LogError(ge.Error())
			return ge
		}
		rpi.Framebuffer = fb
	}
	return nil
}

func (rg *RenderGraph) record(ptc PerThreadContext) (vk.CommandBuffer, error) {
	sinks, err := ptc.AcquireCommandBuffers(1)
	if err != nil || len(sinks) == 0 {
		ge := &Error{Kind: ErrAllocationFailure, Msg: "command buffer", Cause: err}
		core.LogError(ge.Error())
		return nil, ge
	}
	sink := sinks[0]
	if err := sink.Begin(vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)); err != nil {
		ge := &Error{Kind: ErrAllocationFailure, Msg: "begin command buffer", Cause: err}
		core.LogError(ge.Error())
		return nil, ge
	}

	cb := newCommandBuffer(rg, ptc, sink)
	for _, rpi := range rg.rpis {
		clears := make([]vk.ClearValue, 0, len(rpi.Attachments))
		for i := range rpi.Attachments {
			if rpi.Attachments[i].ShouldClear {
				clears = append(clears, rpi.Attachments[i].ClearValue)
			}
		}
		rbi := vk.RenderPassBeginInfo{
			SType:       vk.StructureTypeRenderPassBeginInfo,
			RenderPass:  rpi.Handle,
			Framebuffer: rpi.Framebuffer,
			RenderArea: vk.Rect2D{
				Offset: vk.Offset2D{},
				Extent: vk.Extent2D{Width: rpi.Width, Height: rpi.Height},
			},
			ClearValueCount: uint32(len(clears)),
			PClearValues:    clears,
		}
		sink.BeginRenderPass(&rbi, vk.SubpassContentsInline)

		for i, sp := range rpi.Subpasses {
			cb.ongoing = &renderPassScope{
				RenderPass: rpi.Handle,
				Subpass:    uint32(i),
				Extent:     vk.Extent2D{Width: rpi.Width, Height: rpi.Height},
			}
			if sp.Pass.Pass.Execute != nil {
				sp.Pass.Pass.Execute(cb)
			}
			if i < len(rpi.Subpasses)-1 {
				sink.NextSubpass(vk.SubpassContentsInline)
			}
		}
		sink.EndRenderPass()
		cb.ongoing = nil
	}

	if err := sink.End(); err != nil {
		ge := &Error{Kind: ErrAllocationFailure, Msg: "end command buffer", Cause: err}
		core.LogError(ge.Error())
		return nil, ge
	}
	if cb.err != nil {
		return nil, cb.err
	}
	return sink.Handle(), nil
}
