package graph

import (
	"sort"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/maps"

	"github.com/spaghettifunk/grafo/engine/core"
)

// sortedBoundNames gives a stable order for walking the attachment registry,
// so two compiles of the same graph synthesize byte-identical create infos.
func (rg *RenderGraph) sortedBoundNames() []Name {
	names := maps.Keys(rg.boundAttachments)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// buildSync walks every attachment's use chain and derives load/store ops,
// initial/final layouts, and the subpass dependencies that order WAW, WAR and
// RAW hazards, then resolves the per-subpass attachment references.
func (rg *RenderGraph) buildSync() error {
	for _, rawName := range rg.sortedBoundNames() {
		attachmentInfo := rg.boundAttachments[rawName]
		name := rg.resolve(rawName)
		chain, ok := rg.useChains[name]
		if !ok {
			// bound but never used this frame
			continue
		}

		// bracket the chain with the attachment's declared boundary uses
		chain = append([]UseRef{{Use: attachmentInfo.Initial}}, chain...)
		chain = append(chain, UseRef{Use: attachmentInfo.Final})
		rg.useChains[name] = chain

		for i := 0; i < len(chain)-1; i++ {
			left := chain[i]
			right := chain[i+1]

			crossesBlocks := left.Pass == nil || right.Pass == nil ||
				left.Pass.RenderPassIndex != right.Pass.RenderPassIndex
			if !crossesBlocks {
				// subpass -> subpass within one block: WAW, WAR and RAW on an
				// attachment need a self-dependency
				if isFramebufferAttachmentUse(left.Use) &&
					(isWriteUse(left.Use) || (isReadUse(left.Use) && isWriteUse(right.Use))) {
					rp := rg.rpis[right.Pass.RenderPassIndex]
					rp.RPCI.SubpassDependencies = append(rp.RPCI.SubpassDependencies, vk.SubpassDependency{
						SrcSubpass:    uint32(left.Pass.SubpassIndex),
						DstSubpass:    uint32(right.Pass.SubpassIndex),
						SrcStageMask:  left.Use.Stages,
						SrcAccessMask: left.Use.Access,
						DstStageMask:  right.Use.Stages,
						DstAccessMask: right.Use.Access,
					})
				}
				continue
			}

			if left.Pass != nil { // block -> boundary
				leftRP := rg.rpis[left.Pass.RenderPassIndex]
				if isFramebufferAttachmentUse(left.Use) {
					att := leftRP.attachment(name)
					if att == nil {
						err := &Error{Kind: ErrUnknownAttachment, Pass: left.Pass.Pass.Name, Resource: name,
							Msg: "attachment missing from its render-pass block"}
						core.LogError(err.Error())
						return err
					}
					rg.fillAttachment(att, attachmentInfo)
					// a following block (or a required end layout) transitions us
					if right.Pass != nil || right.Use.Layout != vk.ImageLayoutUndefined {
						att.Description.FinalLayout = right.Use.Layout
					} else {
						att.Description.FinalLayout = left.Use.Layout
					}
					if right.Use.Layout == vk.ImageLayoutUndefined {
						att.Description.StoreOp = vk.AttachmentStoreOpDontCare
					} else {
						att.Description.StoreOp = vk.AttachmentStoreOpStore
					}
				}
				// TODO: only needed on a write or a layout transition; emitted
				// unconditionally for now whenever the right side wants a layout
				if right.Use.Layout != vk.ImageLayoutUndefined {
					leftRP.RPCI.SubpassDependencies = append(leftRP.RPCI.SubpassDependencies, vk.SubpassDependency{
						SrcSubpass:    uint32(left.Pass.SubpassIndex),
						DstSubpass:    vk.SubpassExternal,
						SrcStageMask:  left.Use.Stages,
						SrcAccessMask: left.Use.Access,
						DstStageMask:  right.Use.Stages,
						DstAccessMask: right.Use.Access,
					})
				}
			}

			if right.Pass != nil { // boundary -> block
				rightRP := rg.rpis[right.Pass.RenderPassIndex]
				if isFramebufferAttachmentUse(right.Use) {
					att := rightRP.attachment(name)
					if att == nil {
						err := &Error{Kind: ErrUnknownAttachment, Pass: right.Pass.Pass.Name, Resource: name,
							Msg: "attachment missing from its render-pass block"}
						core.LogError(err.Error())
						return err
					}
					rg.fillAttachment(att, attachmentInfo)
					if left.Pass != nil {
						// the left block transitioned for us
						att.Description.InitialLayout = right.Use.Layout
					} else {
						att.Description.InitialLayout = left.Use.Layout
					}
					switch left.Use.Layout {
					case vk.ImageLayoutUndefined:
						att.Description.LoadOp = vk.AttachmentLoadOpDontCare
					case vk.ImageLayoutPreinitialized:
						// preinitialized is the clear sentinel; it never reaches
						// the device-facing description
						att.Description.InitialLayout = vk.ImageLayoutUndefined
						att.Description.LoadOp = vk.AttachmentLoadOpClear
					default:
						att.Description.LoadOp = vk.AttachmentLoadOpLoad
					}
				}
				if left.Use.Layout != vk.ImageLayoutUndefined {
					rightRP.RPCI.SubpassDependencies = append(rightRP.RPCI.SubpassDependencies, vk.SubpassDependency{
						SrcSubpass:    vk.SubpassExternal,
						DstSubpass:    uint32(right.Pass.SubpassIndex),
						SrcStageMask:  left.Use.Stages,
						SrcAccessMask: left.Use.Access,
						DstStageMask:  right.Use.Stages,
						DstAccessMask: right.Use.Access,
					})
				}
			}
		}
	}

	rg.buildAttachmentReferences()
	rg.buildSubpassDescriptions()
	return nil
}

func (rg *RenderGraph) fillAttachment(att *AttachmentRPInfo, bound *AttachmentRPInfo) {
	att.Origin = bound.Origin
	att.Description.Format = bound.Description.Format
	att.Description.Samples = bound.Description.Samples
	att.ImageView = bound.ImageView
	att.Extents = bound.Extents
	att.ClearValue = bound.ClearValue
	att.ShouldClear = bound.ShouldClear
	att.Swapchain = bound.Swapchain
	att.Initial = bound.Initial
	att.Final = bound.Final
}

// buildAttachmentReferences resolves, per block, which attachment index each
// subpass touches and in which layout. Color references land in a CSR array
// sliced per subpass; depth/stencil references are at most one per subpass.
func (rg *RenderGraph) buildAttachmentReferences() {
	perSubpassColor := make([][][]vk.AttachmentReference, len(rg.rpis))
	for i, rpi := range rg.rpis {
		perSubpassColor[i] = make([][]vk.AttachmentReference, len(rpi.Subpasses))
		rpi.RPCI.DSRefs = make([]*vk.AttachmentReference, len(rpi.Subpasses))
	}

	for _, rawName := range rg.sortedBoundNames() {
		name := rg.resolve(rawName)
		chain, ok := rg.useChains[name]
		if !ok {
			continue
		}
		for _, c := range chain {
			if c.Pass == nil {
				continue
			}
			rpi := rg.rpis[c.Pass.RenderPassIndex]
			index := rpi.attachmentIndex(name)
			if index < 0 {
				// used in this block through a shader binding, not as an attachment
				continue
			}
			ref := vk.AttachmentReference{Attachment: uint32(index), Layout: c.Use.Layout}
			switch c.Use.Layout {
			case vk.ImageLayoutColorAttachmentOptimal:
				sp := c.Pass.SubpassIndex
				perSubpassColor[c.Pass.RenderPassIndex][sp] = append(perSubpassColor[c.Pass.RenderPassIndex][sp], ref)
			case vk.ImageLayoutDepthStencilAttachmentOptimal:
				r := ref
				rpi.RPCI.DSRefs[c.Pass.SubpassIndex] = &r
			}
		}
	}

	for i, rpi := range rg.rpis {
		rpi.RPCI.ColorRefOffsets = make([]uint32, len(rpi.Subpasses))
		for sp, refs := range perSubpassColor[i] {
			rpi.RPCI.ColorRefs = append(rpi.RPCI.ColorRefs, refs...)
			rpi.RPCI.ColorRefOffsets[sp] = uint32(len(rpi.RPCI.ColorRefs))
		}
	}
}

// buildSubpassDescriptions finalizes each block's description: per-subpass
// color/depth wiring plus the ordered attachment description list.
func (rg *RenderGraph) buildSubpassDescriptions() {
	for _, rpi := range rg.rpis {
		for i := range rpi.Subpasses {
			start := uint32(0)
			if i > 0 {
				start = rpi.RPCI.ColorRefOffsets[i-1]
			}
			end := rpi.RPCI.ColorRefOffsets[i]
			rpi.RPCI.SubpassDescriptions = append(rpi.RPCI.SubpassDescriptions, SubpassDescription{
				PipelineBindPoint:      vk.PipelineBindPointGraphics,
				ColorAttachments:       rpi.RPCI.ColorRefs[start:end],
				DepthStencilAttachment: rpi.RPCI.DSRefs[i],
			})
		}
		for i := range rpi.Attachments {
			rpi.RPCI.Attachments = append(rpi.RPCI.Attachments, rpi.Attachments[i].Description)
		}
	}
}
