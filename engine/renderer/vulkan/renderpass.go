package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
	"github.com/spaghettifunk/grafo/engine/renderer/graph"
)

// lowerRenderPass turns the graph's synthesized block description into the
// device-facing create info. The CSR color references become per-subpass
// slices; nothing is reordered.
func lowerRenderPass(rpci *graph.RenderPassCreateInfo) vk.RenderPassCreateInfo {
	subpasses := make([]vk.SubpassDescription, len(rpci.SubpassDescriptions))
	for i, sd := range rpci.SubpassDescriptions {
		subpass := vk.SubpassDescription{
			PipelineBindPoint:    sd.PipelineBindPoint,
			ColorAttachmentCount: uint32(len(sd.ColorAttachments)),
			PColorAttachments:    sd.ColorAttachments,
			// input, resolve and preserve attachments deliberately stay empty
			InputAttachmentCount:    0,
			PInputAttachments:       nil,
			PResolveAttachments:     nil,
			PreserveAttachmentCount: 0,
			PPreserveAttachments:    nil,
		}
		if sd.DepthStencilAttachment != nil {
			subpass.PDepthStencilAttachment = sd.DepthStencilAttachment
		}
		subpasses[i] = subpass
	}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(rpci.Attachments)),
		PAttachments:    rpci.Attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(rpci.SubpassDependencies)),
		PDependencies:   rpci.SubpassDependencies,
	}
}

// RenderPassCreate lowers and creates a render pass on the device.
func RenderPassCreate(context *VulkanContext, rpci *graph.RenderPassCreateInfo) (vk.RenderPass, error) {
	createInfo := lowerRenderPass(rpci)
	createInfo.Deref()

	var renderPass vk.RenderPass
	if err := lockPool.SafeCall(RenderpassManagement, func() error {
		if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &renderPass); res != vk.Success {
			err := fmt.Errorf("failed to create render pass: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return renderPass, nil
}

func RenderPassDestroy(context *VulkanContext, renderPass vk.RenderPass) {
	if renderPass != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, renderPass, context.Allocator)
	}
}
