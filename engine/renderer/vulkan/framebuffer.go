package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
	"github.com/spaghettifunk/grafo/engine/renderer/graph"
)

// FramebufferCreate builds a framebuffer from the graph's create info. The
// attachment view order is the block's attachment order.
func FramebufferCreate(context *VulkanContext, fbci *graph.FramebufferCreateInfo) (vk.Framebuffer, error) {
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      fbci.RenderPass,
		AttachmentCount: uint32(len(fbci.Attachments)),
		PAttachments:    fbci.Attachments,
		Width:           fbci.Width,
		Height:          fbci.Height,
		Layers:          fbci.Layers,
	}
	createInfo.Deref()

	var framebuffer vk.Framebuffer
	if err := lockPool.SafeCall(FramebufferManagement, func() error {
		if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &framebuffer); res != vk.Success {
			err := fmt.Errorf("failed to create framebuffer: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return framebuffer, nil
}

func FramebufferDestroy(context *VulkanContext, framebuffer vk.Framebuffer) {
	if framebuffer != nil {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, framebuffer, context.Allocator)
	}
}
