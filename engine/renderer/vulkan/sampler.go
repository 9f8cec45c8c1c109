package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

func SamplerCreate(context *VulkanContext, sci vk.SamplerCreateInfo) (vk.Sampler, error) {
	sci.SType = vk.StructureTypeSamplerCreateInfo
	sci.Deref()

	var sampler vk.Sampler
	if err := lockPool.SafeCall(SamplerManagement, func() error {
		if res := vk.CreateSampler(context.Device.LogicalDevice, &sci, context.Allocator, &sampler); res != vk.Success {
			err := fmt.Errorf("failed to create sampler: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return sampler, nil
}

func SamplerDestroy(context *VulkanContext, sampler vk.Sampler) {
	if sampler != nil {
		vk.DestroySampler(context.Device.LogicalDevice, sampler, context.Allocator)
	}
}
