package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
	"github.com/spaghettifunk/grafo/engine/renderer/graph"
)

// DescriptorPoolCreate sizes one pool for everything a frame binds: uniform
// buffers and combined image samplers.
func DescriptorPoolCreate(context *VulkanContext, maxSets uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxSets},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	createInfo.Deref()

	var pool vk.DescriptorPool
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
			err := fmt.Errorf("failed to create descriptor pool: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return pool, nil
}

// DescriptorSetAllocate takes one set from the pool against the given layout.
func DescriptorSetAllocate(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	allocateInfo.Deref()

	sets := make([]vk.DescriptorSet, 1)
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
			err := fmt.Errorf("failed to allocate descriptor set: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return sets[0], nil
}

// DescriptorSetWrite pushes the used bindings of a set-binding into the set.
func DescriptorSetWrite(context *VulkanContext, set vk.DescriptorSet, sb *graph.SetBinding) {
	var writes []vk.WriteDescriptorSet
	for binding := uint32(0); binding < graph.MaxDescriptorBindings; binding++ {
		if !sb.IsUsed(binding) {
			continue
		}
		b := sb.Bindings[binding]
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  b.Type,
		}
		switch b.Type {
		case vk.DescriptorTypeUniformBuffer:
			write.PBufferInfo = []vk.DescriptorBufferInfo{b.Buffer}
		case vk.DescriptorTypeCombinedImageSampler:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     b.Image.Sampler,
				ImageView:   b.Image.ImageView,
				ImageLayout: b.Image.Layout,
			}}
		}
		write.Deref()
		writes = append(writes, write)
	}
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}
