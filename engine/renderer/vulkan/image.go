package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// ImageCreate allocates an image with device-local memory and, when asked,
// a view covering the full subresource range.
func ImageCreate(
	context *VulkanContext,
	ici vk.ImageCreateInfo,
	ivci vk.ImageViewCreateInfo,
	createView bool,
) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:  ici.Extent.Width,
		Height: ici.Extent.Height,
	}

	var image vk.Image
	if err := lockPool.SafeCall(ImageManagement, func() error {
		if res := vk.CreateImage(context.Device.LogicalDevice, &ici, context.Allocator, &image); res != vk.Success {
			err := fmt.Errorf("failed to create image: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	outImage.Handle = image

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, outImage.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		err := fmt.Errorf("required memory type not found; image not valid")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := lockPool.SafeCall(ImageManagement, func() error {
		if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
			err := fmt.Errorf("failed to allocate image memory: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		if res := vk.BindImageMemory(context.Device.LogicalDevice, outImage.Handle, memory, 0); res != vk.Success {
			err := fmt.Errorf("failed to bind image memory: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	outImage.Memory = memory

	if createView {
		ivci.Image = outImage.Handle
		view, err := ImageViewCreate(context, ivci)
		if err != nil {
			return nil, err
		}
		outImage.View = view
	}

	return outImage, nil
}

func ImageViewCreate(context *VulkanContext, ivci vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := lockPool.SafeCall(ImageManagement, func() error {
		if res := vk.CreateImageView(context.Device.LogicalDevice, &ivci, context.Allocator, &view); res != vk.Success {
			err := fmt.Errorf("failed to create image view: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return view, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}
