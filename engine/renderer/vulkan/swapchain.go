package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

// VulkanSwapchain owns the presentable images. It satisfies the render
// graph's swapchain contract: format, extent and per-index views.
type VulkanSwapchain struct {
	Handle            vk.Swapchain
	ImageFormat       vk.SurfaceFormat
	Extent            vk.Extent2D
	MaxFramesInFlight uint8
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView
}

func (vs *VulkanSwapchain) SwapchainFormat() vk.Format {
	return vs.ImageFormat.Format
}

func (vs *VulkanSwapchain) SwapchainExtent() vk.Extent2D {
	return vs.Extent
}

func (vs *VulkanSwapchain) SwapchainImageView(imageIndex int) vk.ImageView {
	return vs.Views[imageIndex]
}

func SwapchainCreate(context *VulkanContext, config *RendererConfig, width, height uint32) (*VulkanSwapchain, error) {
	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(context.Device.PhysicalDevice, context.Surface, &capabilities); res != vk.Success {
		err := fmt.Errorf("failed to query surface capabilities: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(context.Device.PhysicalDevice, context.Surface, &formatCount, nil)
	if formatCount == 0 {
		err := fmt.Errorf("surface exposes no formats")
		core.LogError(err.Error())
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(context.Device.PhysicalDevice, context.Surface, &formatCount, formats)

	// Preferred format, fall back on whatever comes first.
	imageFormat := formats[0]
	imageFormat.Deref()
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			imageFormat = formats[i]
			break
		}
	}

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != 0xFFFFFFFF {
		extent = capabilities.CurrentExtent
	}

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	swapchain := &VulkanSwapchain{
		ImageFormat:       imageFormat,
		Extent:            extent,
		MaxFramesInFlight: config.MaxFramesInFlight,
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      imageFormat.Format,
		ImageColorSpace:  imageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     nil,
	}
	swapchainCreateInfo.Deref()

	var swapchainHandle vk.Swapchain
	if err := lockPool.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
			err := fmt.Errorf("failed to create swapchain: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	swapchain.Handle = swapchainHandle

	// Images
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	// Views
	for i := 0; i < int(swapchain.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, err := ImageViewCreate(context, viewInfo)
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view
	}

	core.LogInfo("Swapchain created successfully.")
	return swapchain, nil
}

// SwapchainAcquireNextImageIndex blocks until the next presentable image is
// available or the timeout expires. A false second return means no image was
// acquired: the swapchain is out of date and must be recreated, or the
// acquire failed for another reason (logged).
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, bool) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	if result == vk.ErrorOutOfDate {
		return 0, false
	}
	if result != vk.Success && result != vk.Suboptimal {
		core.LogError("Failed to acquire swapchain image: %s", VulkanResultString(result))
		return 0, false
	}
	return imageIndex, true
}

// SwapchainPresent queues presentation of the given image index.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, queue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}
	presentInfo.Deref()

	return lockPool.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		result := vk.QueuePresent(queue, &presentInfo)
		if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
			return core.ErrSwapchainBooting
		}
		if result != vk.Success {
			err := fmt.Errorf("failed to present swapchain image: %s", VulkanResultString(result))
			core.LogError(err.Error())
			return err
		}
		return nil
	})
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are thus destroyed when it is.
	for i := 0; i < int(vs.ImageCount); i++ {
		vk.DestroyImageView(context.Device.LogicalDevice, vs.Views[i], context.Allocator)
	}
	vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
	vs.Handle = nil
}
