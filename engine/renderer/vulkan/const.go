package vulkan

/**
 * @brief Max number of cached render passes per context
 * @todo TODO: make configurable
 */
const VULKAN_MAX_RENDERPASS_COUNT uint32 = 64

/**
 * @brief Max number of descriptor sets allocated from one pool
 * @todo TODO: make configurable
 */
const VULKAN_MAX_DESCRIPTOR_SET_COUNT uint32 = 1024

/**
 * @brief Max number of push constant bytes guaranteed by the spec
 */
const VULKAN_MAX_PUSH_CONSTANT_SIZE uint32 = 128
