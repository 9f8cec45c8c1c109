package graph

import (
	vk "github.com/goki/vulkan"
)

// Name identifies a resource across the frame. Renames map a UseName back to
// the SrcName they were derived from.
type Name string

type ResourceType int

const (
	ResourceTypeImage ResourceType = iota
	ResourceTypeBuffer
)

// ImageAccess describes how a pass touches an image resource.
type ImageAccess int

const (
	AccessColorRead ImageAccess = iota
	AccessColorWrite
	AccessColorRW
	AccessDepthStencilRead
	AccessDepthStencilRW
	AccessFragmentRead
	AccessFragmentWrite
	AccessFragmentSampled
)

func (ia ImageAccess) String() string {
	switch ia {
	case AccessColorRead:
		return "color_read"
	case AccessColorWrite:
		return "color_write"
	case AccessColorRW:
		return "color_rw"
	case AccessDepthStencilRead:
		return "depth_stencil_read"
	case AccessDepthStencilRW:
		return "depth_stencil_rw"
	case AccessFragmentRead:
		return "fragment_read"
	case AccessFragmentWrite:
		return "fragment_write"
	case AccessFragmentSampled:
		return "fragment_sampled"
	default:
		return "unknown"
	}
}

func (ia ImageAccess) IsWrite() bool {
	switch ia {
	case AccessColorWrite, AccessColorRW, AccessDepthStencilRW, AccessFragmentWrite:
		return true
	default:
		return false
	}
}

func (ia ImageAccess) IsRead() bool {
	switch ia {
	case AccessColorRead, AccessColorRW, AccessDepthStencilRead, AccessDepthStencilRW,
		AccessFragmentRead, AccessFragmentSampled:
		return true
	default:
		return false
	}
}

// Use is the lowered {stages, access, layout} triple an access tag projects to.
type Use struct {
	Stages vk.PipelineStageFlags
	Access vk.AccessFlags
	Layout vk.ImageLayout
}

// ToUse projects an access tag onto the pipeline stages that touch the
// resource, the memory access mask and the image layout the pass requires.
func ToUse(ia ImageAccess) (Use, error) {
	switch ia {
	case AccessColorRead:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			Access: vk.AccessFlags(vk.AccessColorAttachmentReadBit),
			Layout: vk.ImageLayoutColorAttachmentOptimal,
		}, nil
	case AccessColorWrite:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			Access: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			Layout: vk.ImageLayoutColorAttachmentOptimal,
		}, nil
	case AccessColorRW:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			Access: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags(vk.AccessColorAttachmentReadBit),
			Layout: vk.ImageLayoutColorAttachmentOptimal,
		}, nil
	case AccessDepthStencilRead:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			Access: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit),
			Layout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		}, nil
	case AccessDepthStencilRW:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			Access: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			Layout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		}, nil
	case AccessFragmentRead, AccessFragmentSampled:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			Access: vk.AccessFlags(vk.AccessShaderReadBit),
			Layout: vk.ImageLayoutShaderReadOnlyOptimal,
		}, nil
	case AccessFragmentWrite:
		return Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			Access: vk.AccessFlags(vk.AccessShaderWriteBit),
			Layout: vk.ImageLayoutGeneral,
		}, nil
	default:
		return Use{}, &Error{Kind: ErrUnsupportedAccess, Msg: "no use projection for access tag " + ia.String()}
	}
}

// Resource is one entry of a pass's resource list. A rename occurs iff
// SrcName != UseName and lets later passes refer to the result under UseName.
type Resource struct {
	Type    ResourceType
	SrcName Name
	UseName Name
	Access  ImageAccess
	// view of a pre-bound attachment, zero unless supplied by the caller
	ImageView vk.ImageView
}

// ImageResource declares an image used under a single name.
func ImageResource(name Name, access ImageAccess) Resource {
	return Resource{Type: ResourceTypeImage, SrcName: name, UseName: name, Access: access}
}

// RenamedImageResource declares an image read from src and republished as use.
func RenamedImageResource(src, use Name, access ImageAccess) Resource {
	return Resource{Type: ResourceTypeImage, SrcName: src, UseName: use, Access: access}
}

// A resource is a framebuffer attachment when its access tag binds it to the
// fixed-function attachment hardware rather than to a shader binding.
func (r Resource) IsFramebufferAttachment() bool {
	if r.Type == ResourceTypeBuffer {
		return false
	}
	switch r.Access {
	case AccessColorWrite, AccessColorRW, AccessDepthStencilRW, AccessColorRead, AccessDepthStencilRead:
		return true
	default:
		return false
	}
}

func isFramebufferAttachmentUse(u Use) bool {
	switch u.Layout {
	case vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutDepthStencilAttachmentOptimal:
		return true
	default:
		return false
	}
}

func isWriteUse(u Use) bool {
	if u.Access&vk.AccessFlags(vk.AccessColorAttachmentWriteBit) != 0 {
		return true
	}
	if u.Access&vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) != 0 {
		return true
	}
	if u.Access&vk.AccessFlags(vk.AccessShaderWriteBit) != 0 {
		return true
	}
	return false
}

func isReadUse(u Use) bool {
	return !isWriteUse(u)
}
