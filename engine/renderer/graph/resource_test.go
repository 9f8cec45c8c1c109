package graph

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestToUseProjections(t *testing.T) {
	tests := []struct {
		access ImageAccess
		stages vk.PipelineStageFlags
		mask   vk.AccessFlags
		layout vk.ImageLayout
	}{
		{
			AccessColorWrite,
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			AccessColorRead,
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			vk.AccessFlags(vk.AccessColorAttachmentReadBit),
			vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			AccessColorRW,
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			vk.AccessFlags(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags(vk.AccessColorAttachmentReadBit),
			vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			AccessDepthStencilRead,
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit),
			vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
		{
			AccessDepthStencilRW,
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
			vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
		{
			AccessFragmentRead,
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			vk.AccessFlags(vk.AccessShaderReadBit),
			vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			AccessFragmentSampled,
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			vk.AccessFlags(vk.AccessShaderReadBit),
			vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			AccessFragmentWrite,
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			vk.AccessFlags(vk.AccessShaderWriteBit),
			vk.ImageLayoutGeneral,
		},
	}

	for _, tt := range tests {
		use, err := ToUse(tt.access)
		if err != nil {
			t.Fatalf("ToUse(%s): unexpected error %v", tt.access, err)
		}
		if use.Stages != tt.stages {
			t.Errorf("ToUse(%s).Stages = %x, want %x", tt.access, use.Stages, tt.stages)
		}
		if use.Access != tt.mask {
			t.Errorf("ToUse(%s).Access = %x, want %x", tt.access, use.Access, tt.mask)
		}
		if use.Layout != tt.layout {
			t.Errorf("ToUse(%s).Layout = %d, want %d", tt.access, use.Layout, tt.layout)
		}
	}
}

func TestToUseUnsupported(t *testing.T) {
	_, err := ToUse(ImageAccess(42))
	if !errors.Is(err, ErrUnsupportedAccess) {
		t.Fatalf("expected ErrUnsupportedAccess, got %v", err)
	}
}

func TestAccessPredicates(t *testing.T) {
	tests := []struct {
		access ImageAccess
		read   bool
		write  bool
	}{
		{AccessColorRead, true, false},
		{AccessColorWrite, false, true},
		{AccessColorRW, true, true},
		{AccessDepthStencilRead, true, false},
		{AccessDepthStencilRW, true, true},
		{AccessFragmentRead, true, false},
		{AccessFragmentWrite, false, true},
		{AccessFragmentSampled, true, false},
	}
	for _, tt := range tests {
		if got := tt.access.IsRead(); got != tt.read {
			t.Errorf("%s.IsRead() = %v, want %v", tt.access, got, tt.read)
		}
		if got := tt.access.IsWrite(); got != tt.write {
			t.Errorf("%s.IsWrite() = %v, want %v", tt.access, got, tt.write)
		}
	}
}

func TestIsFramebufferAttachment(t *testing.T) {
	if !ImageResource("back", AccessColorWrite).IsFramebufferAttachment() {
		t.Error("color write should be a framebuffer attachment")
	}
	if !ImageResource("depth", AccessDepthStencilRW).IsFramebufferAttachment() {
		t.Error("depth rw should be a framebuffer attachment")
	}
	if ImageResource("tex", AccessFragmentSampled).IsFramebufferAttachment() {
		t.Error("sampled read is not a framebuffer attachment")
	}
	buffer := Resource{Type: ResourceTypeBuffer, SrcName: "b", UseName: "b", Access: AccessColorWrite}
	if buffer.IsFramebufferAttachment() {
		t.Error("buffers are never framebuffer attachments")
	}
}

func TestUsePredicates(t *testing.T) {
	write, _ := ToUse(AccessColorWrite)
	if !isWriteUse(write) || isReadUse(write) {
		t.Error("color write use must classify as write")
	}
	sampled, _ := ToUse(AccessFragmentSampled)
	if isWriteUse(sampled) || !isReadUse(sampled) {
		t.Error("sampled use must classify as read")
	}
	if !isFramebufferAttachmentUse(write) {
		t.Error("color attachment layout is a framebuffer use")
	}
	if isFramebufferAttachmentUse(sampled) {
		t.Error("shader read layout is not a framebuffer use")
	}
}
