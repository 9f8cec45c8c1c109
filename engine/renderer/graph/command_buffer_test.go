package graph

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
)

// runPass compiles a single color pass around the callback and executes it.
func runPass(t *testing.T, ptc *fakePTC, execute func(*CommandBuffer)) {
	t.Helper()
	rg := NewRenderGraph()
	sw := newFakeSwapchain(100, 200)
	mustAddPass(t, rg, Pass{
		Name:      "draw",
		Resources: []Resource{ImageResource("back", AccessColorWrite)},
		Execute:   execute,
	})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})
	if _, err := rg.Execute(ptc, []SwapchainBinding{{Swapchain: sw, ImageIndex: 0}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestBindVertexBufferPackedFormat(t *testing.T) {
	ptc := newFakePTC()
	buf := &Buffer{}
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindVertexBuffer(0, buf, Packed{
			Field(vk.FormatR32g32b32Sfloat, 12), // position
			Ignore(4),                           // padding
			Field(vk.FormatR32g32Sfloat, 8),     // uv
		})
		cb.BindPipeline(&PipelineCreateInfo{Name: "textured"})

		if cb.Err() != nil {
			t.Fatalf("recording failed: %v", cb.Err())
		}
	})

	if len(ptc.pipelines) != 1 {
		t.Fatalf("pipeline acquired %d times, want 1", len(ptc.pipelines))
	}
	pci := ptc.pipelines[0]

	wantAttrs := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 16},
	}
	if len(pci.AttributeDescriptions) != len(wantAttrs) {
		t.Fatalf("got %d attributes, want %d", len(pci.AttributeDescriptions), len(wantAttrs))
	}
	for i, want := range wantAttrs {
		if pci.AttributeDescriptions[i] != want {
			t.Errorf("attribute %d = %+v, want %+v", i, pci.AttributeDescriptions[i], want)
		}
	}
	if len(pci.BindingDescriptions) != 1 || pci.BindingDescriptions[0].Stride != 24 {
		t.Errorf("binding descriptions = %+v, want stride 24", pci.BindingDescriptions)
	}
}

func TestBindVertexBufferRebindReplacesDescriptions(t *testing.T) {
	ptc := newFakePTC()
	buf := &Buffer{}
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindVertexBuffer(0, buf, Packed{Field(vk.FormatR32g32b32Sfloat, 12)})
		cb.BindVertexBuffer(0, buf, Packed{Field(vk.FormatR32g32Sfloat, 8)})
		cb.BindPipeline(&PipelineCreateInfo{Name: "flat"})
	})

	pci := ptc.pipelines[0]
	if len(pci.AttributeDescriptions) != 1 || pci.AttributeDescriptions[0].Format != vk.FormatR32g32Sfloat {
		t.Errorf("rebind left stale attributes: %+v", pci.AttributeDescriptions)
	}
	if len(pci.BindingDescriptions) != 1 || pci.BindingDescriptions[0].Stride != 8 {
		t.Errorf("rebind left stale bindings: %+v", pci.BindingDescriptions)
	}
}

func TestPipelineCompletedWithRenderPassState(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindPipeline(&PipelineCreateInfo{Name: "solid"})
	})
	if ptc.pipelines[0].Subpass != 0 {
		t.Errorf("pipeline subpass = %d, want 0", ptc.pipelines[0].Subpass)
	}
}

func TestDescriptorFlushOnDraw(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindPipeline(&PipelineCreateInfo{Name: "textured"}).
			BindSampledImage(0, 1, nil, vk.SamplerCreateInfo{}).
			Draw(3, 1, 0, 0)

		// slots were reset by the flush: the second draw binds nothing new
		cb.Draw(3, 1, 0, 0)

		if cb.Err() != nil {
			t.Fatalf("recording failed: %v", cb.Err())
		}
	})

	if len(ptc.descriptorSets) != 1 {
		t.Fatalf("descriptor set acquired %d times, want 1", len(ptc.descriptorSets))
	}
	sb := ptc.descriptorSets[0]
	if !sb.IsUsed(1) {
		t.Error("binding 1 not marked used")
	}
	if sb.Bindings[1].Type != vk.DescriptorTypeCombinedImageSampler {
		t.Errorf("binding type = %d, want combined image sampler", sb.Bindings[1].Type)
	}
	if sb.Bindings[1].Image.Layout != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("bound image layout = %d", sb.Bindings[1].Image.Layout)
	}
	if got := countOps(ptc.sink.ops, "draw"); got != 2 {
		t.Errorf("draw recorded %d times, want 2", got)
	}
	if got := countOps(ptc.sink.ops, "bindDescriptorSets"); got != 1 {
		t.Errorf("descriptor sets bound %d times, want 1", got)
	}
	if len(ptc.samplers) != 1 {
		t.Errorf("sampler acquired %d times, want 1", len(ptc.samplers))
	}
}

func TestDrawWithoutPipelineFails(t *testing.T) {
	ptc := newFakePTC()
	rg := NewRenderGraph()
	sw := newFakeSwapchain(64, 64)
	mustAddPass(t, rg, Pass{
		Name:      "draw",
		Resources: []Resource{ImageResource("back", AccessColorWrite)},
		Execute: func(cb *CommandBuffer) {
			cb.Draw(3, 1, 0, 0)
		},
	})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})

	_, err := rg.Execute(ptc, []SwapchainBinding{{Swapchain: sw, ImageIndex: 0}})
	if !errors.Is(err, ErrUnsupportedAccess) {
		t.Fatalf("expected ErrUnsupportedAccess, got %v", err)
	}
}

func TestBindNamedSampledImageUnknownName(t *testing.T) {
	ptc := newFakePTC()
	rg := NewRenderGraph()
	sw := newFakeSwapchain(64, 64)
	mustAddPass(t, rg, Pass{
		Name:      "draw",
		Resources: []Resource{ImageResource("back", AccessColorWrite)},
		Execute: func(cb *CommandBuffer) {
			cb.BindNamedSampledImage(0, 0, "missing", vk.SamplerCreateInfo{})
		},
	})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})

	_, err := rg.Execute(ptc, []SwapchainBinding{{Swapchain: sw, ImageIndex: 0}})
	if !errors.Is(err, ErrUnknownAttachment) {
		t.Fatalf("expected ErrUnknownAttachment, got %v", err)
	}
}

func TestViewportFramebufferRelative(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.SetViewportFramebuffer(0, FullFramebuffer)
	})

	if len(ptc.sink.viewports) != 1 {
		t.Fatalf("got %d viewports, want 1", len(ptc.sink.viewports))
	}
	vp := ptc.sink.viewports[0]
	// flipped: origin at the bottom, negative height
	if vp.X != 0 || vp.Y != 200 || vp.Width != 100 || vp.Height != -200 {
		t.Errorf("viewport = %+v, want flipped full framebuffer", vp)
	}
}

func TestScissorFramebufferRelative(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.SetScissorFramebuffer(0, FramebufferArea{X: 0.5, Y: 0, Width: 0.5, Height: 1})
	})

	if len(ptc.sink.scissors) != 1 {
		t.Fatalf("got %d scissors, want 1", len(ptc.sink.scissors))
	}
	sc := ptc.sink.scissors[0]
	if sc.Offset.X != 50 || sc.Extent.Width != 50 || sc.Extent.Height != 200 {
		t.Errorf("scissor = %+v", sc)
	}
}

func TestMapScratchUniform(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindPipeline(&PipelineCreateInfo{Name: "lit"})
		data := cb.MapScratchUniform(0, 0, 64)
		if len(data) != 64 {
			t.Fatalf("mapped %d bytes, want 64", len(data))
		}
		copy(data, []byte{1, 2, 3, 4})
		cb.Draw(3, 1, 0, 0)
	})

	if len(ptc.scratchSizes) != 1 || ptc.scratchSizes[0] != 64 {
		t.Errorf("scratch allocations = %v, want [64]", ptc.scratchSizes)
	}
	if len(ptc.descriptorSets) != 1 {
		t.Fatalf("descriptor set acquired %d times, want 1", len(ptc.descriptorSets))
	}
	if ptc.descriptorSets[0].Bindings[0].Type != vk.DescriptorTypeUniformBuffer {
		t.Errorf("binding type = %d, want uniform buffer", ptc.descriptorSets[0].Bindings[0].Type)
	}
}

func TestPushConstants(t *testing.T) {
	ptc := newFakePTC()
	runPass(t, ptc, func(cb *CommandBuffer) {
		cb.BindPipeline(&PipelineCreateInfo{Name: "solid"}).
			PushConstants(vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, []byte{0, 0, 0, 1})
	})
	if got := countOps(ptc.sink.ops, "pushConstants"); got != 1 {
		t.Errorf("pushConstants recorded %d times, want 1", got)
	}
}
