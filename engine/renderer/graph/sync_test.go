package graph

import (
	"reflect"
	"testing"

	vk "github.com/goki/vulkan"
)

func hasDependency(deps []vk.SubpassDependency, want vk.SubpassDependency) bool {
	for _, d := range deps {
		if d == want {
			return true
		}
	}
	return false
}

// Triangle to swapchain: one pass, one block, clear-store to present.
func TestSyncSinglePassToSwapchain(t *testing.T) {
	rg := NewRenderGraph()
	sw := newFakeSwapchain(1280, 720)
	mustAddPass(t, rg, Pass{Name: "draw", Resources: []Resource{
		ImageResource("back", AccessColorWrite),
	}})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})

	if err := rg.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rpis := rg.RenderPasses()
	if len(rpis) != 1 {
		t.Fatalf("got %d blocks, want 1", len(rpis))
	}
	rpi := rpis[0]
	if len(rpi.Subpasses) != 1 || len(rpi.Attachments) != 1 {
		t.Fatalf("block shape: %d subpasses, %d attachments, want 1/1",
			len(rpi.Subpasses), len(rpi.Attachments))
	}

	desc := rpi.Attachments[0].Description
	if desc.Format != sw.SwapchainFormat() {
		t.Errorf("format = %d, want swapchain format", desc.Format)
	}
	if desc.LoadOp != vk.AttachmentLoadOpClear {
		t.Errorf("loadOp = %d, want Clear", desc.LoadOp)
	}
	if desc.StoreOp != vk.AttachmentStoreOpStore {
		t.Errorf("storeOp = %d, want Store", desc.StoreOp)
	}
	// preinitialized is the clear sentinel and never reaches the description
	if desc.InitialLayout != vk.ImageLayoutUndefined {
		t.Errorf("initialLayout = %d, want Undefined", desc.InitialLayout)
	}
	if desc.FinalLayout != vk.ImageLayoutPresentSrc {
		t.Errorf("finalLayout = %d, want PresentSrc", desc.FinalLayout)
	}

	// the outgoing present dependency
	if !hasDependency(rpi.RPCI.SubpassDependencies, vk.SubpassDependency{
		SrcSubpass:    0,
		DstSubpass:    vk.SubpassExternal,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		DstAccessMask: 0,
	}) {
		t.Errorf("missing present dependency, got %+v", rpi.RPCI.SubpassDependencies)
	}
	// the incoming acquire dependency from the preinitialized boundary
	if !hasDependency(rpi.RPCI.SubpassDependencies, vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}) {
		t.Errorf("missing acquire dependency, got %+v", rpi.RPCI.SubpassDependencies)
	}

	// one subpass with one color ref at attachment 0
	if len(rpi.RPCI.ColorRefOffsets) != 1 || rpi.RPCI.ColorRefOffsets[0] != 1 {
		t.Errorf("color ref offsets = %v, want [1]", rpi.RPCI.ColorRefOffsets)
	}
	sd := rpi.RPCI.SubpassDescriptions[0]
	if sd.PipelineBindPoint != vk.PipelineBindPointGraphics {
		t.Error("subpass must bind the graphics pipeline point")
	}
	if len(sd.ColorAttachments) != 1 || sd.ColorAttachments[0].Attachment != 0 ||
		sd.ColorAttachments[0].Layout != vk.ImageLayoutColorAttachmentOptimal {
		t.Errorf("color attachments = %+v", sd.ColorAttachments)
	}
	if sd.DepthStencilAttachment != nil {
		t.Error("no depth attachment was declared")
	}
}

// Write-then-sample across two blocks: store and hand over to the fragment
// shader.
func TestSyncWriteThenSample(t *testing.T) {
	rg := NewRenderGraph()
	sw := newFakeSwapchain(640, 480)
	mustAddPass(t, rg, Pass{Name: "scene", Resources: []Resource{
		ImageResource("color", AccessColorWrite),
	}})
	mustAddPass(t, rg, Pass{Name: "post", Resources: []Resource{
		ImageResource("color", AccessFragmentSampled),
		ImageResource("back", AccessColorWrite),
	}})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})
	rg.MarkAttachmentInternal("color", vk.FormatB8g8r8a8Unorm, vk.Extent2D{Width: 640, Height: 480}, vk.ClearValue{})

	if err := rg.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rpis := rg.RenderPasses()
	if len(rpis) != 2 {
		t.Fatalf("got %d blocks, want 2 (attachment sets differ)", len(rpis))
	}

	sceneBlock := rpis[rg.Passes()[0].RenderPassIndex]
	att := sceneBlock.attachment("color")
	if att == nil {
		t.Fatal("scene block lost its color attachment")
	}
	if att.Description.FinalLayout != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("finalLayout = %d, want ShaderReadOnlyOptimal", att.Description.FinalLayout)
	}
	if att.Description.StoreOp != vk.AttachmentStoreOpStore {
		t.Errorf("storeOp = %d, want Store", att.Description.StoreOp)
	}

	if !hasDependency(sceneBlock.RPCI.SubpassDependencies, vk.SubpassDependency{
		SrcSubpass:    0,
		DstSubpass:    vk.SubpassExternal,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
	}) {
		t.Errorf("missing write->sample dependency, got %+v", sceneBlock.RPCI.SubpassDependencies)
	}
}

// Two subpasses in one block: a write-after-write hazard needs a subpass
// dependency.
func TestSyncSubpassDependencyWithinBlock(t *testing.T) {
	rg := NewRenderGraph()
	sw := newFakeSwapchain(640, 480)
	mustAddPass(t, rg, Pass{Name: "base", Resources: []Resource{
		ImageResource("back", AccessColorWrite),
	}})
	mustAddPass(t, rg, Pass{Name: "decals", Resources: []Resource{
		ImageResource("back", AccessColorRW),
	}})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})

	if err := rg.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rpis := rg.RenderPasses()
	if len(rpis) != 1 {
		t.Fatalf("got %d blocks, want 1 (same attachment set)", len(rpis))
	}
	rpi := rpis[0]
	if len(rpi.Subpasses) != 2 {
		t.Fatalf("got %d subpasses, want 2", len(rpi.Subpasses))
	}

	if !hasDependency(rpi.RPCI.SubpassDependencies, vk.SubpassDependency{
		SrcSubpass:    0,
		DstSubpass:    1,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags(vk.AccessColorAttachmentReadBit),
	}) {
		t.Errorf("missing 0->1 subpass dependency, got %+v", rpi.RPCI.SubpassDependencies)
	}

	// CSR shape: one color ref per subpass, offsets non-decreasing, one per
	// subpass entry
	if !reflect.DeepEqual(rpi.RPCI.ColorRefOffsets, []uint32{1, 2}) {
		t.Errorf("color ref offsets = %v, want [1 2]", rpi.RPCI.ColorRefOffsets)
	}
	if len(rpi.RPCI.SubpassDescriptions) != 2 {
		t.Fatalf("got %d subpass descriptions, want 2", len(rpi.RPCI.SubpassDescriptions))
	}
	for i, sd := range rpi.RPCI.SubpassDescriptions {
		if len(sd.ColorAttachments) != 1 || sd.ColorAttachments[0].Attachment != 0 {
			t.Errorf("subpass %d color refs = %+v", i, sd.ColorAttachments)
		}
	}
}

// finalLayout of a block matches initialLayout of the next block visiting
// the same attachment.
func TestSyncLayoutRoundTrip(t *testing.T) {
	rg := NewRenderGraph()
	sw := newFakeSwapchain(640, 480)
	mustAddPass(t, rg, Pass{Name: "scene", Resources: []Resource{
		ImageResource("back", AccessColorWrite),
		ImageResource("depth", AccessDepthStencilRW),
	}})
	mustAddPass(t, rg, Pass{Name: "overlay", Resources: []Resource{
		ImageResource("back", AccessColorRW),
	}})
	rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})
	rg.MarkAttachmentInternal("depth", vk.FormatD32Sfloat, vk.Extent2D{Width: 640, Height: 480}, vk.ClearValue{})

	if err := rg.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	rpis := rg.RenderPasses()
	if len(rpis) != 2 {
		t.Fatalf("got %d blocks, want 2", len(rpis))
	}
	first := rpis[rg.Passes()[0].RenderPassIndex].attachment("back")
	second := rpis[rg.Passes()[1].RenderPassIndex].attachment("back")
	if first == nil || second == nil {
		t.Fatal("back attachment missing from a block")
	}
	if first.Description.FinalLayout != second.Description.InitialLayout {
		t.Errorf("layout round trip broken: final %d != initial %d",
			first.Description.FinalLayout, second.Description.InitialLayout)
	}
	// the second visit keeps the stored contents
	if second.Description.LoadOp != vk.AttachmentLoadOpLoad {
		t.Errorf("second visit loadOp = %d, want Load", second.Description.LoadOp)
	}

	// the depth attachment resolves to a depth/stencil reference
	sceneBlock := rpis[rg.Passes()[0].RenderPassIndex]
	ds := sceneBlock.RPCI.SubpassDescriptions[0].DepthStencilAttachment
	if ds == nil {
		t.Fatal("scene subpass lost its depth reference")
	}
	if ds.Layout != vk.ImageLayoutDepthStencilAttachmentOptimal {
		t.Errorf("depth ref layout = %d", ds.Layout)
	}

	// internal attachment with an undefined final layout is discarded
	depth := sceneBlock.attachment("depth")
	if depth.Description.StoreOp != vk.AttachmentStoreOpDontCare {
		t.Errorf("depth storeOp = %d, want DontCare", depth.Description.StoreOp)
	}
	if depth.Description.FinalLayout != vk.ImageLayoutDepthStencilAttachmentOptimal {
		t.Errorf("depth finalLayout = %d, want its last use kept", depth.Description.FinalLayout)
	}
}

// Compiling the same declaration twice synthesizes identical create infos.
func TestSyncDeterminism(t *testing.T) {
	build := func() *RenderGraph {
		rg := NewRenderGraph()
		sw := newFakeSwapchain(800, 600)
		mustAddPass(t, rg, Pass{Name: "gbuffer", Resources: []Resource{
			ImageResource("albedo", AccessColorWrite),
			ImageResource("normal", AccessColorWrite),
			ImageResource("depth", AccessDepthStencilRW),
		}})
		mustAddPass(t, rg, Pass{Name: "shade", Resources: []Resource{
			ImageResource("albedo", AccessFragmentSampled),
			ImageResource("normal", AccessFragmentSampled),
			ImageResource("back", AccessColorWrite),
		}})
		rg.BindAttachmentToSwapchain("back", sw, vk.ClearValue{})
		extent := vk.Extent2D{Width: 800, Height: 600}
		rg.MarkAttachmentInternal("albedo", vk.FormatB8g8r8a8Unorm, extent, vk.ClearValue{})
		rg.MarkAttachmentInternal("normal", vk.FormatB8g8r8a8Unorm, extent, vk.ClearValue{})
		rg.MarkAttachmentInternal("depth", vk.FormatD32Sfloat, extent, vk.ClearValue{})
		if err := rg.Compile(); err != nil {
			t.Fatalf("Compile: %v", err)
		}
		return rg
	}

	a, b := build(), build()
	if len(a.RenderPasses()) != len(b.RenderPasses()) {
		t.Fatalf("block counts differ: %d vs %d", len(a.RenderPasses()), len(b.RenderPasses()))
	}
	for i := range a.RenderPasses() {
		if !reflect.DeepEqual(a.RenderPasses()[i].RPCI, b.RenderPasses()[i].RPCI) {
			t.Errorf("block %d create infos differ", i)
		}
	}
}
