package batch

import (
	"errors"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/backend/headless"
	"github.com/gogpu/ember/internal/packf"
	"github.com/gogpu/ember/pipeline"
	"github.com/gogpu/ember/resource"
)

func newTestAssets(t *testing.T) (*resource.Table, resource.TextureHandle, resource.MeshHandle) {
	t.Helper()
	ctx := headless.New()
	if err := ctx.Init(backend.Target{Width: 320, Height: 240}, backend.Options{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(ctx.Close)

	table := resource.NewTable(ctx)
	tex, err := table.UploadTexture("tex", make([]byte, 4*4*4), gputypes.TextureFormatRGBA8Unorm, 4, 4)
	if err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	mesh, err := table.UploadMesh("quad",
		[]resource.Vertex{{}, {}, {}, {}},
		[]uint16{0, 1, 2, 0, 2, 3})
	if err != nil {
		t.Fatalf("UploadMesh failed: %v", err)
	}
	return table, tex, mesh
}

func opaqueKey() pipeline.Key {
	return pipeline.Key{Layout: pipeline.LayoutInstanced, Blend: backend.BlendOpaque, Depth: backend.DepthReadWrite, HasDepth: true}
}

func TestFlushMergesSharedState(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	b := NewBatcher(64, 256)

	for i := 0; i < 5; i++ {
		item := Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}
		item.Instance.Position.X = float32(i)
		if err := b.Submit(item); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	batches, data, err := b.Flush(table)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("batch count = %d, want 1", len(batches))
	}
	if batches[0].Count != 5 || batches[0].First != 0 {
		t.Errorf("batch = {First: %d, Count: %d}, want {0, 5}", batches[0].First, batches[0].Count)
	}
	if len(data) != 5*pipeline.InstanceStride {
		t.Errorf("packed size = %d, want %d", len(data), 5*pipeline.InstanceStride)
	}

	// Instances keep submission order: position.x is the first float of
	// each record.
	floats := packf.Floats(data)
	for i := 0; i < 5; i++ {
		if got := floats[i*16]; got != float32(i) {
			t.Errorf("instance %d position.x = %v, want %d", i, got, i)
		}
	}
}

func TestFlushStableFirstSeenOrder(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	tex2, err := table.UploadTexture("tex2", make([]byte, 4*4*4), gputypes.TextureFormatRGBA8Unorm, 4, 4)
	if err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	b := NewBatcher(64, 256)

	// Interleave two materials; the first-seen material flushes first.
	sequence := []resource.TextureHandle{tex2, tex, tex2, tex, tex2}
	for _, x := range sequence {
		if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: x, Mesh: mesh}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	batches, _, err := b.Flush(table)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batch count = %d, want 2", len(batches))
	}
	if batches[0].Texture != tex2 || batches[0].Count != 3 {
		t.Errorf("batch 0 = %+v, want tex2 with 3 instances", batches[0])
	}
	if batches[1].Texture != tex || batches[1].Count != 2 {
		t.Errorf("batch 1 = %+v, want tex with 2 instances", batches[1])
	}
}

func TestFlushSplitsOversizedGroups(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	b := NewBatcher(2, 256)

	for i := 0; i < 5; i++ {
		if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	batches, _, err := b.Flush(table)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	// 5 instances at 2 per draw: 2 + 2 + 1.
	if len(batches) != 3 {
		t.Fatalf("batch count = %d, want 3", len(batches))
	}
	wantCounts := []uint32{2, 2, 1}
	wantFirsts := []uint32{0, 2, 4}
	for i, batch := range batches {
		if batch.Count != wantCounts[i] || batch.First != wantFirsts[i] {
			t.Errorf("batch %d = {First: %d, Count: %d}, want {%d, %d}",
				i, batch.First, batch.Count, wantFirsts[i], wantCounts[i])
		}
	}
}

func TestFlushSplitsAndGroupsTogether(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	tex2, err := table.UploadTexture("tex2", make([]byte, 4*4*4), gputypes.TextureFormatRGBA8Unorm, 4, 4)
	if err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	b := NewBatcher(2, 256)

	// Three instances of one material and two of another, flushed once
	// at 2 per draw: the first material splits 2+1, the second fills one
	// batch, and the first-seen material keeps the front of the list.
	for i := 0; i < 3; i++ {
		if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex2, Mesh: mesh}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	batches, data, err := b.Flush(table)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("batch count = %d, want 3", len(batches))
	}
	wantTex := []resource.TextureHandle{tex, tex, tex2}
	wantCounts := []uint32{2, 1, 2}
	for i, batch := range batches {
		if batch.Texture != wantTex[i] {
			t.Errorf("batch %d texture = %v, want %v", i, batch.Texture, wantTex[i])
		}
		if batch.Count != wantCounts[i] {
			t.Errorf("batch %d count = %d, want %d", i, batch.Count, wantCounts[i])
		}
	}
	if len(data) != 5*pipeline.InstanceStride {
		t.Errorf("packed size = %d, want %d", len(data), 5*pipeline.InstanceStride)
	}
}

func TestSubmitCapacityExceeded(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	b := NewBatcher(2, 2)

	for i := 0; i < 2; i++ {
		if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}
	if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}

	// Earlier submissions still flush.
	batches, _, err := b.Flush(table)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(batches) != 1 || batches[0].Count != 2 {
		t.Errorf("batches = %+v, want one batch of 2", batches)
	}
}

func TestFlushDropsReleasedHandles(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	tex2, err := table.UploadTexture("doomed", make([]byte, 4*4*4), gputypes.TextureFormatRGBA8Unorm, 4, 4)
	if err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	b := NewBatcher(64, 256)

	if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex2, Mesh: mesh}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Released between submission and flush.
	if err := table.ReleaseTexture(tex2); err != nil {
		t.Fatalf("ReleaseTexture failed: %v", err)
	}

	batches, data, err := b.Flush(table)
	if !errors.Is(err, resource.ErrInvalidHandle) {
		t.Errorf("err = %v, want resource.ErrInvalidHandle", err)
	}
	if len(batches) != 1 || batches[0].Texture != tex {
		t.Errorf("batches = %+v, want only the live material", batches)
	}
	if len(data) != pipeline.InstanceStride {
		t.Errorf("packed size = %d, want %d", len(data), pipeline.InstanceStride)
	}
}

func TestFlushResets(t *testing.T) {
	table, tex, mesh := newTestAssets(t)
	b := NewBatcher(64, 256)

	if err := b.Submit(Item{Pipeline: opaqueKey(), Texture: tex, Mesh: mesh}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, _, err := b.Flush(table); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("Len after flush = %d, want 0", b.Len())
	}

	batches, data, err := b.Flush(table)
	if err != nil {
		t.Fatalf("empty Flush failed: %v", err)
	}
	if len(batches) != 0 || len(data) != 0 {
		t.Errorf("empty flush returned %d batches, %d bytes", len(batches), len(data))
	}
}

func TestRecordPacking(t *testing.T) {
	r := Record{
		Position: math32.Vec3(1, 2, 3),
		Scale:    4,
		Rotation: 0.5,
		Color:    math32.Vec4(0.1, 0.2, 0.3, 0.4),
	}
	r.Custom[0] = math32.Vec4(5, 6, 7, 8)
	r.Custom[1] = math32.Vec4(9, 10, 11, 99)

	floats := packf.Floats(r.pack(nil))
	if len(floats) != 16 {
		t.Fatalf("packed float count = %d, want 16", len(floats))
	}
	want := []float32{1, 2, 3, 4, 0.1, 0.2, 0.3, 0.4, 5, 6, 7, 8, 9, 10, 11, 0.5}
	for i := range want {
		if floats[i] != want[i] {
			t.Errorf("float %d = %v, want %v", i, floats[i], want[i])
		}
	}
}
