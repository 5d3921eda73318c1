// Package batch collects per-object draw requests each frame and merges
// them into instanced draw batches, keyed by pipeline state and material,
// in stable first-submission order.
package batch

import (
	"errors"
	"fmt"

	"cogentcore.org/core/math32"

	"github.com/gogpu/ember/internal/packf"
	"github.com/gogpu/ember/pipeline"
	"github.com/gogpu/ember/resource"
)

// Batch errors.
var (
	// ErrCapacityExceeded is returned by Submit when the frame's total
	// instance budget is exhausted. The instance is dropped; the frame
	// still renders everything submitted before the overflow.
	ErrCapacityExceeded = errors.New("batch: frame instance capacity exceeded")
)

// Record is one instance's GPU-visible parameters. It packs to four
// vec4s matching pipeline.InstanceLayout (shader locations 8 through 11):
// position with uniform scale, color, and two custom vectors with the
// rotation angle carried in the last component.
//
// Scale is uniform per instance; non-uniform scale is not representable.
type Record struct {
	Position math32.Vector3
	Scale    float32
	Rotation float32
	Color    math32.Vector4
	Custom   [2]math32.Vector4
}

func (r *Record) pack(dst []byte) []byte {
	dst = packf.Append(dst, r.Position.X, r.Position.Y, r.Position.Z, r.Scale)
	dst = packf.Append(dst, r.Color.X, r.Color.Y, r.Color.Z, r.Color.W)
	dst = packf.Append(dst, r.Custom[0].X, r.Custom[0].Y, r.Custom[0].Z, r.Custom[0].W)
	dst = packf.Append(dst, r.Custom[1].X, r.Custom[1].Y, r.Custom[1].Z, r.Rotation)
	return dst
}

// Item is one submitted draw request: what to draw and with what state.
type Item struct {
	Pipeline pipeline.Key
	Texture  resource.TextureHandle
	Mesh     resource.MeshHandle
	Instance Record
}

// groupKey merges items that can share one instanced draw.
type groupKey struct {
	pipeline pipeline.Key
	texture  resource.TextureHandle
	mesh     resource.MeshHandle
}

type group struct {
	key     groupKey
	records []Record
}

// Batch is one instanced draw: Count instances starting at instance
// First within the frame's packed instance buffer.
type Batch struct {
	Pipeline pipeline.Key
	Texture  resource.TextureHandle
	Mesh     resource.MeshHandle
	First    uint32
	Count    uint32
}

// Batcher accumulates Items between Flush calls.
//
// Ordering: groups flush in the order their first item was submitted,
// and instances within a group keep submission order. Equal input across
// frames yields byte-identical batch output.
//
// Batcher is not safe for concurrent use; all submission happens on the
// frame-producing goroutine.
type Batcher struct {
	maxPerDraw int
	capacity   int

	groups []*group
	index  map[groupKey]*group
	total  int
}

// NewBatcher creates a batcher. maxPerDraw caps instances per draw call
// (larger groups split into ceil(n/maxPerDraw) batches); capacity caps
// total instances per frame.
func NewBatcher(maxPerDraw, capacity int) *Batcher {
	if maxPerDraw < 1 {
		maxPerDraw = 1
	}
	if capacity < maxPerDraw {
		capacity = maxPerDraw
	}
	return &Batcher{
		maxPerDraw: maxPerDraw,
		capacity:   capacity,
		index:      make(map[groupKey]*group),
	}
}

// Len returns the number of instances submitted since the last Flush.
func (b *Batcher) Len() int { return b.total }

// Submit adds one draw request to the current frame. Returns
// ErrCapacityExceeded when the frame budget is full; the item is dropped
// and earlier submissions are unaffected.
func (b *Batcher) Submit(item Item) error {
	if b.total >= b.capacity {
		return fmt.Errorf("%w: %d instances", ErrCapacityExceeded, b.capacity)
	}
	key := groupKey{pipeline: item.Pipeline, texture: item.Texture, mesh: item.Mesh}
	g, ok := b.index[key]
	if !ok {
		g = &group{key: key}
		b.index[key] = g
		b.groups = append(b.groups, g)
	}
	g.records = append(g.records, item.Instance)
	b.total++
	return nil
}

// Flush validates every group against the resource table, packs surviving
// instances into one contiguous buffer, and returns the draw batches in
// stable order. Groups holding released handles are dropped and reported
// through the joined error; valid groups still flush.
//
// The batcher is reset for the next frame regardless of the error.
func (b *Batcher) Flush(table *resource.Table) ([]Batch, []byte, error) {
	var (
		batches []Batch
		data    = make([]byte, 0, b.total*pipeline.InstanceStride)
		errs    []error
		next    uint32
	)

	for _, g := range b.groups {
		if _, err := table.Texture(g.key.texture); err != nil {
			errs = append(errs, fmt.Errorf("batch of %d dropped: %w", len(g.records), err))
			continue
		}
		if _, err := table.Mesh(g.key.mesh); err != nil {
			errs = append(errs, fmt.Errorf("batch of %d dropped: %w", len(g.records), err))
			continue
		}

		for i := range g.records {
			data = g.records[i].pack(data)
		}

		// Split oversized groups into runs of at most maxPerDraw.
		remaining := len(g.records)
		for remaining > 0 {
			n := remaining
			if n > b.maxPerDraw {
				n = b.maxPerDraw
			}
			batches = append(batches, Batch{
				Pipeline: g.key.pipeline,
				Texture:  g.key.texture,
				Mesh:     g.key.mesh,
				First:    next,
				Count:    uint32(n),
			})
			next += uint32(n)
			remaining -= n
		}
	}

	b.groups = nil
	b.index = make(map[groupKey]*group)
	b.total = 0

	return batches, data, errors.Join(errs...)
}
