package resource

import "fmt"

// Handle is an opaque, copyable reference to a GPU-resident resource
// owned by a Table. A handle is a generation-checked index: when a slot
// is released and later reused, the generation advances, so stale handles
// fail lookups instead of aliasing the new occupant.
//
// The zero Handle is invalid.
type Handle[T any] struct {
	index      uint32
	generation uint32
}

// Valid reports whether the handle has ever been issued.
// A valid handle may still fail lookup if the resource was released.
func (h Handle[T]) Valid() bool {
	return h.generation != 0
}

// String returns a debug representation of the handle.
func (h Handle[T]) String() string {
	if !h.Valid() {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(%d:%d)", h.index, h.generation)
}

// Tag types give each resource class its own handle type, so a mesh
// handle cannot be passed where a texture handle is expected.
type (
	textureTag struct{}
	meshTag    struct{}
	programTag struct{}
	targetTag  struct{}
)

// TextureHandle references an uploaded texture (with its sampler).
type TextureHandle = Handle[textureTag]

// MeshHandle references an uploaded vertex/index buffer pair.
type MeshHandle = Handle[meshTag]

// ProgramHandle references a compiled shader program module.
type ProgramHandle = Handle[programTag]

// TargetHandle references an offscreen render target (color or depth).
type TargetHandle = Handle[targetTag]
