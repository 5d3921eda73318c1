package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/internal/packf"
)

// Vertex is the standard mesh vertex: position, texture coordinates,
// and normal. All meshes consumed by the engine use this layout.
type Vertex struct {
	Position [3]float32
	UV       [2]float32
	Normal   [3]float32
}

// VertexStride is the byte stride of the standard vertex layout.
const VertexStride = 8 * 4

// VertexLayout returns the standard vertex buffer layout at shader
// locations 0 (position), 1 (uv), and 2 (normal).
func VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x3, Offset: 20, ShaderLocation: 2},
		},
	}
}

// packVertices flattens vertices into little-endian float32 bytes for
// buffer upload.
func packVertices(verts []Vertex) []byte {
	out := make([]byte, 0, len(verts)*VertexStride)
	for i := range verts {
		v := &verts[i]
		out = packf.Append(out, v.Position[0], v.Position[1], v.Position[2])
		out = packf.Append(out, v.UV[0], v.UV[1])
		out = packf.Append(out, v.Normal[0], v.Normal[1], v.Normal[2])
	}
	return out
}

// packIndices flattens 16-bit indices into little-endian bytes, padding
// to 4-byte alignment as required for buffer upload.
func packIndices(indices []uint16) []byte {
	n := len(indices) * 2
	if n%4 != 0 {
		n += 2
	}
	out := make([]byte, n)
	for i, idx := range indices {
		out[i*2] = byte(idx)
		out[i*2+1] = byte(idx >> 8)
	}
	return out
}
