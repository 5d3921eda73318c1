package pass

import (
	"fmt"

	"cogentcore.org/core/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/internal/packf"
)

// FrameUniforms is the per-frame uniform block shared by every pass:
// camera matrices and the scalar environment parameters shaders read.
type FrameUniforms struct {
	// ViewProjection is the combined camera view and projection matrix.
	ViewProjection math32.Matrix4

	// CameraPosition is the world-space camera position (w unused).
	CameraPosition math32.Vector4

	// CameraDirection is the normalized camera forward vector (w unused).
	CameraDirection math32.Vector4

	// ScreenAndTime packs surface width, height, aspect ratio, and
	// elapsed time in seconds.
	ScreenAndTime math32.Vector4

	// SunColor is the directional light color with intensity in w.
	SunColor math32.Vector4

	// FogAndGrade packs fog density, fog start distance, the
	// post-process mode as a float selector, and one free parameter.
	FogAndGrade math32.Vector4
}

// UniformBlockSize is the packed byte size of FrameUniforms: one mat4
// and five vec4s.
const UniformBlockSize = 16*4 + 5*16

// uniformAlign is the required alignment of dynamic uniform buffer
// offsets.
const uniformAlign = 256

// slotStride is UniformBlockSize rounded up to uniformAlign.
const slotStride = (UniformBlockSize + uniformAlign - 1) / uniformAlign * uniformAlign

func packVec4(dst []byte, v math32.Vector4) []byte {
	return packf.Append(dst, v.X, v.Y, v.Z, v.W)
}

// Pack flattens the block into the byte layout shaders expect.
func (u *FrameUniforms) Pack() []byte {
	out := make([]byte, 0, UniformBlockSize)
	for i := 0; i < 16; i++ {
		out = packf.Append(out, u.ViewProjection[i])
	}
	out = packVec4(out, u.CameraPosition)
	out = packVec4(out, u.CameraDirection)
	out = packVec4(out, u.ScreenAndTime)
	out = packVec4(out, u.SunColor)
	out = packVec4(out, u.FogAndGrade)
	return out
}

// UniformSet holds the per-frame uniform block in a small ring of buffer
// slots, one per frame in flight, so updating frame N+1's uniforms never
// races the GPU reading frame N's.
type UniformSet struct {
	ctx    backend.Context
	buf    backend.Buffer
	groups []backend.BindGroup
	slots  int
	cur    int
}

// NewUniformSet allocates the uniform ring with the given number of
// slots (the frames-in-flight depth).
func NewUniformSet(ctx backend.Context, slots int) (*UniformSet, error) {
	if slots < 1 {
		slots = 1
	}

	buf, err := ctx.CreateBuffer(&backend.BufferDescriptor{
		Label: "frame uniforms",
		Size:  uint64(slots * slotStride),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform set: %w", err)
	}

	groups := make([]backend.BindGroup, slots)
	for i := range groups {
		g, err := ctx.CreateUniformBindGroup(
			fmt.Sprintf("frame uniforms slot %d", i),
			buf, uint64(i*slotStride), UniformBlockSize)
		if err != nil {
			buf.Release()
			return nil, fmt.Errorf("uniform set slot %d: %w", i, err)
		}
		groups[i] = g
	}

	return &UniformSet{ctx: ctx, buf: buf, groups: groups, slots: slots}, nil
}

// Update writes the block into the current slot. Called once per frame
// before any pass samples the uniforms.
func (s *UniformSet) Update(u *FrameUniforms) error {
	return s.ctx.WriteBuffer(s.buf, uint64(s.cur*slotStride), u.Pack())
}

// Binding returns the bind group for the current slot, for pass
// recording at the uniform bind slot.
func (s *UniformSet) Binding() backend.BindGroup {
	return s.groups[s.cur]
}

// Slot returns the current slot index.
func (s *UniformSet) Slot() int { return s.cur }

// Advance rotates to the next slot. Called after each submitted frame.
func (s *UniformSet) Advance() {
	s.cur = (s.cur + 1) % s.slots
}

// Close releases the ring's buffer and bind groups.
func (s *UniformSet) Close() {
	for _, g := range s.groups {
		g.Release()
	}
	s.buf.Release()
}
