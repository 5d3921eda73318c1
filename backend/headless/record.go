package headless

import (
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
)

// FrameRecord is the inspectable log of one frame.
type FrameRecord struct {
	// Frame is the frame number the token carried.
	Frame uint64

	// Passes holds one record per BeginPass, in recording order.
	Passes []*PassRecord

	// Submitted is true when the frame ended in Submit rather than
	// Abandon.
	Submitted bool
}

// PassRecord is the log of one render pass.
type PassRecord struct {
	Label string

	// ColorTarget is the label of the offscreen color texture, or ""
	// when the pass targeted the surface.
	ColorTarget string

	// DepthTarget is the label of the depth texture, or "" without one.
	DepthTarget string

	Clear backend.ClearPolicy

	// Draws holds one record per DrawIndexed, in recording order.
	Draws []DrawRecord

	// Ended is true once End was called.
	Ended bool
}

// DrawRecord is the log of one indexed draw with its bound state.
type DrawRecord struct {
	Pipeline      string
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	FirstInstance uint32
}

// TotalInstances sums instance counts across all draws in the pass.
func (p *PassRecord) TotalInstances() uint32 {
	var n uint32
	for _, d := range p.Draws {
		n += d.InstanceCount
	}
	return n
}

type frameToken struct {
	frame  uint64
	record *FrameRecord
}

func (t *frameToken) Frame() uint64 { return t.frame }

type passEncoder struct {
	pass     *PassRecord
	pipeline string
}

func (e *passEncoder) SetPipeline(p backend.Pipeline) {
	if p != nil {
		e.pipeline = p.Label()
	}
}

func (e *passEncoder) SetBindGroup(slot uint32, bg backend.BindGroup) {}

func (e *passEncoder) SetVertexBuffer(slot uint32, buf backend.Buffer) {}

func (e *passEncoder) SetVertexBufferRange(slot uint32, buf backend.Buffer, offset, size uint64) {}

func (e *passEncoder) SetIndexBuffer(buf backend.Buffer, format gputypes.IndexFormat) {}

func (e *passEncoder) DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32) {
	e.pass.Draws = append(e.pass.Draws, DrawRecord{
		Pipeline:      e.pipeline,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		FirstInstance: firstInstance,
	})
}

func (e *passEncoder) End() { e.pass.Ended = true }

type buffer struct {
	mu    sync.Mutex
	id    uint64
	label string
	size  uint64
	data  []byte
}

func (b *buffer) Size() uint64 { return b.size }
func (b *buffer) Release()     {}

// Bytes returns a copy of the buffer contents for test inspection.
func (b *buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// BufferBytes returns a copy of a headless buffer's contents, or nil for
// a foreign buffer. Tests use it to assert packed uniform and instance
// data.
func BufferBytes(buf backend.Buffer) []byte {
	b, ok := buf.(*buffer)
	if !ok {
		return nil
	}
	return b.Bytes()
}

type texture struct {
	id     uint64
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat
	pixels []byte
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Release()                       {}

type sampler struct {
	id    uint64
	label string
}

func (s *sampler) Release() {}

type shaderModule struct {
	id     uint64
	label  string
	source string
}

func (m *shaderModule) Label() string { return m.label }
func (m *shaderModule) Release()      {}

type pipeline struct {
	id    uint64
	label string
	desc  backend.PipelineDescriptor
}

func (p *pipeline) Label() string { return p.label }
func (p *pipeline) Release()      {}

type bindGroup struct {
	id    uint64
	label string
}

func (g *bindGroup) Release() {}
