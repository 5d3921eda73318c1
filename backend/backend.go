package backend

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrInitialization is returned when no compatible adapter, device, or
	// surface could be negotiated during Init. Fatal: no frame can be produced.
	ErrInitialization = errors.New("backend: initialization failed")

	// ErrSurfaceLost is returned by BeginFrame when the presentation surface
	// was invalidated (resize, minimize, device reset). Frame-scoped: the
	// caller must Reconfigure the surface and retry on the next frame.
	ErrSurfaceLost = errors.New("backend: surface lost")

	// ErrFrameInFlight is returned by BeginFrame when the previous frame's
	// token has been neither submitted nor abandoned.
	ErrFrameInFlight = errors.New("backend: previous frame still in flight")

	// ErrCompile is returned by CreateShaderModule when the program module
	// is rejected by the device.
	ErrCompile = errors.New("backend: shader module compilation failed")
)

// BlendMode selects the fixed-function blend state for a pipeline.
type BlendMode int

const (
	// BlendOpaque writes source color, no blending.
	BlendOpaque BlendMode = iota

	// BlendAlpha is standard source-over alpha blending.
	BlendAlpha

	// BlendAdditive adds source color to destination (particles, flares).
	BlendAdditive
)

// String returns the string representation of BlendMode.
func (m BlendMode) String() string {
	switch m {
	case BlendOpaque:
		return "Opaque"
	case BlendAlpha:
		return "Alpha"
	case BlendAdditive:
		return "Additive"
	default:
		return "Unknown"
	}
}

// DepthMode selects depth test and write behavior for a pipeline.
type DepthMode int

const (
	// DepthReadWrite tests against and writes the depth buffer.
	DepthReadWrite DepthMode = iota

	// DepthReadOnly tests against the depth buffer without writing
	// (particles, decals).
	DepthReadOnly

	// DepthDisabled ignores the depth buffer entirely (sky, post-process,
	// overlay).
	DepthDisabled
)

// String returns the string representation of DepthMode.
func (m DepthMode) String() string {
	switch m {
	case DepthReadWrite:
		return "ReadWrite"
	case DepthReadOnly:
		return "ReadOnly"
	case DepthDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// Buffer is an opaque reference to a device buffer owned by a Context.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// Release frees the device buffer.
	Release()
}

// Texture is an opaque reference to a device texture owned by a Context.
type Texture interface {
	// Width returns the texture width in texels.
	Width() uint32

	// Height returns the texture height in texels.
	Height() uint32

	// Format returns the texel format.
	Format() gputypes.TextureFormat

	// Release frees the device texture.
	Release()
}

// Sampler is an opaque reference to a device sampler owned by a Context.
type Sampler interface {
	Release()
}

// ShaderModule is an opaque compiled shader program module.
type ShaderModule interface {
	// Label returns the debug label the module was created with.
	Label() string

	Release()
}

// Pipeline is an opaque compiled render pipeline.
type Pipeline interface {
	// Label returns the debug label the pipeline was created with.
	Label() string

	Release()
}

// BindGroup is an opaque set of shader-visible resource bindings.
type BindGroup interface {
	Release()
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Width and Height are the texture dimensions in texels.
	Width, Height uint32

	// Format is the texel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage gputypes.TextureUsage
}

// SamplerDescriptor describes a texture sampler.
type SamplerDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Filter selects nearest or linear min/mag filtering.
	Filter gputypes.FilterMode

	// AddressMode applies to all three texture coordinates.
	AddressMode gputypes.AddressMode
}

// PipelineDescriptor describes a render pipeline in backend-neutral terms.
// The vertex and fragment entry points are fixed by convention ("vs_main"
// and "fs_main"), matching the engine's shader collaborator interface.
type PipelineDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Module is the compiled shader program for both stages.
	Module ShaderModule

	// VertexLayouts describes the vertex and instance buffer layouts.
	VertexLayouts []gputypes.VertexBufferLayout

	// Blend selects the fixed-function blend state.
	Blend BlendMode

	// Depth selects depth test and write behavior.
	Depth DepthMode

	// Topology is the primitive topology.
	Topology gputypes.PrimitiveTopology

	// ColorFormat is the render target format. Zero value means the
	// negotiated surface format.
	ColorFormat gputypes.TextureFormat

	// HasDepth attaches the depth-stencil state. Passes targeting
	// color-only attachments (post-process, overlay) leave it false.
	HasDepth bool
}

// ClearPolicy describes how a pass's targets are initialized.
type ClearPolicy struct {
	// LoadColor preserves the existing color contents instead of clearing
	// (passes that read a previous pass's output, e.g. post-process).
	LoadColor bool

	// ClearColor is the clear color used when LoadColor is false.
	ClearColor gputypes.Color

	// LoadDepth preserves the existing depth contents instead of clearing.
	LoadDepth bool

	// ClearDepth is the depth clear value used when LoadDepth is false.
	ClearDepth float32
}

// PassConfig describes one render pass's targets and clear policy.
type PassConfig struct {
	// Label names the pass for debugging.
	Label string

	// Color is the color target. Nil targets the acquired surface image.
	Color Texture

	// Depth is the depth target. Nil means no depth attachment.
	Depth Texture

	// Clear is the clear/load policy for both attachments.
	Clear ClearPolicy
}

// FrameToken represents one frame between BeginFrame and Submit/Abandon.
// A token is valid for exactly one frame and must not be retained.
type FrameToken interface {
	// Frame returns the monotonically increasing frame number.
	Frame() uint64
}

// PassEncoder records draw commands within one render pass.
//
// PassEncoder is NOT safe for concurrent use; all commands must be
// recorded from the frame-producing goroutine.
type PassEncoder interface {
	// SetPipeline sets the render pipeline for subsequent draws.
	SetPipeline(p Pipeline)

	// SetBindGroup binds a resource group to the given slot.
	// By convention slot 0 holds material textures/samplers and slot 1
	// holds the per-frame uniform buffer.
	SetBindGroup(slot uint32, bg BindGroup)

	// SetVertexBuffer binds a vertex buffer to the given slot.
	SetVertexBuffer(slot uint32, buf Buffer)

	// SetVertexBufferRange binds a region of a vertex buffer to the
	// given slot (instance buffer slices).
	SetVertexBufferRange(slot uint32, buf Buffer, offset, size uint64)

	// SetIndexBuffer binds the index buffer.
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat)

	// DrawIndexed draws indexed, instanced primitives.
	DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32)

	// End finishes the pass. No commands may be recorded after End.
	End()
}

// Context is the device, queue, and presentation surface abstraction that
// every engine component is written against. A concrete Context is selected
// through the registry (Get/Default) and initialized once at startup; all
// GPU memory allocation and pipeline compilation funnel through it.
//
// Concurrency: a single logical submission goroutine drives BeginFrame,
// pass recording, and Submit. Resource creation may run from a loading
// phase concurrently with frame production; implementations synchronize
// internally where the underlying API requires it. BeginFrame is the only
// intentional suspension point (it may wait for a presentable image).
type Context interface {
	// Name returns the backend identifier (e.g. "webgpu", "headless").
	Name() string

	// Init creates the device, queue, and presentation surface for the
	// given target. Returns ErrInitialization (wrapped) when no
	// compatible backend or surface is found.
	Init(target Target, opts Options) error

	// Close releases all device resources. The Context must not be used
	// after Close.
	Close()

	// SurfaceFormat returns the negotiated presentation surface format.
	SurfaceFormat() gputypes.TextureFormat

	// SurfaceSize returns the current surface dimensions in pixels.
	SurfaceSize() (width, height uint32)

	// Reconfigure re-negotiates the surface after a resize or surface
	// loss. Must not be called between BeginFrame and Submit.
	Reconfigure(width, height uint32) error

	// BeginFrame acquires a presentable surface image and opens command
	// recording for one frame. Returns ErrSurfaceLost (wrapped) when the
	// target was resized or invalidated; the caller must Reconfigure and
	// retry on the next frame.
	BeginFrame() (FrameToken, error)

	// BeginPass opens one render pass on the current frame.
	BeginPass(t FrameToken, cfg PassConfig) (PassEncoder, error)

	// Submit finishes recording, submits all passes in order, and
	// presents the surface image.
	Submit(t FrameToken) error

	// Abandon drops the frame without submitting any recorded commands.
	// Used when a per-frame failure requires a clean abort (no partial
	// present).
	Abandon(t FrameToken)

	// CreateBuffer allocates a device buffer.
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// WriteBuffer schedules a write of data into buf at offset before the
	// next queue submission.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateTexture allocates a 2D texture and, when pixels is non-nil,
	// uploads tightly packed texel data.
	CreateTexture(desc *TextureDescriptor, pixels []byte) (Texture, error)

	// CreateSampler creates a texture sampler.
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)

	// CreateShaderModule compiles an opaque shader program module.
	// Returns ErrCompile (wrapped) on rejection.
	CreateShaderModule(label, source string) (ShaderModule, error)

	// CreateRenderPipeline builds a render pipeline from a neutral
	// descriptor. Pipeline creation is expensive; callers cache through
	// the pipeline registry.
	CreateRenderPipeline(desc *PipelineDescriptor) (Pipeline, error)

	// CreateMaterialBindGroup builds the slot-0 bind group: texture views
	// at bindings 0..len(textures)-1 followed by the sampler.
	CreateMaterialBindGroup(label string, textures []Texture, sampler Sampler) (BindGroup, error)

	// CreateUniformBindGroup builds the slot-1 bind group: one uniform
	// buffer region at binding 0.
	CreateUniformBindGroup(label string, buf Buffer, offset, size uint64) (BindGroup, error)
}
