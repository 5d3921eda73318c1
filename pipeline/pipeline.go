// Package pipeline caches compiled render pipelines keyed by their full
// render state, so each distinct (program, layout, blend, depth, target)
// combination is built at most once per device.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/internal/elog"
	"github.com/gogpu/ember/resource"
)

// Pipeline registry errors.
var (
	// ErrInvalidHandle is returned when a pipeline handle does not
	// resolve (never issued, or invalidated by InvalidateAll).
	ErrInvalidHandle = errors.New("pipeline: invalid handle")
)

// Layout selects the vertex buffer layouts a pipeline consumes.
type Layout int

const (
	// LayoutStatic consumes only the standard vertex buffer
	// (full-screen and single-draw passes).
	LayoutStatic Layout = iota

	// LayoutInstanced consumes the standard vertex buffer plus the
	// per-instance buffer at slot 1.
	LayoutInstanced
)

// String returns the string representation of Layout.
func (l Layout) String() string {
	switch l {
	case LayoutStatic:
		return "Static"
	case LayoutInstanced:
		return "Instanced"
	default:
		return "Unknown"
	}
}

// Key identifies one pipeline by its complete render state. Two draws
// with equal keys always share one compiled pipeline.
type Key struct {
	// Program is the compiled shader program the pipeline runs.
	Program resource.ProgramHandle

	// Layout selects the vertex buffer layouts.
	Layout Layout

	// Blend is the fixed-function blend state.
	Blend backend.BlendMode

	// Depth is the depth test and write behavior.
	Depth backend.DepthMode

	// HasDepth must match whether the target pass carries a depth
	// attachment.
	HasDepth bool

	// ColorFormat is the pass color target format. Zero means the
	// negotiated surface format.
	ColorFormat gputypes.TextureFormat
}

// Handle is an opaque reference to a cached pipeline.
//
// Handles are invalidated wholesale by InvalidateAll; the zero Handle is
// invalid.
type Handle struct {
	id uint32
}

// Valid reports whether the handle has ever been issued.
func (h Handle) Valid() bool { return h.id != 0 }

// Registry caches compiled pipelines by Key.
//
// Thread Safety: Registry is safe for concurrent use. GetOrCreate may
// compile under the lock; pipeline compilation is a loading-phase cost,
// not a per-frame one.
type Registry struct {
	mu    sync.Mutex
	ctx   backend.Context
	table *resource.Table

	cache     map[Key]Handle
	pipelines map[uint32]backend.Pipeline
	nextID    uint32
}

// NewRegistry creates a pipeline registry backed by the given context
// and resource table.
func NewRegistry(ctx backend.Context, table *resource.Table) *Registry {
	return &Registry{
		ctx:       ctx,
		table:     table,
		cache:     make(map[Key]Handle),
		pipelines: make(map[uint32]backend.Pipeline),
	}
}

// GetOrCreate returns the cached pipeline for key, compiling it on first
// use. Equal keys always return the same handle until InvalidateAll.
func (r *Registry) GetOrCreate(key Key) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.cache[key]; ok {
		return h, nil
	}

	prog, err := r.table.Program(key.Program)
	if err != nil {
		return Handle{}, fmt.Errorf("pipeline for key %+v: %w", key, err)
	}

	layouts := []gputypes.VertexBufferLayout{resource.VertexLayout()}
	if key.Layout == LayoutInstanced {
		layouts = append(layouts, InstanceLayout())
	}

	label := fmt.Sprintf("%s/%s/%s/%s", prog.Name, key.Layout, key.Blend, key.Depth)
	p, err := r.ctx.CreateRenderPipeline(&backend.PipelineDescriptor{
		Label:         label,
		Module:        prog.Module,
		VertexLayouts: layouts,
		Blend:         key.Blend,
		Depth:         key.Depth,
		Topology:      gputypes.PrimitiveTopologyTriangleList,
		ColorFormat:   key.ColorFormat,
		HasDepth:      key.HasDepth,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("pipeline %q: %w", label, err)
	}

	r.nextID++
	h := Handle{id: r.nextID}
	r.cache[key] = h
	r.pipelines[h.id] = p
	elog.Logger().Debug("compiled pipeline", "label", label)
	return h, nil
}

// Pipeline resolves a handle to its compiled pipeline.
func (r *Registry) Pipeline(h Handle) (backend.Pipeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[h.id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h.id)
	}
	return p, nil
}

// Len returns the number of cached pipelines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

// InvalidateAll releases every cached pipeline and invalidates all
// outstanding handles. Used on surface format changes, where every
// pipeline targeting the surface must be rebuilt.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelines {
		p.Release()
	}
	r.cache = make(map[Key]Handle)
	r.pipelines = make(map[uint32]backend.Pipeline)
}

// InstanceStride is the byte stride of one packed instance record: four
// vec4s.
const InstanceStride = 16 * 4

// InstanceLayout returns the per-instance vertex buffer layout at shader
// locations 8 through 11, leaving room below for mesh attributes.
func InstanceLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: InstanceStride,
		StepMode:    gputypes.VertexStepModeInstance,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 8},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 9},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 10},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 11},
		},
	}
}
