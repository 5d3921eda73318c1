// Package headless provides a recording backend with no GPU device.
//
// Every Context operation succeeds and is logged to an inspectable frame
// record, so engine components and their tests run anywhere without a
// display or adapter. The surface format is fixed at RGBA8Unorm.
//
// Registration: importing this package registers the backend under
// backend.BackendHeadless.
package headless

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
)

func init() {
	backend.Register(backend.BackendHeadless, func() backend.Context {
		return New()
	})
}

// Context implements backend.Context by recording command streams.
//
// Thread Safety: resource creation is safe for concurrent use. Frame
// recording (BeginFrame through Submit) must stay on one goroutine,
// matching the contract of backend.Context.
type Context struct {
	mu          sync.Mutex
	initialized bool
	width       uint32
	height      uint32
	opts        backend.Options

	nextID atomic.Uint64
	frame  uint64

	inFlight *frameToken

	// failAcquire makes the next BeginFrame fail with ErrSurfaceLost.
	failAcquire atomic.Bool

	frames []*FrameRecord
}

// New creates an uninitialized headless context.
func New() *Context {
	c := &Context{}
	c.nextID.Store(1)
	return c
}

// FailNextAcquire makes the next BeginFrame return ErrSurfaceLost, as a
// real surface does after a resize or minimize.
func (c *Context) FailNextAcquire() {
	c.failAcquire.Store(true)
}

// Frames returns all completed (submitted or abandoned) frame records.
func (c *Context) Frames() []*FrameRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*FrameRecord, len(c.frames))
	copy(out, c.frames)
	return out
}

// LastFrame returns the most recent completed frame record, or nil.
func (c *Context) LastFrame() *FrameRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// Name returns the backend identifier.
func (c *Context) Name() string { return backend.BackendHeadless }

// Init records the target dimensions. A headless context never fails to
// initialize.
func (c *Context) Init(target backend.Target, opts backend.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = target.Width
	c.height = target.Height
	c.opts = opts
	c.initialized = true
	return nil
}

// Close discards all recorded state.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	c.inFlight = nil
	c.frames = nil
}

// SurfaceFormat returns the fixed headless surface format.
func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// SurfaceSize returns the configured dimensions.
func (c *Context) SurfaceSize() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Reconfigure updates the surface dimensions.
func (c *Context) Reconfigure(width, height uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return backend.ErrNotInitialized
	}
	c.width = width
	c.height = height
	return nil
}

// BeginFrame opens a new frame record.
func (c *Context) BeginFrame() (backend.FrameToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, backend.ErrNotInitialized
	}
	if c.inFlight != nil {
		return nil, backend.ErrFrameInFlight
	}
	if c.failAcquire.CompareAndSwap(true, false) {
		return nil, fmt.Errorf("%w: simulated acquire failure", backend.ErrSurfaceLost)
	}
	c.frame++
	t := &frameToken{
		frame:  c.frame,
		record: &FrameRecord{Frame: c.frame},
	}
	c.inFlight = t
	return t, nil
}

// BeginPass opens a pass record on the current frame.
func (c *Context) BeginPass(t backend.FrameToken, cfg backend.PassConfig) (backend.PassEncoder, error) {
	tok, err := c.checkToken(t)
	if err != nil {
		return nil, err
	}
	p := &PassRecord{
		Label: cfg.Label,
		Clear: cfg.Clear,
	}
	if tex, ok := cfg.Color.(*texture); ok {
		p.ColorTarget = tex.label
	}
	if tex, ok := cfg.Depth.(*texture); ok {
		p.DepthTarget = tex.label
	}
	tok.record.Passes = append(tok.record.Passes, p)
	return &passEncoder{pass: p}, nil
}

// Submit marks the frame record complete.
func (c *Context) Submit(t backend.FrameToken) error {
	tok, err := c.checkToken(t)
	if err != nil {
		return err
	}
	tok.record.Submitted = true
	c.mu.Lock()
	c.frames = append(c.frames, tok.record)
	c.inFlight = nil
	c.mu.Unlock()
	return nil
}

// Abandon drops the frame. The record is kept with Submitted false so
// tests can assert nothing was presented.
func (c *Context) Abandon(t backend.FrameToken) {
	tok, err := c.checkToken(t)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.frames = append(c.frames, tok.record)
	c.inFlight = nil
	c.mu.Unlock()
}

func (c *Context) checkToken(t backend.FrameToken) (*frameToken, error) {
	tok, ok := t.(*frameToken)
	if !ok || tok == nil {
		return nil, fmt.Errorf("headless: foreign frame token %T", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight != tok {
		return nil, fmt.Errorf("headless: token for frame %d is not current", tok.frame)
	}
	return tok, nil
}

// CreateBuffer allocates a recording buffer.
func (c *Context) CreateBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	return &buffer{id: c.nextID.Add(1), label: desc.Label, size: desc.Size, data: make([]byte, desc.Size)}, nil
}

// WriteBuffer copies data into the recording buffer.
func (c *Context) WriteBuffer(buf backend.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("headless: foreign buffer %T", buf)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("headless: write of %d bytes at %d exceeds buffer %q (%d bytes)",
			len(data), offset, b.label, b.size)
	}
	b.mu.Lock()
	copy(b.data[offset:], data)
	b.mu.Unlock()
	return nil
}

// CreateTexture allocates a recording texture.
func (c *Context) CreateTexture(desc *backend.TextureDescriptor, pixels []byte) (backend.Texture, error) {
	return &texture{
		id:     c.nextID.Add(1),
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		pixels: pixels,
	}, nil
}

// CreateSampler allocates a recording sampler.
func (c *Context) CreateSampler(desc *backend.SamplerDescriptor) (backend.Sampler, error) {
	return &sampler{id: c.nextID.Add(1), label: desc.Label}, nil
}

// CreateShaderModule records the source without device compilation.
// WGSL validation happens upstream in the resource table.
func (c *Context) CreateShaderModule(label, source string) (backend.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: %s: empty source", backend.ErrCompile, label)
	}
	return &shaderModule{id: c.nextID.Add(1), label: label, source: source}, nil
}

// CreateRenderPipeline records the pipeline descriptor.
func (c *Context) CreateRenderPipeline(desc *backend.PipelineDescriptor) (backend.Pipeline, error) {
	if desc.Module == nil {
		return nil, fmt.Errorf("headless: pipeline %q has no shader module", desc.Label)
	}
	return &pipeline{id: c.nextID.Add(1), label: desc.Label, desc: *desc}, nil
}

// CreateMaterialBindGroup records a slot-0 binding set.
func (c *Context) CreateMaterialBindGroup(label string, textures []backend.Texture, smp backend.Sampler) (backend.BindGroup, error) {
	return &bindGroup{id: c.nextID.Add(1), label: label}, nil
}

// CreateUniformBindGroup records a slot-1 binding set.
func (c *Context) CreateUniformBindGroup(label string, buf backend.Buffer, offset, size uint64) (backend.BindGroup, error) {
	if buf == nil {
		return nil, fmt.Errorf("headless: uniform bind group %q has no buffer", label)
	}
	return &bindGroup{id: c.nextID.Add(1), label: label}, nil
}
