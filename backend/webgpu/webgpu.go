// Package webgpu provides the wgpu-native rendering backend.
//
// It drives a real adapter, device, and window surface through
// github.com/cogentcore/webgpu. The surface descriptor comes from the
// windowing layer (for example wgpuglfw.GetSurfaceDescriptor).
//
// Registration: importing this package registers the backend under
// backend.BackendWebGPU.
package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/internal/elog"
)

func init() {
	backend.Register(backend.BackendWebGPU, func() backend.Context {
		return New()
	})
}

// Context implements backend.Context over wgpu-native.
//
// Frame recording is single-goroutine per the backend.Context contract;
// resource creation goes straight to the device, which wgpu synchronizes
// internally.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	format    wgpu.TextureFormat
	alphaMode wgpu.CompositeAlphaMode
	width     uint32
	height    uint32
	opts      backend.Options

	materialLayouts map[int]*wgpu.BindGroupLayout
	uniformLayout   *wgpu.BindGroupLayout

	frame    uint64
	inFlight *frameToken
}

// New creates an uninitialized webgpu context.
func New() *Context {
	return &Context{materialLayouts: make(map[int]*wgpu.BindGroupLayout)}
}

// Name returns the backend identifier.
func (c *Context) Name() string { return backend.BackendWebGPU }

// Init creates the instance, surface, adapter, device, and queue, then
// configures the surface. The target must carry a surface descriptor
// from the windowing layer.
func (c *Context) Init(target backend.Target, opts backend.Options) error {
	if target.Surface == nil {
		return fmt.Errorf("%w: no surface descriptor", backend.ErrInitialization)
	}
	c.opts = opts

	c.instance = wgpu.CreateInstance(nil)
	c.surface = c.instance.CreateSurface(target.Surface)

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
		CompatibleSurface:    c.surface,
		PowerPreference:      convertPowerPreference(opts.PowerPreference),
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: no compatible adapter: %v", backend.ErrInitialization, err)
	}
	c.adapter = adapter

	limits := wgpu.DefaultLimits()
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "ember device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: no device: %v", backend.ErrInitialization, err)
	}
	c.device = device
	c.queue = device.GetQueue()

	caps := c.surface.GetCapabilities(c.adapter)
	if len(caps.Formats) == 0 {
		c.Close()
		return fmt.Errorf("%w: surface reports no formats", backend.ErrInitialization)
	}
	c.format = caps.Formats[0]
	c.alphaMode = caps.AlphaModes[0]

	if err := c.configure(target.Width, target.Height); err != nil {
		c.Close()
		return err
	}

	c.uniformLayout, err = c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "frame uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("%w: uniform layout: %v", backend.ErrInitialization, err)
	}

	elog.Logger().Info("webgpu initialized",
		"format", c.format, "width", target.Width, "height", target.Height,
		"vsync", opts.VSync)
	return nil
}

func (c *Context) configure(width, height uint32) error {
	present := wgpu.PresentModeFifo
	if !c.opts.VSync {
		present = wgpu.PresentModeImmediate
	}
	c.surface.Configure(c.adapter, c.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      c.format,
		Width:       width,
		Height:      height,
		PresentMode: present,
		AlphaMode:   c.alphaMode,
	})
	c.width = width
	c.height = height
	return nil
}

// Close releases the device and surface.
func (c *Context) Close() {
	if c.inFlight != nil {
		c.Abandon(c.inFlight)
	}
	for _, l := range c.materialLayouts {
		l.Release()
	}
	c.materialLayouts = make(map[int]*wgpu.BindGroupLayout)
	if c.uniformLayout != nil {
		c.uniformLayout.Release()
		c.uniformLayout = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
		c.queue = nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// SurfaceFormat returns the negotiated surface format.
func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return convertFormatBack(c.format)
}

// SurfaceSize returns the configured surface dimensions.
func (c *Context) SurfaceSize() (uint32, uint32) {
	return c.width, c.height
}

// Reconfigure re-negotiates the surface at new dimensions, after a
// resize or surface loss.
func (c *Context) Reconfigure(width, height uint32) error {
	if c.device == nil {
		return backend.ErrNotInitialized
	}
	return c.configure(width, height)
}

// frameToken is one frame's recording state.
type frameToken struct {
	frame   uint64
	surface *wgpu.Texture
	view    *wgpu.TextureView
	encoder *wgpu.CommandEncoder
}

func (t *frameToken) Frame() uint64 { return t.frame }

// BeginFrame acquires the next surface image and opens a command
// encoder. An acquire failure maps to ErrSurfaceLost: the swapchain is
// stale after a resize or minimize and must be reconfigured.
func (c *Context) BeginFrame() (backend.FrameToken, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	if c.inFlight != nil {
		return nil, backend.ErrFrameInFlight
	}

	surfaceTexture, err := c.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrSurfaceLost, err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("%w: %v", backend.ErrSurfaceLost, err)
	}
	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, fmt.Errorf("webgpu: command encoder: %w", err)
	}

	c.frame++
	t := &frameToken{
		frame:   c.frame,
		surface: surfaceTexture,
		view:    view,
		encoder: encoder,
	}
	c.inFlight = t
	return t, nil
}

// BeginPass opens a render pass on the frame's encoder.
func (c *Context) BeginPass(ft backend.FrameToken, cfg backend.PassConfig) (backend.PassEncoder, error) {
	t, err := c.checkToken(ft)
	if err != nil {
		return nil, err
	}

	colorView := t.view
	if cfg.Color != nil {
		tex, ok := cfg.Color.(*texture)
		if !ok {
			return nil, fmt.Errorf("webgpu: pass %q: foreign color target %T", cfg.Label, cfg.Color)
		}
		colorView = tex.view
	}

	loadOp := wgpu.LoadOpClear
	if cfg.Clear.LoadColor {
		loadOp = wgpu.LoadOpLoad
	}
	desc := &wgpu.RenderPassDescriptor{
		Label: cfg.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    colorView,
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(cfg.Clear.ClearColor.R),
				G: float64(cfg.Clear.ClearColor.G),
				B: float64(cfg.Clear.ClearColor.B),
				A: float64(cfg.Clear.ClearColor.A),
			},
		}},
	}
	if cfg.Depth != nil {
		tex, ok := cfg.Depth.(*texture)
		if !ok {
			return nil, fmt.Errorf("webgpu: pass %q: foreign depth target %T", cfg.Label, cfg.Depth)
		}
		depthLoad := wgpu.LoadOpClear
		if cfg.Clear.LoadDepth {
			depthLoad = wgpu.LoadOpLoad
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:              tex.view,
			DepthLoadOp:       depthLoad,
			DepthStoreOp:      wgpu.StoreOpStore,
			DepthClearValue:   cfg.Clear.ClearDepth,
			StencilLoadOp:     wgpu.LoadOpClear,
			StencilStoreOp:    wgpu.StoreOpStore,
			StencilClearValue: 0,
		}
	}

	pass := t.encoder.BeginRenderPass(desc)
	return &passEncoder{pass: pass}, nil
}

// Submit finishes the encoder, submits to the queue, and presents.
func (c *Context) Submit(ft backend.FrameToken) error {
	t, err := c.checkToken(ft)
	if err != nil {
		return err
	}
	defer c.releaseFrame(t)

	cmd, err := t.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("webgpu: finish frame %d: %w", t.frame, err)
	}
	c.queue.Submit(cmd)
	cmd.Release()
	c.surface.Present()
	return nil
}

// Abandon drops the frame without submitting. The acquired image is
// released unpresented.
func (c *Context) Abandon(ft backend.FrameToken) {
	t, err := c.checkToken(ft)
	if err != nil {
		return
	}
	c.releaseFrame(t)
}

func (c *Context) releaseFrame(t *frameToken) {
	t.encoder.Release()
	t.view.Release()
	t.surface.Release()
	c.inFlight = nil
}

func (c *Context) checkToken(ft backend.FrameToken) (*frameToken, error) {
	t, ok := ft.(*frameToken)
	if !ok || t == nil {
		return nil, fmt.Errorf("webgpu: foreign frame token %T", ft)
	}
	if c.inFlight != t {
		return nil, fmt.Errorf("webgpu: token for frame %d is not current", t.frame)
	}
	return t, nil
}

// passEncoder wraps a wgpu render pass.
type passEncoder struct {
	pass *wgpu.RenderPassEncoder
}

func (e *passEncoder) SetPipeline(p backend.Pipeline) {
	e.pass.SetPipeline(p.(*pipeline).p)
}

func (e *passEncoder) SetBindGroup(slot uint32, bg backend.BindGroup) {
	e.pass.SetBindGroup(slot, bg.(*bindGroup).bg, nil)
}

func (e *passEncoder) SetVertexBuffer(slot uint32, buf backend.Buffer) {
	e.pass.SetVertexBuffer(slot, buf.(*buffer).buf, 0, wgpu.WholeSize)
}

func (e *passEncoder) SetVertexBufferRange(slot uint32, buf backend.Buffer, offset, size uint64) {
	e.pass.SetVertexBuffer(slot, buf.(*buffer).buf, offset, size)
}

func (e *passEncoder) SetIndexBuffer(buf backend.Buffer, format gputypes.IndexFormat) {
	e.pass.SetIndexBuffer(buf.(*buffer).buf, convertIndexFormat(format), 0, wgpu.WholeSize)
}

func (e *passEncoder) DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32) {
	e.pass.DrawIndexed(indexCount, instanceCount, firstIndex, 0, firstInstance)
}

func (e *passEncoder) End() {
	e.pass.End()
	e.pass.Release()
}
