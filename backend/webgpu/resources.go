package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
)

type buffer struct {
	buf  *wgpu.Buffer
	size uint64
}

func (b *buffer) Size() uint64 { return b.size }
func (b *buffer) Release()     { b.buf.Release() }

type texture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

func (t *texture) Width() uint32                  { return t.width }
func (t *texture) Height() uint32                 { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) Release() {
	t.view.Release()
	t.tex.Release()
}

type sampler struct {
	s *wgpu.Sampler
}

func (s *sampler) Release() { s.s.Release() }

type shaderModule struct {
	m     *wgpu.ShaderModule
	label string
}

func (m *shaderModule) Label() string { return m.label }
func (m *shaderModule) Release()      { m.m.Release() }

type pipeline struct {
	p     *wgpu.RenderPipeline
	label string
}

func (p *pipeline) Label() string { return p.label }
func (p *pipeline) Release()      { p.p.Release() }

type bindGroup struct {
	bg *wgpu.BindGroup
}

func (b *bindGroup) Release() { b.bg.Release() }

// CreateBuffer allocates a GPU buffer of the given size.
func (c *Context) CreateBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            convertBufferUsage(desc.Usage),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: buffer %q: %w", desc.Label, err)
	}
	return &buffer{buf: buf, size: desc.Size}, nil
}

// WriteBuffer uploads data through the queue.
func (c *Context) WriteBuffer(b backend.Buffer, offset uint64, data []byte) error {
	if c.queue == nil {
		return backend.ErrNotInitialized
	}
	wb, ok := b.(*buffer)
	if !ok {
		return fmt.Errorf("webgpu: foreign buffer %T", b)
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("webgpu: write of %d bytes at %d exceeds buffer size %d",
			len(data), offset, wb.size)
	}
	return c.queue.WriteBuffer(wb.buf, offset, data)
}

// CreateTexture allocates a 2D texture and, when pixels is non-nil,
// uploads one full mip level 0 worth of data.
func (c *Context) CreateTexture(desc *backend.TextureDescriptor, pixels []byte) (backend.Texture, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	size := wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        convertFormat(desc.Format),
		Usage:         convertTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("webgpu: texture view %q: %w", desc.Label, err)
	}
	if pixels != nil {
		err = c.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  desc.Width * bytesPerTexel(desc.Format),
				RowsPerImage: desc.Height,
			},
			&size,
		)
		if err != nil {
			view.Release()
			tex.Release()
			return nil, fmt.Errorf("webgpu: texture upload %q: %w", desc.Label, err)
		}
	}
	return &texture{
		tex:    tex,
		view:   view,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}, nil
}

func bytesPerTexel(format gputypes.TextureFormat) uint32 {
	if format == gputypes.TextureFormatR8Unorm {
		return 1
	}
	return 4
}

// CreateSampler builds a sampler with matching min/mag filters.
func (c *Context) CreateSampler(desc *backend.SamplerDescriptor) (backend.Sampler, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	s, err := c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  convertAddressMode(desc.AddressMode),
		AddressModeV:  convertAddressMode(desc.AddressMode),
		AddressModeW:  convertAddressMode(desc.AddressMode),
		MagFilter:     convertFilter(desc.Filter),
		MinFilter:     convertFilter(desc.Filter),
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: sampler %q: %w", desc.Label, err)
	}
	return &sampler{s: s}, nil
}

// CreateShaderModule compiles WGSL source into a shader module. The
// caller is expected to have validated the source already; driver
// errors still surface as ErrCompile.
func (c *Context) CreateShaderModule(label, source string) (backend.ShaderModule, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	m, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", backend.ErrCompile, label, err)
	}
	return &shaderModule{m: m, label: label}, nil
}

// materialLayout returns the cached bind group layout for a material
// with the given texture count: bindings 0..n-1 are 2D float textures,
// binding n is a filtering sampler.
func (c *Context) materialLayout(textures int) (*wgpu.BindGroupLayout, error) {
	if l, ok := c.materialLayouts[textures]; ok {
		return l, nil
	}
	entries := make([]wgpu.BindGroupLayoutEntry, 0, textures+1)
	for i := 0; i < textures; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, wgpu.BindGroupLayoutEntry{
		Binding:    uint32(textures),
		Visibility: wgpu.ShaderStageFragment,
		Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
	})
	l, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("material layout (%d textures)", textures),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: material layout: %w", err)
	}
	c.materialLayouts[textures] = l
	return l, nil
}

// CreateRenderPipeline builds a render pipeline against the fixed bind
// group layout pair: group 0 is the material, group 1 the frame
// uniform block.
func (c *Context) CreateRenderPipeline(desc *backend.PipelineDescriptor) (backend.Pipeline, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	mod, ok := desc.Module.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("webgpu: pipeline %q: foreign shader module %T", desc.Label, desc.Module)
	}

	materialLayout, err := c.materialLayout(1)
	if err != nil {
		return nil, err
	}
	layout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{materialLayout, c.uniformLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline layout %q: %w", desc.Label, err)
	}
	defer layout.Release()

	colorFormat := c.format
	if desc.ColorFormat != 0 {
		colorFormat = convertFormat(desc.ColorFormat)
	}
	rpDesc := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     mod.m,
			EntryPoint: "vs_main",
			Buffers:    convertVertexLayouts(desc.VertexLayouts),
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod.m,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    colorFormat,
				Blend:     convertBlend(desc.Blend),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  convertTopology(desc.Topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.HasDepth {
		rpDesc.DepthStencil = convertDepth(desc.Depth)
	}

	p, err := c.device.CreateRenderPipeline(rpDesc)
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %q: %w", desc.Label, err)
	}
	return &pipeline{p: p, label: desc.Label}, nil
}

// CreateMaterialBindGroup binds textures and a sampler at group 0.
func (c *Context) CreateMaterialBindGroup(label string, textures []backend.Texture, smp backend.Sampler) (backend.BindGroup, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	ws, ok := smp.(*sampler)
	if !ok {
		return nil, fmt.Errorf("webgpu: bind group %q: foreign sampler %T", label, smp)
	}
	layout, err := c.materialLayout(len(textures))
	if err != nil {
		return nil, err
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(textures)+1)
	for i, t := range textures {
		wt, ok := t.(*texture)
		if !ok {
			return nil, fmt.Errorf("webgpu: bind group %q: foreign texture %T", label, t)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(i),
			TextureView: wt.view,
		})
	}
	entries = append(entries, wgpu.BindGroupEntry{
		Binding: uint32(len(textures)),
		Sampler: ws.s,
	})
	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: bind group %q: %w", label, err)
	}
	return &bindGroup{bg: bg}, nil
}

// CreateUniformBindGroup binds a buffer range at group 1, binding 0.
func (c *Context) CreateUniformBindGroup(label string, buf backend.Buffer, offset, size uint64) (backend.BindGroup, error) {
	if c.device == nil {
		return nil, backend.ErrNotInitialized
	}
	wb, ok := buf.(*buffer)
	if !ok {
		return nil, fmt.Errorf("webgpu: bind group %q: foreign buffer %T", label, buf)
	}
	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label,
		Layout: c.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  wb.buf,
			Offset:  offset,
			Size:    size,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: bind group %q: %w", label, err)
	}
	return &bindGroup{bg: bg}, nil
}
