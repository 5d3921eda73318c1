package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/internal/elog"
)

// Resource table errors.
var (
	// ErrInvalidHandle is returned when a handle does not resolve: never
	// issued, released, or its slot was reused for a new resource.
	ErrInvalidHandle = errors.New("resource: invalid handle")

	// ErrCompileFailure is returned when a shader program fails WGSL
	// validation or device compilation. Fatal for that program; the
	// engine never falls back to a different pipeline.
	ErrCompileFailure = errors.New("resource: shader program compile failure")

	// ErrEmptyMesh is returned when uploading a mesh without vertices or
	// indices.
	ErrEmptyMesh = errors.New("resource: mesh has no vertices or indices")

	// ErrBadPixels is returned when pixel data does not match the
	// declared texture dimensions and format.
	ErrBadPixels = errors.New("resource: pixel data size mismatch")
)

// slot is one arena entry. generation starts at 1 and advances on each
// release, so a handle minted for an earlier occupant no longer resolves.
type slot[V any] struct {
	generation uint32
	live       bool
	value      V
}

// arena is a generation-checked slot arena behind the typed handles.
type arena[T any, V any] struct {
	slots []slot[V]
	free  []uint32
}

func (a *arena[T, V]) insert(v V) Handle[T] {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.live = true
		s.value = v
		return Handle[T]{index: idx, generation: s.generation}
	}
	a.slots = append(a.slots, slot[V]{generation: 1, live: true, value: v})
	return Handle[T]{index: uint32(len(a.slots) - 1), generation: 1}
}

func (a *arena[T, V]) get(h Handle[T]) (*V, bool) {
	if !h.Valid() || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, false
	}
	return &s.value, true
}

func (a *arena[T, V]) release(h Handle[T]) (V, bool) {
	var zero V
	if !h.Valid() || int(h.index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return zero, false
	}
	v := s.value
	s.live = false
	s.value = zero
	s.generation++
	a.free = append(a.free, h.index)
	return v, true
}

// TextureEntry is the device-side state behind a TextureHandle.
type TextureEntry struct {
	Texture backend.Texture
	Sampler backend.Sampler
}

// MeshEntry is the device-side state behind a MeshHandle.
// Meshes are immutable once uploaded and destroyed only on explicit
// release.
type MeshEntry struct {
	VertexBuffer backend.Buffer
	IndexBuffer  backend.Buffer
	IndexCount   uint32
	VertexCount  uint32
}

// ProgramEntry is the device-side state behind a ProgramHandle.
type ProgramEntry struct {
	Module backend.ShaderModule
	Name   string
}

// TargetEntry is the device-side state behind a TargetHandle: an
// offscreen color or depth attachment that passes render into and later
// sample from.
type TargetEntry struct {
	Texture backend.Texture
	Sampler backend.Sampler
}

// Table owns GPU-side buffers, textures, samplers, and compiled shader
// programs, and hands out opaque generation-checked handles. Identical
// content is not merged: the owner of an asset decides reuse by holding
// and reusing the handle.
//
// Uploads are synchronous from the caller's perspective; handles are not
// returned until the device write has been issued, so a loading phase may
// run concurrently with frame production. Mutation is guarded by a mutex
// for that reason.
type Table struct {
	mu  sync.Mutex
	ctx backend.Context

	textures arena[textureTag, TextureEntry]
	meshes   arena[meshTag, MeshEntry]
	programs arena[programTag, ProgramEntry]
	targets  arena[targetTag, TargetEntry]
}

// NewTable creates a resource table backed by the given context.
func NewTable(ctx backend.Context) *Table {
	return &Table{ctx: ctx}
}

// Context returns the backend context this table uploads through.
func (t *Table) Context() backend.Context { return t.ctx }

// UploadTexture uploads tightly packed pixel data and returns a handle.
// The sampler uses linear filtering with repeat addressing, matching the
// engine's sprite and model materials.
func (t *Table) UploadTexture(label string, pixels []byte, format gputypes.TextureFormat, width, height uint32) (TextureHandle, error) {
	if uint32(len(pixels)) != width*height*bytesPerTexel(format) {
		return TextureHandle{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrBadPixels, len(pixels), width, height)
	}

	tex, err := t.ctx.CreateTexture(&backend.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	}, pixels)
	if err != nil {
		return TextureHandle{}, fmt.Errorf("upload texture %q: %w", label, err)
	}

	sampler, err := t.ctx.CreateSampler(&backend.SamplerDescriptor{
		Label:       label,
		Filter:      gputypes.FilterModeLinear,
		AddressMode: gputypes.AddressModeRepeat,
	})
	if err != nil {
		tex.Release()
		return TextureHandle{}, fmt.Errorf("upload texture %q: %w", label, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.textures.insert(TextureEntry{Texture: tex, Sampler: sampler}), nil
}

// UploadMesh uploads decoded vertex and index arrays and returns a
// handle. The mesh is immutable once uploaded.
func (t *Table) UploadMesh(label string, verts []Vertex, indices []uint16) (MeshHandle, error) {
	if len(verts) == 0 || len(indices) == 0 {
		return MeshHandle{}, fmt.Errorf("%w: %q", ErrEmptyMesh, label)
	}

	vdata := packVertices(verts)
	vbuf, err := t.ctx.CreateBuffer(&backend.BufferDescriptor{
		Label: label + " vertices",
		Size:  uint64(len(vdata)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return MeshHandle{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}
	if err := t.ctx.WriteBuffer(vbuf, 0, vdata); err != nil {
		vbuf.Release()
		return MeshHandle{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}

	idata := packIndices(indices)
	ibuf, err := t.ctx.CreateBuffer(&backend.BufferDescriptor{
		Label: label + " indices",
		Size:  uint64(len(idata)),
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageIndex,
	})
	if err != nil {
		vbuf.Release()
		return MeshHandle{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}
	if err := t.ctx.WriteBuffer(ibuf, 0, idata); err != nil {
		vbuf.Release()
		ibuf.Release()
		return MeshHandle{}, fmt.Errorf("upload mesh %q: %w", label, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meshes.insert(MeshEntry{
		VertexBuffer: vbuf,
		IndexBuffer:  ibuf,
		IndexCount:   uint32(len(indices)),
		VertexCount:  uint32(len(verts)),
	}), nil
}

// CompileProgram validates WGSL source and compiles it into an opaque
// program module. Validation runs through naga before the device sees the
// source, so malformed programs fail with ErrCompileFailure and a real
// diagnostic instead of a device-dependent error.
func (t *Table) CompileProgram(name, source string) (ProgramHandle, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return ProgramHandle{}, fmt.Errorf("%w: %s: %v", ErrCompileFailure, name, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return ProgramHandle{}, fmt.Errorf("%w: %s: %v", ErrCompileFailure, name, err)
	}
	if diags, err := naga.Validate(module); err != nil {
		return ProgramHandle{}, fmt.Errorf("%w: %s: %v", ErrCompileFailure, name, err)
	} else if len(diags) > 0 {
		return ProgramHandle{}, fmt.Errorf("%w: %s: %v", ErrCompileFailure, name, diags[0])
	}

	sm, err := t.ctx.CreateShaderModule(name, source)
	if err != nil {
		return ProgramHandle{}, fmt.Errorf("%w: %s: %v", ErrCompileFailure, name, err)
	}

	elog.Logger().Debug("compiled shader program", "name", name)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.programs.insert(ProgramEntry{Module: sm, Name: name}), nil
}

// CreateTarget allocates an offscreen render target in the given format.
// Targets are sampled by later passes (post-process reads the scene
// color target), so they carry both attachment and binding usage.
func (t *Table) CreateTarget(label string, width, height uint32, format gputypes.TextureFormat) (TargetHandle, error) {
	tex, err := t.ctx.CreateTexture(&backend.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	}, nil)
	if err != nil {
		return TargetHandle{}, fmt.Errorf("create target %q: %w", label, err)
	}
	sampler, err := t.ctx.CreateSampler(&backend.SamplerDescriptor{
		Label:       label,
		Filter:      gputypes.FilterModeLinear,
		AddressMode: gputypes.AddressModeClampToEdge,
	})
	if err != nil {
		tex.Release()
		return TargetHandle{}, fmt.Errorf("create target %q: %w", label, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targets.insert(TargetEntry{Texture: tex, Sampler: sampler}), nil
}

// Texture resolves a texture handle.
func (t *Table) Texture(h TextureHandle) (*TextureEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.textures.get(h)
	if !ok {
		return nil, fmt.Errorf("%w: texture %s", ErrInvalidHandle, h)
	}
	return e, nil
}

// Mesh resolves a mesh handle.
func (t *Table) Mesh(h MeshHandle) (*MeshEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.meshes.get(h)
	if !ok {
		return nil, fmt.Errorf("%w: mesh %s", ErrInvalidHandle, h)
	}
	return e, nil
}

// Program resolves a program handle.
func (t *Table) Program(h ProgramHandle) (*ProgramEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.programs.get(h)
	if !ok {
		return nil, fmt.Errorf("%w: program %s", ErrInvalidHandle, h)
	}
	return e, nil
}

// Target resolves an offscreen render target handle.
func (t *Table) Target(h TargetHandle) (*TargetEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.targets.get(h)
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrInvalidHandle, h)
	}
	return e, nil
}

// ReleaseTexture evicts a texture. Subsequent lookups of the handle fail
// with ErrInvalidHandle even if the slot is reused.
func (t *Table) ReleaseTexture(h TextureHandle) error {
	t.mu.Lock()
	e, ok := t.textures.release(h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: texture %s", ErrInvalidHandle, h)
	}
	e.Sampler.Release()
	e.Texture.Release()
	return nil
}

// ReleaseMesh evicts a mesh.
func (t *Table) ReleaseMesh(h MeshHandle) error {
	t.mu.Lock()
	e, ok := t.meshes.release(h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: mesh %s", ErrInvalidHandle, h)
	}
	e.IndexBuffer.Release()
	e.VertexBuffer.Release()
	return nil
}

// ReleaseProgram evicts a compiled program.
func (t *Table) ReleaseProgram(h ProgramHandle) error {
	t.mu.Lock()
	e, ok := t.programs.release(h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: program %s", ErrInvalidHandle, h)
	}
	e.Module.Release()
	return nil
}

// ReleaseTarget evicts an offscreen render target.
func (t *Table) ReleaseTarget(h TargetHandle) error {
	t.mu.Lock()
	e, ok := t.targets.release(h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: target %s", ErrInvalidHandle, h)
	}
	e.Sampler.Release()
	e.Texture.Release()
	return nil
}

// Close releases every live resource. The table must not be used after
// Close.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.textures.slots {
		if s := &t.textures.slots[i]; s.live {
			s.value.Sampler.Release()
			s.value.Texture.Release()
			s.live = false
		}
	}
	for i := range t.meshes.slots {
		if s := &t.meshes.slots[i]; s.live {
			s.value.IndexBuffer.Release()
			s.value.VertexBuffer.Release()
			s.live = false
		}
	}
	for i := range t.programs.slots {
		if s := &t.programs.slots[i]; s.live {
			s.value.Module.Release()
			s.live = false
		}
	}
	for i := range t.targets.slots {
		if s := &t.targets.slots[i]; s.live {
			s.value.Sampler.Release()
			s.value.Texture.Release()
			s.live = false
		}
	}
}

// bytesPerTexel returns the byte size of one texel for the formats the
// engine uploads.
func bytesPerTexel(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		// RGBA8 variants and BGRA8.
		return 4
	}
}
