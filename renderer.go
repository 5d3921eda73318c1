package ember

import (
	"errors"
	"fmt"
	"time"

	"cogentcore.org/core/math32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/batch"
	"github.com/gogpu/ember/internal/elog"
	"github.com/gogpu/ember/pass"
	"github.com/gogpu/ember/pipeline"
	"github.com/gogpu/ember/resource"
)

// Engine errors.
var (
	// ErrClosed is returned by frame operations after Close.
	ErrClosed = errors.New("ember: engine closed")

	// ErrUnknownStage is returned by Draw for a stage outside the fixed
	// catalogue.
	ErrUnknownStage = errors.New("ember: unknown stage")
)

// Instance is one submitted object's per-instance parameters.
type Instance = batch.Record

// sceneFormat is the offscreen scene color format.
const sceneFormat = gputypes.TextureFormatRGBA8Unorm

// depthFormat is the scene depth-stencil format.
const depthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Engine owns the rendering device, resources, and the fixed frame pass
// list. Create one with New, drive it with Draw and RenderFrame from a
// single goroutine, and release it with Close.
type Engine struct {
	ctx backend.Context
	cfg config

	table     *resource.Table
	pipelines *pipeline.Registry
	uniforms  *pass.UniformSet
	scheduler *pass.Scheduler

	camera   Camera
	sun      math32.Vector4
	fog      math32.Vector4
	postMode PostProcessMode
	elapsed  float64

	quad       resource.MeshHandle
	white      resource.TextureHandle
	sceneColor resource.TargetHandle
	sceneDepth resource.TargetHandle

	skyProgram   resource.ProgramHandle
	sceneProgram resource.ProgramHandle
	postProgram  resource.ProgramHandle

	skyKey  pipeline.Key
	postKey pipeline.Key

	stages [numStages]*stageState

	materials map[resource.TextureHandle]backend.BindGroup
	sceneView backend.BindGroup

	stats  frameStats
	closed bool
}

// stageState is one draw stage's batcher and instance buffer.
type stageState struct {
	key     pipeline.Key
	batcher *batch.Batcher
	buffer  backend.Buffer
	batches []batch.Batch
}

// New creates an engine with the given surface dimensions. The backend
// is taken from the registry (WithBackend overrides the default), and
// all built-in programs, targets, and passes are created up front, so a
// successful New means the engine can render.
func New(width, height uint32, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, err := backend.Select(cfg.backendName)
	if err != nil {
		return nil, fmt.Errorf("ember: %w", err)
	}

	target := backend.Target{Surface: cfg.surface, Width: width, Height: height}
	bopts := backend.Options{
		PowerPreference:      cfg.power,
		VSync:                cfg.vsync,
		FramesInFlight:       cfg.framesInFlight,
		ForceFallbackAdapter: cfg.forceFallback,
	}
	if err := ctx.Init(target, bopts); err != nil {
		return nil, fmt.Errorf("ember: %w", err)
	}
	elog.Logger().Info("backend initialized",
		"backend", ctx.Name(), "width", width, "height", height)

	e := &Engine{
		ctx:       ctx,
		cfg:       cfg,
		camera:    DefaultCamera(),
		sun:       math32.Vec4(1, 0.95, 0.85, 1),
		postMode:  cfg.postProcessMode,
		materials: make(map[resource.TextureHandle]backend.BindGroup),
	}
	e.table = resource.NewTable(ctx)
	e.pipelines = pipeline.NewRegistry(ctx, e.table)
	e.scheduler = pass.NewScheduler(ctx, e.table)

	if err := e.setup(width, height); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// setup builds everything a frame needs: built-in assets, offscreen
// targets, the uniform ring, per-stage batchers, and the pass list.
func (e *Engine) setup(width, height uint32) error {
	var err error
	if e.uniforms, err = pass.NewUniformSet(e.ctx, e.cfg.framesInFlight); err != nil {
		return fmt.Errorf("ember: %w", err)
	}

	if e.quad, err = e.table.UploadMesh("builtin quad", quadVertices(), quadIndices()); err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	white := []byte{255, 255, 255, 255}
	if e.white, err = e.table.UploadTexture("builtin white", white, gputypes.TextureFormatRGBA8Unorm, 1, 1); err != nil {
		return fmt.Errorf("ember: %w", err)
	}

	if e.skyProgram, err = e.table.CompileProgram("sky", skyShaderWGSL); err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	if e.sceneProgram, err = e.table.CompileProgram("scene", sceneShaderWGSL); err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	if e.postProgram, err = e.table.CompileProgram("postprocess", postProcessShaderWGSL); err != nil {
		return fmt.Errorf("ember: %w", err)
	}

	if err := e.createTargets(width, height); err != nil {
		return err
	}

	e.skyKey = pipeline.Key{
		Program: e.skyProgram, Layout: pipeline.LayoutStatic,
		Blend: backend.BlendOpaque, Depth: backend.DepthDisabled,
		ColorFormat: sceneFormat,
	}
	e.postKey = pipeline.Key{
		Program: e.postProgram, Layout: pipeline.LayoutStatic,
		Blend: backend.BlendOpaque, Depth: backend.DepthDisabled,
	}

	capacity := e.cfg.stageCapacity
	if capacity == 0 {
		capacity = e.cfg.maxInstances * stageCapacityFactor
	}
	for s := Stage(0); s < numStages; s++ {
		st := &stageState{
			key:     e.stageKey(s),
			batcher: batch.NewBatcher(e.cfg.maxInstances, capacity),
		}
		st.buffer, err = e.ctx.CreateBuffer(&backend.BufferDescriptor{
			Label: s.String() + " instances",
			Size:  uint64(capacity * pipeline.InstanceStride),
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("ember: stage %s: %w", s, err)
		}
		e.stages[s] = st
	}

	return e.declarePasses()
}

// stageKey returns the stage's default pipeline key: the built-in scene
// program with the stage's fixed blend and depth state.
func (e *Engine) stageKey(s Stage) pipeline.Key {
	key := pipeline.Key{
		Program:     e.sceneProgram,
		Layout:      pipeline.LayoutInstanced,
		ColorFormat: sceneFormat,
	}
	switch s {
	case StageSunFlare:
		key.Blend = backend.BlendAdditive
		key.Depth = backend.DepthDisabled
	case StageOpaque:
		key.Blend = backend.BlendOpaque
		key.Depth = backend.DepthReadWrite
		key.HasDepth = true
	case StageDecal:
		key.Blend = backend.BlendAlpha
		key.Depth = backend.DepthReadOnly
		key.HasDepth = true
	case StageParticleAlpha:
		key.Blend = backend.BlendAlpha
		key.Depth = backend.DepthReadOnly
		key.HasDepth = true
	case StageParticleAdditive:
		key.Blend = backend.BlendAdditive
		key.Depth = backend.DepthReadOnly
		key.HasDepth = true
	case StageOverlay:
		key.Blend = backend.BlendAlpha
		key.Depth = backend.DepthDisabled
		key.ColorFormat = 0 // surface
	}
	return key
}

func (e *Engine) createTargets(width, height uint32) error {
	var err error
	if e.sceneColor, err = e.table.CreateTarget("scene color", width, height, sceneFormat); err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	if e.sceneDepth, err = e.table.CreateTarget("scene depth", width, height, depthFormat); err != nil {
		return fmt.Errorf("ember: %w", err)
	}

	entry, err := e.table.Target(e.sceneColor)
	if err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	e.sceneView, err = e.ctx.CreateMaterialBindGroup("scene color view",
		[]backend.Texture{entry.Texture}, entry.Sampler)
	if err != nil {
		return fmt.Errorf("ember: %w", err)
	}
	return nil
}

// declarePasses builds the fixed frame: sky, the six draw stages over
// the offscreen scene targets, then post-process and overlay on the
// surface.
func (e *Engine) declarePasses() error {
	clearColor := backend.ClearPolicy{
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		ClearDepth: 1,
	}
	loadColor := backend.ClearPolicy{LoadColor: true, ClearDepth: 1}
	loadAll := backend.ClearPolicy{LoadColor: true, LoadDepth: true}

	decls := []pass.Descriptor{
		{
			Name:   "sky",
			Color:  e.sceneColor,
			Clear:  clearColor,
			Record: e.recordSky,
		},
		{
			Name:   "sun flare",
			Color:  e.sceneColor,
			Clear:  backend.ClearPolicy{LoadColor: true},
			Empty:  e.stageEmpty(StageSunFlare),
			Record: e.recordStage(StageSunFlare),
		},
		{
			Name:   "opaque",
			Color:  e.sceneColor,
			Depth:  e.sceneDepth,
			Clear:  loadColor, // depth cleared here, color carries the sky
			Record: e.recordStage(StageOpaque),
		},
		{
			Name:   "decals",
			Color:  e.sceneColor,
			Depth:  e.sceneDepth,
			Clear:  loadAll,
			Empty:  e.stageEmpty(StageDecal),
			Record: e.recordStage(StageDecal),
		},
		{
			Name:   "particles alpha",
			Color:  e.sceneColor,
			Depth:  e.sceneDepth,
			Clear:  loadAll,
			Empty:  e.stageEmpty(StageParticleAlpha),
			Record: e.recordStage(StageParticleAlpha),
		},
		{
			Name:   "particles additive",
			Color:  e.sceneColor,
			Depth:  e.sceneDepth,
			Clear:  loadAll,
			Empty:  e.stageEmpty(StageParticleAdditive),
			Record: e.recordStage(StageParticleAdditive),
		},
		{
			Name:   "post process",
			Reads:  []resource.TargetHandle{e.sceneColor},
			Clear:  backend.ClearPolicy{},
			Record: e.recordPostProcess,
		},
		{
			Name:   "overlay",
			Clear:  backend.ClearPolicy{LoadColor: true},
			Empty:  e.stageEmpty(StageOverlay),
			Record: e.recordStage(StageOverlay),
		},
	}
	for _, d := range decls {
		if err := e.scheduler.Declare(d); err != nil {
			return fmt.Errorf("ember: %w", err)
		}
	}
	return nil
}

// Resources returns the engine's resource table for asset uploads.
func (e *Engine) Resources() *resource.Table { return e.table }

// Backend returns the active backend name.
func (e *Engine) Backend() string { return e.ctx.Name() }

// Passes returns the frame's pass names in run order.
func (e *Engine) Passes() []string { return e.scheduler.Passes() }

// Camera returns the current camera.
func (e *Engine) Camera() Camera { return e.camera }

// SetCamera replaces the camera used for the next frame.
func (e *Engine) SetCamera(c Camera) { e.camera = c }

// SetSun sets the directional light color and intensity.
func (e *Engine) SetSun(color math32.Vector3, intensity float32) {
	e.sun = math32.Vec4(color.X, color.Y, color.Z, intensity)
}

// SetFog sets the fog density and start distance.
func (e *Engine) SetFog(density, start float32) {
	e.fog.X = density
	e.fog.Y = start
}

// PostProcess returns the current post-process mode.
func (e *Engine) PostProcess() PostProcessMode { return e.postMode }

// SetPostProcess switches the full-screen post-process mode. Takes
// effect on the next frame; no pipelines are rebuilt.
func (e *Engine) SetPostProcess(m PostProcessMode) { e.postMode = m }

// Stats returns a snapshot of recent frame statistics.
func (e *Engine) Stats() Stats { return e.stats.snapshot() }

// Draw submits one instance to a stage with the built-in scene program.
// Returns batch.ErrCapacityExceeded when the stage budget is full; the
// instance is dropped and the frame still renders.
func (e *Engine) Draw(stage Stage, tex resource.TextureHandle, mesh resource.MeshHandle, inst Instance) error {
	return e.DrawWith(stage, resource.ProgramHandle{}, tex, mesh, inst)
}

// DrawWith submits one instance with a custom shader program. The zero
// program handle selects the built-in scene program. The program must
// follow the engine shader interface (entry points vs_main/fs_main,
// instance attributes at locations 8..11).
func (e *Engine) DrawWith(stage Stage, program resource.ProgramHandle, tex resource.TextureHandle, mesh resource.MeshHandle, inst Instance) error {
	if e.closed {
		return ErrClosed
	}
	if stage < 0 || stage >= numStages {
		return fmt.Errorf("%w: %d", ErrUnknownStage, stage)
	}
	st := e.stages[stage]
	key := st.key
	if program.Valid() {
		key.Program = program
	}
	return st.batcher.Submit(batch.Item{
		Pipeline: key,
		Texture:  tex,
		Mesh:     mesh,
		Instance: inst,
	})
}

// RenderFrame flushes all submitted draws and renders one frame.
//
// A lost surface is frame-scoped: the frame is skipped, the surface is
// reconfigured, and the error (wrapping backend.ErrSurfaceLost) is
// returned so callers can account for the dropped frame. The next
// RenderFrame proceeds normally.
//
// Batches referencing released resources are dropped at flush; the
// frame still renders with the surviving batches, and the joined drop
// errors (wrapping resource.ErrInvalidHandle) are returned afterward.
func (e *Engine) RenderFrame(dt time.Duration) error {
	if e.closed {
		return ErrClosed
	}
	start := time.Now()
	e.elapsed += dt.Seconds()

	u := e.frameUniforms()
	if err := e.uniforms.Update(&u); err != nil {
		return fmt.Errorf("ember: %w", err)
	}

	instances, batches := 0, 0
	var dropErr error
	for s := Stage(0); s < numStages; s++ {
		st := e.stages[s]
		flushed, data, err := st.batcher.Flush(e.table)
		if err != nil {
			elog.Logger().Warn("dropped batches", "stage", s.String(), "err", err)
			dropErr = errors.Join(dropErr, fmt.Errorf("stage %s: %w", s, err))
		}
		st.batches = flushed
		if len(data) > 0 {
			if err := e.ctx.WriteBuffer(st.buffer, 0, data); err != nil {
				return fmt.Errorf("ember: stage %s: %w", s, err)
			}
		}
		batches += len(flushed)
		instances += len(data) / pipeline.InstanceStride
	}

	if err := e.scheduler.RunFrame(); err != nil {
		if errors.Is(err, backend.ErrSurfaceLost) {
			w, h := e.ctx.SurfaceSize()
			elog.Logger().Warn("surface lost, reconfiguring", "width", w, "height", h)
			if rerr := e.ctx.Reconfigure(w, h); rerr != nil {
				return fmt.Errorf("ember: reconfigure after surface loss: %w", rerr)
			}
			return fmt.Errorf("ember: frame skipped: %w", err)
		}
		return fmt.Errorf("ember: %w", err)
	}

	e.uniforms.Advance()
	e.stats.record(time.Since(start), instances, batches)
	if dropErr != nil {
		return fmt.Errorf("ember: dropped batches: %w", dropErr)
	}
	return nil
}

// Resize reconfigures the surface and rebuilds the offscreen targets at
// the new dimensions. Must not be called during a frame.
func (e *Engine) Resize(width, height uint32) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.ctx.Reconfigure(width, height); err != nil {
		return fmt.Errorf("ember: resize: %w", err)
	}

	e.sceneView.Release()
	if err := e.table.ReleaseTarget(e.sceneColor); err != nil {
		return fmt.Errorf("ember: resize: %w", err)
	}
	if err := e.table.ReleaseTarget(e.sceneDepth); err != nil {
		return fmt.Errorf("ember: resize: %w", err)
	}
	if err := e.createTargets(width, height); err != nil {
		return err
	}

	// Pass descriptors hold the old target handles; rebuild the list.
	e.scheduler = pass.NewScheduler(e.ctx, e.table)
	if err := e.declarePasses(); err != nil {
		return err
	}
	elog.Logger().Info("surface resized", "width", width, "height", height)
	return nil
}

// Close releases every engine-owned resource. Safe to call more than
// once.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for _, g := range e.materials {
		g.Release()
	}
	if e.sceneView != nil {
		e.sceneView.Release()
	}
	for _, st := range e.stages {
		if st != nil && st.buffer != nil {
			st.buffer.Release()
		}
	}
	if e.pipelines != nil {
		e.pipelines.InvalidateAll()
	}
	if e.uniforms != nil {
		e.uniforms.Close()
	}
	if e.table != nil {
		e.table.Close()
	}
	e.ctx.Close()
}

// frameUniforms assembles the per-frame uniform block.
func (e *Engine) frameUniforms() pass.FrameUniforms {
	w, h := e.ctx.SurfaceSize()
	aspect := float32(1)
	if h != 0 {
		aspect = float32(w) / float32(h)
	}
	fwd := e.camera.Forward()

	var u pass.FrameUniforms
	u.ViewProjection = e.camera.ViewProjection(aspect)
	u.CameraPosition = math32.Vec4(e.camera.Position.X, e.camera.Position.Y, e.camera.Position.Z, 0)
	u.CameraDirection = math32.Vec4(fwd.X, fwd.Y, fwd.Z, 0)
	u.ScreenAndTime = math32.Vec4(float32(w), float32(h), aspect, float32(e.elapsed))
	u.SunColor = e.sun
	u.FogAndGrade = math32.Vec4(e.fog.X, e.fog.Y, float32(e.postMode), 0)
	return u
}

// stageEmpty returns the pass skip predicate for a stage.
func (e *Engine) stageEmpty(s Stage) func() bool {
	return func() bool { return len(e.stages[s].batches) == 0 }
}

// materialGroup returns the cached slot-0 bind group for a texture,
// creating it on first use. Only called with handles that survived the
// flush validation.
func (e *Engine) materialGroup(h resource.TextureHandle) (backend.BindGroup, error) {
	if g, ok := e.materials[h]; ok {
		return g, nil
	}
	entry, err := e.table.Texture(h)
	if err != nil {
		return nil, err
	}
	g, err := e.ctx.CreateMaterialBindGroup(h.String(),
		[]backend.Texture{entry.Texture}, entry.Sampler)
	if err != nil {
		return nil, err
	}
	e.materials[h] = g
	return g, nil
}

// recordQuad draws the built-in unit quad with the given pipeline and
// material, used by the sky and post-process passes.
func (e *Engine) recordQuad(enc backend.PassEncoder, key pipeline.Key, material backend.BindGroup) error {
	ph, err := e.pipelines.GetOrCreate(key)
	if err != nil {
		return err
	}
	p, err := e.pipelines.Pipeline(ph)
	if err != nil {
		return err
	}
	mesh, err := e.table.Mesh(e.quad)
	if err != nil {
		return err
	}

	enc.SetPipeline(p)
	enc.SetBindGroup(0, material)
	enc.SetBindGroup(1, e.uniforms.Binding())
	enc.SetVertexBuffer(0, mesh.VertexBuffer)
	enc.SetIndexBuffer(mesh.IndexBuffer, gputypes.IndexFormatUint16)
	enc.DrawIndexed(mesh.IndexCount, 1, 0, 0)
	return nil
}

func (e *Engine) recordSky(enc backend.PassEncoder) error {
	material, err := e.materialGroup(e.white)
	if err != nil {
		return err
	}
	return e.recordQuad(enc, e.skyKey, material)
}

func (e *Engine) recordPostProcess(enc backend.PassEncoder) error {
	return e.recordQuad(enc, e.postKey, e.sceneView)
}

// recordStage returns the pass record function replaying a stage's
// flushed batches.
func (e *Engine) recordStage(s Stage) pass.RecordFunc {
	return func(enc backend.PassEncoder) error {
		st := e.stages[s]
		enc.SetBindGroup(1, e.uniforms.Binding())
		for _, b := range st.batches {
			ph, err := e.pipelines.GetOrCreate(b.Pipeline)
			if err != nil {
				return err
			}
			p, err := e.pipelines.Pipeline(ph)
			if err != nil {
				return err
			}
			material, err := e.materialGroup(b.Texture)
			if err != nil {
				return err
			}
			mesh, err := e.table.Mesh(b.Mesh)
			if err != nil {
				return err
			}

			enc.SetPipeline(p)
			enc.SetBindGroup(0, material)
			enc.SetVertexBuffer(0, mesh.VertexBuffer)
			enc.SetVertexBufferRange(1, st.buffer,
				uint64(b.First)*pipeline.InstanceStride,
				uint64(b.Count)*pipeline.InstanceStride)
			enc.SetIndexBuffer(mesh.IndexBuffer, gputypes.IndexFormatUint16)
			enc.DrawIndexed(mesh.IndexCount, b.Count, 0, 0)
		}
		return nil
	}
}

// quadVertices returns the built-in unit quad spanning -1..1 in XY,
// facing +Z.
func quadVertices() []resource.Vertex {
	return []resource.Vertex{
		{Position: [3]float32{-1, -1, 0}, UV: [2]float32{0, 1}, Normal: [3]float32{0, 0, 1}},
		{Position: [3]float32{1, -1, 0}, UV: [2]float32{1, 1}, Normal: [3]float32{0, 0, 1}},
		{Position: [3]float32{1, 1, 0}, UV: [2]float32{1, 0}, Normal: [3]float32{0, 0, 1}},
		{Position: [3]float32{-1, 1, 0}, UV: [2]float32{0, 0}, Normal: [3]float32{0, 0, 1}},
	}
}

func quadIndices() []uint16 {
	return []uint16{0, 1, 2, 0, 2, 3}
}

// UnitQuad returns the built-in unit quad mesh handle, usable as the
// mesh for sprite-style submissions.
func (e *Engine) UnitQuad() resource.MeshHandle { return e.quad }

// WhiteTexture returns the built-in 1x1 white texture handle, usable as
// the material for untextured submissions.
func (e *Engine) WhiteTexture() resource.TextureHandle { return e.white }
