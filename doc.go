// Package ember is a real-time rendering engine core built on WebGPU.
//
// # Overview
//
// Ember owns the GPU device and presentation surface through a pluggable
// backend (see [github.com/gogpu/ember/backend]), keeps uploaded assets
// behind generation-checked handles, merges per-object draw submissions
// into instanced batches, and replays a fixed list of render passes every
// frame: sky, sun flare, opaque geometry, decals, particles, post-process,
// and overlay.
//
// # Quick Start
//
//	eng, err := ember.New(1280, 720,
//		ember.WithBackend(backend.BackendWebGPU),
//		ember.WithSurface(surfaceDesc))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	mesh, _ := eng.Resources().UploadMesh("ship", verts, indices)
//	tex, _ := eng.Resources().UploadTexture("hull", pixels, format, w, h)
//
//	for !window.ShouldClose() {
//		eng.Draw(ember.StageOpaque, tex, mesh, ember.Instance{Scale: 1})
//		eng.RenderFrame(dt)
//	}
//
// # Concurrency
//
// The frame loop is single-goroutine: all Draw calls and RenderFrame
// happen on one goroutine. Asset uploads through Resources may run
// concurrently during a loading phase.
package ember
