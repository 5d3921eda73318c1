package headless

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
)

func newInitialized(t *testing.T) *Context {
	t.Helper()
	c := New()
	if err := c.Init(backend.Target{Width: 320, Height: 240}, backend.Options{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSelfRegistration(t *testing.T) {
	if !backend.IsRegistered(backend.BackendHeadless) {
		t.Fatal("headless backend not registered")
	}
	c := backend.Get(backend.BackendHeadless)
	if c == nil {
		t.Fatal("Get returned nil")
	}
	if c.Name() != backend.BackendHeadless {
		t.Errorf("Name = %q, want %q", c.Name(), backend.BackendHeadless)
	}
}

func TestBeginFrameRequiresInit(t *testing.T) {
	c := New()
	if _, err := c.BeginFrame(); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestFrameInFlight(t *testing.T) {
	c := newInitialized(t)

	tok, err := c.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if _, err := c.BeginFrame(); !errors.Is(err, backend.ErrFrameInFlight) {
		t.Errorf("err = %v, want ErrFrameInFlight", err)
	}
	if err := c.Submit(tok); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := c.BeginFrame(); err != nil {
		t.Errorf("BeginFrame after Submit failed: %v", err)
	}
}

func TestFrameNumbersIncrease(t *testing.T) {
	c := newInitialized(t)

	var last uint64
	for i := 0; i < 3; i++ {
		tok, err := c.BeginFrame()
		if err != nil {
			t.Fatalf("BeginFrame failed: %v", err)
		}
		if tok.Frame() <= last {
			t.Errorf("frame %d not greater than %d", tok.Frame(), last)
		}
		last = tok.Frame()
		if err := c.Submit(tok); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
}

func TestFailNextAcquire(t *testing.T) {
	c := newInitialized(t)

	c.FailNextAcquire()
	if _, err := c.BeginFrame(); !errors.Is(err, backend.ErrSurfaceLost) {
		t.Errorf("err = %v, want ErrSurfaceLost", err)
	}
	// One-shot: the next acquire succeeds.
	tok, err := c.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	c.Abandon(tok)
}

func TestAbandonedFrameNotSubmitted(t *testing.T) {
	c := newInitialized(t)

	tok, err := c.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if _, err := c.BeginPass(tok, backend.PassConfig{Label: "scene"}); err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	c.Abandon(tok)

	f := c.LastFrame()
	if f == nil {
		t.Fatal("no frame record")
	}
	if f.Submitted {
		t.Error("abandoned frame marked submitted")
	}
}

func TestStaleTokenRejected(t *testing.T) {
	c := newInitialized(t)

	tok, err := c.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	if err := c.Submit(tok); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// The token is spent; reusing it must fail.
	if err := c.Submit(tok); err == nil {
		t.Error("spent token accepted by Submit")
	}
	if _, err := c.BeginPass(tok, backend.PassConfig{}); err == nil {
		t.Error("spent token accepted by BeginPass")
	}
}

func TestWriteBufferBounds(t *testing.T) {
	c := newInitialized(t)

	buf, err := c.CreateBuffer(&backend.BufferDescriptor{Label: "b", Size: 16, Usage: gputypes.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	if err := c.WriteBuffer(buf, 8, make([]byte, 8)); err != nil {
		t.Errorf("in-bounds write failed: %v", err)
	}
	if err := c.WriteBuffer(buf, 8, make([]byte, 9)); err == nil {
		t.Error("out-of-bounds write accepted")
	}
}

func TestWriteBufferContents(t *testing.T) {
	c := newInitialized(t)

	buf, err := c.CreateBuffer(&backend.BufferDescriptor{Label: "b", Size: 8, Usage: gputypes.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	if err := c.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBuffer failed: %v", err)
	}

	got := BufferBytes(buf)
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buffer = %v, want %v", got, want)
		}
	}
}

func TestDrawRecording(t *testing.T) {
	c := newInitialized(t)

	mod, err := c.CreateShaderModule("prog", "@vertex fn vs_main() {}")
	if err != nil {
		t.Fatalf("CreateShaderModule failed: %v", err)
	}
	pipe, err := c.CreateRenderPipeline(&backend.PipelineDescriptor{Label: "scene/opaque", Module: mod})
	if err != nil {
		t.Fatalf("CreateRenderPipeline failed: %v", err)
	}

	tok, err := c.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame failed: %v", err)
	}
	enc, err := c.BeginPass(tok, backend.PassConfig{Label: "scene"})
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	enc.SetPipeline(pipe)
	enc.DrawIndexed(6, 10, 0, 0)
	enc.DrawIndexed(6, 3, 0, 10)
	enc.End()
	if err := c.Submit(tok); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	f := c.LastFrame()
	if len(f.Passes) != 1 {
		t.Fatalf("pass count = %d, want 1", len(f.Passes))
	}
	p := f.Passes[0]
	if len(p.Draws) != 2 {
		t.Fatalf("draw count = %d, want 2", len(p.Draws))
	}
	if p.Draws[0].Pipeline != "scene/opaque" {
		t.Errorf("pipeline = %q, want scene/opaque", p.Draws[0].Pipeline)
	}
	if p.TotalInstances() != 13 {
		t.Errorf("total instances = %d, want 13", p.TotalInstances())
	}
}
