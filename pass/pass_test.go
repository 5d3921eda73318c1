package pass

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
	"github.com/gogpu/ember/backend/headless"
	"github.com/gogpu/ember/resource"
)

func newTestScheduler(t *testing.T) (*Scheduler, *headless.Context, *resource.Table) {
	t.Helper()
	ctx := headless.New()
	if err := ctx.Init(backend.Target{Width: 640, Height: 480}, backend.Options{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(ctx.Close)
	table := resource.NewTable(ctx)
	return NewScheduler(ctx, table), ctx, table
}

func TestDeclareRejectsDuplicateName(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	if err := s.Declare(Descriptor{Name: "sky"}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}
	if err := s.Declare(Descriptor{Name: "sky"}); !errors.Is(err, ErrDuplicatePass) {
		t.Errorf("err = %v, want ErrDuplicatePass", err)
	}
}

func TestDeclareRejectsReadBeforeWrite(t *testing.T) {
	s, _, table := newTestScheduler(t)

	color, err := table.CreateTarget("scene color", 640, 480, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("CreateTarget failed: %v", err)
	}

	// Nothing has rendered into the target yet.
	err = s.Declare(Descriptor{Name: "post", Reads: []resource.TargetHandle{color}})
	if !errors.Is(err, ErrUnsatisfiedRead) {
		t.Errorf("err = %v, want ErrUnsatisfiedRead", err)
	}

	// After a producer is declared the same read is accepted.
	if err := s.Declare(Descriptor{Name: "scene", Color: color}); err != nil {
		t.Fatalf("Declare producer failed: %v", err)
	}
	if err := s.Declare(Descriptor{Name: "post", Reads: []resource.TargetHandle{color}}); err != nil {
		t.Errorf("Declare consumer failed: %v", err)
	}
}

func TestRunFrameRecordsPassesInOrder(t *testing.T) {
	s, ctx, _ := newTestScheduler(t)

	names := []string{"sky", "world", "overlay"}
	for _, name := range names {
		if err := s.Declare(Descriptor{Name: name}); err != nil {
			t.Fatalf("Declare %q failed: %v", name, err)
		}
	}

	for i := 0; i < 3; i++ {
		if err := s.RunFrame(); err != nil {
			t.Fatalf("RunFrame %d failed: %v", i, err)
		}
	}

	frames := ctx.Frames()
	if len(frames) != 3 {
		t.Fatalf("frame count = %d, want 3", len(frames))
	}
	for _, f := range frames {
		if !f.Submitted {
			t.Errorf("frame %d was not submitted", f.Frame)
		}
		if len(f.Passes) != len(names) {
			t.Fatalf("frame %d pass count = %d, want %d", f.Frame, len(f.Passes), len(names))
		}
		for i, p := range f.Passes {
			if p.Label != names[i] {
				t.Errorf("frame %d pass %d = %q, want %q", f.Frame, i, p.Label, names[i])
			}
			if !p.Ended {
				t.Errorf("frame %d pass %q was not ended", f.Frame, p.Label)
			}
		}
	}
}

func TestRunFrameSkipsEmptyPasses(t *testing.T) {
	s, ctx, _ := newTestScheduler(t)

	empty := true
	if err := s.Declare(Descriptor{Name: "world"}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}
	if err := s.Declare(Descriptor{Name: "particles", Empty: func() bool { return empty }}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}

	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	empty = false
	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}

	frames := ctx.Frames()
	if got := len(frames[0].Passes); got != 1 {
		t.Errorf("frame 1 ran %d passes, want 1 (particles skipped)", got)
	}
	if got := len(frames[1].Passes); got != 2 {
		t.Errorf("frame 2 ran %d passes, want 2", got)
	}
}

func TestRunFrameSurfaceLost(t *testing.T) {
	s, ctx, _ := newTestScheduler(t)

	recorded := 0
	if err := s.Declare(Descriptor{
		Name:   "world",
		Record: func(enc backend.PassEncoder) error { recorded++; return nil },
	}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}

	ctx.FailNextAcquire()
	if err := s.RunFrame(); !errors.Is(err, backend.ErrSurfaceLost) {
		t.Fatalf("err = %v, want ErrSurfaceLost", err)
	}
	if recorded != 0 {
		t.Error("pass recorded despite surface loss")
	}
	if len(ctx.Frames()) != 0 {
		t.Error("a frame was completed despite surface loss")
	}

	// The next frame succeeds without reinitialization.
	if err := s.RunFrame(); err != nil {
		t.Fatalf("RunFrame after surface loss failed: %v", err)
	}
	if recorded != 1 {
		t.Errorf("recorded = %d, want 1", recorded)
	}
}

func TestRunFrameAbandonsOnRecordError(t *testing.T) {
	s, ctx, _ := newTestScheduler(t)

	boom := errors.New("boom")
	if err := s.Declare(Descriptor{Name: "world"}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}
	if err := s.Declare(Descriptor{
		Name:   "broken",
		Record: func(enc backend.PassEncoder) error { return boom },
	}); err != nil {
		t.Fatalf("Declare failed: %v", err)
	}

	if err := s.RunFrame(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	frames := ctx.Frames()
	if len(frames) != 1 {
		t.Fatalf("frame count = %d, want 1 abandoned record", len(frames))
	}
	if frames[0].Submitted {
		t.Error("frame was presented despite a recording failure")
	}

	// The scheduler recovers on the next frame.
	if err := s.RunFrame(); !errors.Is(err, boom) {
		t.Fatalf("second RunFrame err = %v, want boom again", err)
	}
}
