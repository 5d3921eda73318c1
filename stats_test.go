package ember

import (
	"testing"
	"time"
)

func TestStatsRollingAverage(t *testing.T) {
	var fs frameStats
	fs.record(10*time.Millisecond, 5, 1)
	fs.record(20*time.Millisecond, 7, 2)

	s := fs.snapshot()
	if s.Frame != 2 {
		t.Errorf("Frame = %d, want 2", s.Frame)
	}
	if s.FrameTime != 15*time.Millisecond {
		t.Errorf("FrameTime = %v, want 15ms", s.FrameTime)
	}
	if s.MaxFrameTime != 20*time.Millisecond {
		t.Errorf("MaxFrameTime = %v, want 20ms", s.MaxFrameTime)
	}
	if s.Instances != 7 || s.Batches != 2 {
		t.Errorf("last frame = %d instances, %d batches; want 7, 2", s.Instances, s.Batches)
	}
	if s.FPS < 66 || s.FPS > 67 {
		t.Errorf("FPS = %v, want ~66.7", s.FPS)
	}
}

func TestStatsWindowWraps(t *testing.T) {
	var fs frameStats
	// Fill the window with slow frames, then overwrite with fast ones.
	for i := 0; i < statsWindow; i++ {
		fs.record(100*time.Millisecond, 0, 0)
	}
	for i := 0; i < statsWindow; i++ {
		fs.record(time.Millisecond, 0, 0)
	}

	s := fs.snapshot()
	if s.Frame != 2*statsWindow {
		t.Errorf("Frame = %d, want %d", s.Frame, 2*statsWindow)
	}
	if s.FrameTime != time.Millisecond {
		t.Errorf("FrameTime = %v, want 1ms after window wrap", s.FrameTime)
	}
	if s.MaxFrameTime != time.Millisecond {
		t.Errorf("MaxFrameTime = %v, want 1ms after window wrap", s.MaxFrameTime)
	}
}

func TestStatsEmpty(t *testing.T) {
	var fs frameStats
	s := fs.snapshot()
	if s.Frame != 0 || s.FrameTime != 0 || s.FPS != 0 {
		t.Errorf("empty stats = %+v, want zeros", s)
	}
}
