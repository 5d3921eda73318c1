package ember

import "time"

// Stats is a snapshot of recent frame statistics.
type Stats struct {
	// Frame is the number of frames submitted since startup.
	Frame uint64

	// FrameTime is the average frame duration over the sample window.
	FrameTime time.Duration

	// MaxFrameTime is the longest frame in the sample window.
	MaxFrameTime time.Duration

	// FPS is derived from the average frame time.
	FPS float64

	// Instances is the instance count of the last submitted frame.
	Instances int

	// Batches is the draw batch count of the last submitted frame.
	Batches int
}

// statsWindow is the number of frames averaged in a Stats snapshot.
const statsWindow = 120

// frameStats accumulates a rolling window of frame durations. Not safe
// for concurrent use; updated only from the frame goroutine.
type frameStats struct {
	samples [statsWindow]time.Duration
	count   int
	next    int

	frame     uint64
	instances int
	batches   int
}

func (f *frameStats) record(d time.Duration, instances, batches int) {
	f.samples[f.next] = d
	f.next = (f.next + 1) % statsWindow
	if f.count < statsWindow {
		f.count++
	}
	f.frame++
	f.instances = instances
	f.batches = batches
}

func (f *frameStats) snapshot() Stats {
	s := Stats{
		Frame:     f.frame,
		Instances: f.instances,
		Batches:   f.batches,
	}
	if f.count == 0 {
		return s
	}
	var sum, max time.Duration
	for i := 0; i < f.count; i++ {
		d := f.samples[i]
		sum += d
		if d > max {
			max = d
		}
	}
	s.FrameTime = sum / time.Duration(f.count)
	s.MaxFrameTime = max
	if s.FrameTime > 0 {
		s.FPS = float64(time.Second) / float64(s.FrameTime)
	}
	return s
}
