package ember

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember/backend"
)

// Option configures an Engine during creation.
type Option func(*config)

// config holds the resolved engine configuration.
type config struct {
	backendName     string
	surface         *wgpu.SurfaceDescriptor
	power           gputypes.PowerPreference
	vsync           bool
	framesInFlight  int
	maxInstances    int
	stageCapacity   int
	forceFallback   bool
	postProcessMode PostProcessMode
}

// defaultMaxInstances caps instances per draw call when no option
// overrides it.
const defaultMaxInstances = 10000

// stageCapacityFactor sizes the per-stage frame budget relative to the
// per-draw cap when WithStageCapacity is not given, so oversized groups
// still have room to split into further draw calls.
const stageCapacityFactor = 4

func defaultConfig() config {
	return config{
		backendName:    "", // registry default
		power:          gputypes.PowerPreferenceHighPerformance,
		vsync:          true,
		framesInFlight: backend.DefaultFramesInFlight,
		maxInstances:   defaultMaxInstances,
	}
}

// WithBackend selects a registered backend by name instead of the
// registry default. See backend.BackendWebGPU and backend.BackendHeadless.
func WithBackend(name string) Option {
	return func(c *config) {
		c.backendName = name
	}
}

// WithSurface supplies the window surface descriptor for presenting
// backends. Headless rendering needs no surface.
//
// Example:
//
//	ember.WithSurface(wgpuglfw.GetSurfaceDescriptor(window))
func WithSurface(desc *wgpu.SurfaceDescriptor) Option {
	return func(c *config) {
		c.surface = desc
	}
}

// WithPowerPreference selects the adapter power class. The default
// prefers the high-performance adapter.
func WithPowerPreference(p gputypes.PowerPreference) Option {
	return func(c *config) {
		c.power = p
	}
}

// WithVSync disables or enables presentation vsync. Enabled by default.
func WithVSync(on bool) Option {
	return func(c *config) {
		c.vsync = on
	}
}

// WithFramesInFlight sets how many frames may be in flight, which sizes
// the per-frame uniform ring. Values below 1 are clamped.
func WithFramesInFlight(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.framesInFlight = n
	}
}

// WithMaxInstances caps instances per draw call. A stage group larger
// than the cap splits into further draw calls rather than being dropped.
func WithMaxInstances(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.maxInstances = n
	}
}

// WithStageCapacity caps total instances per draw stage per frame,
// which also sizes each stage's instance buffer. Submissions beyond the
// cap are dropped with an error while the frame still renders. The
// default is a multiple of the per-draw cap; values below the per-draw
// cap are raised to it.
func WithStageCapacity(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.stageCapacity = n
	}
}

// WithFallbackAdapter forces the software fallback adapter, for
// environments without a real GPU.
func WithFallbackAdapter() Option {
	return func(c *config) {
		c.forceFallback = true
	}
}

// WithPostProcessMode sets the initial full-screen post-process mode.
func WithPostProcessMode(m PostProcessMode) Option {
	return func(c *config) {
		c.postProcessMode = m
	}
}
