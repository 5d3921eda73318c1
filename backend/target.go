package backend

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// Target identifies the presentation target: a native window surface or
// the browser canvas. Core engine packages never branch on platform; the
// selected Context interprets the target it understands.
type Target struct {
	// Surface is the platform surface descriptor for native windows,
	// built by the windowing collaborator (e.g. wgpuglfw). Nil under js,
	// where the binding resolves the browser canvas itself.
	Surface *wgpu.SurfaceDescriptor

	// Width and Height are the initial surface dimensions in pixels.
	Width, Height uint32
}

// Options holds the configuration consumed at Context initialization.
// Parsing configuration files is owned by an external loader; the engine
// only consumes this struct.
type Options struct {
	// PowerPreference hints adapter selection. The zero value lets the
	// platform pick.
	PowerPreference gputypes.PowerPreference

	// VSync selects the fifo present mode when true, immediate when false.
	VSync bool

	// FramesInFlight is the number of per-frame uniform buffer slots.
	// Zero means DefaultFramesInFlight.
	FramesInFlight int

	// ForceFallbackAdapter requests a software adapter, for CI machines
	// without a GPU.
	ForceFallbackAdapter bool
}

// DefaultFramesInFlight is the uniform slot count used when Options
// leaves FramesInFlight at zero.
const DefaultFramesInFlight = 2

// FrameSlots returns the configured frames-in-flight count, applying the
// default for the zero value.
func (o Options) FrameSlots() int {
	if o.FramesInFlight <= 0 {
		return DefaultFramesInFlight
	}
	return o.FramesInFlight
}
