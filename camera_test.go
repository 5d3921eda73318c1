package ember

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestCameraForward(t *testing.T) {
	c := DefaultCamera()
	c.Position = math32.Vec3(0, 0, 5)
	c.Target = math32.Vec3(0, 0, 0)

	fwd := c.Forward()
	if fwd.X != 0 || fwd.Y != 0 || fwd.Z != -1 {
		t.Errorf("forward = %+v, want (0, 0, -1)", fwd)
	}
}

func TestCameraViewMatrixMovesWorldOpposite(t *testing.T) {
	c := DefaultCamera()
	c.Position = math32.Vec3(0, 0, 10)
	c.Target = math32.Vec3(0, 0, 0)

	view := c.ViewMatrix()
	// The origin lands 10 units in front of the camera (camera looks
	// down -Z, so in view space the origin is at z = -10).
	origin := math32.Vec4(0, 0, 0, 1).MulMatrix4(&view)
	if !closeEnough(origin.Z, -10) || !closeEnough(origin.X, 0) || !closeEnough(origin.Y, 0) {
		t.Errorf("origin in view space = %+v, want (0, 0, -10)", origin)
	}
}

func TestCameraViewProjectionCentersTarget(t *testing.T) {
	c := DefaultCamera()
	c.Position = math32.Vec3(3, 4, 5)
	c.Target = math32.Vec3(0, 1, 0)

	vp := c.ViewProjection(16.0 / 9.0)
	clip := math32.Vec4(0, 1, 0, 1).MulMatrix4(&vp)
	// The look-at target projects onto the screen center.
	if !closeEnough(clip.X/clip.W, 0) || !closeEnough(clip.Y/clip.W, 0) {
		t.Errorf("target NDC = (%v, %v), want center", clip.X/clip.W, clip.Y/clip.W)
	}
	if clip.W <= 0 {
		t.Errorf("target is behind the camera: w = %v", clip.W)
	}
}

func closeEnough(got, want float32) bool {
	d := got - want
	return d > -1e-4 && d < 1e-4
}
