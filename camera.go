package ember

import "cogentcore.org/core/math32"

// Camera is a perspective camera: a world position looking at a target.
type Camera struct {
	// Position is the camera position in world space.
	Position math32.Vector3

	// Target is the world point the camera looks at.
	Target math32.Vector3

	// Up is the camera up vector. The zero value means +Y.
	Up math32.Vector3

	// FOV is the vertical field of view in degrees.
	FOV float32

	// Near and Far are the clip plane distances.
	Near, Far float32
}

// DefaultCamera returns a camera at the origin looking down -Z with a
// 75 degree field of view.
func DefaultCamera() Camera {
	return Camera{
		Target: math32.Vec3(0, 0, -1),
		Up:     math32.Vec3(0, 1, 0),
		FOV:    75,
		Near:   0.1,
		Far:    10000,
	}
}

// Forward returns the normalized view direction.
func (c *Camera) Forward() math32.Vector3 {
	return c.Target.Sub(c.Position).Normal()
}

// ViewMatrix returns the world-to-camera transform: the inverse of the
// camera's placement transform facing the target.
func (c *Camera) ViewMatrix() math32.Matrix4 {
	up := c.Up
	if up == (math32.Vector3{}) {
		up = math32.Vec3(0, 1, 0)
	}
	var lookq math32.Quat
	lookq.SetFromRotationMatrix(math32.NewLookAt(c.Position, c.Target, up))
	var placement math32.Matrix4
	placement.SetTransform(c.Position, lookq, math32.Vec3(1, 1, 1))
	view, _ := placement.Inverse()
	return *view
}

// ProjectionMatrix returns the perspective projection for the given
// surface aspect ratio.
func (c *Camera) ProjectionMatrix(aspect float32) math32.Matrix4 {
	var proj math32.Matrix4
	proj.SetPerspective(c.FOV, aspect, c.Near, c.Far)
	return proj
}

// ViewProjection returns the combined projection * view matrix uploaded
// in the frame uniforms.
func (c *Camera) ViewProjection(aspect float32) math32.Matrix4 {
	view := c.ViewMatrix()
	proj := c.ProjectionMatrix(aspect)
	var vp math32.Matrix4
	vp.MulMatrices(&proj, &view)
	return vp
}
