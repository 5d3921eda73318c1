// Command emberdemo renders an animated scene in a window.
//
// It spins a field of textured cubes around an orbiting camera, with
// additive particle sparks and a post-process mode that can be cycled
// with the P key. Run with -backend headless to exercise the full frame
// loop without a GPU.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"

	"cogentcore.org/core/math32"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/backend"
	_ "github.com/gogpu/ember/backend/headless"
	_ "github.com/gogpu/ember/backend/webgpu"
	"github.com/gogpu/ember/resource"
)

func init() {
	// The GPU and the window surface live on the main thread.
	runtime.LockOSThread()
}

var (
	backendName = flag.String("backend", "", "rendering backend (webgpu, headless; empty picks the best available)")
	width       = flag.Int("width", 1280, "window width")
	height      = flag.Int("height", 720, "window height")
	vsync       = flag.Bool("vsync", true, "synchronize presentation with the display")
	cubes       = flag.Int("cubes", 200, "number of cubes in the field")
	frames      = flag.Int("frames", 0, "exit after this many frames (0 runs until the window closes)")
	verbose     = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ember.SetLogger(logger)

	if err := run(logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	opts := []ember.Option{
		ember.WithBackend(*backendName),
		ember.WithVSync(*vsync),
	}

	var window *glfw.Window
	if *backendName != backend.BackendHeadless {
		if err := glfw.Init(); err != nil {
			return fmt.Errorf("glfw: %w", err)
		}
		defer glfw.Terminate()

		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
		var err error
		window, err = glfw.CreateWindow(*width, *height, "ember demo", nil, nil)
		if err != nil {
			return fmt.Errorf("glfw window: %w", err)
		}
		defer window.Destroy()

		opts = append(opts, ember.WithSurface(wgpuglfw.GetSurfaceDescriptor(window)))
	}

	eng, err := ember.New(uint32(*width), uint32(*height), opts...)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer eng.Close()
	logger.Info("engine ready", "backend", eng.Backend())

	// The checker is authored small and resampled up to the atlas slot
	// size on the way to the GPU.
	pixels := resource.ScaledRGBA(checkerImage(64, 8), 256, 256)
	checker, err := eng.Resources().UploadTexture("checker", pixels, gputypes.TextureFormatRGBA8Unorm, 256, 256)
	if err != nil {
		return err
	}
	cube, err := eng.Resources().UploadMesh("cube", cubeVertices(), cubeIndices())
	if err != nil {
		return err
	}

	eng.SetSun(math32.Vec3(1.0, 0.95, 0.85), 1.0)
	eng.SetFog(0.002, 40)

	if window != nil {
		window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
			if w > 0 && h > 0 {
				if err := eng.Resize(uint32(w), uint32(h)); err != nil {
					logger.Warn("resize failed", "error", err)
				}
			}
		})
		window.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
			if action != glfw.Press {
				return
			}
			switch key {
			case glfw.KeyEscape:
				win.SetShouldClose(true)
			case glfw.KeyP:
				next := (eng.PostProcess() + 1) % 4
				eng.SetPostProcess(next)
				logger.Info("post process", "mode", next)
			}
		})
	}

	field := cubeField(*cubes)
	cam := eng.Camera()

	last := time.Now()
	var elapsed float64
	var frame int
	for {
		if window != nil {
			if window.ShouldClose() {
				break
			}
			glfw.PollEvents()
		}
		now := time.Now()
		dt := now.Sub(last)
		last = now
		elapsed += dt.Seconds()
		frame++

		orbit := float32(elapsed * 0.3)
		cam.Position = math32.Vec3(
			math32.Cos(orbit)*30,
			12+math32.Sin(float32(elapsed)*0.5)*4,
			math32.Sin(orbit)*30,
		)
		cam.Target = math32.Vec3(0, 0, 0)
		eng.SetCamera(cam)

		for i, placement := range field {
			inst := placement
			inst.Rotation = float32(elapsed)*0.7 + float32(i)*0.37
			if err := eng.Draw(ember.StageOpaque, checker, cube, inst); err != nil {
				return err
			}
		}
		drawSparks(eng, elapsed)

		if err := eng.RenderFrame(dt); err != nil {
			// Frame skips during resize are routine; anything else is fatal.
			logger.Warn("frame", "error", err)
		}

		if frame%300 == 0 {
			s := eng.Stats()
			logger.Info("stats",
				"fps", fmt.Sprintf("%.1f", s.FPS),
				"frame_ms", fmt.Sprintf("%.2f", s.FrameTime.Seconds()*1000),
				"instances", s.Instances,
				"batches", s.Batches)
		}
		if *frames > 0 && frame >= *frames {
			break
		}
	}
	return nil
}

// cubeField lays out n cubes on a jittered grid. The layout is
// deterministic so repeated runs look identical.
func cubeField(n int) []ember.Instance {
	out := make([]ember.Instance, 0, n)
	side := int(math.Ceil(math.Sqrt(float64(n))))
	spacing := float32(4)
	for i := 0; i < n; i++ {
		gx := float32(i%side) - float32(side)/2
		gz := float32(i/side) - float32(side)/2
		jitter := math32.Sin(float32(i)*12.9898) * 1.3
		hue := float32(i) / float32(n)
		out = append(out, ember.Instance{
			Position: math32.Vec3(gx*spacing+jitter, jitter*0.5, gz*spacing-jitter),
			Scale:    1 + 0.5*math32.Abs(jitter),
			Color:    math32.Vec4(0.6+0.4*hue, 0.7, 1-0.5*hue, 1),
		})
	}
	return out
}

// drawSparks emits a ring of additive particles around the origin.
func drawSparks(eng *ember.Engine, elapsed float64) {
	const count = 64
	for i := 0; i < count; i++ {
		a := float32(i)/count*2*math32.Pi + float32(elapsed)*0.8
		r := 10 + 3*math32.Sin(float32(elapsed)*2+float32(i))
		inst := ember.Instance{
			Position: math32.Vec3(math32.Cos(a)*r, 3+2*math32.Sin(a*3), math32.Sin(a)*r),
			Scale:    0.25,
			Color:    math32.Vec4(1, 0.6, 0.2, 1),
		}
		// Particle draw errors only occur past capacity; drop silently.
		_ = eng.Draw(ember.StageParticleAdditive, eng.WhiteTexture(), eng.UnitQuad(), inst)
	}
}

// checkerImage builds a checkerboard with the given cell size.
func checkerImage(size, cell int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	light := color.NRGBA{R: 230, G: 230, B: 235, A: 255}
	dark := color.NRGBA{R: 60, G: 65, B: 80, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetNRGBA(x, y, light)
			} else {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}

// cubeVertices returns a unit cube with per-face normals and UVs.
func cubeVertices() []resource.Vertex {
	faces := []struct {
		normal [3]float32
		corner [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	verts := make([]resource.Vertex, 0, 24)
	for _, f := range faces {
		for i, c := range f.corner {
			verts = append(verts, resource.Vertex{
				Position: [3]float32{c[0] * 0.5, c[1] * 0.5, c[2] * 0.5},
				UV:       uvs[i],
				Normal:   f.normal,
			})
		}
	}
	return verts
}

func cubeIndices() []uint16 {
	indices := make([]uint16, 0, 36)
	for f := uint16(0); f < 6; f++ {
		base := f * 4
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return indices
}
