package resource

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestPixelsRGBAConvertsPaletted(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 255, A: 255},
		color.NRGBA{B: 255, A: 255},
	}
	src := image.NewPaletted(image.Rect(0, 0, 4, 2), pal)
	for x := 0; x < 4; x++ {
		src.SetColorIndex(x, 0, 0)
		src.SetColorIndex(x, 1, 1)
	}

	pixels, w, h := PixelsRGBA(src)
	if w != 4 || h != 2 {
		t.Fatalf("dimensions = %dx%d, want 4x2", w, h)
	}
	if len(pixels) != 4*2*4 {
		t.Fatalf("pixel bytes = %d, want %d", len(pixels), 4*2*4)
	}
	// Row 0 is red, row 1 is blue.
	if pixels[0] != 255 || pixels[2] != 0 || pixels[3] != 255 {
		t.Errorf("row 0 pixel = %v, want red", pixels[0:4])
	}
	second := pixels[4*4:]
	if second[0] != 0 || second[2] != 255 || second[3] != 255 {
		t.Errorf("row 1 pixel = %v, want blue", second[0:4])
	}
}

func TestPixelsRGBAOffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(3, 7, 3+2, 7+2))
	src.SetNRGBA(3, 7, color.NRGBA{G: 200, A: 255})

	pixels, w, h := PixelsRGBA(src)
	if w != 2 || h != 2 {
		t.Fatalf("dimensions = %dx%d, want 2x2", w, h)
	}
	if pixels[1] != 200 {
		t.Errorf("origin green = %d, want 200", pixels[1])
	}
}

func TestScaledRGBAFeedsUpload(t *testing.T) {
	tab := newTestTable(t)

	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}

	pixels := ScaledRGBA(src, 8, 8)
	if len(pixels) != 8*8*4 {
		t.Fatalf("pixel bytes = %d, want %d", len(pixels), 8*8*4)
	}
	// A uniform source stays uniform through resampling.
	for i := 0; i < len(pixels); i += 4 {
		if pixels[i] != 120 || pixels[i+1] != 80 || pixels[i+2] != 40 || pixels[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want 120 80 40 255", i/4, pixels[i:i+4])
		}
	}

	h, err := tab.UploadTexture("scaled", pixels, gputypes.TextureFormatRGBA8Unorm, 8, 8)
	if err != nil {
		t.Fatalf("UploadTexture failed: %v", err)
	}
	entry, err := tab.Texture(h)
	if err != nil {
		t.Fatalf("Texture lookup failed: %v", err)
	}
	if entry.Texture.Width() != 8 || entry.Texture.Height() != 8 {
		t.Errorf("texture = %dx%d, want 8x8",
			entry.Texture.Width(), entry.Texture.Height())
	}
}
