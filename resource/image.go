package resource

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// PixelsRGBA converts any decoded image to a tightly packed RGBA byte
// slice suitable for UploadTexture. The source is drawn into a fresh
// RGBA image so paletted, YCbCr, and padded-stride sources all converge
// on the same upload path.
func PixelsRGBA(src image.Image) ([]byte, uint32, uint32) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst.Pix, uint32(w), uint32(h)
}

// ScaledRGBA converts and resamples an image to the given dimensions
// using bilinear filtering. Used for atlas and decal sources that must
// match a fixed slot size.
func ScaledRGBA(src image.Image, width, height uint32) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst.Pix
}
