package render

import (
	"image"
	"image/draw"
	"time"
)

// Frame is one rendered image as packed RGB24 pixels, plus how long it stays
// on screen when it is part of an animation.
type Frame struct {
	Pixels []byte
	Delay  time.Duration
}

// FrameSet is an ordered, non-empty list of frames. A single frame is a still
// image; more than one loops in order.
type FrameSet []Frame

// Animated reports whether the set loops.
func (fs FrameSet) Animated() bool { return len(fs) > 1 }

// Next returns the index after i, wrapping to the first frame.
func (fs FrameSet) Next(i int) int {
	if len(fs) == 0 {
		return 0
	}
	return (i + 1) % len(fs)
}

// PackRGB flattens img onto black and returns its pixels as RGB24.
func PackRGB(img image.Image) []byte {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || !rgba.Opaque() || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), image.Black, image.Point{}, draw.Src)
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)
	}
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := 0; y < b.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}

// UnpackRGB turns RGB24 pixels back into an image of the given size. Device
// drivers use it to re-encode frames in their native format.
func UnpackRGB(pixels []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(pixels) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = pixels[i]
		img.Pix[j+1] = pixels[i+1]
		img.Pix[j+2] = pixels[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}
