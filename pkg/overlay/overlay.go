// Package overlay burns timestamp/name text and motion bounding boxes onto
// frame images before they're appended to a recording, per SPEC_FULL.md
// §4.4/§4.5. Text rendering follows the same font.Drawer + basicfont +
// math/fixed technique used to burn detection labels onto MJPEG frames
// elsewhere in this stack.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
)

// Copy returns a mutable RGBA copy of src suitable for drawing onto.
func Copy(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// Timestamp draws text at the top-left corner with a black 4px stroke under
// a white 1px stroke, matching the TimelapseWorker/MotionWorker overlay
// contract ("<YYYY/MM/DD HH:MM:SS> - <name>").
func Timestamp(dst *image.RGBA, text string) {
	const x, y = 4, 16

	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(dst, x+dx, y+dy, text, black)
		}
	}
	drawString(dst, x, y, text, white)
}

func drawString(dst *image.RGBA, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// Rect draws a motion bounding box as a 2px-thick red outline, matching the
// MotionWorker's detected-region overlay.
func Rect(dst *image.RGBA, x0, y0, x1, y1 int) {
	b := dst.Bounds()
	clip := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	x0 = clip(x0, b.Min.X, b.Max.X-1)
	x1 = clip(x1, b.Min.X, b.Max.X-1)
	y0 = clip(y0, b.Min.Y, b.Max.Y-1)
	y1 = clip(y1, b.Min.Y, b.Max.Y-1)

	const thickness = 2
	for t := 0; t < thickness; t++ {
		for x := x0; x <= x1; x++ {
			dst.Set(x, y0+t, red)
			dst.Set(x, y1-t, red)
		}
		for y := y0; y <= y1; y++ {
			dst.Set(x0+t, y, red)
			dst.Set(x1-t, y, red)
		}
	}
}
