package frame

import (
	"image"
	"image/color"
	"time"
)

// Synthetic is a placeholder frame.Source that yields solid-color frames at
// a fixed resolution and FPS. It exists only so cmd/securityd has a
// concrete, runnable default when no real capture library is wired in —
// SPEC_FULL.md §1 puts camera transport/codec decode out of scope, so this
// module never grows a real RTSP/WebRTC client; production deployments
// inject their own frame.Source over whatever capture library they use.
type Synthetic struct {
	width, height int
	fps           uint32
	interval      time.Duration
}

// NewSynthetic constructs a Synthetic source at the given resolution/FPS.
func NewSynthetic(width, height int, fps uint32) *Synthetic {
	return &Synthetic{width: width, height: height, fps: fps}
}

func (s *Synthetic) Open(uri string) (int, int, uint32, error) {
	s.interval = time.Second / time.Duration(s.fps)
	return s.width, s.height, s.fps, nil
}

func (s *Synthetic) Next() (Frame, bool) {
	time.Sleep(s.interval)
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	fill := color.RGBA{R: 32, G: 32, B: 32, A: 255}
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, fill)
		}
	}
	return Frame{Image: img, At: time.Now()}, true
}

func (s *Synthetic) Close() error { return nil }
