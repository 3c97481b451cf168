package camera

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agocontrol/security/pkg/frame"
)

func frameAt(unixSeconds int64) frame.Frame {
	return frame.Frame{At: time.Unix(unixSeconds, 0)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource emits solid-color frames at a fixed resolution until Close is
// called, so tests can drive a real frame.Provider deterministically.
type fakeSource struct {
	width, height int
	fps           uint32
	closed        chan struct{}
	frames        int64
}

func newFakeSource(width, height int, fps uint32) *fakeSource {
	return &fakeSource{width: width, height: height, fps: fps, closed: make(chan struct{})}
}

func (f *fakeSource) Open(uri string) (int, int, uint32, error) {
	return f.width, f.height, f.fps, nil
}

func (f *fakeSource) Next() (frame.Frame, bool) {
	select {
	case <-f.closed:
		return frame.Frame{}, false
	default:
	}
	atomic.AddInt64(&f.frames, 1)
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	fill := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.Set(x, y, fill)
		}
	}
	time.Sleep(time.Millisecond)
	return frame.Frame{Image: img, At: time.Now()}, true
}

func (f *fakeSource) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}
