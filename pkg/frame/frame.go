// Package frame implements the shared capture fan-out fabric: one
// FrameProvider decodes a URI once and multicasts read-only frames to many
// FrameConsumers, each with its own bounded, drop-oldest queue.
package frame

import (
	"image"
	"time"
)

// Frame is a single decoded, read-only capture frame. Consumers must not
// mutate Image; overlays that need to draw onto a frame first copy it.
type Frame struct {
	Image image.Image
	At    time.Time
}

// Source is the injected capture boundary. Camera transport negotiation and
// codec decode are out of scope for this module (see SPEC_FULL.md §1); a
// Source is whatever the caller wires up — a test double, or a real capture
// library adapter living outside this module.
type Source interface {
	// Open begins producing frames for uri. It returns the stream's
	// resolution and native FPS, or an error if the URI cannot be opened.
	Open(uri string) (width, height int, fps uint32, err error)

	// Next blocks until the next frame is available or the source is closed,
	// returning ok=false in the latter case.
	Next() (Frame, bool)

	// Close releases the underlying capture session.
	Close() error
}
