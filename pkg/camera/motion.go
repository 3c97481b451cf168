package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/frame"
	"github.com/agocontrol/security/pkg/overlay"
	"github.com/agocontrol/security/pkg/securitymap"
	"github.com/agocontrol/security/pkg/videowriter"
)

const (
	motionDiffThreshold = 35
	erodeKernel         = 2
	bboxExpand          = 10
	stabilizationWindow = 5 * time.Second
	maskStride          = 2
)

// ringBuffer is a fixed-capacity FIFO of frame.Frame used for pre-roll
// buffering; pushing past capacity evicts the oldest entry.
type ringBuffer struct {
	items []frame.Frame
	cap   int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{cap: capacity}
}

func (r *ringBuffer) push(f frame.Frame) {
	r.items = append(r.items, f)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

func (r *ringBuffer) drain() []frame.Frame {
	items := r.items
	r.items = nil
	return items
}

// MotionWorker runs the three-frame differencing pipeline of SPEC_FULL.md
// §4.5: grayscale differencing, noise rejection via mask stddev, bbox
// detection, pre-roll buffered recording, and on-duration hold-off.
type MotionWorker struct {
	internalID string
	name       string
	cfg        securitymap.MotionConfig
	recDir     string

	provider *frame.Provider
	consumer *frame.Consumer
	conn     bus.Conn
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMotionWorker constructs a worker for internalID against provider.
func NewMotionWorker(internalID string, cfg securitymap.MotionConfig, provider *frame.Provider, conn bus.Conn, recDir string, logger *slog.Logger) *MotionWorker {
	cfg.NormalizeDurations()
	ctx, cancel := context.WithCancel(context.Background())
	return &MotionWorker{
		internalID: internalID,
		name:       cfg.Name,
		cfg:        cfg,
		recDir:     recDir,
		provider:   provider,
		conn:       conn,
		logger:     logger.With("component", "camera.MotionWorker", "internal_id", internalID),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the motionsensor device, subscribes to the provider, and
// begins the detection loop.
func (w *MotionWorker) Start() error {
	if err := w.conn.RegisterDevice(w.internalID, w.handleCommand); err != nil {
		return fmt.Errorf("register motionsensor device: %w", err)
	}
	w.consumer = w.provider.Subscribe()

	w.wg.Add(1)
	go w.run()
	w.logger.Info("motion worker started")
	return nil
}

// Stop cancels the detection loop, waits for it to exit, and deregisters
// the motionsensor device.
func (w *MotionWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.provider.Unsubscribe(w.consumer)
	w.conn.UnregisterDevice(w.internalID)
}

func (w *MotionWorker) handleCommand(ctx context.Context, command string, content bus.Content) bus.Response {
	return bus.Error(1, "unknown-command")
}

// detection is the mutable per-iteration state the run loop threads through
// its steps.
type detection struct {
	prev, curr, next *image.Gray
	preRoll          *ringBuffer
	writer           videowriter.Writer
	writerPath       string
	isRecording      bool
	isTriggered      bool
	triggerStart     time.Time
}

func (w *MotionWorker) run() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("motion worker panic", "panic", r)
		}
	}()

	width, height := w.provider.Resolution()
	maxBuffer := int(w.provider.FPS()) * w.cfg.BufferDuration
	d := &detection{preRoll: newRingBuffer(maxBuffer)}
	startedAt := time.Now()

	defer func() {
		if d.writer != nil {
			_ = d.writer.Close()
		}
	}()

	for {
		f, ok := w.consumer.Pop(w.ctx)
		if !ok {
			return
		}

		gray := toGray(f.Image)
		d.prev, d.curr, d.next = d.curr, d.next, gray
		if d.prev == nil || d.curr == nil {
			continue // need three frames before differencing is meaningful
		}

		result := overlay.Copy(f.Image)
		overlay.Timestamp(result, fmt.Sprintf("%s - %s", f.At.Format("2006/01/02 15:04:05"), w.name))

		if !d.isRecording {
			d.preRoll.push(frame.Frame{Image: cloneRGBA(result), At: f.At})
		}

		if time.Since(startedAt) < stabilizationWindow {
			continue
		}

		mask := motionMask(d.prev, d.curr, d.next)
		changes, bbox, rejected := detectMotion(mask, w.cfg.Deviation)
		if rejected {
			continue
		}
		if changes > 0 {
			overlay.Rect(result, bbox.Min.X, bbox.Min.Y, bbox.Max.X, bbox.Max.Y)
		}

		now := f.At
		if !d.isTriggered && changes >= w.cfg.Sensitivity {
			w.onTriggered(d, now, width, height)
		}

		if d.isTriggered {
			w.onTick(d, result, now)
		}
	}
}

func (w *MotionWorker) onTriggered(d *detection, now time.Time, width, height int) {
	snapshotPath := filepath.Join(os.TempDir(), w.internalID+".jpg")
	if err := writeSnapshot(snapshotPath, d.preRoll); err != nil {
		w.logger.Warn("write motion snapshot", "error", err)
	} else {
		w.conn.Publish(w.ctx, "event.device.pictureavailable", bus.Content{"uuid": w.internalID, "filename": snapshotPath})
	}

	path := filepath.Join(w.recDir, fmt.Sprintf("motion_%s_%s.avi", w.internalID, now.Format("20060102_150405")))
	writer, err := videowriter.Open(path, width, height, "FMP4", w.provider.FPS())
	if err != nil {
		w.logger.Warn("open motion writer", "error", err)
		return
	}
	d.writer = writer
	d.writerPath = path
	d.isRecording = true
	d.isTriggered = true
	d.triggerStart = now

	for _, f := range d.preRoll.drain() {
		if err := d.writer.WriteFrame(f.Image); err != nil {
			w.logger.Warn("write pre-roll frame", "error", err)
		}
	}

	w.conn.Publish(w.ctx, "event.device.statechanged", bus.Content{"uuid": w.internalID, "level": 255})
}

func (w *MotionWorker) onTick(d *detection, result *image.RGBA, now time.Time) {
	if d.isRecording && !now.Before(d.triggerStart.Add(time.Duration(w.cfg.RecordDuration)*time.Second)) {
		if err := d.writer.Close(); err != nil {
			w.logger.Warn("close motion writer", "error", err)
		}
		path := d.writerPath
		d.writer = nil
		d.writerPath = ""
		d.isRecording = false
		w.conn.Publish(w.ctx, "event.device.videoavailable", bus.Content{"uuid": w.internalID, "filename": path})
	} else if d.isRecording {
		if err := d.writer.WriteFrame(result); err != nil {
			w.logger.Warn("write motion frame", "error", err)
		}
	}

	if !now.Before(d.triggerStart.Add(time.Duration(w.cfg.OnDuration) * time.Second)) {
		d.isTriggered = false
		w.conn.Publish(w.ctx, "event.device.statechanged", bus.Content{"uuid": w.internalID, "level": 0})
	}
}

func writeSnapshot(path string, preRoll *ringBuffer) error {
	items := preRoll.items
	if len(items) == 0 {
		return fmt.Errorf("no buffered frame available for snapshot")
	}
	last := items[len(items)-1]

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, last.Image, &jpeg.Options{Quality: 85})
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}

// motionMask computes and(|prev-next|, |next-curr|), thresholds it at
// motionDiffThreshold, and erodes the result with an erodeKernel x
// erodeKernel structuring element, per SPEC_FULL.md §4.5 step 4.
func motionMask(prev, curr, next *image.Gray) *image.Gray {
	b := next.Bounds()
	raw := image.NewGray(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d1 := absDiff(prev.GrayAt(x, y).Y, next.GrayAt(x, y).Y)
			d2 := absDiff(next.GrayAt(x, y).Y, curr.GrayAt(x, y).Y)
			v := uint8(0)
			if d1 >= motionDiffThreshold && d2 >= motionDiffThreshold {
				v = 255
			}
			raw.SetGray(x, y, color.Gray{Y: v})
		}
	}

	return erode(raw, erodeKernel)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// erode shrinks the 255-valued region of mask: a pixel survives only if
// every pixel in its kernel x kernel neighborhood is also 255.
func erode(mask *image.Gray, kernel int) *image.Gray {
	b := mask.Bounds()
	out := image.NewGray(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			survive := true
		neighborhood:
			for dy := 0; dy < kernel && survive; dy++ {
				for dx := 0; dx < kernel; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= b.Max.X || ny >= b.Max.Y {
						continue
					}
					if mask.GrayAt(nx, ny).Y != 255 {
						survive = false
						break neighborhood
					}
				}
			}
			if survive {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// detectMotion implements SPEC_FULL.md §4.5 step 6: reject the frame as
// noise if the mask's stddev reaches or exceeds deviation (a sudden global change, not
// a localized subject); otherwise scan the mask at maskStride in both axes,
// counting 255-valued pixels and tracking their bounding box, expanded by
// bboxExpand and clipped to the frame.
func detectMotion(mask *image.Gray, deviation int) (changes int, bbox image.Rectangle, rejected bool) {
	b := mask.Bounds()

	if stddev(mask) >= float64(deviation) {
		return 0, image.Rectangle{}, true
	}

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	count := 0

	for y := b.Min.Y; y < b.Max.Y; y += maskStride {
		for x := b.Min.X; x < b.Max.X; x += maskStride {
			if mask.GrayAt(x, y).Y != 255 {
				continue
			}
			count++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if count == 0 {
		return 0, image.Rectangle{}, false
	}

	minX = clip(minX-bboxExpand, b.Min.X, b.Max.X-1)
	minY = clip(minY-bboxExpand, b.Min.Y, b.Max.Y-1)
	maxX = clip(maxX+bboxExpand, b.Min.X, b.Max.X-1)
	maxY = clip(maxY+bboxExpand, b.Min.Y, b.Max.Y-1)

	return count, image.Rect(minX, minY, maxX, maxY), false
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stddev(mask *image.Gray) float64 {
	b := mask.Bounds()
	n := (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y)
	if n == 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(mask.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(n)

	var variance float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			diff := float64(mask.GrayAt(x, y).Y) - mean
			variance += diff * diff
		}
	}
	variance /= float64(n)

	return math.Sqrt(variance)
}
