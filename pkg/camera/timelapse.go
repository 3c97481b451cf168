// Package camera implements the per-camera capture workers SPEC_FULL.md §4.4
// and §4.5 describe: TimelapseWorker performs continuous low-FPS recording,
// MotionWorker performs three-frame differencing with pre-roll buffering.
// Both consume frames from a shared frame.Provider via their own
// frame.Consumer, matching the relay/worker lifecycle shape used elsewhere
// in this stack (context+cancel, sync.WaitGroup, logger.With per instance).
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agocontrol/security/pkg/frame"
	"github.com/agocontrol/security/pkg/overlay"
	"github.com/agocontrol/security/pkg/securitymap"
	"github.com/agocontrol/security/pkg/videowriter"
)

// TimelapseWorker captures one frame per second from its provider, overlays
// a timestamp, and appends it to a date-stamped recording file.
type TimelapseWorker struct {
	internalID string
	name       string
	cfg        securitymap.TimelapseConfig
	recDir     string

	provider *frame.Provider
	consumer *frame.Consumer
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTimelapseWorker constructs a worker for internalID against provider,
// writing recordings under recDir.
func NewTimelapseWorker(internalID string, cfg securitymap.TimelapseConfig, provider *frame.Provider, recDir string, logger *slog.Logger) *TimelapseWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimelapseWorker{
		internalID: internalID,
		name:       cfg.Name,
		cfg:        cfg,
		recDir:     recDir,
		provider:   provider,
		logger:     logger.With("component", "camera.TimelapseWorker", "internal_id", internalID),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the provider and begins the capture loop.
func (w *TimelapseWorker) Start() error {
	w.consumer = w.provider.Subscribe()

	path, err := nextTimelapsePath(w.recDir, w.internalID, time.Now())
	if err != nil {
		return fmt.Errorf("choose timelapse path: %w", err)
	}

	fourcc := w.cfg.Codec
	if fourcc == "" {
		fourcc = "FMP4"
	}
	width, height := w.provider.Resolution()
	writer, err := videowriter.Open(path, width, height, fourcc, 1)
	if err != nil {
		return fmt.Errorf("open timelapse writer: %w", err)
	}

	w.wg.Add(1)
	go w.run(writer)
	w.logger.Info("timelapse worker started", "path", path)
	return nil
}

// Stop cancels the capture loop and waits for it to release its writer.
func (w *TimelapseWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.provider.Unsubscribe(w.consumer)
}

func (w *TimelapseWorker) run(writer videowriter.Writer) {
	defer w.wg.Done()
	defer func() {
		if err := writer.Close(); err != nil {
			w.logger.Warn("close timelapse writer", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("timelapse worker panic", "panic", r)
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		f, ok := w.consumer.Pop(w.ctx)
		if !ok {
			return
		}

		select {
		case <-ticker.C:
		default:
			continue // drain at source FPS, append at most once per second
		}

		dst := overlay.Copy(f.Image)
		overlay.Timestamp(dst, fmt.Sprintf("%s - %s", f.At.Format("2006/01/02 15:04:05"), w.name))

		if err := writer.WriteFrame(dst); err != nil {
			w.logger.Warn("write timelapse frame", "error", err)
		}
	}
}

// nextTimelapsePath picks the lowest non-colliding suffix for today's
// recording file, per SPEC_FULL.md §4.4.
func nextTimelapsePath(recDir, internalID string, at time.Time) (string, error) {
	stamp := at.Format("20060102")
	base := fmt.Sprintf("timelapse_%s_%s", internalID, stamp)

	for n := 0; ; n++ {
		name := base + ".avi"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.avi", base, n)
		}
		path := filepath.Join(recDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
}
