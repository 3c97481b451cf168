// Package supervisor implements WorkerSupervisor (SPEC_FULL.md §4.6): it
// tracks the running timelapse and motion workers, launches/stops them
// against the securitymap's configured set, and restarts timelapse workers
// at local midnight to rotate output filenames. The launch/stop/reconcile
// shape mirrors MultiCameraRelay.reconcileRelays, repurposed from
// per-stream relay handles to per-camera recording workers.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/camera"
	"github.com/agocontrol/security/pkg/frame"
	"github.com/agocontrol/security/pkg/securitymap"
)

// timelapseHandle pairs a running worker with the config it was launched
// from.
type timelapseHandle struct {
	worker *camera.TimelapseWorker
	cfg    securitymap.TimelapseConfig
}

type motionHandle struct {
	worker *camera.MotionWorker
	cfg    securitymap.MotionConfig
}

// Supervisor launches, stops, and restarts per-camera workers against the
// securitymap's configured set.
type Supervisor struct {
	store    *securitymap.Store
	registry *frame.Registry
	conn     bus.Conn
	recDir   string
	logger   *slog.Logger

	mu         sync.Mutex
	timelapses map[string]*timelapseHandle
	motions    map[string]*motionHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Supervisor. recDir is the recordings directory workers
// write into.
func New(store *securitymap.Store, registry *frame.Registry, conn bus.Conn, recDir string, logger *slog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		store:      store,
		registry:   registry,
		conn:       conn,
		recDir:     recDir,
		logger:     logger.With("component", "supervisor.Supervisor"),
		timelapses: make(map[string]*timelapseHandle),
		motions:    make(map[string]*motionHandle),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// LaunchAll starts a worker for every enabled timelapse/motion config.
func (s *Supervisor) LaunchAll() {
	s.store.View(func(doc *securitymap.Document) {
		for id, cfg := range doc.Timelapses {
			if cfg.Enabled {
				s.startTimelapse(id, cfg)
			}
		}
		for id, cfg := range doc.Motions {
			if cfg.Enabled {
				s.startMotion(id, cfg)
			}
		}
	})

	s.conn.Subscribe("event.system.devicenamechanged", s.onDeviceNameChanged)

	s.wg.Add(1)
	go s.midnightRotationLoop()
}

// StopAll signals cancellation to every running worker and waits for them
// to exit.
func (s *Supervisor) StopAll() {
	s.cancel()

	s.mu.Lock()
	timelapses := make([]*timelapseHandle, 0, len(s.timelapses))
	for _, h := range s.timelapses {
		timelapses = append(timelapses, h)
	}
	motions := make([]*motionHandle, 0, len(s.motions))
	for _, h := range s.motions {
		motions = append(motions, h)
	}
	s.timelapses = make(map[string]*timelapseHandle)
	s.motions = make(map[string]*motionHandle)
	s.mu.Unlock()

	var stopWg sync.WaitGroup
	for _, h := range timelapses {
		stopWg.Add(1)
		go func(h *timelapseHandle) {
			defer stopWg.Done()
			h.worker.Stop()
		}(h)
	}
	for _, h := range motions {
		stopWg.Add(1)
		go func(h *motionHandle) {
			defer stopWg.Done()
			h.worker.Stop()
		}(h)
	}
	stopWg.Wait()

	s.wg.Wait()
}

func (s *Supervisor) startTimelapse(id string, cfg securitymap.TimelapseConfig) {
	provider, err := s.registry.GetOrCreate(cfg.URI)
	if err != nil {
		s.logger.Warn("open timelapse provider", "internal_id", id, "uri", cfg.URI, "error", err)
		return
	}

	worker := camera.NewTimelapseWorker(id, cfg, provider, s.recDir, s.logger)
	if err := worker.Start(); err != nil {
		s.logger.Warn("start timelapse worker", "internal_id", id, "error", err)
		return
	}

	s.mu.Lock()
	s.timelapses[id] = &timelapseHandle{worker: worker, cfg: cfg}
	s.mu.Unlock()
}

func (s *Supervisor) startMotion(id string, cfg securitymap.MotionConfig) {
	provider, err := s.registry.GetOrCreate(cfg.URI)
	if err != nil {
		s.logger.Warn("open motion provider", "internal_id", id, "uri", cfg.URI, "error", err)
		return
	}

	worker := camera.NewMotionWorker(id, cfg, provider, s.conn, s.recDir, s.logger)
	if err := worker.Start(); err != nil {
		s.logger.Warn("start motion worker", "internal_id", id, "error", err)
		return
	}

	s.mu.Lock()
	s.motions[id] = &motionHandle{worker: worker, cfg: cfg}
	s.mu.Unlock()
}

// LaunchTimelapse starts a worker for a single newly added or edited
// timelapse config, e.g. from SecurityController's addtimelapse command, so
// it runs immediately rather than waiting for the next process restart. A
// no-op if cfg is disabled or a worker for id is already running.
func (s *Supervisor) LaunchTimelapse(id string, cfg securitymap.TimelapseConfig) {
	if !cfg.Enabled {
		return
	}
	s.mu.Lock()
	_, running := s.timelapses[id]
	s.mu.Unlock()
	if running {
		return
	}
	s.startTimelapse(id, cfg)
}

// LaunchMotion starts a worker for a single newly added or edited motion
// config, e.g. from SecurityController's addmotion command. A no-op if cfg
// is disabled or a worker for id is already running.
func (s *Supervisor) LaunchMotion(id string, cfg securitymap.MotionConfig) {
	if !cfg.Enabled {
		return
	}
	s.mu.Lock()
	_, running := s.motions[id]
	s.mu.Unlock()
	if running {
		return
	}
	s.startMotion(id, cfg)
}

// restartTimelapse stops and relaunches the timelapse worker for id,
// re-reading its config from the store; a config that is now disabled or
// gone is not relaunched.
func (s *Supervisor) restartTimelapse(id string) {
	s.mu.Lock()
	h, ok := s.timelapses[id]
	delete(s.timelapses, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	h.worker.Stop()

	var cfg securitymap.TimelapseConfig
	var enabled bool
	s.store.View(func(doc *securitymap.Document) {
		cfg, enabled = doc.Timelapses[id]
	})
	if enabled {
		s.startTimelapse(id, cfg)
	}
}

// nextMidnight returns the next local midnight strictly after at. The
// source's daily-rotation check used a "minute % 2 == 0" heuristic, which
// fires every two minutes rather than once a day — a bug, fixed here by
// computing true midnight.
func nextMidnight(at time.Time) time.Time {
	year, month, day := at.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, at.Location())
	if !midnight.After(at) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}

func (s *Supervisor) midnightRotationLoop() {
	defer s.wg.Done()

	for {
		next := nextMidnight(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.rotateTimelapses()
		}
	}
}

func (s *Supervisor) rotateTimelapses() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.timelapses))
	for id := range s.timelapses {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.restartTimelapse(id)
	}
}

// onDeviceNameChanged locates the record named in content by internal-id,
// rewrites its name, persists the securitymap, and restarts just that
// worker, per SPEC_FULL.md §4.6.
func (s *Supervisor) onDeviceNameChanged(ctx context.Context, subject string, content bus.Content) {
	id, _ := content["uuid"].(string)
	name, _ := content["name"].(string)
	if id == "" || name == "" {
		return
	}

	var kind string
	err := s.store.Mutate(func(doc *securitymap.Document) error {
		if cfg, ok := doc.Timelapses[id]; ok {
			cfg.Name = name
			doc.Timelapses[id] = cfg
			kind = "timelapse"
			return nil
		}
		if cfg, ok := doc.Motions[id]; ok {
			cfg.Name = name
			doc.Motions[id] = cfg
			kind = "motion"
			return nil
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("persist device name change", "internal_id", id, "error", err)
		return
	}

	switch kind {
	case "timelapse":
		s.restartTimelapse(id)
	case "motion":
		s.restartMotion(id)
	}
}

func (s *Supervisor) restartMotion(id string) {
	s.mu.Lock()
	h, ok := s.motions[id]
	delete(s.motions, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	h.worker.Stop()

	var cfg securitymap.MotionConfig
	var enabled bool
	s.store.View(func(doc *securitymap.Document) {
		cfg, enabled = doc.Motions[id]
	})
	if enabled {
		s.startMotion(id, cfg)
	}
}
