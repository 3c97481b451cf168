// Package alarm implements AlarmEngine (SPEC_FULL.md §4.7): zone
// arbitration under the current housemode, a cancellable per-zone
// countdown, and the fan-out to GatewayDispatcher on expiry or disable.
package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/gateway"
	"github.com/agocontrol/security/pkg/securitymap"
)

// TriggerStatus is the outcome of a TriggerZone call.
type TriggerStatus int

const (
	Ok TriggerStatus = iota
	OkInactiveZone
	KoConfigInfoMissing
	KoInvalidConfig
	KoAlarmAlreadyRunning
	KoAlarmFailed
)

func (s TriggerStatus) String() string {
	switch s {
	case Ok:
		return "ok"
	case OkInactiveZone:
		return "ok-inactive-zone"
	case KoConfigInfoMissing:
		return "ko-config-info-missing"
	case KoInvalidConfig:
		return "ko-invalid-config"
	case KoAlarmAlreadyRunning:
		return "ko-alarm-already-running"
	case KoAlarmFailed:
		return "ko-alarm-failed"
	default:
		return "unknown"
	}
}

// currentAlarm is the in-memory record of the zone presently counting down
// or sounding, per SPEC_FULL.md §3.
type currentAlarm struct {
	housemode string
	zone      string
	sounding  bool // true once the countdown has expired
}

// Engine is the per-process AlarmEngine: it owns the securitymap, the
// single in-flight countdown (SPEC_FULL.md §3: "at most one alarm countdown
// is in flight per process" is a preserved known limitation, not a bug),
// and the reverse index that makes HandleEvent O(1).
type Engine struct {
	store      *securitymap.Store
	conn       bus.Conn
	dispatcher *gateway.Dispatcher
	tick       time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	current *currentAlarm
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	indexMu sync.RWMutex
	index   map[deviceKey]string // (housemode, uuid) -> first zone listing uuid
}

type deviceKey struct {
	housemode string
	uuid      string
}

// NewEngine constructs an Engine. tick is the countdown's per-second
// interval (overridable in tests to avoid real sleeps).
func NewEngine(store *securitymap.Store, conn bus.Conn, dispatcher *gateway.Dispatcher, tick time.Duration, logger *slog.Logger) *Engine {
	e := &Engine{
		store:      store,
		conn:       conn,
		dispatcher: dispatcher,
		tick:       tick,
		logger:     logger.With("component", "alarm.Engine"),
	}
	e.RebuildIndex()
	return e
}

// RebuildIndex recomputes the (housemode, uuid) -> zone reverse index from
// the current securitymap config. Call after any mutation to config.
func (e *Engine) RebuildIndex() {
	index := make(map[deviceKey]string)
	e.store.View(func(doc *securitymap.Document) {
		for hm, zones := range doc.Config {
			for _, z := range zones {
				for _, uuid := range z.Devices {
					k := deviceKey{housemode: hm, uuid: uuid}
					if _, seen := index[k]; !seen {
						index[k] = z.Zone
					}
				}
			}
		}
	})

	e.indexMu.Lock()
	e.index = index
	e.indexMu.Unlock()
}

// HandleEvent implements SPEC_FULL.md §4.7's event intake: for
// event.device.statechanged | event.security.sensortriggered with uuid and
// level > 0, and only if no alarm is active, look up the uuid's first zone
// under the current housemode via the reverse index and trigger it. A
// single event never triggers more than one zone.
func (e *Engine) HandleEvent(ctx context.Context, subject string, content bus.Content) {
	if subject != "event.device.statechanged" && subject != "event.security.sensortriggered" {
		return
	}
	uuid, _ := content["uuid"].(string)
	level, _ := content["level"].(int)
	if uuid == "" || level <= 0 {
		return
	}

	e.mu.Lock()
	active := e.current != nil
	e.mu.Unlock()
	if active {
		return
	}

	var hm string
	e.store.View(func(doc *securitymap.Document) { hm = doc.Housemode })

	e.indexMu.RLock()
	zone, ok := e.index[deviceKey{housemode: hm, uuid: uuid}]
	e.indexMu.RUnlock()
	if !ok {
		return
	}

	status, err := e.TriggerZone(zone, hm)
	if err != nil {
		e.logger.Warn("trigger zone from event failed", "uuid", uuid, "zone", zone, "error", err)
		return
	}
	e.logger.Debug("zone triggered from event", "uuid", uuid, "zone", zone, "status", status.String())
}

// TriggerZone starts a countdown for zone under housemode hm, unless it's
// inactive or another countdown is already in flight.
func (e *Engine) TriggerZone(zone, hm string) (TriggerStatus, error) {
	if hm == "" {
		return KoConfigInfoMissing, nil
	}

	var z securitymap.Zone
	var found bool
	e.store.View(func(doc *securitymap.Document) {
		z, found = doc.ZoneByName(hm, zone)
	})
	if !found {
		return KoInvalidConfig, nil
	}
	if z.Inactive() {
		return OkInactiveZone, nil
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return KoAlarmAlreadyRunning, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.current = &currentAlarm{housemode: hm, zone: zone}
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.countdown(ctx, zone, hm, z.Delay)

	return Ok, nil
}

func (e *Engine) countdown(ctx context.Context, zone, hm string, delay int16) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("countdown panic", "zone", zone, "panic", r)
		}
	}()

	e.conn.Publish(context.Background(), "event.security.countdown.started", bus.Content{"zone": zone, "delay": int(delay)})

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	remaining := int(delay)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			e.onCancelled(zone)
			return
		case <-ticker.C:
			remaining--
			e.conn.Publish(context.Background(), "event.security.countdown", bus.Content{"zone": zone, "delay": remaining})
		}
	}

	e.onExpired(zone, hm)
}

func (e *Engine) onCancelled(zone string) {
	e.mu.Lock()
	e.current = nil
	e.cancel = nil
	e.mu.Unlock()

	e.conn.Publish(context.Background(), "event.security.alarmcancelled", bus.Content{"zone": zone})
	e.switchToDefaultHousemode()
}

func (e *Engine) onExpired(zone, hm string) {
	e.mu.Lock()
	if e.current != nil {
		e.current.sounding = true
	}
	e.mu.Unlock()

	e.conn.Publish(context.Background(), "event.security.intruderalert", bus.Content{"zone": zone})
	e.triggerAlarms(zone, hm)
}

// triggerAlarms fans message out to every alarm UUID bound to zone, using
// message as the notification body.
func (e *Engine) triggerAlarms(zone, hm string) {
	var uuids []string
	var message string
	e.store.View(func(doc *securitymap.Document) {
		if z, ok := doc.ZoneByName(hm, zone); ok {
			uuids = z.Alarms
		}
		message = doc.ArmedMessage
	})

	if err := e.dispatcher.SendAlarm(gateway.PriorityHigh, zone, uuids, message); err != nil {
		e.logger.Warn("alarm fan-out failed", "zone", zone, "error", err)
	}
}

// DisableAlarm is called when cancellation arrives after countdown expiry:
// it clears the sounding alarm, emits alarmstopped, fans out disarmedMessage,
// and switches to the default housemode if set.
func (e *Engine) DisableAlarm(zone, hm string) error {
	e.mu.Lock()
	if e.current == nil || e.current.zone != zone || !e.current.sounding {
		e.mu.Unlock()
		return fmt.Errorf("no sounding alarm for zone %q", zone)
	}
	e.current = nil
	e.cancel = nil
	e.mu.Unlock()

	e.conn.Publish(context.Background(), "event.security.alarmstopped", bus.Content{"zone": zone})

	var uuids []string
	var message string
	e.store.View(func(doc *securitymap.Document) {
		if z, ok := doc.ZoneByName(hm, zone); ok {
			uuids = z.Alarms
		}
		message = doc.DisarmedMessage
	})
	if err := e.dispatcher.SendAlarm(gateway.PriorityLow, zone, uuids, message); err != nil {
		e.logger.Warn("disarm fan-out failed", "zone", zone, "error", err)
	}

	e.switchToDefaultHousemode()
	return nil
}

// CancelActive cancels whichever countdown is currently running and waits
// for it to finish. If the countdown has already expired and the alarm is
// sounding, it calls DisableAlarm for that zone instead.
func (e *Engine) CancelActive() error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return fmt.Errorf("no alarm in progress")
	}
	if e.current.sounding {
		zone, hm := e.current.zone, e.current.housemode
		e.mu.Unlock()
		return e.DisableAlarm(zone, hm)
	}
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	return nil
}

// ChangeHousemode writes housemode to the securitymap, persists it, and
// emits housemodechanged. No separate housemode global variable is
// published on the bus; bus.Conn has no variable API.
func (e *Engine) ChangeHousemode(hm string) error {
	if err := e.store.Mutate(func(doc *securitymap.Document) error {
		doc.Housemode = hm
		return nil
	}); err != nil {
		return fmt.Errorf("persist housemode: %w", err)
	}

	ctx := context.Background()
	e.conn.Publish(ctx, "event.security.housemodechanged", bus.Content{"housemode": hm})
	return nil
}

func (e *Engine) switchToDefaultHousemode() {
	var defaultHM string
	e.store.View(func(doc *securitymap.Document) {
		defaultHM = doc.DefaultHousemode
	})
	if defaultHM == "" {
		return
	}
	if err := e.ChangeHousemode(defaultHM); err != nil {
		e.logger.Warn("switch to default housemode failed", "housemode", defaultHM, "error", err)
	}
}

// CurrentZone reports the zone presently counting down or sounding, if any.
func (e *Engine) CurrentZone() (zone, housemode string, sounding, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return "", "", false, false
	}
	return e.current.zone, e.current.housemode, e.current.sounding, true
}
