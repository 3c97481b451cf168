// Package controller implements SecurityController (SPEC_FULL.md §2/§6):
// the bus command surface for pin checking, housemode, zone triggering,
// config, and recordings enumeration, registered under the internal id
// "securitycontroller".
package controller

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agocontrol/security/pkg/alarm"
	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/config"
	"github.com/agocontrol/security/pkg/securitymap"
	"github.com/agocontrol/security/pkg/supervisor"
)

// InternalID is the bus identity SecurityController registers under.
const InternalID = "securitycontroller"

// Controller routes bus commands to the AlarmEngine and securitymap.
type Controller struct {
	store      *securitymap.Store
	engine     *alarm.Engine
	supervisor *supervisor.Supervisor
	cfg        *config.Config
	recDir     string
	logger     *slog.Logger
}

// New constructs a Controller. super is used to launch a worker immediately
// when addtimelapse/addmotion persists a newly enabled config, rather than
// waiting for the next process restart. recDir is the recordings directory
// workers write into, enumerated by gettimelapses/getmotions.
func New(store *securitymap.Store, engine *alarm.Engine, super *supervisor.Supervisor, cfg *config.Config, recDir string, logger *slog.Logger) *Controller {
	return &Controller{
		store:      store,
		engine:     engine,
		supervisor: super,
		cfg:        cfg,
		recDir:     recDir,
		logger:     logger.With("component", "controller.Controller"),
	}
}

// Register exposes the controller as InternalID's command handler on conn.
func (c *Controller) Register(conn bus.Conn) error {
	return conn.RegisterDevice(InternalID, c.Handle)
}

// Handle dispatches one bus command, per SPEC_FULL.md §6's command list.
func (c *Controller) Handle(ctx context.Context, command string, content bus.Content) bus.Response {
	switch command {
	case "sethousemode":
		return c.setHousemode(content)
	case "gethousemode":
		return c.getHousemode()
	case "triggerzone":
		return c.triggerZone(content)
	case "cancelalarm":
		return c.cancelAlarm(content)
	case "getconfig":
		return c.getConfig()
	case "setconfig":
		return c.setConfig(content)
	case "checkpin":
		return c.checkPin(content)
	case "setpin":
		return c.setPin(content)
	case "getalarmstate":
		return c.getAlarmState()
	case "addtimelapse":
		return c.addTimelapse(content)
	case "gettimelapses":
		return c.getTimelapses()
	case "addmotion":
		return c.addMotion(content)
	case "getmotions":
		return c.getMotions()
	case "getrecordingsconfig":
		return c.getRecordingsConfig()
	case "setrecordingsconfig":
		return c.setRecordingsConfig(content)
	default:
		return bus.Error(404, "unknown-command")
	}
}

func (c *Controller) pinMatches(content bus.Content) bool {
	pin, _ := content["pin"].(string)
	return c.cfg.Security.Matches(pin)
}

func (c *Controller) setHousemode(content bus.Content) bus.Response {
	if !c.pinMatches(content) {
		return bus.Error(403, "invalid pin")
	}
	housemode, _ := content["housemode"].(string)
	if housemode == "" {
		return bus.Error(400, "housemode required")
	}
	if err := c.engine.ChangeHousemode(housemode); err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(nil)
}

func (c *Controller) getHousemode() bus.Response {
	var hm string
	c.store.View(func(doc *securitymap.Document) { hm = doc.Housemode })
	return bus.Success(bus.Content{"housemode": hm})
}

func (c *Controller) triggerZone(content bus.Content) bus.Response {
	zone, _ := content["zone"].(string)
	if zone == "" {
		return bus.Error(400, "zone required")
	}
	var hm string
	c.store.View(func(doc *securitymap.Document) { hm = doc.Housemode })

	status, err := c.engine.TriggerZone(zone, hm)
	if err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(bus.Content{"status": status.String()})
}

func (c *Controller) cancelAlarm(content bus.Content) bus.Response {
	if !c.pinMatches(content) {
		return bus.Error(403, "invalid pin")
	}
	if err := c.engine.CancelActive(); err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(nil)
}

func (c *Controller) getConfig() bus.Response {
	var doc securitymap.Document
	c.store.View(func(d *securitymap.Document) { doc = *d })
	return bus.Success(bus.Content{
		"config":           doc.Config,
		"armedMessage":     doc.ArmedMessage,
		"disarmedMessage":  doc.DisarmedMessage,
		"defaultHousemode": doc.DefaultHousemode,
	})
}

func (c *Controller) setConfig(content bus.Content) bus.Response {
	if !c.pinMatches(content) {
		return bus.Error(403, "invalid pin")
	}

	cfg, ok := content["config"].(map[string][]securitymap.Zone)
	if !ok {
		return bus.Error(400, "invalid config payload")
	}

	err := c.store.Mutate(func(doc *securitymap.Document) error {
		doc.Config = cfg
		if v, ok := content["armedMessage"].(string); ok {
			doc.ArmedMessage = v
		}
		if v, ok := content["disarmedMessage"].(string); ok {
			doc.DisarmedMessage = v
		}
		if v, ok := content["defaultHousemode"].(string); ok {
			doc.DefaultHousemode = v
		}
		return nil
	})
	if err != nil {
		return bus.Error(500, err.Error())
	}

	c.engine.RebuildIndex()
	return bus.Success(nil)
}

func (c *Controller) checkPin(content bus.Content) bus.Response {
	if !c.pinMatches(content) {
		return bus.Error(403, "invalid pin")
	}
	return bus.Success(nil)
}

func (c *Controller) setPin(content bus.Content) bus.Response {
	if !c.pinMatches(content) {
		return bus.Error(403, "invalid pin")
	}
	newPin, _ := content["newpin"].(string)
	if newPin == "" {
		return bus.Error(400, "newpin required")
	}
	c.cfg.Security.Pin = newPin
	return bus.Success(nil)
}

func (c *Controller) getAlarmState() bus.Response {
	zone, housemode, sounding, active := c.engine.CurrentZone()
	return bus.Success(bus.Content{
		"active":    active,
		"sounding":  sounding,
		"zone":      zone,
		"housemode": housemode,
	})
}

func (c *Controller) addTimelapse(content bus.Content) bus.Response {
	cfg := securitymap.TimelapseConfig{
		URI:     stringField(content, "uri"),
		FPS:     intField(content, "fps"),
		Codec:   stringField(content, "codec"),
		Enabled: boolField(content, "enabled"),
		Name:    stringField(content, "name"),
	}
	if cfg.URI == "" {
		return bus.Error(400, "uri required")
	}

	id := uuid.NewString()
	err := c.store.Mutate(func(doc *securitymap.Document) error {
		doc.Timelapses[id] = cfg
		return nil
	})
	if err != nil {
		return bus.Error(500, err.Error())
	}
	if c.supervisor != nil {
		c.supervisor.LaunchTimelapse(id, cfg)
	}
	return bus.Success(bus.Content{"id": id})
}

// getTimelapses mirrors the original gettimelapses: it enumerates recorded
// timelapse artifacts (getRecordings("timelapse_")) rather than the config
// map, per SPEC_FULL.md §2's recordings-enumeration responsibility.
func (c *Controller) getTimelapses() bus.Response {
	recordings, err := c.getRecordings("timelapse_")
	if err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(bus.Content{"timelapses": recordings})
}

func (c *Controller) addMotion(content bus.Content) bus.Response {
	cfg := securitymap.MotionConfig{
		URI:            stringField(content, "uri"),
		Sensitivity:    intField(content, "sensitivity"),
		Deviation:      intField(content, "deviation"),
		BufferDuration: intField(content, "bufferduration"),
		OnDuration:     intField(content, "onduration"),
		RecordDuration: intField(content, "recordduration"),
		Enabled:        boolField(content, "enabled"),
		Name:           stringField(content, "name"),
	}
	if cfg.URI == "" {
		return bus.Error(400, "uri required")
	}
	cfg.NormalizeDurations()

	id := uuid.NewString()
	err := c.store.Mutate(func(doc *securitymap.Document) error {
		doc.Motions[id] = cfg
		return nil
	})
	if err != nil {
		return bus.Error(500, err.Error())
	}
	if c.supervisor != nil {
		c.supervisor.LaunchMotion(id, cfg)
	}
	return bus.Success(bus.Content{"id": id})
}

// getMotions mirrors the original getmotions: it enumerates recorded motion
// artifacts (getRecordings("motion_")) rather than the config map, per
// SPEC_FULL.md §2's recordings-enumeration responsibility.
func (c *Controller) getMotions() bus.Response {
	recordings, err := c.getRecordings("motion_")
	if err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(bus.Content{"motions": recordings})
}

// getRecordings lists recDir's filenames starting with prefix, sorted, per
// the original getRecordings helper shared by gettimelapses/getmotions.
func (c *Controller) getRecordings(prefix string) ([]string, error) {
	entries, err := os.ReadDir(c.recDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, filepath.Join(c.recDir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

func (c *Controller) getRecordingsConfig() bus.Response {
	var rc securitymap.RecordingsConfig
	c.store.View(func(doc *securitymap.Document) { rc = doc.Recordings })
	return bus.Success(bus.Content{"timelapseslifetime": rc.TimelapsesLifetime, "motionslifetime": rc.MotionsLifetime})
}

func (c *Controller) setRecordingsConfig(content bus.Content) bus.Response {
	err := c.store.Mutate(func(doc *securitymap.Document) error {
		if v, ok := content["timelapseslifetime"].(int); ok {
			doc.Recordings.TimelapsesLifetime = v
		}
		if v, ok := content["motionslifetime"].(int); ok {
			doc.Recordings.MotionsLifetime = v
		}
		return nil
	})
	if err != nil {
		return bus.Error(500, err.Error())
	}
	return bus.Success(nil)
}

func stringField(content bus.Content, key string) string {
	v, _ := content[key].(string)
	return v
}

func intField(content bus.Content, key string) int {
	v, _ := content[key].(int)
	return v
}

func boolField(content bus.Content, key string) bool {
	v, _ := content[key].(bool)
	return v
}
