// Package securitymap implements the persisted securitymap.json document
// (SPEC_FULL.md §3) and its atomic-write discipline.
package securitymap

// Zone is one arm-delay-and-recipients record within a housemode's config.
type Zone struct {
	Zone    string   `json:"zone"`
	Delay   int16    `json:"delay"`
	Devices []string `json:"devices"`
	Alarms  []string `json:"alarms"`
}

// Inactive reports whether this zone is a no-op trigger target in its
// housemode (delay < 0).
func (z Zone) Inactive() bool {
	return z.Delay < 0
}

// HasDevice reports whether uuid is one of this zone's arming devices.
func (z Zone) HasDevice(uuid string) bool {
	for _, d := range z.Devices {
		if d == uuid {
			return true
		}
	}
	return false
}

// TimelapseConfig describes one configured timelapse recorder.
type TimelapseConfig struct {
	Name    string `json:"name"`
	URI     string `json:"uri"`
	FPS     int    `json:"fps"`
	Codec   string `json:"codec"`
	Enabled bool   `json:"enabled"`
}

// MotionConfig describes one configured motion detector.
//
// Invariant: BufferDuration < RecordDuration < OnDuration. NormalizeDurations
// repairs violations by decrementing the larger value, per SPEC_FULL.md §3.
type MotionConfig struct {
	Name           string `json:"name"`
	URI            string `json:"uri"`
	Sensitivity    int    `json:"sensitivity"`
	Deviation      int    `json:"deviation"`
	BufferDuration int    `json:"bufferduration"`
	OnDuration     int    `json:"onduration"`
	RecordDuration int    `json:"recordduration"`
	Enabled        bool   `json:"enabled"`
}

// NormalizeDurations repairs BufferDuration < RecordDuration < OnDuration
// violations in place by decrementing the larger offending value, same as
// the original addmotion (recordduration = onduration-1, then
// bufferduration = recordduration-1). OnDuration is treated as given.
func (m *MotionConfig) NormalizeDurations() {
	if m.RecordDuration >= m.OnDuration {
		m.RecordDuration = m.OnDuration - 1
	}
	if m.BufferDuration >= m.RecordDuration {
		m.BufferDuration = m.RecordDuration - 1
	}
}

// RecordingsConfig holds retention settings for recorded artifacts.
type RecordingsConfig struct {
	TimelapsesLifetime int `json:"timelapseslifetime"`
	MotionsLifetime    int `json:"motionslifetime"`
}

// Document is the full persisted securitymap.json document.
type Document struct {
	Housemode        string                      `json:"housemode"`
	DefaultHousemode string                      `json:"defaultHousemode"`
	ArmedMessage     string                      `json:"armedMessage"`
	DisarmedMessage  string                      `json:"disarmedMessage"`
	Config           map[string][]Zone           `json:"config"`
	Timelapses       map[string]TimelapseConfig  `json:"timelapses"`
	Motions          map[string]MotionConfig     `json:"motions"`
	Recordings       RecordingsConfig            `json:"recordings"`
}

// Default returns a Document with the defaults mandated by §3/§6: empty
// housemode, "Alarm armed"/"Alarm disarmed" messages, 30-day recording
// lifetimes, and empty maps ready to populate.
func Default() *Document {
	return &Document{
		ArmedMessage:    "Alarm armed",
		DisarmedMessage: "Alarm disarmed",
		Config:          make(map[string][]Zone),
		Timelapses:      make(map[string]TimelapseConfig),
		Motions:         make(map[string]MotionConfig),
		Recordings:      RecordingsConfig{TimelapsesLifetime: 30, MotionsLifetime: 30},
	}
}

// FindZone scans config[housemode] for the first zone containing uuid among
// its devices — the linear scan described in §4.7's eventHandler. Returns
// ok=false if housemode is unset or no zone matches.
func (d *Document) FindZone(housemode, uuid string) (Zone, bool) {
	for _, z := range d.Config[housemode] {
		if z.HasDevice(uuid) {
			return z, true
		}
	}
	return Zone{}, false
}

// ZoneByName returns the named zone within housemode.
func (d *Document) ZoneByName(housemode, zone string) (Zone, bool) {
	for _, z := range d.Config[housemode] {
		if z.Zone == zone {
			return z, true
		}
	}
	return Zone{}, false
}
