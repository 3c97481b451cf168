package controller

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agocontrol/security/pkg/alarm"
	"github.com/agocontrol/security/pkg/bus"
	"github.com/agocontrol/security/pkg/config"
	"github.com/agocontrol/security/pkg/frame"
	"github.com/agocontrol/security/pkg/gateway"
	"github.com/agocontrol/security/pkg/securitymap"
	"github.com/agocontrol/security/pkg/supervisor"
)

func newTestController(t *testing.T) (*Controller, *securitymap.Store) {
	t.Helper()

	store, err := securitymap.Load(filepath.Join(t.TempDir(), "securitymap.json"))
	if err != nil {
		t.Fatalf("Load store: %v", err)
	}
	if err := store.Mutate(func(doc *securitymap.Document) error {
		doc.Config["armed"] = []securitymap.Zone{
			{Zone: "perimeter", Delay: 1, Devices: []string{"sensor1"}, Alarms: []string{"G1"}},
		}
		return nil
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	conn := bus.NewMemory()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := gateway.NewQueue(6000, discard)
	q.Start()
	t.Cleanup(q.Stop)
	dispatcher := gateway.NewDispatcher(conn, q, discard)

	engine := alarm.NewEngine(store, conn, dispatcher, 10*time.Millisecond, discard)

	recDir := t.TempDir()
	registry := frame.NewRegistry(func(uri string) frame.Source {
		return frame.NewSynthetic(64, 48, 5)
	}, discard)
	super := supervisor.New(store, registry, conn, recDir, discard)
	t.Cleanup(registry.StopAll)
	t.Cleanup(super.StopAll)

	cfg := config.DefaultConfig()
	c := New(store, engine, super, cfg, recDir, discard)
	return c, store
}

func TestHandleUnknownCommand(t *testing.T) {
	c, _ := newTestController(t)
	resp := c.Handle(context.Background(), "frobnicate", nil)
	if resp.Result != "error" || resp.Message != "unknown-command" {
		t.Errorf("resp = %+v, want unknown-command error", resp)
	}
}

func TestCheckPinRejectsWrongPin(t *testing.T) {
	c, _ := newTestController(t)
	resp := c.Handle(context.Background(), "checkpin", bus.Content{"pin": "wrong"})
	if resp.Result != "error" {
		t.Errorf("resp = %+v, want error for wrong pin", resp)
	}
}

func TestCheckPinAcceptsDefaultPin(t *testing.T) {
	c, _ := newTestController(t)
	resp := c.Handle(context.Background(), "checkpin", bus.Content{"pin": "0815"})
	if resp.Result != "success" {
		t.Errorf("resp = %+v, want success for default pin", resp)
	}
}

func TestSetHousemodeThenGetHousemode(t *testing.T) {
	c, _ := newTestController(t)

	resp := c.Handle(context.Background(), "sethousemode", bus.Content{"pin": "0815", "housemode": "armed"})
	if resp.Result != "success" {
		t.Fatalf("sethousemode = %+v", resp)
	}

	resp = c.Handle(context.Background(), "gethousemode", nil)
	if resp.Result != "success" || resp.Data["housemode"] != "armed" {
		t.Errorf("gethousemode = %+v, want housemode=armed", resp)
	}
}

func TestTriggerZoneViaController(t *testing.T) {
	c, _ := newTestController(t)
	c.Handle(context.Background(), "sethousemode", bus.Content{"pin": "0815", "housemode": "armed"})

	resp := c.Handle(context.Background(), "triggerzone", bus.Content{"zone": "perimeter"})
	if resp.Result != "success" || resp.Data["status"] != "ok" {
		t.Errorf("triggerzone = %+v, want status=ok", resp)
	}
}

func TestAddTimelapsePersists(t *testing.T) {
	c, store := newTestController(t)

	resp := c.Handle(context.Background(), "addtimelapse", bus.Content{"uri": "rtsp://cam1", "fps": 5, "codec": "FMP4", "enabled": true})
	if resp.Result != "success" {
		t.Fatalf("addtimelapse = %+v", resp)
	}
	id, _ := resp.Data["id"].(string)
	if id == "" {
		t.Fatal("addtimelapse did not return an id")
	}

	store.View(func(doc *securitymap.Document) {
		if _, ok := doc.Timelapses[id]; !ok {
			t.Errorf("timelapse %s not persisted", id)
		}
	})
}

func TestAddTimelapseLaunchesWorkerImmediately(t *testing.T) {
	c, _ := newTestController(t)

	resp := c.Handle(context.Background(), "addtimelapse", bus.Content{"uri": "fake://cam1", "fps": 5, "codec": "FMP4", "enabled": true})
	if resp.Result != "success" {
		t.Fatalf("addtimelapse = %+v", resp)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(c.recDir)
		if err == nil && len(entries) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("enabled timelapse added via addtimelapse never produced a recording file")
}

func TestGetTimelapsesEnumeratesRecordings(t *testing.T) {
	c, _ := newTestController(t)

	if err := os.WriteFile(filepath.Join(c.recDir, "timelapse_cam1_20260730.avi"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(c.recDir, "motion_cam1_20260730_120000.avi"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	resp := c.Handle(context.Background(), "gettimelapses", nil)
	if resp.Result != "success" {
		t.Fatalf("gettimelapses = %+v", resp)
	}
	names, ok := resp.Data["timelapses"].([]string)
	if !ok || len(names) != 1 || filepath.Base(names[0]) != "timelapse_cam1_20260730.avi" {
		t.Errorf("timelapses = %+v, want exactly the timelapse_ file", resp.Data["timelapses"])
	}

	resp = c.Handle(context.Background(), "getmotions", nil)
	if resp.Result != "success" {
		t.Fatalf("getmotions = %+v", resp)
	}
	names, ok = resp.Data["motions"].([]string)
	if !ok || len(names) != 1 || filepath.Base(names[0]) != "motion_cam1_20260730_120000.avi" {
		t.Errorf("motions = %+v, want exactly the motion_ file", resp.Data["motions"])
	}
}
