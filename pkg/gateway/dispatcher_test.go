package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agocontrol/security/pkg/bus"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *bus.Memory, *calls) {
	t.Helper()
	conn := bus.NewMemory()
	q := NewQueue(600, slog.New(slog.NewTextHandler(io.Discard, nil)))
	q.Start()
	t.Cleanup(q.Stop)

	c := &calls{}
	conn.RegisterDevice("G1", func(ctx context.Context, command string, content bus.Content) bus.Response {
		c.record(command, content)
		return bus.Success(nil)
	})

	return NewDispatcher(conn, q, slog.New(slog.NewTextHandler(io.Discard, nil))), conn, c
}

type calls struct {
	cmd []string
}

func (c *calls) record(command string, content bus.Content) {
	c.cmd = append(c.cmd, command)
}

func TestSendAlarmSMSFanOut(t *testing.T) {
	d, _, c := newTestDispatcher(t)
	d.SetTable(Table{"G1": "smsgateway"})
	d.SetContacts(Contacts{Phone: "+1"})

	if err := d.SendAlarm(PriorityHigh, "perimeter", []string{"G1"}, "Alarm armed"); err != nil {
		t.Fatalf("SendAlarm error: %v", err)
	}

	waitFor(t, func() bool { return len(c.cmd) == 1 })
	if c.cmd[0] != "sendsms" {
		t.Errorf("command = %q, want sendsms", c.cmd[0])
	}
}

func TestSendAlarmSMTPSuppressedWithoutEmail(t *testing.T) {
	d, _, c := newTestDispatcher(t)
	d.SetTable(Table{"G1": "smtpgateway"})
	d.SetContacts(Contacts{Phone: "+1"}) // phone set, email not — must still suppress

	if err := d.SendAlarm(PriorityHigh, "perimeter", []string{"G1"}, "Alarm armed"); err != nil {
		t.Fatalf("SendAlarm error: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if len(c.cmd) != 0 {
		t.Errorf("smtp send fired without an email contact: %v", c.cmd)
	}
}

func TestSendAlarmSMTPSendsWithEmail(t *testing.T) {
	d, _, c := newTestDispatcher(t)
	d.SetTable(Table{"G1": "smtpgateway"})
	d.SetContacts(Contacts{Email: "a@b.com"})

	if err := d.SendAlarm(PriorityHigh, "perimeter", []string{"G1"}, "Alarm armed"); err != nil {
		t.Fatalf("SendAlarm error: %v", err)
	}

	waitFor(t, func() bool { return len(c.cmd) == 1 })
	if c.cmd[0] != "sendmail" {
		t.Errorf("command = %q, want sendmail", c.cmd[0])
	}
}

func TestSendAlarmSwitchFallbackForUnknownUUID(t *testing.T) {
	d, conn, c := newTestDispatcher(t)
	conn.RegisterDevice("A1", func(ctx context.Context, command string, content bus.Content) bus.Response {
		c.record(command, content)
		return bus.Success(nil)
	})
	d.SetTable(Table{}) // A1 has no gateway table entry

	if err := d.SendAlarm(PriorityHigh, "perimeter", []string{"A1"}, "Alarm armed"); err != nil {
		t.Fatalf("SendAlarm error: %v", err)
	}

	waitFor(t, func() bool { return len(c.cmd) == 1 })
	if c.cmd[0] != "on" {
		t.Errorf("command = %q, want on", c.cmd[0])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
