package bus

import (
	"context"
	"testing"
)

func TestMemoryCallRoutesToRegisteredHandler(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var gotCommand string
	m.RegisterDevice("securitycontroller", func(ctx context.Context, command string, content Content) Response {
		gotCommand = command
		return Success(Content{"echo": content["zone"]})
	})

	resp, err := m.Call(context.Background(), "securitycontroller", "triggerzone", Content{"zone": "perimeter"})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if gotCommand != "triggerzone" {
		t.Errorf("handler saw command %q, want triggerzone", gotCommand)
	}
	if resp.Result != "success" || resp.Data["echo"] != "perimeter" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestMemoryCallUnknownDevice(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	if _, err := m.Call(context.Background(), "nope", "ping", nil); err != ErrUnknownDevice {
		t.Errorf("Call error = %v, want ErrUnknownDevice", err)
	}
}

func TestMemoryPublishFansOutToAllSubscribers(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var a, b int
	m.Subscribe("event.security.intruderalert", func(ctx context.Context, subject string, content Content) { a++ })
	m.Subscribe("event.security.intruderalert", func(ctx context.Context, subject string, content Content) { b++ })
	m.Subscribe("event.security.alarmcancelled", func(ctx context.Context, subject string, content Content) { t.Error("unrelated subject fired") })

	m.Publish(context.Background(), "event.security.intruderalert", Content{"zone": "perimeter"})

	if a != 1 || b != 1 {
		t.Errorf("subscriber counts = %d, %d, want 1, 1", a, b)
	}
}
