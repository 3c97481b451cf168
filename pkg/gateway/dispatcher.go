// Package gateway implements GatewayDispatcher (SPEC_FULL.md §4.8): it maps
// notification-device UUIDs to gateway kinds, formats outbound messages per
// kind, and paces sends through a rate-limited priority Queue so a burst of
// simultaneous alarm fan-outs doesn't overrun a downstream gateway's own
// rate limit.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agocontrol/security/pkg/bus"
)

// Contacts holds the default recipient addresses sms/smtp sends fall back
// to. They change only through SetContacts; cmd/securityd sets them once at
// startup from system.email/system.phone and does not refresh them.
type Contacts struct {
	Email string
	Phone string
}

// Table maps a gateway-device UUID to its gateway kind, per SPEC_FULL.md
// §3's AlertGatewayTable.
type Table map[string]string

// Dispatcher sends alarm notifications to every gateway bound to a zone.
type Dispatcher struct {
	conn  bus.Conn
	queue *Queue
	log   *slog.Logger

	mu       sync.RWMutex
	table    Table
	contacts Contacts
}

// NewDispatcher constructs a Dispatcher sending through conn, pacing sends
// via queue (already Start()ed by the caller).
func NewDispatcher(conn bus.Conn, queue *Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		conn:  conn,
		queue: queue,
		log:   logger.With("component", "gateway.Dispatcher"),
		table: make(Table),
	}
}

// SetTable replaces the AlertGatewayTable, e.g. after an inventory refresh.
func (d *Dispatcher) SetTable(table Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table = table
}

// SetContacts replaces the default contact addresses.
func (d *Dispatcher) SetContacts(c Contacts) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = c
}

// SendAlarm examines the AlertGatewayTable for every gateway UUID bound to
// zone's alarms (passed as uuids) and dispatches message to each, at the
// given priority. It returns the first error encountered but keeps sending
// to the remaining gateways.
func (d *Dispatcher) SendAlarm(priority Priority, zone string, uuids []string, message string) error {
	d.mu.RLock()
	table := d.table
	contacts := d.contacts
	d.mu.RUnlock()

	var firstErr error
	for _, uuid := range uuids {
		kind, ok := table[uuid]
		if !ok {
			// Fixed: the original sendAlarm falls back to treating the uuid
			// as a plain alarm/switch device (command "on") when it isn't
			// in the AlertGatewayTable, rather than dropping it.
			if err := d.sendSwitch(priority, uuid); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := d.send(priority, uuid, kind, zone, message, contacts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sendSwitch turns on a plain alarm/switch device that has no gateway-kind
// entry in the AlertGatewayTable.
func (d *Dispatcher) sendSwitch(priority Priority, uuid string) error {
	content := bus.Content{"command": "on", "uuid": uuid}
	return d.queue.Submit(priority, uuid, func() error {
		_, err := d.conn.Call(context.Background(), uuid, "on", content)
		return err
	})
}

func (d *Dispatcher) send(priority Priority, uuid, kind, zone, message string, contacts Contacts) error {
	text := fmt.Sprintf("%s[%s]", message, zone)

	var command string
	content := bus.Content{"uuid": uuid}

	switch kind {
	case "smsgateway":
		if contacts.Phone == "" {
			d.log.Warn("sms gateway suppressed: no phone contact", "uuid", uuid)
			return nil
		}
		command = "sendsms"
		content["to"] = contacts.Phone
		content["text"] = text

	case "smtpgateway":
		// Fixed: the original source checked phone.size()>0 for this
		// branch too; it must check email.
		if contacts.Email == "" {
			d.log.Warn("smtp gateway suppressed: no email contact", "uuid", uuid)
			return nil
		}
		command = "sendmail"
		content["to"] = contacts.Email
		content["subject"] = "Agocontrol security"
		content["body"] = text

	case "twittergateway":
		command = "sendtweet"
		content["tweet"] = text

	case "pushgateway":
		command = "sendpush"
		content["message"] = text

	default:
		// kind is present in the table but not one of the recognized
		// gateway kinds above — distinct from the not-in-table case,
		// which is handled by sendSwitch in SendAlarm.
		d.log.Warn("unknown gateway kind", "uuid", uuid, "kind", kind)
		return nil
	}

	return d.queue.Submit(priority, uuid, func() error {
		_, err := d.conn.Call(context.Background(), uuid, command, content)
		return err
	})
}
