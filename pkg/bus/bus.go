// Package bus models the message-bus boundary SPEC_FULL.md §1 declares out
// of scope: the wire protocol and broker itself are never reimplemented
// here. Conn is the injection seam everything else programs against — a
// tiny in-process pub/sub + request/reply fake stands in for it in tests,
// the same way frame.Source stands in for camera transport.
package bus

import (
	"context"
	"fmt"
)

// Content is a bus message payload: free-form key/value fields, mirroring
// the JSON-object-shaped commands and events described in SPEC_FULL.md §6.
type Content map[string]any

// Response is the result of a Call, per SPEC_FULL.md §6: "Responses are
// {result: success|error, code?, message?, data?}."
type Response struct {
	Result  string  `json:"result"`
	Code    int     `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
	Data    Content `json:"data,omitempty"`
}

// Success builds a {result: success} response, optionally carrying data.
func Success(data Content) Response {
	return Response{Result: "success", Data: data}
}

// Error builds a {result: error} response.
func Error(code int, message string) Response {
	return Response{Result: "error", Code: code, Message: message}
}

// CommandHandler answers one bus command addressed to an internal id.
type CommandHandler func(ctx context.Context, command string, content Content) Response

// EventHandler observes one published event.
type EventHandler func(ctx context.Context, subject string, content Content)

// Conn is the subset of message-bus behavior this module depends on:
// registering a command handler under an internal id, publishing events,
// and subscribing to events by subject. Production wiring adapts this over
// the real broker client; tests use the in-memory Conn below.
type Conn interface {
	// RegisterDevice exposes handler as internalid's command responder.
	RegisterDevice(internalid string, handler CommandHandler) error
	// UnregisterDevice withdraws a previously registered handler.
	UnregisterDevice(internalid string)
	// Publish emits an event under subject.
	Publish(ctx context.Context, subject string, content Content) error
	// Subscribe registers handler for every Publish under subject.
	// Subscriptions are additive and are never individually torn down in
	// this module — only Close tears down all of them, matching the
	// lifetime of the long-running workers that use it.
	Subscribe(subject string, handler EventHandler) error
	// Call invokes internalid's registered handler with command/content.
	Call(ctx context.Context, internalid, command string, content Content) (Response, error)
	// Close releases the connection.
	Close() error
}

// ErrUnknownDevice is returned by Call when internalid has no registered
// handler.
var ErrUnknownDevice = fmt.Errorf("bus: unknown device")
