package bus

import (
	"context"
	"sync"
)

// Memory is an in-process Conn: command handlers are called directly, and
// published events fan out synchronously to every matching subscriber.
// Sufficient for SecurityController/AlarmEngine/worker tests and for a
// single-process deployment with no real broker.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	subs     map[string][]EventHandler
	closed   bool
}

// NewMemory constructs an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		handlers: make(map[string]CommandHandler),
		subs:     make(map[string][]EventHandler),
	}
}

func (m *Memory) RegisterDevice(internalid string, handler CommandHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[internalid] = handler
	return nil
}

func (m *Memory) UnregisterDevice(internalid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, internalid)
}

func (m *Memory) Publish(ctx context.Context, subject string, content Content) error {
	m.mu.RLock()
	handlers := append([]EventHandler(nil), m.subs[subject]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, subject, content)
	}
	return nil
}

func (m *Memory) Subscribe(subject string, handler EventHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[subject] = append(m.subs[subject], handler)
	return nil
}

func (m *Memory) Call(ctx context.Context, internalid, command string, content Content) (Response, error) {
	m.mu.RLock()
	handler, ok := m.handlers[internalid]
	m.mu.RUnlock()
	if !ok {
		return Response{}, ErrUnknownDevice
	}
	return handler(ctx, command, content), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.handlers = nil
	m.subs = nil
	return nil
}
