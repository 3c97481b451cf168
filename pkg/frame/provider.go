package frame

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Provider owns one capture session for a URI and multicasts frames to every
// subscribed Consumer. It is the sole producer; consumers never touch Source.
type Provider struct {
	uri    string
	source Source
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	consumers map[*Consumer]struct{}
	running   atomic.Bool
	width     int
	height    int
	fps       uint32
}

// NewProvider constructs a provider for uri, backed by source. It does not
// start the producer goroutine; call Start for that.
func NewProvider(uri string, source Source, logger *slog.Logger) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		uri:       uri,
		source:    source,
		logger:    logger.With("component", "frame.Provider", "uri", uri),
		ctx:       ctx,
		cancel:    cancel,
		consumers: make(map[*Consumer]struct{}),
	}
}

// Start opens the capture session and launches the producer goroutine.
func (p *Provider) Start() error {
	w, h, fps, err := p.source.Open(p.uri)
	if err != nil {
		return fmt.Errorf("open capture %q: %w", p.uri, err)
	}

	p.mu.Lock()
	p.width, p.height, p.fps = w, h, fps
	p.mu.Unlock()

	p.running.Store(true)
	p.wg.Add(1)
	go p.produce()

	p.logger.Info("provider started", "width", w, "height", h, "fps", fps)
	return nil
}

func (p *Provider) produce() {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("frame source panicked, provider stopping", "panic", r)
		}
		p.running.Store(false)
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		f, ok := p.source.Next()
		if !ok {
			p.logger.Warn("frame source closed")
			return
		}

		p.mu.Lock()
		for c := range p.consumers {
			c.push(f)
		}
		p.mu.Unlock()
	}
}

// Subscribe registers a new consumer. Consumers joining mid-stream receive
// frames from the next produced frame onward — no backfill.
func (p *Provider) Subscribe() *Consumer {
	c := newConsumer(defaultQueueDepth)
	p.mu.Lock()
	p.consumers[c] = struct{}{}
	p.mu.Unlock()
	p.logger.DebugContext(p.ctx, "consumer subscribed")
	return c
}

// Unsubscribe removes consumer and wakes any blocked Pop call.
func (p *Provider) Unsubscribe(c *Consumer) {
	p.mu.Lock()
	delete(p.consumers, c)
	p.mu.Unlock()
	c.close()
}

// Resolution returns the stream's reported width and height.
func (p *Provider) Resolution() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// FPS returns the stream's reported native frame rate.
func (p *Provider) FPS() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fps
}

// IsRunning reports whether the producer goroutine is active.
func (p *Provider) IsRunning() bool {
	return p.running.Load()
}

// Stop terminates the producer, wakes every consumer, and releases the
// capture session. Safe to call more than once.
func (p *Provider) Stop() {
	p.cancel()
	// Close the source before waiting: a producer blocked in Next only
	// returns once the source is closed.
	if err := p.source.Close(); err != nil {
		p.logger.Warn("error closing frame source", "error", err)
	}
	p.wg.Wait()

	p.mu.Lock()
	for c := range p.consumers {
		c.close()
	}
	p.consumers = make(map[*Consumer]struct{})
	p.mu.Unlock()

	p.running.Store(false)
}
