package gateway

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Priority orders outbound sends: countdown-expiry fan-outs must not wait
// behind disarm notifications, per SPEC_FULL.md §4.8.
type Priority int

const (
	PriorityHigh Priority = iota // alarm-triggered send
	PriorityLow                  // disarm notification send
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ticket is a queued outbound send with priority and response channel.
type ticket struct {
	priority  Priority
	gatewayID string
	timestamp time.Time
	response  chan error
	executeFn func() error
	index     int
}

type ticketHeap []*ticket

func (h ticketHeap) Len() int { return len(h) }

func (h ticketHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].timestamp.Before(h[j].timestamp)
}

func (h ticketHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *ticketHeap) Push(x interface{}) {
	n := len(*h)
	t := x.(*ticket)
	t.index = n
	*h = append(*h, t)
}

func (h *ticketHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[0 : n-1]
	return t
}

// Queue paces outbound gateway sends through a token-bucket limiter and a
// priority heap, so a burst of simultaneous alarm fan-outs doesn't overrun
// a downstream gateway's own rate limit — the same shape as the teacher's
// CommandQueue, applied to notification sends instead of Smart Device
// Management API calls.
type Queue struct {
	logger  *slog.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	heap ticketHeap

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue pacing sends to at most qpm per minute.
func NewQueue(qpm float64, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(qpm/60.0), 1),
		ctx:     ctx,
		cancel:  cancel,
		heap:    make(ticketHeap, 0),
	}
	heap.Init(&q.heap)
	return q
}

// Start begins processing queued sends.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.workerLoop()
}

// Stop gracefully shuts the queue down, rejecting pending sends.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	for q.heap.Len() > 0 {
		t := heap.Pop(&q.heap).(*ticket)
		select {
		case t.response <- context.Canceled:
		default:
		}
		close(t.response)
	}
	q.mu.Unlock()
}

// Submit enqueues executeFn at the given priority and blocks until it runs
// or the queue shuts down.
func (q *Queue) Submit(priority Priority, gatewayID string, executeFn func() error) error {
	t := &ticket{
		priority:  priority,
		gatewayID: gatewayID,
		timestamp: time.Now(),
		response:  make(chan error, 1),
		executeFn: executeFn,
	}

	q.mu.Lock()
	heap.Push(&q.heap, t)
	depth := q.heap.Len()
	q.mu.Unlock()

	q.logger.Debug("gateway send enqueued", "priority", priority, "gateway", gatewayID, "queue_depth", depth)

	select {
	case err := <-t.response:
		return err
	case <-q.ctx.Done():
		return context.Canceled
	}
}

func (q *Queue) workerLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNext()
		}
	}
}

func (q *Queue) processNext() {
	q.mu.Lock()
	if q.heap.Len() == 0 {
		q.mu.Unlock()
		return
	}
	t := heap.Pop(&q.heap).(*ticket)
	q.mu.Unlock()

	if err := q.limiter.Wait(q.ctx); err != nil {
		t.response <- err
		close(t.response)
		return
	}

	err := q.execute(t)
	q.logger.Info("gateway send executed", "priority", t.priority, "gateway", t.gatewayID, "success", err == nil)

	t.response <- err
	close(t.response)
}

func (q *Queue) execute(t *ticket) error {
	if t.executeFn == nil {
		return errors.New("execute function is nil")
	}

	ctx, cancel := context.WithTimeout(q.ctx, 30*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- t.executeFn()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("gateway send timeout after 30s: %w", ctx.Err())
	}
}
