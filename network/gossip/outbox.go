package gossip

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Order is a locally produced publish request: broadcast Payload on Topic.
// An Order is handed to the queue once and consumed exactly once by the
// gossip loop.
type Order struct {
	Topic   string
	Payload []byte
}

var (
	// ErrQueueFull means the outbound queue is at capacity. The caller may
	// retry; the queue itself never does.
	ErrQueueFull = errors.New("outbound queue is full")
	// ErrRateLimited means the caller exceeded the outbound publish rate.
	ErrRateLimited = errors.New("outbound publish rate exceeded")
	// ErrOutboxClosed means the order stream has ended.
	ErrOutboxClosed = errors.New("outbox is closed")
)

// Outbox carries Orders from any number of producers to the single gossip
// loop. Enqueueing never blocks: a full queue or an over-rate producer gets
// an error back instead of stalling against the network loop.
type Outbox struct {
	mu      sync.RWMutex
	orders  chan Order
	limiter *rate.Limiter
	closed  bool
}

// NewOutbox creates a queue holding up to capacity pending Orders, with
// producer-side rate limiting.
func NewOutbox(capacity int, limit rate.Limit, burst int) *Outbox {
	return &Outbox{
		orders:  make(chan Order, capacity),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Publish enqueues an Order for broadcast.
func (o *Outbox) Publish(topic string, payload []byte) error {
	if !o.limiter.Allow() {
		return ErrRateLimited
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.orders <- Order{Topic: topic, Payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Orders is the consumer side, read by exactly one gossip loop.
func (o *Outbox) Orders() <-chan Order {
	return o.orders
}

// Close ends the order stream. Pending Orders are still delivered; once the
// channel drains the gossip loop returns silently.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.orders)
}
