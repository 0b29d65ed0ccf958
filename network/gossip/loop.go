package gossip

import (
	"context"
)

// WitnessHandler receives successfully decoded witnessed events. The
// gossip loop hands events off without awaiting the outcome; the handler
// owns its own error handling and backpressure.
type WitnessHandler interface {
	HandleWitnessedEvent(ctx context.Context, ev *WitnessedEvent) (string, error)
}

// Loop is the gossip concurrency core. Each iteration races the session's
// next inbound event against the next queued Order; whichever is ready
// first is processed while the other keeps waiting. Neither source is
// prioritized, so neither can starve the other.
type Loop struct {
	handle  *Handle
	orders  <-chan Order
	handler WitnessHandler
	metrics *Metrics
}

func NewLoop(handle *Handle, orders <-chan Order, handler WitnessHandler, metrics *Metrics) *Loop {
	return &Loop{
		handle:  handle,
		orders:  orders,
		handler: handler,
		metrics: metrics,
	}
}

// Run processes events and orders until the context ends or either source
// closes permanently, in which case it returns silently; there is no
// supervision or restart.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.handle.Events():
			if !ok {
				return
			}
			l.handleEvent(ctx, ev)
		case order, ok := <-l.orders:
			if !ok {
				return
			}
			l.publish(order)
		}
	}
}

// handleEvent deals with one inbound protocol occurrence. Message payloads
// are untrusted: a payload that fails to decode is logged and discarded,
// and must never end the loop.
func (l *Loop) handleEvent(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case ListenAddrEvent:
		log.Infof("listening on %s", ev.Addr)
	case SubscribedEvent:
		log.Debugf("peer %s subscribed to %s", ev.Peer, ev.Topic)
	case MessageEvent:
		witnessed, err := DecodeWitnessedEvent(ev.Data)
		if err != nil {
			l.metrics.IncrementDecodeFailures()
			log.Errorf("discarding malformed message from %s: %v", ev.From, err)
			return
		}
		// Fire and forget; the handler owns the outcome.
		go func() {
			_, _ = l.handler.HandleWitnessedEvent(ctx, witnessed)
		}()
	}
}

// publish executes one Order. Failures are logged and the Order dropped;
// retry policy, if any, belongs to the producer.
func (l *Loop) publish(order Order) {
	id, err := l.handle.Publish(order.Topic, order.Payload)
	if err != nil {
		log.Errorf("publish to %s failed: %v", order.Topic, err)
		return
	}
	log.Infof("gossiped message %x on %s", id, order.Topic)
}
