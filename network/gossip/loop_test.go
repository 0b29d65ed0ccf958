package gossip

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*WitnessedEvent
}

func (h *recordingHandler) HandleWitnessedEvent(_ context.Context, ev *WitnessedEvent) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return "recorded", nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *recordingHandler) received() []*WitnessedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*WitnessedEvent, len(h.events))
	copy(out, h.events)
	return out
}

func startLoop(t *testing.T, session Session, orders <-chan Order, handler WitnessHandler) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(NewHandle(session), orders, handler, NewMetrics())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	return cancel, done
}

func TestLoopPublishesOrdersInSubmissionOrder(t *testing.T) {
	const n = 10
	fake := newFakeSession()
	outbox := NewOutbox(64, rate.Inf, 0)

	// All orders are queued before the loop starts, so delivery order is
	// exactly submission order.
	want := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("payload-%d", i))
		require.NoError(t, outbox.Publish(TopicWitnessedEvents, payload))
		want = append(want, Order{Topic: TopicWitnessedEvents, Payload: payload})
	}

	cancel, done := startLoop(t, fake, outbox.Orders(), &recordingHandler{})
	defer cancel()

	require.Eventually(t, func() bool {
		return len(fake.publishedOrders()) == n
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, want, fake.publishedOrders())

	cancel()
	<-done
}

func TestLoopSurvivesMalformedInbound(t *testing.T) {
	fake := newFakeSession()
	outbox := NewOutbox(16, rate.Inf, 0)
	handler := &recordingHandler{}

	first := WitnessedEvent{Signature: []byte{1}, PubKey: []byte{2}, EventID: NewEventID([]byte("a"))}
	second := WitnessedEvent{Signature: []byte{3}, PubKey: []byte{4}, EventID: NewEventID([]byte("b"))}
	firstWire, err := first.Encode()
	require.NoError(t, err)
	secondWire, err := second.Encode()
	require.NoError(t, err)

	cancel, done := startLoop(t, fake, outbox.Orders(), handler)
	defer cancel()

	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: firstWire}
	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: []byte("garbage bytes")}
	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: firstWire[:3]}
	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: secondWire}
	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: nil}

	require.Eventually(t, func() bool {
		return handler.count() == 2
	}, 2*time.Second, 5*time.Millisecond)
	// Hand-off happens on fresh goroutines, so only membership is ordered.
	require.ElementsMatch(t, []*WitnessedEvent{&first, &second}, handler.received())

	// The loop must still be serving after the malformed traffic.
	require.NoError(t, outbox.Publish(TopicWitnessedEvents, []byte("still alive")))
	require.Eventually(t, func() bool {
		return len(fake.publishedOrders()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 2, handler.count())

	cancel()
	<-done
}

func TestLoopLogsOtherEventsWithoutHandlerCalls(t *testing.T) {
	fake := newFakeSession()
	outbox := NewOutbox(4, rate.Inf, 0)
	handler := &recordingHandler{}

	cancel, done := startLoop(t, fake, outbox.Orders(), handler)
	defer cancel()

	addr := mustMultiaddr(t, "/ip4/127.0.0.1/tcp/7000")
	fake.events <- ListenAddrEvent{Addr: addr}
	fake.events <- SubscribedEvent{Topic: TopicWitnessedEvents}

	// Bookkeeping events are log-only; prove the loop is past them.
	require.NoError(t, outbox.Publish(TopicWitnessedEvents, []byte("after acks")))
	require.Eventually(t, func() bool {
		return len(fake.publishedOrders()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, handler.count())

	cancel()
	<-done
}

func TestLoopContinuesAfterPublishFailure(t *testing.T) {
	fake := newFakeSession()
	fake.publishErr = fmt.Errorf("mesh unavailable")
	outbox := NewOutbox(16, rate.Inf, 0)
	handler := &recordingHandler{}

	cancel, done := startLoop(t, fake, outbox.Orders(), handler)
	defer cancel()

	require.NoError(t, outbox.Publish(TopicWitnessedEvents, []byte("doomed")))

	// A failed publish is dropped, not retried, and the loop keeps going.
	ev := WitnessedEvent{Signature: []byte{9}, PubKey: []byte{8}, EventID: NewEventID([]byte("alive"))}
	wire, err := ev.Encode()
	require.NoError(t, err)
	fake.events <- MessageEvent{Topic: TopicWitnessedEvents, Data: wire}

	require.Eventually(t, func() bool {
		return handler.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Empty(t, fake.publishedOrders())

	cancel()
	<-done
}

func TestLoopEndsWhenOrderStreamCloses(t *testing.T) {
	fake := newFakeSession()
	outbox := NewOutbox(4, rate.Inf, 0)

	cancel, done := startLoop(t, fake, outbox.Orders(), &recordingHandler{})
	defer cancel()

	outbox.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not end after its order stream closed")
	}
}

func TestLoopEndsWhenSessionCloses(t *testing.T) {
	fake := newFakeSession()
	outbox := NewOutbox(4, rate.Inf, 0)

	cancel, done := startLoop(t, fake, outbox.Orders(), &recordingHandler{})
	defer cancel()

	require.NoError(t, fake.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not end after the event stream closed")
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	fake := newFakeSession()
	outbox := NewOutbox(4, rate.Inf, 0)

	cancel, done := startLoop(t, fake, outbox.Orders(), &recordingHandler{})
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
}
