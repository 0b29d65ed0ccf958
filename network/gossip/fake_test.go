package gossip

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

// fakeSession is an instrumented in-memory Session. Every operation tracks
// how many operations are inside the session at once, so tests can assert
// that the Handle never lets two interleave.
type fakeSession struct {
	events chan Event

	occupancy int32
	maxSeen   int32

	mu         sync.Mutex
	published  []Order
	dialed     []string
	subscribed []string
	listens    []string

	publishErr error
	failDial   map[string]bool
	listenErr  error
}

var _ Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 128)}
}

// enter marks an operation in flight and records the highest concurrent
// occupancy ever observed. The short sleep widens the window in which an
// unserialized second caller would be caught.
func (f *fakeSession) enter() {
	n := atomic.AddInt32(&f.occupancy, 1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, n) {
			break
		}
	}
	time.Sleep(200 * time.Microsecond)
}

func (f *fakeSession) exit() {
	atomic.AddInt32(&f.occupancy, -1)
}

func (f *fakeSession) maxOccupancy() int32 {
	return atomic.LoadInt32(&f.maxSeen)
}

func (f *fakeSession) Listen(addr ma.Multiaddr) error {
	f.enter()
	defer f.exit()
	if f.listenErr != nil {
		return f.listenErr
	}
	f.mu.Lock()
	f.listens = append(f.listens, addr.String())
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Dial(addr ma.Multiaddr) error {
	f.enter()
	defer f.exit()
	if f.failDial[addr.String()] {
		return errFakeDial
	}
	f.mu.Lock()
	f.dialed = append(f.dialed, addr.String())
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Subscribe(topic string) error {
	f.enter()
	defer f.exit()
	f.mu.Lock()
	f.subscribed = append(f.subscribed, topic)
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Publish(topic string, payload []byte) ([]byte, error) {
	f.enter()
	defer f.exit()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.mu.Lock()
	f.published = append(f.published, Order{Topic: topic, Payload: payload})
	f.mu.Unlock()
	id := NewEventID(payload)
	return id.Bytes(), nil
}

func (f *fakeSession) Events() <-chan Event {
	return f.events
}

func (f *fakeSession) Close() error {
	close(f.events)
	return nil
}

func (f *fakeSession) publishedOrders() []Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Order, len(f.published))
	copy(out, f.published)
	return out
}

var errFakeDial = errors.New("fake dial refused")

func mustMultiaddr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	addr, err := ma.NewMultiaddr(s)
	require.NoError(t, err)
	return addr
}
