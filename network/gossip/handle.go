package gossip

import (
	"sync"

	ma "github.com/multiformats/go-multiaddr"
)

// Handle is the single exclusively held wrapper around the gossip session.
// Every operation takes the one mutex, so at most one logical operation
// touches the session at a time and partial interleavings cannot be
// observed. The Handle lives for the whole process; it is shared by the
// gossip loop and by any producer that needs to dial, listen, subscribe or
// publish.
type Handle struct {
	mu      sync.Mutex
	session Session
}

func NewHandle(session Session) *Handle {
	return &Handle{session: session}
}

// Listen binds the gossip endpoint. Failure means the node cannot serve;
// the caller aborts startup.
func (h *Handle) Listen(addr ma.Multiaddr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.session.Listen(addr); err != nil {
		return err
	}
	log.Infof("gossip endpoint bound to %s", addr)
	return nil
}

// DialPeers dials each static peer independently. A failed dial is logged
// and skipped, never aborting the batch; this layer issues no retries.
func (h *Handle) DialPeers(addrs []ma.Multiaddr) {
	for _, addr := range addrs {
		h.mu.Lock()
		err := h.session.Dial(addr)
		h.mu.Unlock()
		if err != nil {
			log.Errorf("dial %s: %v", addr, err)
			continue
		}
		log.Debugf("dialed peer %s", addr)
	}
}

// Subscribe idempotently registers interest in a topic.
func (h *Handle) Subscribe(topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Subscribe(topic)
}

// Publish broadcasts payload under the same exclusive access as every
// other Handle operation and returns the message identifier.
func (h *Handle) Publish(topic string, payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Publish(topic, payload)
}

// Events yields the session's inbound protocol events. Receiving from the
// stream does not hold the lock; only operations do.
func (h *Handle) Events() <-chan Event {
	return h.session.Events()
}
