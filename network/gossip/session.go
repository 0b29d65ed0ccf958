package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/crypto/blake2b"

	vscrypto "github.com/w3f-grants-archive/validated-streams/crypto"
)

var log = logging.Logger("gossip")

const eventBufferSize = 64

// Event is an inbound protocol occurrence yielded by a Session.
type Event interface {
	isEvent()
}

// ListenAddrEvent reports a newly bound listen address.
type ListenAddrEvent struct {
	Addr ma.Multiaddr
}

// SubscribedEvent reports a remote peer joining a topic we subscribe to.
type SubscribedEvent struct {
	Peer  peer.ID
	Topic string
}

// MessageEvent carries an inbound message on a subscribed topic. Data is
// untrusted peer input.
type MessageEvent struct {
	From  peer.ID
	Topic string
	Data  []byte
}

func (ListenAddrEvent) isEvent() {}
func (SubscribedEvent) isEvent() {}
func (MessageEvent) isEvent()    {}

// Session is the raw network capability beneath the Handle: an
// authenticated, multiplexed, dialable channel plus the signed-message
// broadcast behavior. Implementations are not required to be safe for
// concurrent use; the Handle serializes access.
type Session interface {
	Listen(addr ma.Multiaddr) error
	Dial(addr ma.Multiaddr) error
	Subscribe(topic string) error
	Publish(topic string, payload []byte) ([]byte, error)
	Events() <-chan Event
	Close() error
}

// NetSession is the libp2p-backed Session: a TCP host with noise security
// and a GossipSub router that signs every published message and strictly
// verifies inbound ones, independently of any signature embedded in the
// payload itself.
type NetSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	host    host.Host
	ps      *pubsub.PubSub
	metrics *Metrics

	tmu    sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	events chan Event
}

var _ Session = (*NetSession)(nil)

// NewSession builds the transport and gossip behavior bound to this node's
// identity. Any construction failure is returned with partially built
// resources released; the caller treats it as fatal.
func NewSession(ctx context.Context, identitySeed []byte, metrics *Metrics) (*NetSession, error) {
	priv, err := identityKey(identitySeed)
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.NoListenAddrs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %v", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
	)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create gossipsub router: %v", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &NetSession{
		ctx:     sctx,
		cancel:  cancel,
		host:    h,
		ps:      ps,
		metrics: metrics,
		topics:  make(map[string]*pubsub.Topic),
		subs:    make(map[string]*pubsub.Subscription),
		events:  make(chan Event, eventBufferSize),
	}
	h.Network().Notify(&network.NotifyBundle{
		ListenF: func(_ network.Network, addr ma.Multiaddr) {
			s.pushEvent(ListenAddrEvent{Addr: addr})
		},
	})

	log.Infof("gossip session ready, peer id %s", h.ID())
	return s, nil
}

// identityKey derives the node identity from a 32-byte seed when one is
// configured, so deployments can pin their peer IDs, and generates a fresh
// random key otherwise.
func identityKey(seed []byte) (libp2pcrypto.PrivKey, error) {
	if len(seed) == 0 {
		priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate identity key: %v", err)
		}
		return priv, nil
	}
	sk, err := vscrypto.PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid identity seed: %v", err)
	}
	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(sk.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity key: %v", err)
	}
	return priv, nil
}

func (s *NetSession) pushEvent(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Listen binds a gossip listen address. Bound addresses surface as
// ListenAddrEvents.
func (s *NetSession) Listen(addr ma.Multiaddr) error {
	if err := s.host.Network().Listen(addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %v", addr, err)
	}
	return nil
}

// Dial connects to one static peer. The address must carry a /p2p/
// component naming the peer. No retries here; reconnection is the
// protocol's own business.
func (s *NetSession) Dial(addr ma.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		s.metrics.IncrementFailedDials()
		return fmt.Errorf("peer address %s: %v", addr, err)
	}
	if err := s.host.Connect(s.ctx, *info); err != nil {
		s.metrics.IncrementFailedDials()
		return fmt.Errorf("failed to dial %s: %v", info.ID, err)
	}
	s.metrics.IncrementPeersDialed()
	return nil
}

// Subscribe joins a topic and starts delivering its messages and
// subscription acknowledgments as Events. Subscribing twice is a no-op.
func (s *NetSession) Subscribe(topicName string) error {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	if _, ok := s.subs[topicName]; ok {
		return nil
	}
	topic, err := s.joinLocked(topicName)
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", topicName, err)
	}
	s.subs[topicName] = sub

	handler, err := topic.EventHandler()
	if err != nil {
		log.Warnf("no subscription acknowledgments for %s: %v", topicName, err)
	} else {
		go s.ackLoop(topicName, handler)
	}
	go s.readLoop(topicName, sub)
	return nil
}

func (s *NetSession) joinLocked(name string) (*pubsub.Topic, error) {
	if t, ok := s.topics[name]; ok {
		return t, nil
	}
	t, err := s.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %v", name, err)
	}
	s.topics[name] = t
	return t, nil
}

// Publish broadcasts payload on the topic and returns the message digest
// used as its local identifier.
func (s *NetSession) Publish(topicName string, payload []byte) ([]byte, error) {
	s.tmu.Lock()
	topic, err := s.joinLocked(topicName)
	s.tmu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := topic.Publish(s.ctx, payload); err != nil {
		s.metrics.IncrementPublishFailures()
		return nil, fmt.Errorf("failed to publish to %s: %v", topicName, err)
	}
	s.metrics.IncrementMessagesPublished()
	id := blake2b.Sum256(payload)
	return id[:], nil
}

// readLoop pumps one subscription into the merged event stream, dropping
// our own publishes echoed back by the router.
func (s *NetSession) readLoop(topicName string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(s.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}
		s.metrics.IncrementMessagesReceived()
		s.pushEvent(MessageEvent{From: msg.ReceivedFrom, Topic: topicName, Data: msg.Data})
	}
}

// ackLoop surfaces remote peers joining the topic mesh.
func (s *NetSession) ackLoop(topicName string, handler *pubsub.TopicEventHandler) {
	defer handler.Cancel()
	for {
		ev, err := handler.NextPeerEvent(s.ctx)
		if err != nil {
			return
		}
		if ev.Type == pubsub.PeerJoin {
			s.pushEvent(SubscribedEvent{Peer: ev.Peer, Topic: topicName})
		}
	}
}

// Events yields the merged inbound protocol event stream.
func (s *NetSession) Events() <-chan Event {
	return s.events
}

// Close tears the session down: pumps stop, subscriptions cancel, the host
// and its connections close.
func (s *NetSession) Close() error {
	s.cancel()
	s.tmu.Lock()
	for _, sub := range s.subs {
		sub.Cancel()
	}
	for _, t := range s.topics {
		_ = t.Close()
	}
	s.tmu.Unlock()
	return s.host.Close()
}

// HostID returns the node's derived peer identifier.
func (s *NetSession) HostID() peer.ID {
	return s.host.ID()
}

// ListenAddrs returns the currently bound listen addresses.
func (s *NetSession) ListenAddrs() []ma.Multiaddr {
	return s.host.Addrs()
}

// PeerCount returns the number of connected peers.
func (s *NetSession) PeerCount() int {
	return len(s.host.Network().Peers())
}
