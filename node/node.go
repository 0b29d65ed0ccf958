// Package node wires the gossip session, the validation service, the
// inclusion chain and the request endpoints into one runnable process.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/time/rate"

	"github.com/w3f-grants-archive/validated-streams/api"
	"github.com/w3f-grants-archive/validated-streams/chain"
	"github.com/w3f-grants-archive/validated-streams/config"
	"github.com/w3f-grants-archive/validated-streams/crypto/keyvault"
	"github.com/w3f-grants-archive/validated-streams/events"
	"github.com/w3f-grants-archive/validated-streams/network/gossip"
	"github.com/w3f-grants-archive/validated-streams/proofs"
)

var log = logging.Logger("node")

// Node is one validated-streams process. A node with a validator key in
// its keystore witnesses events; a node without one only reports that it
// is observing and does not start the network stack.
type Node struct {
	cfg *config.Config

	// Gossip layer
	vault   *keyvault.KeyVault
	session *gossip.NetSession
	handle  *gossip.Handle
	outbox  *gossip.Outbox
	metrics *gossip.Metrics

	// Proofs and inclusion
	store  proofs.Store
	ledger *chain.Ledger
	pool   *chain.MemPool

	// Validation service
	service *events.Service

	// Request endpoints
	validate *api.Server
	status   *api.StatusServer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates a node from its configuration. Nothing is started until
// Start is called.
func New(cfg *config.Config) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:     cfg,
		metrics: gossip.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start brings the node up. It returns nil both for a running validator
// and for an observer that found no keys; IsRunning tells the two apart.
// A failure to bind the gossip endpoint or the validation endpoint is
// fatal, a failed peer dial is not.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("node is already running")
	}

	// Give statically configured peers time to come up before dialing.
	log.Infof("waiting %s before dialing peers", n.cfg.Node.GracePeriod)
	select {
	case <-time.After(n.cfg.Node.GracePeriod):
	case <-n.ctx.Done():
		return n.ctx.Err()
	}

	vault, err := keyvault.Open(n.cfg.Node.KeystoreDir)
	if errors.Is(err, keyvault.ErrNoKeys) {
		log.Info("no validator keys in keystore, running in observer mode")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open keystore: %v", err)
	}
	n.vault = vault

	listenAddr, err := ma.NewMultiaddr(n.cfg.Network.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %v", n.cfg.Network.ListenAddr, err)
	}
	peers := make([]ma.Multiaddr, 0, len(n.cfg.Network.Peers))
	for _, p := range n.cfg.Network.Peers {
		addr, err := ma.NewMultiaddr(p)
		if err != nil {
			return fmt.Errorf("invalid peer address %q: %v", p, err)
		}
		peers = append(peers, addr)
	}

	session, err := gossip.NewSession(n.ctx, vault.Seed(), n.metrics)
	if err != nil {
		return fmt.Errorf("failed to create gossip session: %v", err)
	}
	n.session = session
	n.handle = gossip.NewHandle(session)

	if err := n.handle.Listen(listenAddr); err != nil {
		return fmt.Errorf("failed to bind gossip endpoint: %v", err)
	}
	n.handle.DialPeers(peers)
	if err := n.handle.Subscribe(gossip.TopicWitnessedEvents); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", gossip.TopicWitnessedEvents, err)
	}

	store, err := proofs.NewBadgerStore(filepath.Join(n.cfg.Node.DataDir, "proofs"))
	if err != nil {
		return fmt.Errorf("failed to open proof store: %v", err)
	}
	n.store = store
	n.ledger = chain.NewLedger()
	n.pool = chain.NewMemPool(n.cfg.Chain.PoolCapacity)

	validators, err := n.cfg.ValidatorKeys()
	if err != nil {
		return err
	}
	if len(validators) == 0 {
		log.Warn("validator set is empty, every witness will be rejected")
	}

	n.outbox = gossip.NewOutbox(
		n.cfg.Network.QueueCapacity,
		rate.Limit(n.cfg.Network.PublishRate),
		n.cfg.Network.PublishBurst,
	)
	n.service = events.NewService(validators, n.store, n.outbox, n.vault, n.ledger, n.pool)

	loop := gossip.NewLoop(n.handle, n.outbox.Orders(), n.service, n.metrics)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		loop.Run(n.ctx)
	}()

	validate, err := api.NewServer(n.service)
	if err != nil {
		return err
	}
	n.validate = validate
	go func() {
		if err := validate.Serve(); err != nil {
			log.Errorf("validation endpoint stopped: %v", err)
		}
	}()

	n.status = api.NewStatusServer(n.cfg.API.StatusPort, api.StatusConfig{
		Session:    session,
		Metrics:    n.metrics,
		Store:      n.store,
		Ledger:     n.ledger,
		Pool:       n.pool,
		Validator:  n.service,
		Validators: len(validators),
		Target:     n.service.Target(),
	})
	go func() {
		if err := n.status.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("status API stopped: %v", err)
		}
	}()

	n.wg.Add(1)
	go n.commitLoop()

	n.running = true
	log.Infof("node %s started, attestation target %d of %d validators",
		session.HostID(), n.service.Target(), len(validators))
	return nil
}

// commitLoop drains the transaction pool into the ledger once per block
// interval. Empty intervals still advance the height.
func (n *Node) commitLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.Chain.BlockTime)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			txs := n.pool.Drain(n.cfg.Chain.MaxTxPerBlock)
			height := n.ledger.Commit(txs)
			if len(txs) > 0 {
				log.Infof("included %d event(s) at height %d", len(txs), height)
			}
		}
	}
}

// Stop shuts the node down: endpoints first, then the gossip loop, then
// the session and the proof store.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return fmt.Errorf("node is not running")
	}

	log.Info("stopping node")
	n.cancel()

	n.validate.Stop()
	if err := n.status.Stop(); err != nil {
		log.Errorf("failed to stop status API: %v", err)
	}

	n.outbox.Close()
	n.wg.Wait()

	if err := n.session.Close(); err != nil {
		log.Errorf("failed to close gossip session: %v", err)
	}
	if err := n.store.Close(); err != nil {
		log.Errorf("failed to close proof store: %v", err)
	}

	n.running = false
	log.Info("node stopped")
	return nil
}

// IsRunning reports whether Start brought the full stack up. An observer
// node returns false.
func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Metrics exposes the gossip counters for periodic status logging.
func (n *Node) Metrics() *gossip.Metrics {
	return n.metrics
}

// Snapshot summarizes the node for the periodic status line.
func (n *Node) Snapshot() map[string]int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	snap := n.metrics.GetSnapshot()
	if height, err := n.ledger.Height(); err == nil {
		snap["chain_height"] = int64(height)
	}
	snap["pool_size"] = int64(n.pool.Size())
	snap["peers"] = int64(n.session.PeerCount())
	return snap
}
