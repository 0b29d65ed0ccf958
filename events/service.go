// Package events aggregates witnessed-event attestations. It verifies each
// witness against the known validator set, records the proof, and once more
// than two thirds of the validators have witnessed an event, queues it for
// on-chain inclusion.
package events

import (
	"context"
	"encoding/hex"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/w3f-grants-archive/validated-streams/chain"
	"github.com/w3f-grants-archive/validated-streams/crypto"
	"github.com/w3f-grants-archive/validated-streams/crypto/keyvault"
	"github.com/w3f-grants-archive/validated-streams/network/gossip"
	"github.com/w3f-grants-archive/validated-streams/proofs"
)

var log = logging.Logger("events")

// Broadcaster enqueues publish orders toward the gossip loop.
type Broadcaster interface {
	Publish(topic string, payload []byte) error
}

// Service is the validation collaborator behind the gossip loop and the
// request endpoints.
type Service struct {
	validators map[string]crypto.PublicKey
	target     int
	store      proofs.Store
	out        Broadcaster
	vault      *keyvault.KeyVault
	client     chain.Client
	pool       chain.TxPool
}

var _ gossip.WitnessHandler = (*Service)(nil)

// NewService wires the collaborator to everything it needs: the known
// validator public keys, the proof store, the outbound gossip queue, the
// local signing keys and the chain handles.
func NewService(
	validators []crypto.PublicKey,
	store proofs.Store,
	out Broadcaster,
	vault *keyvault.KeyVault,
	client chain.Client,
	pool chain.TxPool,
) *Service {
	byHex := make(map[string]crypto.PublicKey, len(validators))
	for _, pk := range validators {
		byHex[pk.String()] = pk
	}
	return &Service{
		validators: byHex,
		target:     quorum(len(byHex)),
		store:      store,
		out:        out,
		vault:      vault,
		client:     client,
		pool:       pool,
	}
}

// quorum is the attestation target: strictly more than two thirds of the
// validator set.
func quorum(validators int) int {
	return validators*2/3 + 1
}

// Target returns the attestation target.
func (s *Service) Target() int {
	return s.target
}

// HandleWitnessedEvent verifies one attestation and records its proof.
// Reaching the attestation target queues the event for inclusion; every
// later proof re-attempts the queueing, so a transiently full pool heals
// on its own.
func (s *Service) HandleWitnessedEvent(_ context.Context, ev *gossip.WitnessedEvent) (string, error) {
	witness := hex.EncodeToString(ev.PubKey)
	pub, ok := s.validators[witness]
	if !ok {
		return "", fmt.Errorf("witness %s is not a known validator", witness)
	}
	if !pub.Verify(ev.EventID.Bytes(), ev.Signature) {
		return "", fmt.Errorf("invalid witness signature for event %s", ev.EventID)
	}

	included, err := s.client.IsIncluded(ev.EventID)
	if err != nil {
		return "", fmt.Errorf("failed to check event %s on chain: %v", ev.EventID, err)
	}
	if included {
		return "event already validated", nil
	}

	count, err := s.store.Add(ev)
	if err != nil {
		return "", fmt.Errorf("failed to record proof for event %s: %v", ev.EventID, err)
	}
	log.Debugf("event %s witnessed by %s (%d of %d)", ev.EventID, witness, count, s.target)

	if count >= s.target {
		s.queueForInclusion(ev.EventID)
		return fmt.Sprintf("event reached attestation target (%d of %d) and was queued for inclusion", count, s.target), nil
	}
	return fmt.Sprintf("event witnessed (%d of %d attestations)", count, s.target), nil
}

// HandleClientRequest witnesses an event locally: sign the identifier,
// record our own proof, and queue the attestation for broadcast to the
// other validators.
func (s *Service) HandleClientRequest(ctx context.Context, id gossip.EventID) (string, error) {
	ev := &gossip.WitnessedEvent{
		Signature: s.vault.Sign(id.Bytes()),
		PubKey:    s.vault.PublicKey().Bytes(),
		EventID:   id,
	}
	status, err := s.HandleWitnessedEvent(ctx, ev)
	if err != nil {
		return "", err
	}

	payload, err := ev.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode witnessed event: %v", err)
	}
	if err := s.out.Publish(gossip.TopicWitnessedEvents, payload); err != nil {
		// The proof is recorded either way; peers just will not hear
		// about it from us right now.
		log.Warnf("failed to queue witness broadcast for %s: %v", id, err)
	}
	return status, nil
}

func (s *Service) queueForInclusion(id gossip.EventID) {
	accumulated, err := s.store.Proofs(id)
	if err != nil {
		log.Errorf("failed to load proofs for %s: %v", id, err)
		return
	}
	tx := chain.NewEventTx(id, accumulated)
	if err := s.pool.Submit(tx); err != nil {
		// Usually the event is simply queued already.
		log.Debugf("event %s not queued: %v", id, err)
		return
	}
	log.Infof("event %s queued for inclusion with %d proofs", id, len(accumulated))
}
