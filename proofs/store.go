// Package proofs persists witnessed-event attestations. Each proof is one
// validator's signature over an event identifier; the store keeps at most
// one proof per (event, witness) pair so a chatty validator cannot inflate
// an event's attestation count.
package proofs

import (
	"encoding/hex"
	"sync"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

// Store records witnessed-event proofs.
type Store interface {
	// Add records the proof carried by ev. Adding the same witness again
	// for the same event is a no-op. Returns the number of distinct
	// proofs now held for the event.
	Add(ev *gossip.WitnessedEvent) (int, error)
	// Count returns the number of distinct proofs held for id.
	Count(id gossip.EventID) (int, error)
	// Proofs returns witness public key (hex) -> signature for id.
	Proofs(id gossip.EventID) (map[string][]byte, error)
	// Events returns how many distinct events hold at least one proof.
	Events() (int, error)
	Close() error
}

// MemStore is the in-memory Store used by tests and ephemeral nodes.
type MemStore struct {
	mu     sync.RWMutex
	proofs map[gossip.EventID]map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{proofs: make(map[gossip.EventID]map[string][]byte)}
}

func (s *MemStore) Add(ev *gossip.WitnessedEvent) (int, error) {
	witness := hex.EncodeToString(ev.PubKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	byWitness, ok := s.proofs[ev.EventID]
	if !ok {
		byWitness = make(map[string][]byte)
		s.proofs[ev.EventID] = byWitness
	}
	if _, seen := byWitness[witness]; !seen {
		sig := make([]byte, len(ev.Signature))
		copy(sig, ev.Signature)
		byWitness[witness] = sig
	}
	return len(byWitness), nil
}

func (s *MemStore) Count(id gossip.EventID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs[id]), nil
}

func (s *MemStore) Proofs(id gossip.EventID) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.proofs[id]))
	for witness, sig := range s.proofs[id] {
		sigCopy := make([]byte, len(sig))
		copy(sigCopy, sig)
		out[witness] = sigCopy
	}
	return out, nil
}

func (s *MemStore) Events() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs), nil
}

func (s *MemStore) Close() error {
	return nil
}
