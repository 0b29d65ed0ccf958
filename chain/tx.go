// Package chain is the gossip subsystem's minimal view of the blockchain
// side of the node: a pool of event transactions awaiting inclusion and a
// ledger assigning heights to committed ones. Consensus over the ledger is
// someone else's job; this package is plumbing only.
package chain

import (
	"time"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

// EventTx is the inclusion transaction built once an event has gathered
// enough attestations: the identifier plus the witness signatures backing
// it, keyed by witness public key in hex.
type EventTx struct {
	EventID   gossip.EventID    `json:"event_id"`
	Proofs    map[string][]byte `json:"proofs"`
	Timestamp int64             `json:"timestamp"`
}

func NewEventTx(id gossip.EventID, proofs map[string][]byte) *EventTx {
	return &EventTx{
		EventID:   id,
		Proofs:    proofs,
		Timestamp: time.Now().Unix(),
	}
}

// ID returns the pool key for the transaction.
func (tx *EventTx) ID() string {
	return tx.EventID.String()
}
