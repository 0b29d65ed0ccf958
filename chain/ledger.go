package chain

import (
	"sync"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

// Client is the gossip subsystem's read view of the chain.
type Client interface {
	IsIncluded(id gossip.EventID) (bool, error)
	Height() (uint64, error)
}

// Ledger is the in-process chain backend. The node's commit ticker drains
// the pool into it, one numbered block per tick; a block with no
// transactions still advances the height.
type Ledger struct {
	mu       sync.RWMutex
	height   uint64
	included map[gossip.EventID]uint64
}

var _ Client = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{included: make(map[gossip.EventID]uint64)}
}

// Commit appends one block holding txs and returns its height.
func (l *Ledger) Commit(txs []*EventTx) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height++
	for _, tx := range txs {
		if _, ok := l.included[tx.EventID]; !ok {
			l.included[tx.EventID] = l.height
		}
	}
	return l.height
}

// IsIncluded reports whether the event has been committed.
func (l *Ledger) IsIncluded(id gossip.EventID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.included[id]
	return ok, nil
}

// InclusionHeight returns the block height the event was committed at.
func (l *Ledger) InclusionHeight(id gossip.EventID) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.included[id]
	return h, ok
}

// Height returns the current chain height.
func (l *Ledger) Height() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height, nil
}

// EventCount returns how many events have been committed.
func (l *Ledger) EventCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.included)
}
