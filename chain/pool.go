package chain

import (
	"fmt"
	"sync"
)

// TxPool accepts event transactions awaiting inclusion.
type TxPool interface {
	Submit(tx *EventTx) error
	Pending() []*EventTx
	Drain(max int) []*EventTx
	Size() int
}

// PoolStats describes the pool for the status surface.
type PoolStats struct {
	PendingCount int   `json:"pending_count"`
	TotalAdded   int64 `json:"total_added"`
	TotalRemoved int64 `json:"total_removed"`
	MaxCapacity  int   `json:"max_capacity"`
}

// MemPool is the in-memory TxPool. Transactions keep submission order so
// Drain hands them to the ledger first-come first-served.
type MemPool struct {
	mu      sync.RWMutex
	pending map[string]*EventTx
	order   []string
	maxTxs  int

	totalAdded   int64
	totalRemoved int64
}

var _ TxPool = (*MemPool)(nil)

func NewMemPool(maxTxs int) *MemPool {
	return &MemPool{
		pending: make(map[string]*EventTx),
		maxTxs:  maxTxs,
	}
}

// Submit adds a transaction after validation. Duplicates and a full pool
// are errors; the caller decides whether that matters.
func (p *MemPool) Submit(tx *EventTx) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}
	if len(tx.Proofs) == 0 {
		return fmt.Errorf("transaction for %s carries no proofs", tx.ID())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) >= p.maxTxs {
		return fmt.Errorf("transaction pool is full (%d)", p.maxTxs)
	}
	if _, exists := p.pending[tx.ID()]; exists {
		return fmt.Errorf("event %s already in pool", tx.ID())
	}

	p.pending[tx.ID()] = tx
	p.order = append(p.order, tx.ID())
	p.totalAdded++
	return nil
}

// Pending returns a copy of the queued transactions in submission order.
func (p *MemPool) Pending() []*EventTx {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*EventTx, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.pending[id])
	}
	return out
}

// Drain removes and returns up to max transactions in submission order.
func (p *MemPool) Drain(max int) []*EventTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if max > 0 && max < n {
		n = max
	}
	out := make([]*EventTx, 0, n)
	for _, id := range p.order[:n] {
		out = append(out, p.pending[id])
		delete(p.pending, id)
		p.totalRemoved++
	}
	p.order = append([]string(nil), p.order[n:]...)
	return out
}

// Contains reports whether a transaction for the event is queued.
func (p *MemPool) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.pending[id]
	return ok
}

func (p *MemPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending)
}

// GetStats returns pool statistics.
func (p *MemPool) GetStats() *PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &PoolStats{
		PendingCount: len(p.pending),
		TotalAdded:   p.totalAdded,
		TotalRemoved: p.totalRemoved,
		MaxCapacity:  p.maxTxs,
	}
}
