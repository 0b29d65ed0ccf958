package chain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

func eventTx(seed string) *EventTx {
	return NewEventTx(
		gossip.NewEventID([]byte(seed)),
		map[string][]byte{"witness": []byte("sig")},
	)
}

func TestMemPoolSubmit(t *testing.T) {
	pool := NewMemPool(10)

	tx := eventTx("a")
	require.NoError(t, pool.Submit(tx))
	require.Equal(t, 1, pool.Size())
	require.True(t, pool.Contains(tx.ID()))

	// The same event cannot be queued twice.
	require.Error(t, pool.Submit(eventTx("a")))

	require.Error(t, pool.Submit(nil))
	require.Error(t, pool.Submit(NewEventTx(gossip.NewEventID([]byte("no proofs")), nil)))
}

func TestMemPoolCapacity(t *testing.T) {
	pool := NewMemPool(2)
	require.NoError(t, pool.Submit(eventTx("a")))
	require.NoError(t, pool.Submit(eventTx("b")))
	require.Error(t, pool.Submit(eventTx("c")))

	stats := pool.GetStats()
	require.Equal(t, 2, stats.PendingCount)
	require.EqualValues(t, 2, stats.TotalAdded)
	require.Equal(t, 2, stats.MaxCapacity)
}

func TestMemPoolDrainKeepsSubmissionOrder(t *testing.T) {
	pool := NewMemPool(100)
	var ids []string
	for i := 0; i < 5; i++ {
		tx := eventTx(fmt.Sprintf("tx-%d", i))
		ids = append(ids, tx.ID())
		require.NoError(t, pool.Submit(tx))
	}

	firstBatch := pool.Drain(3)
	require.Len(t, firstBatch, 3)
	for i, tx := range firstBatch {
		require.Equal(t, ids[i], tx.ID())
	}

	rest := pool.Drain(0)
	require.Len(t, rest, 2)
	require.Equal(t, ids[3], rest[0].ID())
	require.Equal(t, ids[4], rest[1].ID())
	require.Zero(t, pool.Size())

	// Drained events can be resubmitted later if needed.
	require.NoError(t, pool.Submit(eventTx("tx-0")))
}

func TestLedgerCommit(t *testing.T) {
	ledger := NewLedger()
	h, err := ledger.Height()
	require.NoError(t, err)
	require.Zero(t, h)

	// Empty blocks still advance the height.
	require.EqualValues(t, 1, ledger.Commit(nil))

	tx := eventTx("committed")
	require.EqualValues(t, 2, ledger.Commit([]*EventTx{tx}))

	included, err := ledger.IsIncluded(tx.EventID)
	require.NoError(t, err)
	require.True(t, included)

	at, ok := ledger.InclusionHeight(tx.EventID)
	require.True(t, ok)
	require.EqualValues(t, 2, at)
	require.Equal(t, 1, ledger.EventCount())

	missing, err := ledger.IsIncluded(gossip.NewEventID([]byte("missing")))
	require.NoError(t, err)
	require.False(t, missing)
}
