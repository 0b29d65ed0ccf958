package proofs

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

const proofPrefix = "proof/"

// BadgerStore persists proofs in BadgerDB so a restarted node keeps the
// attestations it already collected. Keys are proof/<event-hex>/<witness-hex>
// with the signature as value.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create proof store directory: %v", err)
	}
	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open proof store: %v", err)
	}
	return &BadgerStore{db: db}, nil
}

func proofKey(id gossip.EventID, witness string) []byte {
	return []byte(proofPrefix + id.String() + "/" + witness)
}

func eventPrefix(id gossip.EventID) []byte {
	return []byte(proofPrefix + id.String() + "/")
}

func (s *BadgerStore) Add(ev *gossip.WitnessedEvent) (int, error) {
	witness := hex.EncodeToString(ev.PubKey)
	key := proofKey(ev.EventID, witness)
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch err {
		case nil:
			// already witnessed by this key
		case badger.ErrKeyNotFound:
			sig := make([]byte, len(ev.Signature))
			copy(sig, ev.Signature)
			if err := txn.Set(key, sig); err != nil {
				return err
			}
		default:
			return err
		}
		count, err = countPrefix(txn, eventPrefix(ev.EventID))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record proof: %v", err)
	}
	return count, nil
}

func (s *BadgerStore) Count(id gossip.EventID) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		count, err = countPrefix(txn, eventPrefix(id))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count proofs: %v", err)
	}
	return count, nil
}

func (s *BadgerStore) Proofs(id gossip.EventID) (map[string][]byte, error) {
	out := make(map[string][]byte)
	prefix := eventPrefix(id)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			witness := strings.TrimPrefix(string(item.Key()), string(prefix))
			sig, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[witness] = sig
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load proofs: %v", err)
	}
	return out, nil
}

func (s *BadgerStore) Events() (int, error) {
	count := 0
	prefix := []byte(proofPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		var lastEvent []byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			rest := key[len(prefix):]
			slash := bytes.IndexByte(rest, '/')
			if slash < 0 {
				continue
			}
			event := rest[:slash]
			if !bytes.Equal(event, lastEvent) {
				count++
				lastEvent = append(lastEvent[:0], event...)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan proofs: %v", err)
	}
	return count, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func countPrefix(txn *badger.Txn, prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count, nil
}
