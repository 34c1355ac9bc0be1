// Package txindex is a secondary, badger-backed index from transaction id
// to the height of the block that confirmed it, accelerating the
// GET /tx/{id} lookup (spec §6) without requiring a scan over every stored
// block. It is a pure accelerator: the chain store remains the source of
// truth, and txindex can always be rebuilt by replaying it.
package txindex

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gochain/ledgernode/pkg/chainmodel"
	"github.com/gochain/ledgernode/pkg/nodeerr"
)

const keyPrefix = "tx:"

// Index wraps a badger database mapping transaction id -> block height.
type Index struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger database rooted at dir.
func Open(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening tx index at %s: %w", dir, nodeerr.Fatal)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func txKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// IndexBlock records the confirming height for every transaction in b.
func (idx *Index) IndexBlock(b *chainmodel.Block) error {
	return idx.db.Update(func(txn *badger.Txn) error {
		for _, tx := range b.Transactions {
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, b.Header.Index)
			if err := txn.Set(txKey(tx.ID), val); err != nil {
				return fmt.Errorf("indexing tx %s: %w", tx.ID, err)
			}
		}
		return nil
	})
}

// Lookup returns the confirming height for a transaction id, and whether it
// was found.
func (idx *Index) Lookup(id string) (height uint64, found bool, err error) {
	err = idx.db.View(func(txn *badger.Txn) error {
		item, gerr := txn.Get(txKey(id))
		if gerr == badger.ErrKeyNotFound {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		found = true
		return item.Value(func(val []byte) error {
			height = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("looking up tx %s: %w", id, err)
	}
	return height, found, nil
}

// Rebuild replays every block's transactions into the index, for recovery
// when the index falls out of sync with the chain store. The index is not
// cleared first: entries for ids that appear in blocks are overwritten, and
// any other entries are left in place.
func Rebuild(idx *Index, blocks []*chainmodel.Block) error {
	for _, b := range blocks {
		if err := idx.IndexBlock(b); err != nil {
			return err
		}
	}
	return nil
}
