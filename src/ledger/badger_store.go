package ledger

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger"
	cm "github.com/tandemlabs/tandem/src/common"
)

const (
	blockPrefix  = "block"
	lastBlockKey = "last_block"
)

// BadgerStore is a persistent block store. It fronts the database with an
// InmemStore so that reads during a session never hit disk.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
}

// NewBadgerStore opens or creates a badger database at path and recovers the
// last block index from it.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	if err := store.dbRecoverLastIndex(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

// LastBlockIndex implements the Store interface.
func (s *BadgerStore) LastBlockIndex() int {
	return s.inmemStore.LastBlockIndex()
}

// GetBlock implements the Store interface. It checks the in-memory cache
// before the database.
func (s *BadgerStore) GetBlock(index int) (*Block, error) {
	if block, err := s.inmemStore.GetBlock(index); err == nil {
		return block, nil
	}

	return s.dbGetBlock(index)
}

// SetBlock implements the Store interface.
func (s *BadgerStore) SetBlock(block *Block) error {
	if err := s.dbSetBlock(block); err != nil {
		return err
	}

	return s.inmemStore.SetBlock(block)
}

// Reset implements the Store interface. It drops every block from the
// database and the cache.
func (s *BadgerStore) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return err
	}

	return s.inmemStore.Reset()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("%s_%d", blockPrefix, index))
}

func (s *BadgerStore) dbGetBlock(index int) (*Block, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(index))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, strconv.Itoa(index))
	}
	if err != nil {
		return nil, err
	}

	block := new(Block)
	if err := block.Unmarshal(data); err != nil {
		return nil, err
	}

	return block, nil
}

func (s *BadgerStore) dbSetBlock(block *Block) error {
	data, err := block.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(block.Index), data); err != nil {
			return err
		}
		return txn.Set([]byte(lastBlockKey), []byte(strconv.Itoa(block.Index)))
	})
}

// dbRecoverLastIndex seeds the in-memory cache with the last committed block
// from a pre-existing database, if there is one.
func (s *BadgerStore) dbRecoverLastIndex() error {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastBlockKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}

	block, err := s.dbGetBlock(index)
	if err != nil {
		return err
	}

	return s.inmemStore.SetBlock(block)
}
