package ledger

import (
	"strconv"
	"sync"

	cm "github.com/tandemlabs/tandem/src/common"
)

// InmemStore keeps committed blocks in a map. It implements the Store
// interface.
type InmemStore struct {
	sync.RWMutex

	blocks    map[int]*Block
	lastIndex int
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		blocks: make(map[int]*Block),
	}
}

// LastBlockIndex implements the Store interface.
func (s *InmemStore) LastBlockIndex() int {
	s.RLock()
	defer s.RUnlock()

	return s.lastIndex
}

// GetBlock implements the Store interface.
func (s *InmemStore) GetBlock(index int) (*Block, error) {
	s.RLock()
	defer s.RUnlock()

	block, ok := s.blocks[index]
	if !ok {
		return nil, cm.NewStoreErr("Block", cm.KeyNotFound, strconv.Itoa(index))
	}

	return block, nil
}

// SetBlock implements the Store interface.
func (s *InmemStore) SetBlock(block *Block) error {
	s.Lock()
	defer s.Unlock()

	s.blocks[block.Index] = block

	if block.Index > s.lastIndex {
		s.lastIndex = block.Index
	}

	return nil
}

// Reset implements the Store interface.
func (s *InmemStore) Reset() error {
	s.Lock()
	defer s.Unlock()

	s.blocks = make(map[int]*Block)
	s.lastIndex = 0

	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
