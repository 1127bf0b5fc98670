package ledger

// Store keeps the committed blocks by index. Two implementations exist: an
// in-memory store, used by default and in tests, and a badger-backed store
// that survives restarts.
type Store interface {
	// LastBlockIndex returns the index of the most recent block, or 0 when
	// no block has been committed.
	LastBlockIndex() int

	// GetBlock returns the block at the given index, or a StoreErr with
	// code KeyNotFound.
	GetBlock(index int) (*Block, error)

	// SetBlock records a block under its index.
	SetBlock(block *Block) error

	// Reset drops all blocks.
	Reset() error

	Close() error
}
