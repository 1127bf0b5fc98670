package ledger

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Block records the outcome of a committed round: the transactions that were
// applied and the round metadata. Index is the block height, starting at 1
// for the first commit.
type Block struct {
	Index        int
	Round        int
	Leader       int
	Transactions []Transaction
	Timestamp    int64
}

// Marshal encodes the block with the canonical JSON handle, so that the same
// block always produces the same bytes.
func (b *Block) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes a block produced by Marshal.
func (b *Block) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)

	return dec.Decode(b)
}
