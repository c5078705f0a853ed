package types

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header records one committed state transition. Every successful
// instantiate or execute call advances the height by one.
type Header struct {
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
	PrevHash  []byte `json:"prevHash"`
	StateRoot []byte `json:"stateRoot"` // Trie root after the transition
	TxHash    []byte `json:"txHash"`
}

// Hash returns keccak256 over the RLP encoding of the header.
func (h *Header) Hash() ([]byte, error) {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}
