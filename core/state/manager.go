package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"puzzlechain/storage/trie"
)

// ErrReadOnly is returned when a write is attempted through a read-only view.
var ErrReadOnly = errors.New("state: read-only view")

// Manager exposes RLP-encoded key-value access on top of the state trie. Keys
// are namespaced by the caller and hashed before they reach the trie.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut RLP-encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from state. Missing keys are ignored.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(kvKey(key))
}

// ReadOnly returns a view that can read state but rejects every write.
func (m *Manager) ReadOnly() *View {
	return &View{manager: m}
}

// View is a read-only window over a Manager.
type View struct {
	manager *Manager
}

// KVGet delegates to the underlying manager.
func (v *View) KVGet(key []byte, out interface{}) (bool, error) {
	if v == nil || v.manager == nil {
		return false, fmt.Errorf("state: view unavailable")
	}
	return v.manager.KVGet(key, out)
}

// KVPut always fails.
func (v *View) KVPut([]byte, interface{}) error { return ErrReadOnly }

// KVDelete always fails.
func (v *View) KVDelete([]byte) error { return ErrReadOnly }
