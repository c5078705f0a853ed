package state

import "fmt"

var senderNoncePrefix = []byte("host/nonce/")

func senderNonceKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", senderNoncePrefix, addr))
}

// SenderNonce returns the next nonce expected from addr.
func (m *Manager) SenderNonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(senderNonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetSenderNonce records the next nonce expected from addr.
func (m *Manager) SetSenderNonce(addr [20]byte, nonce uint64) error {
	return m.KVPut(senderNonceKey(addr), nonce)
}
