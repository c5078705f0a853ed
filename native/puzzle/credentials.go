package puzzle

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/chacha20"
)

// ViewingKeyPrefix is prepended to every generated viewing key.
const ViewingKeyPrefix = "api_key_"

func hashViewingKey(key string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(key)))
	return out
}

type credentialView struct {
	store ReadStore
}

// verifyViewingKey compares hashes in constant time. A missing record is
// compared against the zero hash so the lookup outcome does not change timing.
func (c credentialView) verifyViewingKey(addr Address, candidate string) (bool, error) {
	var stored [32]byte
	ok, err := c.store.KVGet(viewingKeyKey(addr), &stored)
	if err != nil {
		return false, err
	}
	candidateHash := hashViewingKey(candidate)
	match := subtle.ConstantTimeCompare(candidateHash[:], stored[:]) == 1
	return match && ok, nil
}

func (c credentialView) isRevoked(owner Address, permitName string) (bool, error) {
	return c.store.KVGet(revokedPermitKey(owner, permitName), nil)
}

type credentialStore struct {
	credentialView
	store Store
}

func newCredentialStore(store Store) credentialStore {
	return credentialStore{credentialView: credentialView{store: store}, store: store}
}

func (c credentialStore) setViewingKey(addr Address, key string) error {
	hashed := hashViewingKey(key)
	return c.store.KVPut(viewingKeyKey(addr), hashed)
}

// revokePermit is idempotent; the record is never removed.
func (c credentialStore) revokePermit(owner Address, permitName string) error {
	return c.store.KVPut(revokedPermitKey(owner, permitName), true)
}

func (c credentialStore) initSeed(entropy string) error {
	var seed [32]byte
	copy(seed[:], ethcrypto.Keccak256([]byte(entropy)))
	return c.store.KVPut(prngSeedKey, seed)
}

// createViewingKey derives a fresh key from the contract seed, the caller's
// entropy and the call environment, stores its hash and rotates the seed. The
// plaintext is returned exactly once.
func (c credentialStore) createViewingKey(env Env, entropy string) (string, error) {
	var seed [32]byte
	ok, err := c.store.KVGet(prngSeedKey, &seed)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotInstantiated
	}

	var scratch [16]byte
	binary.BigEndian.PutUint64(scratch[:8], env.Height)
	binary.BigEndian.PutUint64(scratch[8:], uint64(env.Time))
	material := ethcrypto.Keccak256(seed[:], []byte(entropy), scratch[:], env.Sender[:], env.TxHash)

	cipher, err := chacha20.NewUnauthenticatedCipher(material, make([]byte, chacha20.NonceSize))
	if err != nil {
		return "", fmt.Errorf("puzzle: viewing key prng: %w", err)
	}
	stream := make([]byte, 64)
	cipher.XORKeyStream(stream, stream)

	key := ViewingKeyPrefix + base64.StdEncoding.EncodeToString(ethcrypto.Keccak256(stream[:32]))
	var nextSeed [32]byte
	copy(nextSeed[:], stream[32:])
	if err := c.store.KVPut(prngSeedKey, nextSeed); err != nil {
		return "", err
	}
	if err := c.setViewingKey(env.Sender, key); err != nil {
		return "", err
	}
	return key, nil
}
