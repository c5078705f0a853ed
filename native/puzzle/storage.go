package puzzle

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ReadStore is the subset of the state manager available to queries.
type ReadStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
}

// Store abstracts the state manager functionality required by mutating calls.
type Store interface {
	ReadStore
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	configKey           = []byte("puzzle/config")
	adminsKey           = []byte("puzzle/admins")
	puzzleIndexKey      = []byte("puzzle/index")
	prngSeedKey         = []byte("puzzle/prng")
	puzzleEntryPrefix   = []byte("puzzle/entry/")
	viewingKeyPrefix    = []byte("puzzle/viewkey/")
	revokedPermitPrefix = []byte("puzzle/revoked/")
)

func puzzleKey(id string) []byte {
	return append(append([]byte(nil), puzzleEntryPrefix...), id...)
}

func viewingKeyKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s%x", viewingKeyPrefix, addr))
}

func revokedPermitKey(owner Address, permitName string) []byte {
	digest := ethcrypto.Keccak256([]byte(permitName))
	return []byte(fmt.Sprintf("%s%x/%x", revokedPermitPrefix, owner, digest))
}

func loadConfig(store ReadStore) (*contractConfig, error) {
	var cfg contractConfig
	ok, err := store.KVGet(configKey, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInstantiated
	}
	return &cfg, nil
}

// keyphraseView reads puzzles without any ability to write them.
type keyphraseView struct {
	store ReadStore
}

func (v keyphraseView) get(id string) (*Puzzle, bool, error) {
	var stored storedPuzzle
	ok, err := v.store.KVGet(puzzleKey(id), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toPuzzle(), true, nil
}

// ids returns puzzle ids in the order they were first added.
func (v keyphraseView) ids() ([]string, error) {
	var ids []string
	if _, err := v.store.KVGet(puzzleIndexKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (v keyphraseView) list() ([]*Puzzle, error) {
	ids, err := v.ids()
	if err != nil {
		return nil, err
	}
	puzzles := make([]*Puzzle, 0, len(ids))
	for _, id := range ids {
		p, ok, err := v.get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("puzzle: index references missing puzzle %q", id)
		}
		puzzles = append(puzzles, p)
	}
	return puzzles, nil
}

// keyphraseStore persists puzzles and keeps the id index in sync.
type keyphraseStore struct {
	keyphraseView
	store Store
}

func newKeyphraseStore(store Store) keyphraseStore {
	return keyphraseStore{keyphraseView: keyphraseView{store: store}, store: store}
}

func (s keyphraseStore) put(p *Puzzle) error {
	if p.Winner != nil && !p.Solved {
		return fmt.Errorf("puzzle %q: winner recorded on unsolved puzzle", p.ID)
	}
	_, exists, err := s.get(p.ID)
	if err != nil {
		return err
	}
	if err := s.store.KVPut(puzzleKey(p.ID), newStoredPuzzle(p)); err != nil {
		return err
	}
	if exists {
		return nil
	}
	ids, err := s.ids()
	if err != nil {
		return err
	}
	return s.store.KVPut(puzzleIndexKey, append(ids, p.ID))
}

// remove deletes the puzzle and its index entry. The boolean reports whether
// anything was removed.
func (s keyphraseStore) remove(id string) (bool, error) {
	_, exists, err := s.get(id)
	if err != nil || !exists {
		return false, err
	}
	if err := s.store.KVDelete(puzzleKey(id)); err != nil {
		return false, err
	}
	ids, err := s.ids()
	if err != nil {
		return false, err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return true, s.store.KVPut(puzzleIndexKey, kept)
}
