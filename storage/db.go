package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

const (
	levelDBCacheMB   = 16
	levelDBHandles   = 16
	levelDBNamespace = "puzzlechain/db/"
)

// Database is a generic interface for a key-value store. State tries and node
// metadata share the same backend so a single Close releases everything.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// TrieDB exposes the node database used by storage/trie.
	TrieDB() *triedb.Database
	Close()
}

type backend struct {
	kv       ethdb.KeyValueStore
	trieOnce sync.Once
	trieDB   *triedb.Database
}

func (b *backend) Put(key []byte, value []byte) error {
	return b.kv.Put(key, value)
}

func (b *backend) Delete(key []byte) error {
	return b.kv.Delete(key)
}

func (b *backend) TrieDB() *triedb.Database {
	b.trieOnce.Do(func() {
		b.trieDB = triedb.NewDatabase(rawdb.NewDatabase(b.kv), triedb.HashDefaults)
	})
	return b.trieDB
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	backend
}

func NewMemDB() *MemDB {
	return &MemDB{backend: backend{kv: memorydb.New()}}
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	ok, err := db.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.kv.Get(key)
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	_ = db.kv.Close()
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	backend
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := gethleveldb.New(path, levelDBCacheMB, levelDBHandles, levelDBNamespace, false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{backend: backend{kv: kv}}, nil
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Close flushes the trie cache and closes the database connection.
func (ldb *LevelDB) Close() {
	if ldb.trieDB != nil {
		_ = ldb.trieDB.Close()
	}
	_ = ldb.kv.Close()
}
