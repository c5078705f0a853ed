package state

import (
	"errors"
	"testing"

	"puzzlechain/storage"
	"puzzlechain/storage/trie"
)

type storedEntry struct {
	ID     string
	Hash   [32]byte
	Solved bool
	Winner []byte
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestKVReadWriteDelete(t *testing.T) {
	mgr := newTestManager(t)

	key := []byte("puzzle/entry/p1")
	want := storedEntry{ID: "p1", Hash: [32]byte{1}, Solved: true, Winner: []byte{0xaa}}
	if err := mgr.KVPut(key, &want); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got storedEntry
	ok, err := mgr.KVGet(key, &got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != want.ID || got.Hash != want.Hash || !got.Solved || string(got.Winner) != string(want.Winner) {
		t.Fatalf("unexpected entry: %+v", got)
	}

	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = mgr.KVGet(key, &got)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be removed")
	}
}

func TestKVRejectsEmptyKey(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.KVPut(nil, uint64(1)); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := mgr.KVGet(nil, nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestReadOnlyViewRejectsWrites(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.KVPut([]byte("k"), uint64(7)); err != nil {
		t.Fatalf("put: %v", err)
	}
	view := mgr.ReadOnly()
	var got uint64
	if ok, err := view.KVGet([]byte("k"), &got); err != nil || !ok || got != 7 {
		t.Fatalf("view get: ok=%v err=%v got=%d", ok, err, got)
	}
	if err := view.KVPut([]byte("k"), uint64(8)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := view.KVDelete([]byte("k")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSenderNonces(t *testing.T) {
	mgr := newTestManager(t)
	addr := [20]byte{9}
	nonce, err := mgr.SenderNonce(addr)
	if err != nil || nonce != 0 {
		t.Fatalf("initial nonce: %d err=%v", nonce, err)
	}
	if err := mgr.SetSenderNonce(addr, 3); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	nonce, err = mgr.SenderNonce(addr)
	if err != nil || nonce != 3 {
		t.Fatalf("nonce: %d err=%v", nonce, err)
	}
}

func TestCheckStateVersion(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.CheckStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch on empty state, got %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.CheckStateVersion(); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch on newer state, got %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.CheckStateVersion(); err != nil {
		t.Fatalf("expected matching version: %v", err)
	}
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok || version != StateVersion {
		t.Fatalf("StateVersion() = %d, %v, %v", version, ok, err)
	}
}
