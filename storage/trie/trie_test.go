package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"puzzlechain/storage"
)

func TestTrieCommitPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("puzzle/entry/p1"))
	value := []byte("solved")

	require.NoError(t, tr.Update(key, value))
	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, root, tr.Root())

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieResetDiscardsPendingWrites(t *testing.T) {
	tr, err := NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)

	committedKey := crypto.Keccak256([]byte("committed"))
	require.NoError(t, tr.Update(committedKey, []byte("a")))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	pendingKey := crypto.Keccak256([]byte("pending"))
	require.NoError(t, tr.Update(pendingKey, []byte("b")))
	require.NoError(t, tr.Delete(committedKey))
	require.NotEqual(t, root, tr.Hash())

	require.NoError(t, tr.Reset(root))
	require.Equal(t, root, tr.Hash())

	got, err := tr.Get(committedKey)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)

	got, err = tr.Get(pendingKey)
	require.NoError(t, err)
	require.Empty(t, got)
}
