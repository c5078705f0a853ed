package types

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestTransactionSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transaction{ChainID: "puzzlechain-1", Nonce: 3, Msg: []byte(`{"solved":{}}`)}
	if _, err := tx.From(); err == nil {
		t.Fatalf("expected unsigned transaction to fail recovery")
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey).Bytes(); !bytes.Equal(from, want) {
		t.Fatalf("sender mismatch: got %x want %x", from, want)
	}

	tampered := &Transaction{ChainID: tx.ChainID, Nonce: tx.Nonce + 1, Msg: tx.Msg, R: tx.R, S: tx.S, V: tx.V}
	recovered, err := tampered.From()
	if err == nil && bytes.Equal(recovered, from) {
		t.Fatalf("tampered nonce must not recover the original sender")
	}
}

func TestHashCoversChainID(t *testing.T) {
	a := &Transaction{ChainID: "a", Nonce: 1, Msg: []byte("x")}
	b := &Transaction{ChainID: "b", Nonce: 1, Msg: []byte("x")}
	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if bytes.Equal(ha, hb) {
		t.Fatalf("hash must commit to the chain id")
	}
}

func TestFromRejectsOutOfRangeRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transaction{ChainID: "puzzlechain-1", Nonce: 1, Msg: []byte(`{"solved":{}}`)}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}

	// 283 truncates to the same low byte as 27.
	oversized := new(big.Int).Lsh(big.NewInt(1), 70)
	for _, v := range []*big.Int{big.NewInt(0), big.NewInt(26), big.NewInt(29), big.NewInt(283), big.NewInt(-27), oversized} {
		forged := &Transaction{ChainID: tx.ChainID, Nonce: tx.Nonce, Msg: tx.Msg, R: tx.R, S: tx.S, V: v}
		if _, err := forged.From(); !errors.Is(err, errMalformedSig) {
			t.Fatalf("v=%s: expected malformed signature, got %v", v, err)
		}
	}

	negative := &Transaction{ChainID: tx.ChainID, Nonce: tx.Nonce, Msg: tx.Msg, R: new(big.Int).Neg(tx.R), S: tx.S, V: tx.V}
	if _, err := negative.From(); !errors.Is(err, errMalformedSig) {
		t.Fatalf("negative r: expected malformed signature, got %v", err)
	}
}
