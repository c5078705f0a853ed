package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"puzzlechain/config"
	"puzzlechain/core"
	"puzzlechain/crypto"
	"puzzlechain/storage"
)

func TestDialAddressFor(t *testing.T) {
	cases := map[string]string{
		":8545":          "127.0.0.1:8545",
		"0.0.0.0:9000":   "0.0.0.0:9000",
		"localhost:1234": "localhost:1234",
		"not-an-address": "not-an-address",
	}
	for in, want := range cases {
		if got := dialAddressFor(in); got != want {
			t.Fatalf("dialAddressFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWaitForRPCStartupReportsServerError(t *testing.T) {
	errCh := make(chan error, 1)
	errCh <- errors.New("address in use")
	err := waitForRPCStartup("127.0.0.1:1", errCh, time.Second)
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestWaitForRPCStartupSeesListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	if err := waitForRPCStartup(listener.Addr().String(), make(chan error), time.Second); err != nil {
		t.Fatalf("expected startup confirmation: %v", err)
	}
}

func TestInstantiateFromInitFile(t *testing.T) {
	dir := t.TempDir()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keystorePath := filepath.Join(dir, "operator.keystore")
	if err := crypto.SaveToKeystore(keystorePath, key, "pw"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	initPath := filepath.Join(dir, "init.yaml")
	initFile := "entropy: seed\nkeyphrases:\n  - puzzle: p1\n    keyphrase: banana split\n"
	if err := os.WriteFile(initPath, []byte(initFile), 0o600); err != nil {
		t.Fatalf("write init file: %v", err)
	}

	host, err := core.NewHost(storage.NewMemDB(), core.HostConfig{ChainID: "puzzlechain-cmd", Contract: [20]byte{0x03}})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	cfg := &config.Config{OperatorKeystorePath: keystorePath, InitFile: initPath}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pass := func() (string, error) { return "pw", nil }

	if err := instantiate(context.Background(), host, cfg, "", pass, logger); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if !host.Instantiated() {
		t.Fatalf("host should be instantiated")
	}
	answer, err := host.Query(context.Background(), []byte(`{"verify":{"solution":{"puzzle":"p1","keyphrase":"banana split"}}}`))
	if err == nil {
		t.Fatalf("verify before solve should fail, got %s", answer)
	}

	if err := instantiate(context.Background(), host, cfg, "", pass, logger); !errors.Is(err, core.ErrAlreadyInstantiated) {
		t.Fatalf("expected already instantiated, got %v", err)
	}
}

func TestInstantiateRequiresInitFile(t *testing.T) {
	host, err := core.NewHost(storage.NewMemDB(), core.HostConfig{ChainID: "puzzlechain-cmd"})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	err = instantiate(context.Background(), host, &config.Config{}, "", nil, slog.Default())
	if err == nil || !strings.Contains(err.Error(), "InitFile") {
		t.Fatalf("expected missing init file error, got %v", err)
	}
}
