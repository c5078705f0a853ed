package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"puzzlechain/cmd/internal/passphrase"
	"puzzlechain/config"
	"puzzlechain/core"
	"puzzlechain/crypto"
	"puzzlechain/indexer"
	"puzzlechain/observability/logging"
	telemetry "puzzlechain/observability/otel"
	"puzzlechain/rpc"
	"puzzlechain/storage"
)

const serviceName = "puzzled"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	initFlag := flag.String("init", "", "Path to a YAML instantiation message (overrides config InitFile)")
	exportFlag := flag.String("export-events", "", "Write the event index to a Parquet file and exit")
	exportType := flag.String("export-type", "", "Event type prefix to export (default: all)")
	flag.Parse()

	var err error
	if *exportFlag != "" {
		err = exportEvents(*configFile, *exportFlag, *exportType)
	} else {
		err = run(*configFile, *initFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "puzzled: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, initOverride string) error {
	passSource := passphrase.NewSource(config.OperatorPassphraseEnv, "operator keystore")

	cfg, err := config.Load(configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := logging.Setup(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	contract, err := cfg.Contract()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	host, err := core.NewHost(db, core.HostConfig{ChainID: cfg.ChainID, Contract: contract})
	if err != nil {
		return fmt.Errorf("open host: %w", err)
	}
	host.SetLogger(logger)

	if !host.Instantiated() {
		if err := instantiate(ctx, host, cfg, initOverride, passSource.Get, logger); err != nil {
			return err
		}
	}

	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		indexDB, err := indexer.Open(cfg.Indexer.Driver, dsn)
		if err != nil {
			return err
		}
		ix := indexer.New(indexDB, logger)
		go func() {
			if err := ix.Run(ctx, host); err != nil {
				logger.Error("indexer stopped", slog.Any("error", err))
			}
		}()
		logger.Info("event indexer enabled", slog.String("driver", cfg.Indexer.Driver))
	}

	server := rpc.NewServer(host, rpc.ServerConfig{
		MaxBodyBytes:    cfg.RPC.MaxBodyBytes,
		RateLimitPerSec: cfg.RPC.RateLimitPerSec,
		RateLimitBurst:  cfg.RPC.RateLimitBurst,
		AuthToken:       cfg.RPC.AuthToken,
		JWT: rpc.JWTConfig{
			HMACSecret: cfg.RPC.JWTSecret,
			Issuer:     cfg.RPC.JWTIssuer,
			Audience:   cfg.RPC.JWTAudience,
		},
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, cfg.RPC.Address)
		close(errCh)
	}()
	if err := waitForRPCStartup(cfg.RPC.Address, errCh, 5*time.Second); err != nil {
		return fmt.Errorf("start rpc: %w", err)
	}

	status, err := host.Status()
	if err != nil {
		return err
	}
	logger.Info("puzzle node running",
		slog.String("chain_id", status.ChainID),
		slog.String("contract", status.Contract),
		slog.Uint64("height", status.Height),
		slog.String("rpc", cfg.RPC.Address))

	if err := <-errCh; err != nil {
		return err
	}
	logger.Info("puzzle node stopped")
	return nil
}

func exportEvents(configFile, out, typePrefix string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Indexer.DSN) == "" {
		return errors.New("indexer DSN not configured")
	}
	logger := logging.Setup(logging.Options{Service: serviceName, Env: cfg.Environment, Level: cfg.Logging.Level})
	db, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		return err
	}
	_, err = indexer.New(db, logger).ExportParquet(context.Background(), out, typePrefix)
	return err
}

// instantiate creates the contract from the configured init file, signed for by
// the operator key.
func instantiate(ctx context.Context, host *core.Host, cfg *config.Config, initOverride string, resolvePassphrase func() (string, error), logger *slog.Logger) error {
	path := strings.TrimSpace(initOverride)
	if path == "" {
		path = strings.TrimSpace(cfg.InitFile)
	}
	if path == "" {
		return errors.New("contract not instantiated and no InitFile configured")
	}
	msg, err := config.LoadInitFile(path)
	if err != nil {
		return err
	}
	operator, err := loadOperatorKey(cfg, resolvePassphrase)
	if err != nil {
		return err
	}
	header, err := host.Instantiate(ctx, operator.PubKey().Address().Raw(), *msg)
	if err != nil {
		return fmt.Errorf("instantiate contract: %w", err)
	}
	logger.Info("contract instantiated",
		slog.String("operator", operator.PubKey().Address().String()),
		slog.Int("puzzles", len(msg.Keyphrases)),
		slog.Uint64("height", header.Height))
	return nil
}

func loadOperatorKey(cfg *config.Config, resolvePassphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if cfg.OperatorKeystorePath == "" {
		return nil, fmt.Errorf("operator keystore path not configured")
	}
	pass := ""
	if resolvePassphrase != nil {
		resolved, err := resolvePassphrase()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain operator keystore passphrase: %w", err)
		}
		pass = resolved
	}
	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", cfg.OperatorKeystorePath, err)
	}
	return key, nil
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
