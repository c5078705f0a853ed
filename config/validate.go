package config

import (
	"fmt"
	"strings"
)

var (
	MaxRPCBodyBytes    = int64(8 << 20)
	MinJWTSecretLength = 32
)

// Validate rejects configurations the node cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.ChainID) == "" {
		return fmt.Errorf("config: ChainID required")
	}
	if _, err := cfg.Contract(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if cfg.RPC.MaxBodyBytes <= 0 || cfg.RPC.MaxBodyBytes > MaxRPCBodyBytes {
		return fmt.Errorf("rpc: MaxBodyBytes must be within (0, %d]", MaxRPCBodyBytes)
	}
	if cfg.RPC.RateLimitPerSec < 0 {
		return fmt.Errorf("rpc: RateLimitPerSec < 0")
	}
	if cfg.RPC.RateLimitPerSec > 0 && cfg.RPC.RateLimitBurst <= 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when rate limiting")
	}
	if secret := strings.TrimSpace(cfg.RPC.JWTSecret); secret != "" && len(secret) < MinJWTSecretLength {
		return fmt.Errorf("rpc: JWTSecret must be at least %d bytes", MinJWTSecretLength)
	}
	switch strings.ToLower(cfg.Indexer.Driver) {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("indexer: unsupported driver %q", cfg.Indexer.Driver)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			return fmt.Errorf("telemetry: Endpoint required when exporting")
		}
	}
	return nil
}
