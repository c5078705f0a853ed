package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"puzzlechain/crypto"
)

const (
	// RPCTokenEnv overrides RPC.AuthToken without writing it to disk.
	RPCTokenEnv = "PUZZLE_RPC_TOKEN"
	// RPCJWTSecretEnv overrides RPC.JWTSecret without writing it to disk.
	RPCJWTSecretEnv = "PUZZLE_RPC_JWT_SECRET"
	// OperatorPassphraseEnv supplies the operator keystore passphrase.
	OperatorPassphraseEnv = "PUZZLE_OPERATOR_PASSPHRASE"

	defaultChainID = "puzzlechain-local"
)

type Config struct {
	ChainID              string `toml:"ChainID"`
	ContractAddress      string `toml:"ContractAddress"`
	DataDir              string `toml:"DataDir"`
	InitFile             string `toml:"InitFile"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`
	Environment          string `toml:"Environment"`

	RPC       RPC       `toml:"rpc"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	Indexer   Indexer   `toml:"indexer"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	Address          string  `toml:"Address"`
	MaxBodyBytes     int64   `toml:"MaxBodyBytes"`
	RateLimitPerSec  float64 `toml:"RateLimitPerSec"`
	RateLimitBurst   int     `toml:"RateLimitBurst"`
	ReadTimeoutSecs  int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs int     `toml:"WriteTimeoutSecs"`
	// AuthToken, when set, must be presented as a bearer token on every
	// request. Prefer PUZZLE_RPC_TOKEN over writing it to the file.
	AuthToken string `toml:"AuthToken,omitempty"`

	// JWTSecret enables HS256 bearer tokens alongside AuthToken.
	JWTSecret   string `toml:"JWTSecret,omitempty"`
	JWTIssuer   string `toml:"JWTIssuer,omitempty"`
	JWTAudience string `toml:"JWTAudience,omitempty"`
}

// Logging mirrors observability/logging.Options.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`

	// SampleRatio keeps this fraction of traces; 0 keeps all.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Indexer enables the SQL event index. An empty DSN disables it.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// PassphraseFunc resolves the passphrase protecting the operator keystore.
type PassphraseFunc func() (string, error)

type loadOptions struct {
	passphrase PassphraseFunc
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithKeystorePassphraseSource sets how the passphrase for a freshly generated
// operator keystore is obtained. By default it is read from
// PUZZLE_OPERATOR_PASSPHRASE.
func WithKeystorePassphraseSource(fn PassphraseFunc) LoadOption {
	return func(o *loadOptions) {
		if fn != nil {
			o.passphrase = fn
		}
	}
}

func envPassphrase() (string, error) {
	return os.Getenv(OperatorPassphraseEnv), nil
}

// Load loads the configuration from the given path, creating a default file
// and operator keystore when none exists.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{passphrase: envPassphrase}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, o.passphrase)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown field %s", path, undecoded[0].String())
	}

	if err := ensureKeystore(path, cfg, o.passphrase); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ChainID) == "" {
		cfg.ChainID = defaultChainID
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		cfg.ContractAddress = DefaultContractAddress(cfg.ChainID)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./puzzle-data"
	}
	if cfg.RPC.Address == "" {
		cfg.RPC.Address = ":8545"
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
	if cfg.RPC.RateLimitPerSec == 0 {
		cfg.RPC.RateLimitPerSec = 20
	}
	if cfg.RPC.RateLimitBurst == 0 {
		cfg.RPC.RateLimitBurst = 40
	}
	if cfg.RPC.ReadTimeoutSecs == 0 {
		cfg.RPC.ReadTimeoutSecs = 15
	}
	if cfg.RPC.WriteTimeoutSecs == 0 {
		cfg.RPC.WriteTimeoutSecs = 15
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Indexer.Driver == "" {
		cfg.Indexer.Driver = "sqlite"
	}
}

func (cfg *Config) applyEnv() {
	if token := strings.TrimSpace(os.Getenv(RPCTokenEnv)); token != "" {
		cfg.RPC.AuthToken = token
	}
	if secret := strings.TrimSpace(os.Getenv(RPCJWTSecretEnv)); secret != "" {
		cfg.RPC.JWTSecret = secret
	}
}

// Contract returns the parsed contract address.
func (cfg *Config) Contract() ([20]byte, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(cfg.ContractAddress))
	if err != nil {
		return [20]byte{}, fmt.Errorf("ContractAddress: %w", err)
	}
	return addr.Raw(), nil
}

// DefaultContractAddress derives a stable contract address from the chain id
// so fresh configurations agree without coordination.
func DefaultContractAddress(chainID string) string {
	digest := ethcrypto.Keccak256([]byte("puzzlechain/contract/" + chainID))
	return crypto.NewAddress(crypto.PuzzlePrefix, digest[12:]).String()
}

func ensureKeystore(configPath string, cfg *Config, passphrase PassphraseFunc) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		if err := generateKeystore(keystorePath, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, passphrase PassphraseFunc) (*Config, error) {
	keystorePath := defaultKeystorePath(path)
	if err := generateKeystore(keystorePath, passphrase); err != nil {
		return nil, err
	}

	cfg := &Config{
		ChainID:              defaultChainID,
		OperatorKeystorePath: keystorePath,
		Environment:          "local",
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func generateKeystore(path string, passphrase PassphraseFunc) error {
	pass, err := passphrase()
	if err != nil {
		return fmt.Errorf("operator keystore passphrase: %w", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	return crypto.SaveToKeystore(path, key, pass)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	clean := *cfg
	if os.Getenv(RPCTokenEnv) != "" {
		clean.RPC.AuthToken = ""
	}
	if os.Getenv(RPCJWTSecretEnv) != "" {
		clean.RPC.JWTSecret = ""
	}
	return toml.NewEncoder(f).Encode(&clean)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
