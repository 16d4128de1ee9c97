package pool

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/kysee/zkpool/utils"
	"github.com/kysee/zkpool/zk-pool/merkle"
	"github.com/kysee/zkpool/zk-pool/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHeight      = 23
	DefaultRootHistory = 100
)

var ErrConfigFileNotFound = errors.New("config file not found")

type Config struct {
	// Height of the commitment tree; the pool holds 2^Height commitments.
	Height int
	// RootHistory is how many roots, the current one included, a proof may be built against.
	RootHistory int

	MinWithdrawal *uint256.Int
	MaxDeposit    *uint256.Int

	// Self is the pool's own account on the ledger.
	Self common.Address
	// Messenger is the only caller allowed to deliver bridged deposits and governance messages.
	Messenger common.Address
	// GovChainID and Governance identify the origin of governance messages.
	GovChainID uint64
	Governance common.Address
	// RecoveryAccount receives bridged deposits that could not enter the pool.
	RecoveryAccount common.Address

	Routing Routing
	Shuffle Shuffler

	// VerifierCache is the number of accepted proofs remembered per circuit. Zero disables the cache.
	VerifierCache int

	Logger zerolog.Logger
}

func DefaultConfig() *Config {
	return &Config{
		Height:        DefaultHeight,
		RootHistory:   DefaultRootHistory,
		MinWithdrawal: uint256.NewInt(0),
		MaxDeposit:    uint256.MustFromBig(types.MaxExtAmount),
		Routing:       RouteByFlag,
		Shuffle:       CommitmentOrder{},
		Logger:        zerolog.Nop(),
	}
}

func (c *Config) Validate() error {
	if c.Height < 1 || c.Height > merkle.MaxHeight {
		return fmt.Errorf("%w: height %d", ErrInvalidConfig, c.Height)
	}
	if c.RootHistory < 1 {
		return fmt.Errorf("%w: root history %d", ErrInvalidConfig, c.RootHistory)
	}
	if c.MinWithdrawal == nil || c.MaxDeposit == nil {
		return fmt.Errorf("%w: missing limits", ErrInvalidConfig)
	}
	if c.MaxDeposit.ToBig().Cmp(types.MaxExtAmount) > 0 {
		return fmt.Errorf("%w: maximum deposit %s exceeds %s", ErrInvalidConfig, c.MaxDeposit.Dec(), types.MaxExtAmount)
	}
	if c.Self == (common.Address{}) {
		return fmt.Errorf("%w: pool address is not set", ErrInvalidConfig)
	}
	if c.Messenger == (common.Address{}) {
		return fmt.Errorf("%w: messenger is not set", ErrInvalidConfig)
	}
	if c.Governance == (common.Address{}) {
		return fmt.Errorf("%w: governance account is not set", ErrInvalidConfig)
	}
	if c.RecoveryAccount == (common.Address{}) {
		return fmt.Errorf("%w: recovery account is not set", ErrInvalidConfig)
	}
	if c.Shuffle == nil {
		return fmt.Errorf("%w: no output shuffle", ErrInvalidConfig)
	}
	if c.VerifierCache < 0 {
		return fmt.Errorf("%w: verifier cache size %d", ErrInvalidConfig, c.VerifierCache)
	}
	return types.CheckConstants()
}

type fileConfig struct {
	Height          int    `yaml:"height"`
	RootHistory     int    `yaml:"root_history"`
	MinWithdrawal   string `yaml:"min_withdrawal"`
	MaxDeposit      string `yaml:"max_deposit"`
	Pool            string `yaml:"pool"`
	Messenger       string `yaml:"messenger"`
	GovChainID      uint64 `yaml:"governance_chain_id"`
	Governance      string `yaml:"governance"`
	RecoveryAccount string `yaml:"recovery_account"`
	Routing         string `yaml:"routing"`
	Shuffle         string `yaml:"shuffle"`
	VerifierCache   int    `yaml:"verifier_cache"`
	LogLevel        string `yaml:"log_level"`
}

// LoadConfig reads a YAML config file. Fields the file leaves out keep their
// DefaultConfig values. Amounts are decimal strings and accounts are hex addresses.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	if fc.Height != 0 {
		cfg.Height = fc.Height
	}
	if fc.RootHistory != 0 {
		cfg.RootHistory = fc.RootHistory
	}
	if fc.VerifierCache != 0 {
		cfg.VerifierCache = fc.VerifierCache
	}
	cfg.GovChainID = fc.GovChainID

	var err error
	if fc.MinWithdrawal != "" {
		if cfg.MinWithdrawal, err = uint256.FromDecimal(fc.MinWithdrawal); err != nil {
			return nil, fmt.Errorf("min_withdrawal: %w", err)
		}
	}
	if fc.MaxDeposit != "" {
		if cfg.MaxDeposit, err = uint256.FromDecimal(fc.MaxDeposit); err != nil {
			return nil, fmt.Errorf("max_deposit: %w", err)
		}
	}

	for _, a := range []struct {
		name string
		in   string
		out  *common.Address
	}{
		{"pool", fc.Pool, &cfg.Self},
		{"messenger", fc.Messenger, &cfg.Messenger},
		{"governance", fc.Governance, &cfg.Governance},
		{"recovery_account", fc.RecoveryAccount, &cfg.RecoveryAccount},
	} {
		if a.in == "" {
			continue
		}
		if !common.IsHexAddress(a.in) {
			return nil, fmt.Errorf("%s: invalid address %q", a.name, a.in)
		}
		*a.out = common.HexToAddress(a.in)
	}

	if fc.Routing != "" {
		if cfg.Routing, err = ParseRouting(fc.Routing); err != nil {
			return nil, err
		}
	}
	if fc.Shuffle != "" {
		if cfg.Shuffle, err = ParseShuffler(fc.Shuffle); err != nil {
			return nil, err
		}
	}
	if fc.LogLevel != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(fc.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
		cfg.Logger = utils.NewLogger(lvl)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
