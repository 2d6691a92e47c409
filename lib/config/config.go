// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/carbonledger/lib/governance"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/runtime"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/token"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "CARBONLEDGER_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local ledgers and tests.
	Development Environment = "development"
	// Staging is for pre-production networks.
	Staging Environment = "staging"
	// Production is for the live ledger.
	Production Environment = "production"
)

// Signature policies accepted by oracle.signature_policy.
const (
	SignaturePolicyVerify    = "verify"
	SignaturePolicyCountOnly = "count-only"
)

// Config is the master configuration for a carbonledger node.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
	Registry   RegistryConfig   `yaml:"registry"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Token      TokenConfig      `yaml:"token"`
	Governance GovernanceConfig `yaml:"governance"`

	// Genesis is applied once by "carbonledger init".
	Genesis GenesisConfig `yaml:"genesis"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Ledger rules (registry, token, governance) are deliberately absent:
// every environment of one network must agree on them.
type ConfigOverrides struct {
	Store  *StoreConfig  `yaml:"store,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
	Oracle *OracleConfig `yaml:"oracle,omitempty"`
}

// StoreConfig configures persistent state.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections. Zero uses the
	// pool default.
	PoolSize int `yaml:"pool_size"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text, json, or auto (text on a terminal).
	Format string `yaml:"format"`
}

// RegistryConfig configures the device registry.
type RegistryConfig struct {
	RegistrationDeposit   uint64 `yaml:"registration_deposit"`
	MaxMetadataLength     int    `yaml:"max_metadata_length"`
	MaxManufacturerLength int    `yaml:"max_manufacturer_length"`
	MaxDevicesPerOwner    int    `yaml:"max_devices_per_owner"`
}

// OracleConfig configures the telemetry validator.
type OracleConfig struct {
	// MinOracleCount is the signature quorum.
	MinOracleCount int `yaml:"min_oracle_count"`

	// SignaturePolicy is "verify" (Ed25519 over the data hash) or
	// "count-only" (signatures are counted, never checked).
	SignaturePolicy string `yaml:"signature_policy"`

	// BindDataHash requires the data hash to be the digest of the
	// submitted reading.
	BindDataHash bool `yaml:"bind_data_hash"`

	// TelemetryTimeout is the number of heights after which an
	// active device without telemetry is reported stale.
	TelemetryTimeout uint64 `yaml:"telemetry_timeout"`
}

// TokenConfig configures reward issuance.
type TokenConfig struct {
	// MintRate is the number of credits per verified kWh.
	MintRate uint64 `yaml:"mint_rate"`
}

// GovernanceConfig configures proposals and voting.
type GovernanceConfig struct {
	MinProposalDeposit   uint64 `yaml:"min_proposal_deposit"`
	VotingPeriod         uint64 `yaml:"voting_period"`
	MaxTitleLength       int    `yaml:"max_title_length"`
	MaxDescriptionLength int    `yaml:"max_description_length"`
}

// GenesisConfig is the initial ledger state.
type GenesisConfig struct {
	Manufacturers []string         `yaml:"manufacturers"`
	Oracles       []GenesisOracle  `yaml:"oracles"`
	Deposits      []GenesisBalance `yaml:"deposits"`
	Balances      []GenesisBalance `yaml:"balances"`
}

// GenesisOracle is an oracle node present from the start. PublicKey is
// hex and may be empty.
type GenesisOracle struct {
	Account   string `yaml:"account"`
	PublicKey string `yaml:"public_key"`
}

// GenesisBalance is an initial amount for one account.
type GenesisBalance struct {
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	registryParams := registry.DefaultParams()
	oracleParams := oracle.DefaultParams()
	governanceParams := governance.DefaultParams()

	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Path: filepath.Join(homeDir, ".local", "share", "carbonledger", "ledger.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Registry: RegistryConfig{
			RegistrationDeposit:   registryParams.RegistrationDeposit,
			MaxMetadataLength:     registryParams.MaxMetadataLength,
			MaxManufacturerLength: registryParams.MaxManufacturerLength,
			MaxDevicesPerOwner:    registryParams.MaxDevicesPerOwner,
		},
		Oracle: OracleConfig{
			MinOracleCount:   oracleParams.MinOracleCount,
			SignaturePolicy:  SignaturePolicyVerify,
			TelemetryTimeout: 1000,
		},
		Token: TokenConfig{
			MintRate: 10,
		},
		Governance: GovernanceConfig{
			MinProposalDeposit:   governanceParams.MinProposalDeposit,
			VotingPeriod:         governanceParams.VotingPeriod,
			MaxTitleLength:       governanceParams.MaxTitleLength,
			MaxDescriptionLength: governanceParams.MaxDescriptionLength,
		},
	}
}

// Load loads configuration from the CARBONLEDGER_CONFIG environment
// variable. There is no fallback: if the variable is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your carbonledger.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${HOME}-style variables in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: verified signatures bound to the reading.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Oracle: &OracleConfig{
					SignaturePolicy: SignaturePolicyVerify,
					BindDataHash:    true,
				},
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}

	if overrides.Oracle != nil {
		if overrides.Oracle.MinOracleCount != 0 {
			c.Oracle.MinOracleCount = overrides.Oracle.MinOracleCount
		}
		if overrides.Oracle.SignaturePolicy != "" {
			c.Oracle.SignaturePolicy = overrides.Oracle.SignaturePolicy
		}
		// BindDataHash is a bool, so we always apply it from overrides.
		c.Oracle.BindDataHash = overrides.Oracle.BindDataHash
		if overrides.Oracle.TelemetryTimeout != 0 {
			c.Oracle.TelemetryTimeout = overrides.Oracle.TelemetryTimeout
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors and reports all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must not be negative"))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	if !slices.Contains([]string{"auto", "text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: auto, text, json"))
	}

	if c.Registry.MaxMetadataLength <= 0 {
		errs = append(errs, fmt.Errorf("registry.max_metadata_length must be positive"))
	}
	if c.Registry.MaxManufacturerLength <= 0 {
		errs = append(errs, fmt.Errorf("registry.max_manufacturer_length must be positive"))
	}
	if c.Registry.MaxDevicesPerOwner <= 0 {
		errs = append(errs, fmt.Errorf("registry.max_devices_per_owner must be positive"))
	}

	if c.Oracle.MinOracleCount < 1 {
		errs = append(errs, fmt.Errorf("oracle.min_oracle_count must be at least 1"))
	}
	policies := []string{SignaturePolicyVerify, SignaturePolicyCountOnly}
	if !slices.Contains(policies, c.Oracle.SignaturePolicy) {
		errs = append(errs, fmt.Errorf("oracle.signature_policy must be one of: %v", policies))
	}
	if c.Environment == Production && c.Oracle.SignaturePolicy == SignaturePolicyCountOnly {
		errs = append(errs, fmt.Errorf("oracle.signature_policy %q is not allowed in production", SignaturePolicyCountOnly))
	}

	if c.Governance.VotingPeriod == 0 {
		errs = append(errs, fmt.Errorf("governance.voting_period must be positive"))
	}
	if c.Governance.MaxTitleLength <= 0 || c.Governance.MaxDescriptionLength <= 0 {
		errs = append(errs, fmt.Errorf("governance title and description limits must be positive"))
	}

	if _, err := c.GenesisState(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel returns Log.Level as a slog level. Unknown values are info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RuntimeConfig converts the ledger rules into runtime parameters.
func (c *Config) RuntimeConfig(logger *slog.Logger) runtime.Config {
	var verifier oracle.SignatureVerifier = oracle.Ed25519Verifier{}
	if c.Oracle.SignaturePolicy == SignaturePolicyCountOnly {
		verifier = oracle.CountOnly{}
	}
	return runtime.Config{
		Registry: registry.Params{
			RegistrationDeposit:   c.Registry.RegistrationDeposit,
			MaxMetadataLength:     c.Registry.MaxMetadataLength,
			MaxManufacturerLength: c.Registry.MaxManufacturerLength,
			MaxDevicesPerOwner:    c.Registry.MaxDevicesPerOwner,
		},
		Oracle: oracle.Params{
			MinOracleCount: c.Oracle.MinOracleCount,
			BindDataHash:   c.Oracle.BindDataHash,
		},
		Governance: governance.Params{
			MinProposalDeposit:   c.Governance.MinProposalDeposit,
			VotingPeriod:         c.Governance.VotingPeriod,
			MaxTitleLength:       c.Governance.MaxTitleLength,
			MaxDescriptionLength: c.Governance.MaxDescriptionLength,
		},
		Reward:           token.RewardCalculator{RatePerKWh: c.Token.MintRate},
		Verifier:         verifier,
		TelemetryTimeout: c.Oracle.TelemetryTimeout,
		Logger:           logger,
	}
}

// GenesisState parses the genesis section, validating account ids and
// oracle public keys.
func (c *Config) GenesisState() (runtime.Genesis, error) {
	var genesis runtime.Genesis
	var errs []error

	genesis.Manufacturers = c.Genesis.Manufacturers

	for i, node := range c.Genesis.Oracles {
		account, err := schema.ParseAccountID(node.Account)
		if err != nil {
			errs = append(errs, fmt.Errorf("genesis.oracles[%d].account: %w", i, err))
			continue
		}
		var publicKey []byte
		if node.PublicKey != "" {
			publicKey, err = hex.DecodeString(node.PublicKey)
			if err != nil || len(publicKey) != 32 {
				errs = append(errs, fmt.Errorf("genesis.oracles[%d].public_key must be 64 hex characters", i))
				continue
			}
		}
		genesis.Oracles = append(genesis.Oracles, runtime.GenesisOracle{Account: account, PublicKey: publicKey})
	}

	parseBalances := func(section string, balances []GenesisBalance) []runtime.GenesisBalance {
		var parsed []runtime.GenesisBalance
		for i, balance := range balances {
			account, err := schema.ParseAccountID(balance.Account)
			if err != nil {
				errs = append(errs, fmt.Errorf("genesis.%s[%d].account: %w", section, i, err))
				continue
			}
			parsed = append(parsed, runtime.GenesisBalance{Account: account, Amount: balance.Amount})
		}
		return parsed
	}
	genesis.Deposits = parseBalances("deposits", c.Genesis.Deposits)
	genesis.Balances = parseBalances("balances", c.Genesis.Balances)

	if len(errs) > 0 {
		return runtime.Genesis{}, errors.Join(errs...)
	}
	return genesis, nil
}

// EnsureStoreDirectory creates the directory holding the state
// database.
func (c *Config) EnsureStoreDirectory() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
