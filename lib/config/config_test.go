// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/carbonledger/lib/oracle"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "carbonledger.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Oracle.SignaturePolicy != SignaturePolicyVerify {
		t.Errorf("expected signature_policy=verify, got %s", cfg.Oracle.SignaturePolicy)
	}
	if cfg.Oracle.MinOracleCount != 2 {
		t.Errorf("expected min_oracle_count=2, got %d", cfg.Oracle.MinOracleCount)
	}
	if cfg.Token.MintRate != 10 {
		t.Errorf("expected mint_rate=10, got %d", cfg.Token.MintRate)
	}
	if !strings.HasSuffix(cfg.Store.Path, filepath.Join("carbonledger", "ledger.db")) {
		t.Errorf("unexpected default store path %s", cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CARBONLEDGER_CONFIG not set, got nil")
	}

	expectedMsg := "CARBONLEDGER_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
store:
  path: /test/ledger.db
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Store.Path != "/test/ledger.db" {
		t.Errorf("expected store.path=/test/ledger.db, got %s", cfg.Store.Path)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

store:
  path: /custom/ledger.db
  pool_size: 2

log:
  level: debug
  format: json

registry:
  registration_deposit: 250
  max_devices_per_owner: 3

oracle:
  min_oracle_count: 3
  signature_policy: count-only
  bind_data_hash: true
  telemetry_timeout: 60

token:
  mint_rate: 12

governance:
  voting_period: 40

genesis:
  manufacturers: [acme, globex]
  oracles:
    - account: oracle-1
      public_key: "0101010101010101010101010101010101010101010101010101010101010101"
    - account: oracle-2
  deposits:
    - account: alice
      amount: 500
  balances:
    - account: bob
      amount: 2000
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Store.Path != "/custom/ledger.db" || cfg.Store.PoolSize != 2 {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", cfg.LogLevel())
	}
	// Unset fields keep their defaults.
	if cfg.Registry.MaxMetadataLength != 256 {
		t.Errorf("expected max_metadata_length=256, got %d", cfg.Registry.MaxMetadataLength)
	}

	runtimeConfig := cfg.RuntimeConfig(nil)
	if runtimeConfig.Registry.RegistrationDeposit != 250 || runtimeConfig.Registry.MaxDevicesPerOwner != 3 {
		t.Errorf("unexpected registry params %+v", runtimeConfig.Registry)
	}
	if runtimeConfig.Oracle.MinOracleCount != 3 || !runtimeConfig.Oracle.BindDataHash {
		t.Errorf("unexpected oracle params %+v", runtimeConfig.Oracle)
	}
	if _, ok := runtimeConfig.Verifier.(oracle.CountOnly); !ok {
		t.Errorf("expected CountOnly verifier, got %T", runtimeConfig.Verifier)
	}
	if runtimeConfig.Reward.RatePerKWh != 12 || runtimeConfig.TelemetryTimeout != 60 {
		t.Errorf("unexpected reward %+v / timeout %d", runtimeConfig.Reward, runtimeConfig.TelemetryTimeout)
	}
	if runtimeConfig.Governance.VotingPeriod != 40 {
		t.Errorf("expected voting period 40, got %d", runtimeConfig.Governance.VotingPeriod)
	}

	genesis, err := cfg.GenesisState()
	if err != nil {
		t.Fatalf("GenesisState: %v", err)
	}
	if len(genesis.Manufacturers) != 2 || len(genesis.Oracles) != 2 {
		t.Fatalf("unexpected genesis %+v", genesis)
	}
	if len(genesis.Oracles[0].PublicKey) != 32 || genesis.Oracles[1].PublicKey != nil {
		t.Errorf("unexpected oracle keys %+v", genesis.Oracles)
	}
	if genesis.Deposits[0].Account != "alice" || genesis.Balances[0].Amount != 2000 {
		t.Errorf("unexpected balances %+v / %+v", genesis.Deposits, genesis.Balances)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

store:
  path: /default/ledger.db

oracle:
  signature_policy: count-only

staging:
  store:
    path: /staging/ledger.db
  oracle:
    signature_policy: verify
    bind_data_hash: true
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Store.Path != "/staging/ledger.db" {
		t.Errorf("expected store.path=/staging/ledger.db, got %s", cfg.Store.Path)
	}
	if cfg.Oracle.SignaturePolicy != SignaturePolicyVerify || !cfg.Oracle.BindDataHash {
		t.Errorf("staging oracle override not applied: %+v", cfg.Oracle)
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
store:
  path: /srv/ledger.db
oracle:
  signature_policy: count-only
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Oracle.SignaturePolicy != SignaturePolicyVerify {
		t.Errorf("expected production to force verify, got %s", cfg.Oracle.SignaturePolicy)
	}
	if !cfg.Oracle.BindDataHash {
		t.Error("expected production to bind data hashes")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected production log format json, got %s", cfg.Log.Format)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Variables that look like overrides must be ignored.
	t.Setenv("CARBONLEDGER_STORE_PATH", "/env/ledger.db")
	t.Setenv("CARBONLEDGER_ENVIRONMENT", "staging")

	configPath := writeConfig(t, `
environment: development
store:
  path: /file/ledger.db
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}
	if cfg.Store.Path != "/file/ledger.db" {
		t.Errorf("expected store.path=/file/ledger.db from file, got %s (env vars should not override)", cfg.Store.Path)
	}
}

func TestStorePathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/operator")

	configPath := writeConfig(t, `
store:
  path: ${HOME}/ledger/state.db
`)
	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Store.Path != "/home/operator/ledger/state.db" {
		t.Errorf("expected /home/operator/ledger/state.db, got %s", cfg.Store.Path)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/carbonledger",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/carbonledger",
		},
		{
			input:    "${CARBONLEDGER_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: "invalid environment",
		},
		{
			name:    "empty store path",
			modify:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path is required",
		},
		{
			name:    "unknown signature policy",
			modify:  func(c *Config) { c.Oracle.SignaturePolicy = "trust-me" },
			wantErr: "oracle.signature_policy",
		},
		{
			name: "count-only in production",
			modify: func(c *Config) {
				c.Environment = Production
				c.Oracle.SignaturePolicy = SignaturePolicyCountOnly
			},
			wantErr: "not allowed in production",
		},
		{
			name:    "zero quorum",
			modify:  func(c *Config) { c.Oracle.MinOracleCount = 0 },
			wantErr: "oracle.min_oracle_count",
		},
		{
			name:    "zero voting period",
			modify:  func(c *Config) { c.Governance.VotingPeriod = 0 },
			wantErr: "governance.voting_period",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name: "bad genesis account",
			modify: func(c *Config) {
				c.Genesis.Balances = []GenesisBalance{{Account: "not valid", Amount: 1}}
			},
			wantErr: "genesis.balances[0].account",
		},
		{
			name: "short oracle key",
			modify: func(c *Config) {
				c.Genesis.Oracles = []GenesisOracle{{Account: "oracle-1", PublicKey: "abcd"}}
			},
			wantErr: "genesis.oracles[0].public_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = ""
	cfg.Oracle.MinOracleCount = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"store.path", "oracle.min_oracle_count"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestEnsureStoreDirectory(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")

	if err := cfg.EnsureStoreDirectory(); err != nil {
		t.Fatalf("EnsureStoreDirectory failed: %v", err)
	}
	info, err := os.Stat(filepath.Dir(cfg.Store.Path))
	if err != nil || !info.IsDir() {
		t.Errorf("store directory not created: %v", err)
	}
}
