// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/carbonledger/cmd/carbonledger/cli"
	"github.com/bureau-foundation/carbonledger/lib/config"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/runtime"
)

// nodeParams is embedded by every command that opens the state
// database.
type nodeParams struct {
	ConfigPath string `json:"-" flag:"config,c" desc:"path to carbonledger.yaml (default: $CARBONLEDGER_CONFIG)"`
}

// node is an opened ledger: configuration, SQLite state and the
// runtime over it. The height source starts at the last committed
// height; apply moves it forward.
type node struct {
	config  *config.Config
	store   *kvstore.SQLite
	heights *height.Manual
	runtime *runtime.Runtime
	logger  *slog.Logger
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}
	return cfg, nil
}

func openNode(ctx context.Context, params nodeParams) (*node, error) {
	cfg, err := loadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureStoreDirectory(); err != nil {
		return nil, err
	}

	logger := cli.NewCommandLogger(cfg.LogLevel(), cfg.Log.Format).With(
		"environment", cfg.Environment,
	)

	store, err := kvstore.OpenSQLite(kvstore.SQLiteConfig{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	heights := height.NewManual(0)
	rt := runtime.New(store, heights, cfg.RuntimeConfig(logger))
	last, err := rt.LastHeight(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	heights.Set(last)

	logger.Debug("ledger opened", "path", cfg.Store.Path, "height", last)
	return &node{config: cfg, store: store, heights: heights, runtime: rt, logger: logger}, nil
}

// requireInitialized fails unless genesis has been applied.
func (n *node) requireInitialized(ctx context.Context) error {
	empty, err := n.runtime.Empty(ctx)
	if err != nil {
		return err
	}
	if empty {
		return fmt.Errorf("ledger at %s is not initialized; run 'carbonledger init' first", n.config.Store.Path)
	}
	return nil
}

func (n *node) Close() error {
	return n.store.Close()
}
