// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"

	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/oracle"
	"github.com/bureau-foundation/carbonledger/lib/registry"
	"github.com/bureau-foundation/carbonledger/lib/schema"
)

// Stats summarizes the committed ledger.
type Stats struct {
	Height        height.Height `json:"height"`
	TotalSupply   uint64        `json:"total_supply"`
	Holders       int           `json:"holders"`
	Devices       int           `json:"devices"`
	ActiveDevices int           `json:"active_devices"`
	OracleNodes   int           `json:"oracle_nodes"`
	Reports       uint64        `json:"reports"`
	TotalCO2Grams uint64        `json:"total_co2_grams"`
	TotalEnergyWh uint64        `json:"total_energy_wh"`
	Proposals     uint64        `json:"proposals"`
}

// Stats walks the committed state and aggregates it. It reads every
// stored report and every device record, so its cost grows linearly
// with the report count. It serves operator queries, not operations.
func (r *Runtime) Stats(ctx context.Context) (Stats, error) {
	store := r.store
	var stats Stats
	var err error

	if stats.Height, err = r.LastHeight(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalSupply, err = r.Ledger.TotalSupply(ctx, store); err != nil {
		return Stats{}, err
	}
	if _, stats.Holders, err = r.Ledger.SumBalances(ctx, store); err != nil {
		return Stats{}, err
	}
	if stats.Proposals, err = r.Governance.ProposalCount(ctx, store); err != nil {
		return Stats{}, err
	}
	nodes, err := r.Oracle.Nodes(ctx, store)
	if err != nil {
		return Stats{}, err
	}
	stats.OracleNodes = len(nodes)

	err = r.Registry.WalkDevices(ctx, store, func(device registry.Device) error {
		stats.Devices++
		if device.Status == registry.StatusActive {
			stats.ActiveDevices++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	err = r.Oracle.WalkReports(ctx, store, func(report oracle.Report) error {
		stats.Reports++
		var addErr error
		if stats.TotalCO2Grams, addErr = schema.CheckedAdd(stats.TotalCO2Grams, report.CO2Grams); addErr != nil {
			return addErr
		}
		stats.TotalEnergyWh, addErr = schema.CheckedAdd(stats.TotalEnergyWh, report.EnergyWh)
		return addErr
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// StaleDevices returns active devices with no telemetry in the
// configured timeout, measured from the last committed height.
func (r *Runtime) StaleDevices(ctx context.Context) ([]registry.Device, error) {
	now, err := r.LastHeight(ctx)
	if err != nil {
		return nil, err
	}
	return r.Registry.StaleDevices(ctx, r.store, now, r.config.TelemetryTimeout)
}
