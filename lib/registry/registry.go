// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/bureau-foundation/carbonledger/lib/failure"
	"github.com/bureau-foundation/carbonledger/lib/height"
	"github.com/bureau-foundation/carbonledger/lib/kvstore"
	"github.com/bureau-foundation/carbonledger/lib/origin"
	"github.com/bureau-foundation/carbonledger/lib/schema"
	"github.com/bureau-foundation/carbonledger/lib/state"
)

// Region prefixes.
const (
	PrefixDevices       byte = 0x01
	PrefixOwnerIndex    byte = 0x02
	PrefixManufacturers byte = 0x03
)

// Reserver holds registration deposits. Reserve fails with an
// InsufficientFunds error when the account cannot cover amount;
// Unreserve releases at most what is reserved and reports how much it
// released.
type Reserver interface {
	Reserve(tx *state.Tx, account schema.AccountID, amount uint64) error
	Unreserve(tx *state.Tx, account schema.AccountID, amount uint64) (uint64, error)
}

// Registry owns device records, the per-owner device index and the
// manufacturer allow-list.
type Registry struct {
	params   Params
	reserver Reserver

	devices       kvstore.Map[schema.DeviceID, Device]
	ownerIndex    kvstore.Map[schema.AccountID, []schema.DeviceID]
	manufacturers kvstore.Map[string, bool]
}

// New returns a registry that reserves deposits through reserver.
func New(params Params, reserver Reserver) *Registry {
	return &Registry{
		params:        params,
		reserver:      reserver,
		devices:       kvstore.NewMap[schema.DeviceID, Device](PrefixDevices, kvstore.Hashed[schema.DeviceID]{}),
		ownerIndex:    kvstore.NewMap[schema.AccountID, []schema.DeviceID](PrefixOwnerIndex, kvstore.Hashed[schema.AccountID]{}),
		manufacturers: kvstore.NewMap[string, bool](PrefixManufacturers, kvstore.Hashed[string]{}),
	}
}

// Params returns the registry's configured limits.
func (r *Registry) Params() Params { return r.params }

// RegisterDevice records a new Pending device owned by the caller and
// reserves the registration deposit.
func (r *Registry) RegisterDevice(tx *state.Tx, caller origin.Caller, id schema.DeviceID, publicKey []byte, manufacturer, metadataURI string) error {
	owner, err := caller.EnsureSigned()
	if err != nil {
		return err
	}
	if err := id.Validate(); err != nil {
		return err
	}
	ctx, store := tx.Context(), tx.Store()

	exists, err := r.devices.Has(ctx, store, id)
	if err != nil {
		return failure.Internal(err)
	}
	if exists {
		return fmt.Errorf("device %q: %w", id, ErrDeviceExists)
	}

	allowed, err := r.IsWhitelisted(ctx, store, manufacturer)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("manufacturer %q: %w", manufacturer, ErrManufacturerNotAllowed)
	}

	if err := r.checkMetadata(metadataURI); err != nil {
		return err
	}
	key, err := schema.PublicKeyFromBytes(publicKey)
	if err != nil {
		return err
	}

	if err := r.reserver.Reserve(tx, owner, r.params.RegistrationDeposit); err != nil {
		return fmt.Errorf("reserving registration deposit: %w", err)
	}

	device := Device{
		ID:              id,
		Owner:           owner,
		PublicKey:       key,
		Manufacturer:    manufacturer,
		MetadataURI:     metadataURI,
		Status:          StatusPending,
		Deposit:         r.params.RegistrationDeposit,
		RegisteredAt:    tx.Height(),
		LastTelemetryAt: tx.Height(),
	}
	if err := r.devices.Set(ctx, store, id, device); err != nil {
		return failure.Internal(err)
	}

	owned, _, err := r.ownerIndex.Get(ctx, store, owner)
	if err != nil {
		return failure.Internal(err)
	}
	if len(owned) >= r.params.MaxDevicesPerOwner {
		return fmt.Errorf("%s owns %d devices: %w", owner, len(owned), ErrTooManyDevices)
	}
	if err := r.ownerIndex.Set(ctx, store, owner, append(owned, id)); err != nil {
		return failure.Internal(err)
	}

	tx.Emit("registry.device_registered",
		state.Attr("device", id),
		state.Attr("owner", owner),
		state.Attr("manufacturer", manufacturer),
		state.Attr("deposit", device.Deposit),
	)
	return nil
}

// UpdateDeviceStatus overwrites the status of a device the caller
// owns.
func (r *Registry) UpdateDeviceStatus(tx *state.Tx, caller origin.Caller, id schema.DeviceID, status Status) error {
	if int(status) >= len(statusNames) {
		return failure.Newf(failure.KindValidation, "invalid device status %d", uint8(status))
	}
	device, err := r.ownedDevice(tx, caller, id)
	if err != nil {
		return err
	}
	previous := device.Status
	device.Status = status
	if err := r.devices.Set(tx.Context(), tx.Store(), id, device); err != nil {
		return failure.Internal(err)
	}
	tx.Emit("registry.device_status_changed",
		state.Attr("device", id),
		state.Attr("from", previous),
		state.Attr("to", status),
	)
	return nil
}

// UpdateDeviceMetadata replaces the metadata URI of a device the
// caller owns.
func (r *Registry) UpdateDeviceMetadata(tx *state.Tx, caller origin.Caller, id schema.DeviceID, metadataURI string) error {
	device, err := r.ownedDevice(tx, caller, id)
	if err != nil {
		return err
	}
	if err := r.checkMetadata(metadataURI); err != nil {
		return err
	}
	device.MetadataURI = metadataURI
	if err := r.devices.Set(tx.Context(), tx.Store(), id, device); err != nil {
		return failure.Internal(err)
	}
	tx.Emit("registry.metadata_updated", state.Attr("device", id), state.Attr("metadata_uri", metadataURI))
	return nil
}

// RevokeDevice deletes a device the caller owns, drops it from the
// owner index, and releases its deposit.
func (r *Registry) RevokeDevice(tx *state.Tx, caller origin.Caller, id schema.DeviceID) error {
	device, err := r.ownedDevice(tx, caller, id)
	if err != nil {
		return err
	}
	ctx, store := tx.Context(), tx.Store()

	if err := r.devices.Delete(ctx, store, id); err != nil {
		return failure.Internal(err)
	}

	owned, _, err := r.ownerIndex.Get(ctx, store, device.Owner)
	if err != nil {
		return failure.Internal(err)
	}
	position := slices.Index(owned, id)
	if position < 0 {
		return fmt.Errorf("device %q missing from %s's index: %w", id, device.Owner, ErrIndexInconsistent)
	}
	owned = slices.Delete(owned, position, position+1)
	if len(owned) == 0 {
		err = r.ownerIndex.Delete(ctx, store, device.Owner)
	} else {
		err = r.ownerIndex.Set(ctx, store, device.Owner, owned)
	}
	if err != nil {
		return failure.Internal(err)
	}

	released, err := r.reserver.Unreserve(tx, device.Owner, device.Deposit)
	if err != nil {
		return fmt.Errorf("releasing registration deposit: %w", err)
	}

	tx.Emit("registry.device_revoked",
		state.Attr("device", id),
		state.Attr("owner", device.Owner),
		state.Attr("released", released),
	)
	return nil
}

// WhitelistManufacturer allow-lists a manufacturer tag. Root only.
// Allow-listing an already allowed tag succeeds and emits the event
// again.
func (r *Registry) WhitelistManufacturer(tx *state.Tx, caller origin.Caller, manufacturer string) error {
	if err := caller.EnsureRoot(); err != nil {
		return err
	}
	if manufacturer == "" || len(manufacturer) > r.params.MaxManufacturerLength {
		return fmt.Errorf("manufacturer %q: %w", manufacturer, ErrManufacturerInvalid)
	}
	if err := r.manufacturers.Set(tx.Context(), tx.Store(), manufacturer, true); err != nil {
		return failure.Internal(err)
	}
	tx.Emit("registry.manufacturer_whitelisted", state.Attr("manufacturer", manufacturer))
	return nil
}

// RecordTelemetry sets a device's last-telemetry height to the
// operation's height. Called by the oracle validator after it accepts
// a report.
func (r *Registry) RecordTelemetry(tx *state.Tx, id schema.DeviceID) error {
	device, err := r.Device(tx.Context(), tx.Store(), id)
	if err != nil {
		return err
	}
	device.LastTelemetryAt = tx.Height()
	return failure.Internal(r.devices.Set(tx.Context(), tx.Store(), id, device))
}

// Device returns the record for id, or ErrDeviceNotFound.
func (r *Registry) Device(ctx context.Context, reader kvstore.Reader, id schema.DeviceID) (Device, error) {
	device, found, err := r.devices.Get(ctx, reader, id)
	if err != nil {
		return Device{}, failure.Internal(err)
	}
	if !found {
		return Device{}, fmt.Errorf("device %q: %w", id, ErrDeviceNotFound)
	}
	return device, nil
}

// DevicesByOwner returns the ids in owner's device index, in
// registration order.
func (r *Registry) DevicesByOwner(ctx context.Context, reader kvstore.Reader, owner schema.AccountID) ([]schema.DeviceID, error) {
	owned, _, err := r.ownerIndex.Get(ctx, reader, owner)
	return owned, failure.Internal(err)
}

// WalkDevices visits every device in key order. Return kvstore.ErrStop
// from fn to end early.
func (r *Registry) WalkDevices(ctx context.Context, reader kvstore.Reader, fn func(Device) error) error {
	return r.devices.Walk(ctx, reader, func(_ schema.DeviceID, device Device) error {
		return fn(device)
	})
}

// IsWhitelisted reports whether manufacturer is allow-listed.
func (r *Registry) IsWhitelisted(ctx context.Context, reader kvstore.Reader, manufacturer string) (bool, error) {
	if manufacturer == "" {
		return false, nil
	}
	allowed, _, err := r.manufacturers.Get(ctx, reader, manufacturer)
	return allowed, failure.Internal(err)
}

// StaleDevices returns the Active devices whose last telemetry is at
// least timeout heights older than now.
func (r *Registry) StaleDevices(ctx context.Context, reader kvstore.Reader, now, timeout height.Height) ([]Device, error) {
	var stale []Device
	err := r.WalkDevices(ctx, reader, func(device Device) error {
		if device.Status == StatusActive && now >= device.LastTelemetryAt && now-device.LastTelemetryAt >= timeout {
			stale = append(stale, device)
		}
		return nil
	})
	return stale, failure.Internal(err)
}

// ownedDevice loads id and checks that the caller owns it.
func (r *Registry) ownedDevice(tx *state.Tx, caller origin.Caller, id schema.DeviceID) (Device, error) {
	account, err := caller.EnsureSigned()
	if err != nil {
		return Device{}, err
	}
	device, err := r.Device(tx.Context(), tx.Store(), id)
	if err != nil {
		return Device{}, err
	}
	if device.Owner != account {
		return Device{}, fmt.Errorf("device %q owned by %s, not %s: %w", id, device.Owner, account, ErrNotOwner)
	}
	return device, nil
}

func (r *Registry) checkMetadata(metadataURI string) error {
	if len(metadataURI) > r.params.MaxMetadataLength {
		return fmt.Errorf("%d bytes, maximum %d: %w", len(metadataURI), r.params.MaxMetadataLength, ErrMetadataTooLong)
	}
	return nil
}
