// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import "github.com/bureau-foundation/carbonledger/lib/failure"

var (
	ErrDeviceExists           = failure.New(failure.KindAlreadyExists, "device already registered")
	ErrDeviceNotFound         = failure.New(failure.KindNotFound, "device not found")
	ErrNotOwner               = failure.New(failure.KindUnauthorized, "caller does not own the device")
	ErrManufacturerNotAllowed = failure.New(failure.KindPolicyViolation, "manufacturer is not allow-listed")
	ErrMetadataTooLong        = failure.New(failure.KindValidation, "metadata uri exceeds maximum length")
	ErrManufacturerInvalid    = failure.New(failure.KindValidation, "manufacturer tag is empty or too long")
	ErrTooManyDevices         = failure.New(failure.KindCapacityExceeded, "owner has reached the maximum device count")
	ErrIndexInconsistent      = failure.New(failure.KindInternal, "device owner index is inconsistent")
)
