// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import "system-transparency.org/nvtrust/sterror"

// ErrScope is the sterror.Scope of this package.
const ErrScope = sterror.PCI

// Error reports problems while reading a device's configuration.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

const (
	ErrShortRead                = Error("short read")
	ErrUnexpectedDevice         = Error("unexpected device")
	ErrNoCapabilities           = Error("no capabilities")
	ErrMalformedCapabilityChain = Error("malformed capability chain")
	ErrCapabilityNotFound       = Error("capability not found")
	ErrParse                    = Error("parse error")
	ErrIO                       = Error("I/O error")
	ErrNoDevice                 = Error("no matching device")
	ErrRefCount                 = Error("device already released")
)
