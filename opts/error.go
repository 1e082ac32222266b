// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opts

import "system-transparency.org/nvtrust/sterror"

// Scope and operations used for creating errors.
const (
	ErrScope    sterror.Scope = sterror.Opts
	ErrOpLoad   sterror.Op    = "load"
	ErrOpDecode sterror.Op    = "decode JSON"
)

// Error reports problems while loading and validating configuration data.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// ErrNonNil is used for testing.
const ErrNonNil = Error("")

// Errors which may be raised and wrapped in this package.
const (
	ErrMissingJSONKey = Error("missing JSON key")
	ErrNoSrcProvided  = Error("no source provided")
	ErrInvalidHexID   = Error("invalid hex id")
)
