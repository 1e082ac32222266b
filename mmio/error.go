// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import "system-transparency.org/nvtrust/sterror"

// Scope and operations used for creating errors.
const (
	ErrScope   sterror.Scope = sterror.MMIO
	ErrOpMap   sterror.Op    = "map"
	ErrOpRead  sterror.Op    = "read"
	ErrOpWrite sterror.Op    = "write"
	ErrOpClose sterror.Op    = "unmap"
)

// Error is the type of the errors in this package.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// Errors which may be raised and wrapped in this package.
const (
	ErrOutOfRange = Error("access beyond mapped window")
	ErrClosed     = Error("region is unmapped")
	ErrMap        = Error("mapping failed")
)
