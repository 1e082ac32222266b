// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "system-transparency.org/nvtrust/sterror"

// Scope and operations used for creating errors.
const (
	ErrScope    sterror.Scope = sterror.GPU
	ErrOpNew    sterror.Op    = "new GPU"
	ErrOpSanity sterror.Op    = "sanity check"
	ErrOpAccess sterror.Op    = "register access"
	ErrOpClose  sterror.Op    = "close GPU"
)

// Error is the type of the errors in this package.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// Errors which may be raised and wrapped in this package.
const (
	ErrSanityCheckFailed = Error("sanity check failed")
	ErrNoBAR0            = Error("BAR0 is not populated")
	ErrIO                = Error("I/O error")
	ErrInvalidWidth      = Error("access width must be 8, 16 or 32 bits")
)
