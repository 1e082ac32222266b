// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import "system-transparency.org/nvtrust/sterror"

// Scope and operations used for creating errors.
const (
	ErrScope    sterror.Scope = sterror.Host
	ErrOpIOMem  sterror.Op    = "parse iomem"
	ErrOpSEVSNP sterror.Op    = "check SEV-SNP"
	ErrOpCPUID  sterror.Op    = "read cpuid"
)

// Error reports problems regarding the host environment and hardware.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// Errors which may be raised and wrapped in this package.
const (
	ErrParse          = Error("malformed line")
	ErrNoSVM          = Error("no SVM information detected, is this a SNP capable CPU?")
	ErrNoNestedPaging = Error("nested paging is not supported")
	ErrCPUID          = Error("cpuid device not readable")
)
