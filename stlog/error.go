// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stlog

// setupError reports problems with the logger setup. It is not named Error
// since that is taken by the package level logging function.
type setupError string

// Error implements error interface.
func (e setupError) Error() string {
	return string(e)
}

const (
	// ErrUnknownLevel is returned by ParseLevel for unknown level names.
	ErrUnknownLevel = setupError("unknown log level")
	errInitKlog     = setupError("init klog failed")
)
