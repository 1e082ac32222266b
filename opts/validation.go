// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opts

// InvalidError reports invalid data of Opts.
type InvalidError string

// Error implements error interface.
func (e InvalidError) Error() string {
	return string(e)
}

var (
	ErrInvalidVersion     = InvalidError("unsupported opts version")
	ErrMissingSysfsRoot   = InvalidError("sysfs root must be set")
	ErrMissingMemFile     = InvalidError("memory device must be set")
	ErrMissingIOMemFile   = InvalidError("iomem listing must be set")
	ErrMissingVendorID    = InvalidError("vendor id must not be zero")
	ErrMissingDeviceID    = InvalidError("device id must not be zero")
	ErrMissingIOMemMarker = InvalidError("iomem marker must not be empty")
)

// Validater is the interface that wraps the Validate method.
//
// Validate takes Opts and performs validation on it. If Opts is not
// valid an InvalidError is returned.
type Validater interface {
	Validate(*Opts) error
}

type validFunc func(*Opts) error

// ValidationSet is a collection of validation functions.
type ValidationSet []validFunc

// Validate implements Validater.
func (v *ValidationSet) Validate(opts *Opts) error {
	for _, f := range *v {
		if err := f(opts); err != nil {
			return err
		}
	}

	return nil
}

// PathsValidation is a Validater for the Paths of Opts.
func PathsValidation() *ValidationSet {
	return &ValidationSet{
		checkVersion,
		checkSysfsRoot,
		checkMemFile,
		checkIOMemFile,
	}
}

// DeviceValidation is a Validater for the Device of Opts.
func DeviceValidation() *ValidationSet {
	return &ValidationSet{
		checkIDs,
		checkIOMemMarker,
	}
}

// Validate runs all validations on opts.
func Validate(opts *Opts) error {
	for _, v := range []Validater{PathsValidation(), DeviceValidation()} {
		if err := v.Validate(opts); err != nil {
			return err
		}
	}

	return nil
}

func checkVersion(opts *Opts) error {
	if opts.Version != OptsVersion {
		return ErrInvalidVersion
	}

	return nil
}

func checkSysfsRoot(opts *Opts) error {
	if opts.SysfsRoot == "" {
		return ErrMissingSysfsRoot
	}

	return nil
}

func checkMemFile(opts *Opts) error {
	if opts.MemFile == "" {
		return ErrMissingMemFile
	}

	return nil
}

func checkIOMemFile(opts *Opts) error {
	if opts.IOMemFile == "" {
		return ErrMissingIOMemFile
	}

	return nil
}

func checkIDs(opts *Opts) error {
	if opts.VendorID == 0 {
		return ErrMissingVendorID
	}

	if opts.DeviceID == 0 {
		return ErrMissingDeviceID
	}

	return nil
}

func checkIOMemMarker(opts *Opts) error {
	if opts.IOMemMarker == "" {
		return ErrMissingIOMemMarker
	}

	return nil
}
