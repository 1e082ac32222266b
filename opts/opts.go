// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package opts holds the configuration of nvtrust.
package opts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OptsVersion is the Version of Opts. It can be used for validation.
const OptsVersion int = 0

// Default values set by WithDefaults.
const (
	DefaultSysfsRoot   = "/sys/bus/pci/devices"
	DefaultMemFile     = "/dev/mem"
	DefaultIOMemFile   = "/proc/iomem"
	DefaultVendorID    = HexID(0x10de)
	DefaultDeviceID    = HexID(0x2331)
	DefaultIOMemMarker = "nvidia"
)

// Loader fills particular fields of Opts depending on its source.
type Loader func(*Opts) error

// Opts controls the operation of nvtrust.
type Opts struct {
	Version int
	Paths
	Device
}

// Paths groups the host files nvtrust works on.
type Paths struct {
	SysfsRoot string `json:"sysfs_root"`
	MemFile   string `json:"mem_file"`
	IOMemFile string `json:"iomem_file"`
}

// Device identifies the GPU.
type Device struct {
	VendorID    HexID  `json:"vendor_id"`
	DeviceID    HexID  `json:"device_id"`
	IOMemMarker string `json:"iomem_marker"`
}

// NewOpts return a new Opts initialized by the provided Loaders.
func NewOpts(loaders ...Loader) (*Opts, error) {
	opts := &Opts{Version: OptsVersion}

	for _, l := range loaders {
		if err := l(opts); err != nil {
			return nil, err
		}
	}

	return opts, nil
}

// WithDefaults sets every field to its default.
func WithDefaults() Loader {
	return func(o *Opts) error {
		o.Paths = Paths{
			SysfsRoot: DefaultSysfsRoot,
			MemFile:   DefaultMemFile,
			IOMemFile: DefaultIOMemFile,
		}
		o.Device = Device{
			VendorID:    DefaultVendorID,
			DeviceID:    DefaultDeviceID,
			IOMemMarker: DefaultIOMemMarker,
		}

		return nil
	}
}

// HexID is a 16 bit PCI id. It is written as a hex string in JSON.
type HexID uint16

// String implements fmt.Stringer.
func (h HexID) String() string {
	return fmt.Sprintf("0x%04x", uint16(h))
}

// ParseHexID parses "10de" or "0x10de".
func ParseHexID(s string) (HexID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHexID, s)
	}

	return HexID(v), nil
}

// MarshalJSON implements json.Marshaler.
func (h HexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := ParseHexID(s)
	if err != nil {
		return err
	}

	*h = v

	return nil
}
