// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pci reads the configuration of a PCI device through sysfs.
package pci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"system-transparency.org/nvtrust/sterror"
	"system-transparency.org/nvtrust/stlog"
)

// Identity of the supported device.
const (
	NvidiaVendorID  uint16 = 0x10de
	HopperH100PCIe  uint16 = 0x2331
	DefaultSysfsDir        = "/sys/bus/pci/devices"
)

// Files inside a sysfs device directory.
const (
	configFile   = "config"
	resourceFile = "resource"
	resetFile    = "reset"
)

// Device is an opened PCI device.
//
// A Device is shared by reference between its users. Open returns it
// with one reference held; every Acquire needs a matching Release and the
// config file is closed when the last reference is released. After
// InitCapabilities and InitBARs the Device is not modified anymore.
type Device struct {
	path     string
	header   ConfigHeader
	vendorID uint16
	deviceID uint16
	log      stlog.Logger

	// mu serialises seek+read pairs on config.
	mu     sync.Mutex
	config io.ReadSeekCloser

	refs int32

	caps    map[uint8]uint64
	extCaps map[uint16]uint64
	bars    [NumBARs]BAR
}

// Option configures Open.
type Option func(*Device)

// WithLogger sets the Logger of the device. The default discards.
func WithLogger(l stlog.Logger) Option {
	return func(d *Device) {
		d.log = l
	}
}

// WithID overrides the expected vendor and device id.
func WithID(vendorID, deviceID uint16) Option {
	return func(d *Device) {
		d.vendorID = vendorID
		d.deviceID = deviceID
	}
}

// Open opens the device at the sysfs directory path and validates its
// identity. Capabilities and BARs are left empty until InitCapabilities
// and InitBARs are called.
func Open(path string, opts ...Option) (*Device, error) {
	const operation = sterror.Op("open device")

	d := &Device{
		path:     path,
		vendorID: NvidiaVendorID,
		deviceID: HopperH100PCIe,
		log:      stlog.Discard(),
		refs:     1,
		caps:     map[uint8]uint64{},
		extCaps:  map[uint16]uint64{},
	}

	for _, opt := range opts {
		opt(d)
	}

	f, err := os.Open(filepath.Join(path, configFile))
	if err != nil {
		return nil, sterror.E(ErrScope, operation, fmt.Errorf("%w: %v", ErrIO, err), path)
	}

	buf := make([]byte, ConfigHeaderSize)
	if n, err := io.ReadFull(f, buf); err != nil {
		f.Close()

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, sterror.E(ErrScope, operation, ErrShortRead,
				fmt.Sprintf("%s: read %d of %d bytes", path, n, ConfigHeaderSize))
		}

		return nil, sterror.E(ErrScope, operation, fmt.Errorf("%w: %v", ErrIO, err), path)
	}

	hdr, err := ParseConfigHeader(buf)
	if err != nil {
		f.Close()

		return nil, sterror.E(ErrScope, operation, err, path)
	}

	if hdr.VendorID != d.vendorID || hdr.DeviceID != d.deviceID {
		f.Close()

		return nil, sterror.E(ErrScope, operation, ErrUnexpectedDevice,
			fmt.Sprintf("%s: found %04x:%04x, want %04x:%04x", path, hdr.VendorID, hdr.DeviceID, d.vendorID, d.deviceID))
	}

	d.header = hdr
	d.config = f

	d.log.Debug("opened %s (%04x:%04x rev %02x)", path, hdr.VendorID, hdr.DeviceID, hdr.RevisionID)

	return d, nil
}

// Path returns the sysfs directory of the device.
func (d *Device) Path() string {
	return d.path
}

// Header returns the decoded configuration header.
func (d *Device) Header() ConfigHeader {
	return d.header
}

// InitCapabilities walks the standard capability list. It fails with
// ErrNoCapabilities if the capabilities pointer is 0xff and with
// ErrMalformedCapabilityChain if the list does not terminate.
func (d *Device) InitCapabilities() error {
	const operation = sterror.Op("init capabilities")

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config == nil {
		return sterror.E(ErrScope, operation, ErrRefCount, d.path)
	}

	caps, err := walkCapabilities(d.config, d.header.CapabilitiesPointer)
	if err != nil {
		return sterror.E(ErrScope, operation, err, d.path)
	}

	for id, off := range caps {
		d.log.Debug("capability %s at 0x%02x", CapabilityName(id), off)
	}

	d.caps = caps

	return nil
}

// InitExtendedCapabilities walks the PCI Express extended capability list.
func (d *Device) InitExtendedCapabilities() error {
	const operation = sterror.Op("init extended capabilities")

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config == nil {
		return sterror.E(ErrScope, operation, ErrRefCount, d.path)
	}

	caps, err := walkExtCapabilities(d.config)
	if err != nil {
		return sterror.E(ErrScope, operation, err, d.path)
	}

	if len(caps) == 0 {
		d.log.Debug("no extended capabilities visible for %s", d.path)
	}

	d.extCaps = caps

	return nil
}

// InitBARs reads the memory BARs from the device's resource file.
func (d *Device) InitBARs() error {
	const operation = sterror.Op("init BARs")

	f, err := os.Open(filepath.Join(d.path, resourceFile))
	if err != nil {
		return sterror.E(ErrScope, operation, fmt.Errorf("%w: %v", ErrIO, err), d.path)
	}
	defer f.Close()

	bars, err := ParseResource(f)
	if err != nil {
		return sterror.E(ErrScope, operation, err, d.path)
	}

	for i, bar := range bars {
		if bar.Populated() {
			d.log.Info("BAR %d: %s", i, bar)
		}
	}

	d.bars = bars

	return nil
}

// Capability returns the config space offset of the standard capability id.
func (d *Device) Capability(id uint8) (uint64, bool) {
	off, ok := d.caps[id]

	return off, ok
}

// Capabilities returns a copy of the standard capability table.
func (d *Device) Capabilities() map[uint8]uint64 {
	caps := make(map[uint8]uint64, len(d.caps))
	for id, off := range d.caps {
		caps[id] = off
	}

	return caps
}

// ExtCapability returns the config space offset of the extended
// capability id.
func (d *Device) ExtCapability(id uint16) (uint64, bool) {
	off, ok := d.extCaps[id]

	return off, ok
}

// ExtCapabilities returns a copy of the extended capability table.
func (d *Device) ExtCapabilities() map[uint16]uint64 {
	caps := make(map[uint16]uint64, len(d.extCaps))
	for id, off := range d.extCaps {
		caps[id] = off
	}

	return caps
}

// BAR returns slot i of the BAR table. Out of range slots are unpopulated.
func (d *Device) BAR(i int) BAR {
	if i < 0 || i >= NumBARs {
		return BAR{}
	}

	return d.bars[i]
}

// BARs returns the BAR table.
func (d *Device) BARs() [NumBARs]BAR {
	return d.bars
}

// ReadConfig32 reads a little-endian 32 bit value from configuration space.
func (d *Device) ReadConfig32(off uint64) (uint32, error) {
	const operation = sterror.Op("read config")

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config == nil {
		return 0, sterror.E(ErrScope, operation, ErrRefCount, d.path)
	}

	var b [4]byte
	if err := readAt(d.config, b[:], int64(off)); err != nil {
		return 0, sterror.E(ErrScope, operation, err, fmt.Sprintf("%s at 0x%x", d.path, off))
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

// Reset asks the kernel to reset the device function.
func (d *Device) Reset() error {
	const operation = sterror.Op("reset device")

	d.log.Info("resetting %s through sysfs", d.path)

	if err := os.WriteFile(filepath.Join(d.path, resetFile), []byte("1"), 0); err != nil {
		return sterror.E(ErrScope, operation, fmt.Errorf("%w: %v", ErrIO, err), d.path)
	}

	return nil
}

// Acquire takes an additional reference on d.
func (d *Device) Acquire() error {
	for {
		refs := atomic.LoadInt32(&d.refs)
		if refs <= 0 {
			return sterror.E(ErrScope, sterror.Op("acquire device"), ErrRefCount, d.path)
		}

		if atomic.CompareAndSwapInt32(&d.refs, refs, refs+1) {
			return nil
		}
	}
}

// Release drops a reference. The config file is closed with the last one.
func (d *Device) Release() error {
	refs := atomic.AddInt32(&d.refs, -1)

	switch {
	case refs > 0:
		return nil
	case refs < 0:
		atomic.StoreInt32(&d.refs, 0)

		return sterror.E(ErrScope, sterror.Op("release device"), ErrRefCount, d.path)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config == nil {
		return nil
	}

	err := d.config.Close()
	d.config = nil

	if err != nil {
		return sterror.E(ErrScope, sterror.Op("release device"), fmt.Errorf("%w: %v", ErrIO, err), d.path)
	}

	d.log.Debug("closed %s", d.path)

	return nil
}

// Close releases the reference returned by Open.
func (d *Device) Close() error {
	return d.Release()
}
