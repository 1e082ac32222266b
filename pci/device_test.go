// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := fakeDevice(t, h100Config(ConfigSpaceSize), h100Resource)

	d, err := Open(dir)
	require.NoError(t, err)
	defer d.Close()

	hdr := d.Header()
	assert.Equal(t, NvidiaVendorID, hdr.VendorID)
	assert.Equal(t, HopperH100PCIe, hdr.DeviceID)
	assert.Equal(t, uint8(0xa1), hdr.RevisionID)
	assert.Equal(t, uint32(0x030200), hdr.Class())
	assert.Equal(t, dir, d.Path())

	// Nothing is walked before the Init calls.
	assert.Empty(t, d.Capabilities())
	assert.False(t, d.BAR(0).Populated())

	require.NoError(t, d.InitCapabilities())
	off, ok := d.Capability(CapIDMSIX)
	require.True(t, ok)
	assert.Equal(t, uint64(0xc8), off)
	assert.Len(t, d.Capabilities(), 4)
	_, ok = d.Capability(CapIDVendorSpecific)
	assert.False(t, ok)

	require.NoError(t, d.InitBARs())
	assert.Equal(t, uint64(0xbb000000), d.BAR(0).Address)
	assert.Equal(t, uint64(0x1000000), d.BAR(0).Size)
	assert.True(t, d.BAR(1).Is64Bit)
	assert.False(t, d.BAR(3).Populated())
	assert.False(t, d.BAR(-1).Populated())
	assert.False(t, d.BAR(NumBARs).Populated())

	// A 256 byte config space has no extended capabilities.
	require.NoError(t, d.InitExtendedCapabilities())
	assert.Empty(t, d.ExtCapabilities())
}

func TestOpenErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		config []byte
		opts   []Option
		err    error
	}{
		{
			name:   "unexpected vendor",
			config: configSpace(ConfigSpaceSize, 0x8086, 0x1234, NoCapabilitiesPointer),
			err:    ErrUnexpectedDevice,
		},
		{
			name:   "unexpected device",
			config: configSpace(ConfigSpaceSize, NvidiaVendorID, 0x2330, NoCapabilitiesPointer),
			err:    ErrUnexpectedDevice,
		},
		{
			name:   "other id requested",
			config: h100Config(ConfigSpaceSize),
			opts:   []Option{WithID(NvidiaVendorID, 0x2330)},
			err:    ErrUnexpectedDevice,
		},
		{
			name:   "short header",
			config: h100Config(ConfigSpaceSize)[:ConfigHeaderSize-1],
			err:    ErrShortRead,
		},
		{
			name:   "empty config",
			config: []byte{},
			err:    ErrShortRead,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Open(fakeDevice(t, tt.config, ""), tt.opts...)
			assert.Nil(t, d)
			require.True(t, errors.Is(err, tt.err), "got error %v, want %v", err, tt.err)
		})
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "0000:41:00.0"))
	require.True(t, errors.Is(err, ErrIO), "got error %v", err)
}

func TestOpenWithID(t *testing.T) {
	d, err := Open(fakeDevice(t, configSpace(ConfigHeaderSize, 0x8086, 0x1234, NoCapabilitiesPointer), ""),
		WithID(0x8086, 0x1234))
	require.NoError(t, err)
	defer d.Close()

	err = d.InitCapabilities()
	assert.True(t, errors.Is(err, ErrNoCapabilities), "got error %v", err)
	assert.Empty(t, d.Capabilities())

	err = d.InitBARs()
	assert.True(t, errors.Is(err, ErrIO), "got error %v", err)
}

func TestMalformedChain(t *testing.T) {
	config := configSpace(ConfigSpaceSize, NvidiaVendorID, HopperH100PCIe, 0x40,
		capNode{0x40, CapIDPowerManagement, 0x40},
	)

	d, err := Open(fakeDevice(t, config, ""))
	require.NoError(t, err)
	defer d.Close()

	err = d.InitCapabilities()
	assert.True(t, errors.Is(err, ErrMalformedCapabilityChain), "got error %v", err)
}

func TestReadConfig32(t *testing.T) {
	d, err := Open(fakeDevice(t, h100Config(ConfigSpaceSize), ""))
	require.NoError(t, err)
	defer d.Close()

	v, err := d.ReadConfig32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(HopperH100PCIe)<<16|uint32(NvidiaVendorID), v)

	_, err = d.ReadConfig32(ConfigSpaceSize - 2)
	assert.True(t, errors.Is(err, ErrShortRead), "got error %v", err)
}

func TestRefCount(t *testing.T) {
	d, err := Open(fakeDevice(t, h100Config(ConfigSpaceSize), ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		require.NoError(t, d.Acquire())
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.ReadConfig32(0)
			assert.NoError(t, d.Release())
		}()
	}
	wg.Wait()

	// The reference from Open keeps the device usable.
	_, err = d.ReadConfig32(0)
	require.NoError(t, err)

	require.NoError(t, d.Close())

	_, err = d.ReadConfig32(0)
	assert.True(t, errors.Is(err, ErrRefCount), "got error %v", err)
	assert.True(t, errors.Is(d.Acquire(), ErrRefCount))
	assert.True(t, errors.Is(d.Release(), ErrRefCount))
	assert.True(t, errors.Is(d.InitCapabilities(), ErrRefCount))
}

func TestReset(t *testing.T) {
	dir := fakeDevice(t, h100Config(ConfigSpaceSize), "")
	reset := filepath.Join(dir, resetFile)
	require.NoError(t, os.WriteFile(reset, nil, 0o600))

	d, err := Open(dir)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Reset())

	got, err := os.ReadFile(reset)
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
}
