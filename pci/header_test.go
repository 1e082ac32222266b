// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigHeaderOffsets(t *testing.T) {
	b := make([]byte, ConfigHeaderSize)
	for i := range b {
		b[i] = byte(i)
	}

	h, err := ParseConfigHeader(b)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x0100), h.VendorID)
	assert.Equal(t, uint16(0x0302), h.DeviceID)
	assert.Equal(t, uint16(0x0504), h.Status)
	assert.Equal(t, uint16(0x0706), h.Command)
	assert.Equal(t, uint8(0x08), h.RevisionID)
	assert.Equal(t, [3]uint8{0x09, 0x0a, 0x0b}, h.ClassCode)
	assert.Equal(t, uint8(0x0c), h.BIST)
	assert.Equal(t, uint8(0x0d), h.HeaderType)
	assert.Equal(t, uint8(0x0e), h.LatencyTimer)
	assert.Equal(t, uint8(0x0f), h.CacheLineSize)
	assert.Equal(t, uint32(0x13121110), h.BARs[0])
	assert.Equal(t, uint32(0x27262524), h.BARs[5])
	assert.Equal(t, uint32(0x2b2a2928), h.CardbusCISPointer)
	assert.Equal(t, uint16(0x2d2c), h.SubsystemVendorID)
	assert.Equal(t, uint16(0x2f2e), h.SubsystemID)
	assert.Equal(t, uint32(0x33323130), h.ExpansionROMBase)
	assert.Equal(t, uint8(0x34), h.CapabilitiesPointer)
	assert.Equal(t, uint8(0x3c), h.MaxLatency)
	assert.Equal(t, uint8(0x3d), h.MinGrant)
	assert.Equal(t, uint8(0x3e), h.InterruptPin)
	assert.Equal(t, uint8(0x3f), h.InterruptLine)
	assert.Equal(t, uint32(0x0b0a09), h.Class())
}

func TestConfigHeaderRoundTrip(t *testing.T) {
	//nolint:gosec
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 32; i++ {
		b := make([]byte, ConfigHeaderSize)
		rnd.Read(b)

		h, err := ParseConfigHeader(b)
		require.NoError(t, err)
		require.Equal(t, b, h.Bytes())
	}
}

func TestParseConfigHeaderIgnoresTrailingBytes(t *testing.T) {
	b := h100Config(ConfigSpaceSize)

	h, err := ParseConfigHeader(b)
	require.NoError(t, err)
	assert.Equal(t, b[:ConfigHeaderSize], h.Bytes())
}

func TestParseConfigHeaderShort(t *testing.T) {
	for _, n := range []int{0, 1, 4, ConfigHeaderSize - 1} {
		h, err := ParseConfigHeader(make([]byte, n))
		if !errors.Is(err, ErrShortRead) {
			t.Errorf("ParseConfigHeader(%d bytes) err = %v, want %v", n, err, ErrShortRead)
		}

		assert.Equal(t, ConfigHeader{}, h)
	}
}
