// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"fmt"
)

// ConfigHeaderSize is the size of the configuration header in bytes.
const ConfigHeaderSize = 64

// NumBARs is the number of base address registers of a type 0 header.
const NumBARs = 6

// Byte offsets of the configuration header fields.
const (
	offVendorID            = 0x00
	offDeviceID            = 0x02
	offStatus              = 0x04
	offCommand             = 0x06
	offRevisionID          = 0x08
	offClassCode           = 0x09
	offBIST                = 0x0c
	offHeaderType          = 0x0d
	offLatencyTimer        = 0x0e
	offCacheLineSize       = 0x0f
	offBARs                = 0x10
	offCardbusCISPointer   = 0x28
	offSubsystemVendorID   = 0x2c
	offSubsystemID         = 0x2e
	offExpansionROMBase    = 0x30
	offCapabilitiesPointer = 0x34
	offReserved0           = 0x35
	offReserved1           = 0x38
	offMaxLatency          = 0x3c
	offMinGrant            = 0x3d
	offInterruptPin        = 0x3e
	offInterruptLine       = 0x3f
)

// NoCapabilitiesPointer is the capabilities pointer value of a device
// without a capability list.
const NoCapabilitiesPointer = 0xff

// ConfigHeader is the first 64 bytes of a device's configuration space.
//
// Fields are decoded one by one from fixed little-endian offsets, so the
// layout does not depend on Go struct layout. The reserved bytes are kept
// to make Bytes the exact inverse of ParseConfigHeader.
type ConfigHeader struct {
	VendorID            uint16
	DeviceID            uint16
	Status              uint16
	Command             uint16
	RevisionID          uint8
	ClassCode           [3]uint8
	BIST                uint8
	HeaderType          uint8
	LatencyTimer        uint8
	CacheLineSize       uint8
	BARs                [NumBARs]uint32
	CardbusCISPointer   uint32
	SubsystemVendorID   uint16
	SubsystemID         uint16
	ExpansionROMBase    uint32
	CapabilitiesPointer uint8
	reserved0           [3]uint8
	reserved1           uint32
	MaxLatency          uint8
	MinGrant            uint8
	InterruptPin        uint8
	InterruptLine       uint8
}

// ParseConfigHeader decodes the first ConfigHeaderSize bytes of b.
// It fails with ErrShortRead if b is shorter than that.
func ParseConfigHeader(b []byte) (ConfigHeader, error) {
	if len(b) < ConfigHeaderSize {
		return ConfigHeader{}, fmt.Errorf("%w: config header needs %d bytes, got %d", ErrShortRead, ConfigHeaderSize, len(b))
	}

	le := binary.LittleEndian

	h := ConfigHeader{
		VendorID:            le.Uint16(b[offVendorID:]),
		DeviceID:            le.Uint16(b[offDeviceID:]),
		Status:              le.Uint16(b[offStatus:]),
		Command:             le.Uint16(b[offCommand:]),
		RevisionID:          b[offRevisionID],
		BIST:                b[offBIST],
		HeaderType:          b[offHeaderType],
		LatencyTimer:        b[offLatencyTimer],
		CacheLineSize:       b[offCacheLineSize],
		CardbusCISPointer:   le.Uint32(b[offCardbusCISPointer:]),
		SubsystemVendorID:   le.Uint16(b[offSubsystemVendorID:]),
		SubsystemID:         le.Uint16(b[offSubsystemID:]),
		ExpansionROMBase:    le.Uint32(b[offExpansionROMBase:]),
		CapabilitiesPointer: b[offCapabilitiesPointer],
		reserved1:           le.Uint32(b[offReserved1:]),
		MaxLatency:          b[offMaxLatency],
		MinGrant:            b[offMinGrant],
		InterruptPin:        b[offInterruptPin],
		InterruptLine:       b[offInterruptLine],
	}

	copy(h.ClassCode[:], b[offClassCode:offClassCode+3])
	copy(h.reserved0[:], b[offReserved0:offReserved0+3])

	for i := range h.BARs {
		h.BARs[i] = le.Uint32(b[offBARs+4*i:])
	}

	return h, nil
}

// Bytes encodes h at the offsets ParseConfigHeader reads from.
func (h *ConfigHeader) Bytes() []byte {
	b := make([]byte, ConfigHeaderSize)
	le := binary.LittleEndian

	le.PutUint16(b[offVendorID:], h.VendorID)
	le.PutUint16(b[offDeviceID:], h.DeviceID)
	le.PutUint16(b[offStatus:], h.Status)
	le.PutUint16(b[offCommand:], h.Command)
	b[offRevisionID] = h.RevisionID
	copy(b[offClassCode:], h.ClassCode[:])
	b[offBIST] = h.BIST
	b[offHeaderType] = h.HeaderType
	b[offLatencyTimer] = h.LatencyTimer
	b[offCacheLineSize] = h.CacheLineSize

	for i, bar := range h.BARs {
		le.PutUint32(b[offBARs+4*i:], bar)
	}

	le.PutUint32(b[offCardbusCISPointer:], h.CardbusCISPointer)
	le.PutUint16(b[offSubsystemVendorID:], h.SubsystemVendorID)
	le.PutUint16(b[offSubsystemID:], h.SubsystemID)
	le.PutUint32(b[offExpansionROMBase:], h.ExpansionROMBase)
	b[offCapabilitiesPointer] = h.CapabilitiesPointer
	copy(b[offReserved0:], h.reserved0[:])
	le.PutUint32(b[offReserved1:], h.reserved1)
	b[offMaxLatency] = h.MaxLatency
	b[offMinGrant] = h.MinGrant
	b[offInterruptPin] = h.InterruptPin
	b[offInterruptLine] = h.InterruptLine

	return b
}

// Class returns the 24 bit class code, base class in the top byte.
func (h *ConfigHeader) Class() uint32 {
	return uint32(h.ClassCode[2])<<16 | uint32(h.ClassCode[1])<<8 | uint32(h.ClassCode[0])
}
