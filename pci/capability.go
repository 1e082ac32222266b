// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Configuration space sizes.
const (
	ConfigSpaceSize         = 256
	ExtendedConfigSpaceSize = 4096
)

// Capability ids of the standard capability list.
const (
	CapIDPowerManagement uint8 = 0x01
	CapIDMSI             uint8 = 0x05
	CapIDVendorSpecific  uint8 = 0x09
	CapIDPCIExpress      uint8 = 0x10
	CapIDMSIX            uint8 = 0x11
)

// Capability ids of the extended capability list.
const (
	ExtCapIDAER          uint16 = 0x0001
	ExtCapIDSerialNumber uint16 = 0x0003
	ExtCapIDSRIOV        uint16 = 0x0010
	ExtCapIDResizableBAR uint16 = 0x0015
)

const (
	capNodeSize = 4

	// Each node takes at least capNodeSize bytes, so a chain that visits
	// more nodes than fit into the space it lives in must repeat itself.
	maxCapabilities    = ConfigSpaceSize / capNodeSize
	maxExtCapabilities = (ExtendedConfigSpaceSize - ConfigSpaceSize) / capNodeSize
)

// CapabilityName returns a human readable name for a standard capability id.
func CapabilityName(id uint8) string {
	switch id {
	case CapIDPowerManagement:
		return "Power Management"
	case CapIDMSI:
		return "MSI"
	case CapIDVendorSpecific:
		return "Vendor Specific"
	case CapIDPCIExpress:
		return "PCI Express"
	case CapIDMSIX:
		return "MSI-X"
	default:
		return fmt.Sprintf("Unknown (0x%02x)", id)
	}
}

// ExtCapabilityName returns a human readable name for an extended
// capability id.
func ExtCapabilityName(id uint16) string {
	switch id {
	case ExtCapIDAER:
		return "Advanced Error Reporting"
	case ExtCapIDSerialNumber:
		return "Device Serial Number"
	case ExtCapIDSRIOV:
		return "SR-IOV"
	case ExtCapIDResizableBAR:
		return "Resizable BAR"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", id)
	}
}

// readAt seeks r to off and fills b.
func readAt(r io.ReadSeeker, b []byte, off int64) error {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek to 0x%x: %v", ErrIO, off, err)
	}

	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %d bytes at 0x%x", ErrShortRead, len(b), off)
		}

		return fmt.Errorf("%w: read at 0x%x: %v", ErrIO, off, err)
	}

	return nil
}

// walkCapabilities follows the standard capability list starting at ptr.
// Every node is a (id, next) byte pair; next == 0 ends the list.
func walkCapabilities(r io.ReadSeeker, ptr uint8) (map[uint8]uint64, error) {
	if ptr == NoCapabilitiesPointer {
		return nil, ErrNoCapabilities
	}

	caps := make(map[uint8]uint64)

	for n := 0; ptr != 0; n++ {
		if n >= maxCapabilities {
			return nil, fmt.Errorf("%w: more than %d nodes", ErrMalformedCapabilityChain, maxCapabilities)
		}

		var node [capNodeSize]byte
		if err := readAt(r, node[:], int64(ptr)); err != nil {
			return nil, err
		}

		caps[node[0]] = uint64(ptr)
		ptr = node[1]
	}

	return caps, nil
}

// walkExtCapabilities follows the extended capability list that starts
// right after the standard configuration space. If the extended space is
// not readable, for example because the kernel only exposes the first 64
// bytes to unprivileged readers, the result is empty.
func walkExtCapabilities(r io.ReadSeeker) (map[uint16]uint64, error) {
	caps := make(map[uint16]uint64)
	off := uint64(ConfigSpaceSize)

	for n := 0; off != 0; n++ {
		if n >= maxExtCapabilities {
			return nil, fmt.Errorf("%w: more than %d extended nodes", ErrMalformedCapabilityChain, maxExtCapabilities)
		}

		if off < ConfigSpaceSize || off > ExtendedConfigSpaceSize-capNodeSize {
			return nil, fmt.Errorf("%w: extended node at 0x%x", ErrMalformedCapabilityChain, off)
		}

		var node [capNodeSize]byte
		if err := readAt(r, node[:], int64(off)); err != nil {
			if errors.Is(err, ErrShortRead) && n == 0 {
				return caps, nil
			}

			return nil, err
		}

		hdr := binary.LittleEndian.Uint32(node[:])
		if hdr == 0 || hdr == 0xffffffff {
			break
		}

		caps[uint16(hdr&0xffff)] = off
		off = uint64(hdr>>20) & 0xffc
	}

	return caps, nil
}
