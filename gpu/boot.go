// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "fmt"

// Architectures as reported in NV_PMC_BOOT_0.
const (
	ArchTuring uint8 = 0x16
	ArchAmpere uint8 = 0x17
	ArchHopper uint8 = 0x18
	ArchAda    uint8 = 0x19
)

var archNames = map[uint8]string{
	ArchTuring: "Turing",
	ArchAmpere: "Ampere",
	ArchHopper: "Hopper",
	ArchAda:    "Ada",
}

// Boot is the decoded NV_PMC_BOOT_0 identity register.
type Boot struct {
	Raw            uint32
	Architecture   uint8
	Implementation uint8
	MajorRevision  uint8
	MinorRevision  uint8
}

// DecodeBoot splits v into its fields.
func DecodeBoot(v uint32) Boot {
	return Boot{
		Raw:            v,
		Architecture:   uint8(v>>24) & 0x1f,
		Implementation: uint8(v>>20) & 0xf,
		MajorRevision:  uint8(v>>4) & 0xf,
		MinorRevision:  uint8(v) & 0xf,
	}
}

// Chip returns the chip id, e.g. 0x180 for GH100.
func (b Boot) Chip() uint16 {
	return uint16(b.Architecture)<<4 | uint16(b.Implementation)
}

// ArchName returns the architecture name or its number if unknown.
func (b Boot) ArchName() string {
	if name, ok := archNames[b.Architecture]; ok {
		return name
	}

	return fmt.Sprintf("arch 0x%02x", b.Architecture)
}

// String implements fmt.Stringer.
func (b Boot) String() string {
	return fmt.Sprintf("%s chip 0x%03x rev %X%X (boot0 0x%08x)",
		b.ArchName(), b.Chip(), b.MajorRevision, b.MinorRevision, b.Raw)
}
