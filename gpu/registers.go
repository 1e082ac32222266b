// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// BAR0 register offsets.
const (
	RegPMCBoot0        uint64 = 0x000000
	RegPMCEnable       uint64 = 0x000200
	RegPMCDeviceEnable uint64 = 0x000600
	RegHostMem         uint64 = 0x001700
	RegPROMData        uint64 = 0x300000
	RegCCMode          uint64 = 0x1182cc
)

// PRAMIN is a window into video memory inside BAR0.
const (
	PRAMINStart uint64 = 0x700000
	PRAMINLen   uint64 = 1 << 20
	PRAMINEnd          = PRAMINStart + PRAMINLen
)

// bootUnmapped is what a read of an unbacked physical range returns.
const bootUnmapped uint32 = 0xffffffff

// mmioErrorPrefix marks the upper half of a value returned for a
// register read the GPU rejected.
const mmioErrorPrefix = 0xbadf

// IsErrorValue reports whether v is an error pattern instead of register
// contents.
func IsErrorValue(v uint32) bool {
	return v>>16 == mmioErrorPrefix
}
