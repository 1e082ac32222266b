// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/unix"
	"system-transparency.org/nvtrust/sterror"
)

// CPUID leaves read through the cpuid device.
const (
	LeafSVM        uint32 = 0x8000000a
	LeafEncryptMem uint32 = 0x8000001f
)

// CPUIDReader executes cpuid for leaf and subleaf.
type CPUIDReader func(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32, err error)

// ReadCPUID returns a CPUIDReader backed by /dev/cpu/<cpu>/cpuid. The
// device needs the cpuid kernel module and root.
func ReadCPUID(cpu int) CPUIDReader {
	path := fmt.Sprintf("/dev/cpu/%d/cpuid", cpu)

	return func(leaf, subleaf uint32) (uint32, uint32, uint32, uint32, error) {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, 0, 0, sterror.E(ErrScope, ErrOpCPUID, fmt.Errorf("%w: %v", ErrCPUID, err), path)
		}
		defer f.Close()

		var regs [16]byte

		off := int64(leaf) | int64(subleaf)<<32
		if n, err := unix.Pread(int(f.Fd()), regs[:], off); err != nil || n != len(regs) {
			return 0, 0, 0, 0, sterror.E(ErrScope, ErrOpCPUID, ErrCPUID,
				fmt.Sprintf("%s leaf 0x%x: read %d bytes: %v", path, leaf, n, err))
		}

		return binary.LittleEndian.Uint32(regs[0:]),
			binary.LittleEndian.Uint32(regs[4:]),
			binary.LittleEndian.Uint32(regs[8:]),
			binary.LittleEndian.Uint32(regs[12:]),
			nil
	}
}

// SEVInfo describes the confidential computing support of the CPU.
type SEVInfo struct {
	Vendor       string
	SVM          bool
	NestedPaging bool
	SME          bool
	SEV          bool
	SEVES        bool
	SEVSNP       bool

	// The following fields are only valid if Raw is set.
	Raw   bool
	ASIDs uint32
	CBit  uint8
}

// SMEMask returns the page table bit marking encrypted pages.
func (i SEVInfo) SMEMask() uint64 {
	return 1 << i.CBit
}

// CheckSEVSNP inspects cpu for AMD SEV-SNP support. It fails if the CPU
// has no SVM or no nested paging. If read is not nil, it is used to fill
// the ASID count and the C-bit position; a failing read only leaves Raw
// unset.
func CheckSEVSNP(cpu *cpuid.CPUInfo, read CPUIDReader) (SEVInfo, error) {
	info := SEVInfo{
		Vendor:       cpu.VendorString,
		SVM:          cpu.Supports(cpuid.SVM),
		NestedPaging: cpu.Supports(cpuid.SVMNP),
		SME:          cpu.Supports(cpuid.SME),
		SEV:          cpu.Supports(cpuid.SEV),
		SEVES:        cpu.Supports(cpuid.SEV_ES),
		SEVSNP:       cpu.Supports(cpuid.SEV_SNP),
	}

	if cpu.VendorID != cpuid.AMD || !info.SVM {
		return info, sterror.E(ErrScope, ErrOpSEVSNP, ErrNoSVM, cpu.BrandName)
	}

	if !info.NestedPaging {
		return info, sterror.E(ErrScope, ErrOpSEVSNP, ErrNoNestedPaging, cpu.BrandName)
	}

	if read == nil {
		return info, nil
	}

	_, asids, _, _, err := read(LeafSVM, 0)
	if err != nil {
		return info, nil
	}

	_, ebx, _, _, err := read(LeafEncryptMem, 0)
	if err != nil {
		return info, nil
	}

	info.Raw = true
	info.ASIDs = asids
	info.CBit = uint8(ebx & 0x3f)

	return info, nil
}

// DetectSEVSNP runs CheckSEVSNP for the running CPU.
func DetectSEVSNP() (SEVInfo, error) {
	return CheckSEVSNP(&cpuid.CPU, ReadCPUID(0))
}
