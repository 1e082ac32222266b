// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"fmt"
	"strings"

	"system-transparency.org/nvtrust/sterror"
)

// UncorrectableError is the AER uncorrectable error status register.
type UncorrectableError uint32

// Bits of UncorrectableError.
const (
	ErrUncUndefined         UncorrectableError = 0x00000001
	ErrUncDataLinkProtocol  UncorrectableError = 0x00000010
	ErrUncSurpriseDown      UncorrectableError = 0x00000020
	ErrUncPoisonedTLP       UncorrectableError = 0x00001000
	ErrUncFlowControl       UncorrectableError = 0x00002000
	ErrUncCompletionTimeout UncorrectableError = 0x00004000
	ErrUncCompleterAbort    UncorrectableError = 0x00008000
	ErrUncUnexpectedComp    UncorrectableError = 0x00010000
	ErrUncReceiverOverflow  UncorrectableError = 0x00020000
	ErrUncMalformedTLP      UncorrectableError = 0x00040000
	ErrUncECRC              UncorrectableError = 0x00080000
	ErrUncUnsupportedReq    UncorrectableError = 0x00100000
	ErrUncACSViolation      UncorrectableError = 0x00200000
	ErrUncInternal          UncorrectableError = 0x00400000
	ErrUncMCBlockedTLP      UncorrectableError = 0x00800000
	ErrUncAtomicOpEgress    UncorrectableError = 0x01000000
	ErrUncTLPPrefixBlocked  UncorrectableError = 0x02000000
)

// aerUncorrectableStatus is the offset of the status register inside the
// AER capability.
const aerUncorrectableStatus = 0x4

var uncorrectableNames = []struct {
	bit  UncorrectableError
	name string
}{
	{ErrUncUndefined, "UND"},
	{ErrUncDataLinkProtocol, "DLP"},
	{ErrUncSurpriseDown, "SURPDN"},
	{ErrUncPoisonedTLP, "POISON_TLP"},
	{ErrUncFlowControl, "FCP"},
	{ErrUncCompletionTimeout, "COMP_TIME"},
	{ErrUncCompleterAbort, "COMP_ABORT"},
	{ErrUncUnexpectedComp, "UNX_COMP"},
	{ErrUncReceiverOverflow, "RX_OVER"},
	{ErrUncMalformedTLP, "MALF_TLP"},
	{ErrUncECRC, "ECRC"},
	{ErrUncUnsupportedReq, "UNSUP"},
	{ErrUncACSViolation, "ACSV"},
	{ErrUncInternal, "INTN"},
	{ErrUncMCBlockedTLP, "MCBTLP"},
	{ErrUncAtomicOpEgress, "ATOMEG"},
	{ErrUncTLPPrefixBlocked, "TLPPRE"},
}

// Has reports whether all bits of flag are set.
func (u UncorrectableError) Has(flag UncorrectableError) bool {
	return u&flag == flag
}

// String lists the names of the set bits. Bits without a name are
// appended as a hex remainder.
func (u UncorrectableError) String() string {
	if u == 0 {
		return "none"
	}

	var (
		names []string
		rest  = u
	)

	for _, n := range uncorrectableNames {
		if u.Has(n.bit) {
			names = append(names, n.name)
			rest &^= n.bit
		}
	}

	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%08x", uint32(rest)))
	}

	return strings.Join(names, "|")
}

// UncorrectableErrors reads the AER uncorrectable error status. It needs
// InitExtendedCapabilities to have found the AER capability.
func (d *Device) UncorrectableErrors() (UncorrectableError, error) {
	const operation = sterror.Op("read AER status")

	off, ok := d.ExtCapability(ExtCapIDAER)
	if !ok {
		return 0, sterror.E(ErrScope, operation, ErrCapabilityNotFound, ExtCapabilityName(ExtCapIDAER))
	}

	v, err := d.ReadConfig32(off + aerUncorrectableStatus)
	if err != nil {
		return 0, err
	}

	return UncorrectableError(v), nil
}
