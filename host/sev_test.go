// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"testing"

	"github.com/klauspost/cpuid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCPU(vendor cpuid.Vendor, features ...cpuid.FeatureID) *cpuid.CPUInfo {
	cpu := &cpuid.CPUInfo{
		VendorID:  vendor,
		BrandName: "test CPU",
	}
	cpu.Enable(features...)

	return cpu
}

func fakeCPUID(asids, ebx uint32, err error) CPUIDReader {
	return func(leaf, _ uint32) (uint32, uint32, uint32, uint32, error) {
		if err != nil {
			return 0, 0, 0, 0, err
		}

		switch leaf {
		case LeafSVM:
			return 0, asids, 0, 0, nil
		case LeafEncryptMem:
			return 0x1f, ebx, 0, 0, nil
		default:
			return 0, 0, 0, 0, nil
		}
	}
}

func TestCheckSEVSNP(t *testing.T) {
	snp := fakeCPU(cpuid.AMD, cpuid.SVM, cpuid.SVMNP, cpuid.SME, cpuid.SEV, cpuid.SEV_ES, cpuid.SEV_SNP)

	info, err := CheckSEVSNP(snp, fakeCPUID(0x1fd, 0x16f, nil))
	require.NoError(t, err)
	assert.True(t, info.NestedPaging)
	assert.True(t, info.SEVSNP)
	assert.True(t, info.Raw)
	assert.Equal(t, uint32(0x1fd), info.ASIDs)
	assert.Equal(t, uint8(0x2f), info.CBit)
	assert.Equal(t, uint64(1)<<47, info.SMEMask())

	info, err = CheckSEVSNP(snp, fakeCPUID(0, 0, errors.New("no cpuid device")))
	require.NoError(t, err)
	assert.True(t, info.SEVSNP)
	assert.False(t, info.Raw)

	info, err = CheckSEVSNP(snp, nil)
	require.NoError(t, err)
	assert.False(t, info.Raw)
}

func TestCheckSEVSNPUnsupported(t *testing.T) {
	for _, tt := range []struct {
		name string
		cpu  *cpuid.CPUInfo
		err  error
	}{
		{"intel", fakeCPU(cpuid.Intel, cpuid.VMX), ErrNoSVM},
		{"amd without svm", fakeCPU(cpuid.AMD, cpuid.SSE2), ErrNoSVM},
		{"no nested paging", fakeCPU(cpuid.AMD, cpuid.SVM, cpuid.SEV), ErrNoNestedPaging},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckSEVSNP(tt.cpu, fakeCPUID(0, 0, nil))
			assert.True(t, errors.Is(err, tt.err), "got error %v, want %v", err, tt.err)
		})
	}
}
