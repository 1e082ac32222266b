// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResource(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
		want  [NumBARs]BAR
	}{
		{
			// Type bits (flags>>1)&3 of 0x40000 are 0, so this is a 32-bit BAR.
			name:  "single memory BAR",
			input: "00000000bb000000 00000000bb0fffff 0000000000040000\n",
			want:  [NumBARs]BAR{{Address: 0xbb000000, Size: 0x100000}},
		},
		{
			name:  "64-bit type bits",
			input: "0x0000020000000000 0x000002001fffffff 0x000000000014220c\n",
			want:  [NumBARs]BAR{{Address: 0x20000000000, Size: 0x20000000, Is64Bit: true}},
		},
		{
			name:  "I/O BAR takes no slot",
			input: "0x000000000000e000 0x000000000000e07f 0x0000000000040101\n0x00000000bb000000 0x00000000bbffffff 0x0000000000040200\n",
			want:  [NumBARs]BAR{{Address: 0xbb000000, Size: 0x1000000}},
		},
		{
			name:  "unpopulated entry takes no slot",
			input: "0x0 0x0 0x0\n0x00000000bb000000 0x00000000bbffffff 0x0000000000040200\n",
			want:  [NumBARs]BAR{{Address: 0xbb000000, Size: 0x1000000}},
		},
		{
			name:  "H100 layout is compacted",
			input: h100Resource,
			want: [NumBARs]BAR{
				{Address: 0xbb000000, Size: 0x1000000},
				{Address: 0x20000000000, Size: 0x20000000, Is64Bit: true},
				{Address: 0x20020000000, Size: 0x2000000, Is64Bit: true},
			},
		},
		{
			name: "lines after the sixth are ignored",
			input: strings.Repeat("0x0 0x0 0x0\n", NumBARs) +
				"0x00000000bb000000 0x00000000bbffffff 0x0000000000040200\n",
			want: [NumBARs]BAR{},
		},
		{
			name:  "empty table",
			input: "",
			want:  [NumBARs]BAR{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResource(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResourceMalformed(t *testing.T) {
	for _, input := range []string{
		"0x1000 0x1fff\n",
		"0x1000 0x1fff 0x200 0x0\n",
		"0xzz00 0x1fff 0x200\n",
		"0x2000 0x1fff 0x200\n",
		"\n",
	} {
		_, err := ParseResource(strings.NewReader(input))
		if !errors.Is(err, ErrParse) {
			t.Errorf("ParseResource(%q) err = %v, want %v", input, err, ErrParse)
		}
	}
}

func TestBARString(t *testing.T) {
	assert.Equal(t, "[unpopulated]", BAR{}.String())
	assert.Equal(t, "0xbb000000-0xbbffffff (16M, 32-bit)", BAR{Address: 0xbb000000, Size: 0x1000000}.String())
	assert.Equal(t, "0x20000000000-0x2001fffffff (512M, 64-bit)", BAR{Address: 0x20000000000, Size: 0x20000000, Is64Bit: true}.String())
}
