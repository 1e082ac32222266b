// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Resource flag bits as exposed in the sysfs resource file.
const (
	resourceIOSpace   = 0x1
	resourceTypeShift = 1
	resourceTypeMask  = 0x3
	resourceType64    = 0x2
)

// BAR describes a populated memory base address register. The zero value
// is an unpopulated slot.
type BAR struct {
	Address uint64
	Size    uint64
	Is64Bit bool
}

// Populated reports whether the slot holds a BAR.
func (b BAR) Populated() bool {
	return b.Address != 0 && b.Size != 0
}

// End returns the last address covered by b.
func (b BAR) End() uint64 {
	return b.Address + b.Size - 1
}

// String implements fmt.Stringer.
func (b BAR) String() string {
	if !b.Populated() {
		return "[unpopulated]"
	}

	width := 32
	if b.Is64Bit {
		width = 64
	}

	return fmt.Sprintf("0x%x-0x%x (%s, %d-bit)", b.Address, b.End(), sizeString(b.Size), width)
}

func sizeString(size uint64) string {
	switch {
	case size >= 1<<30 && size%(1<<30) == 0:
		return fmt.Sprintf("%dG", size>>30)
	case size >= 1<<20 && size%(1<<20) == 0:
		return fmt.Sprintf("%dM", size>>20)
	case size >= 1<<10 && size%(1<<10) == 0:
		return fmt.Sprintf("%dK", size>>10)
	default:
		return fmt.Sprintf("%d", size)
	}
}

// ParseResource reads the memory BARs from a sysfs resource table.
//
// Each of the first NumBARs lines holds "start end flags" in hex. I/O
// space entries and entries starting at address 0 are skipped without
// taking a slot, so index 0 of the result is the first populated memory
// BAR rather than the first line.
func ParseResource(r io.Reader) ([NumBARs]BAR, error) {
	var bars [NumBARs]BAR

	scanner := bufio.NewScanner(r)
	slot := 0

	for line := 0; line < NumBARs && scanner.Scan(); line++ {
		start, end, flags, err := parseResourceLine(scanner.Text())
		if err != nil {
			return [NumBARs]BAR{}, fmt.Errorf("resource line %d: %w", line, err)
		}

		if flags&resourceIOSpace != 0 {
			continue
		}

		if start == 0 {
			continue
		}

		if end < start {
			return [NumBARs]BAR{}, fmt.Errorf("%w: resource line %d: end 0x%x before start 0x%x", ErrParse, line, end, start)
		}

		bars[slot] = BAR{
			Address: start,
			Size:    end - start + 1,
			Is64Bit: (flags>>resourceTypeShift)&resourceTypeMask == resourceType64,
		}
		slot++
	}

	if err := scanner.Err(); err != nil {
		return [NumBARs]BAR{}, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return bars, nil
}

func parseResourceLine(line string) (start, end, flags uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrParse, len(fields), line)
	}

	var vals [3]uint64

	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", ErrParse, err)
		}

		vals[i] = v
	}

	return vals[0], vals[1], vals[2], nil
}
